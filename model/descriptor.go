package model

import "time"

// ResourceDescriptor is the opaque identity of one deletable unit: an object
// key plus version, a log group name, a stack name, an ARN. The optional
// metadata is used only for filtering and reporting, never for deletion.
// Descriptors are immutable once produced by enumeration.
type ResourceDescriptor struct {
	Key     string
	Version string // empty for unversioned resource kinds
	Name    string // display name, may differ from Key for ARN-keyed kinds
	Created time.Time
}

// IdentityKey returns the deduplication key for the descriptor.
// Key and Version are joined with a separator that cannot occur in either.
func (d ResourceDescriptor) IdentityKey() string {
	if d.Version == "" {
		return d.Key
	}
	return d.Key + "\x00" + d.Version
}

// Batch is an ordered, size-bounded subset of descriptors submitted as one
// deletion call. Membership is never mutated after construction.
type Batch struct {
	Seq   int // submission order within one enumeration pass
	Items []ResourceDescriptor
}

// SplitBatches partitions descriptors into batches of at most size items,
// preserving order. A non-positive size falls back to 1000 (the S3
// DeleteObjects maximum, which is also the largest bulk size any of the
// supported providers accept).
func SplitBatches(items []ResourceDescriptor, size int) []Batch {
	if size <= 0 {
		size = 1000
	}
	var batches []Batch
	for i, seq := 0, 0; i < len(items); i, seq = i+size, seq+1 {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, Batch{Seq: seq, Items: items[i:end]})
	}
	return batches
}
