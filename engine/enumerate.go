package engine

import (
	"context"
	"fmt"

	"github.com/vasylivanchyk330/AWS-Automation/config"
	"github.com/vasylivanchyk330/AWS-Automation/logger"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

// PageFunc is one provider-specific paginated listing call. It returns the
// items of one page plus the continuation cursor, or an empty cursor when the
// chain is exhausted. The first call receives an empty cursor.
type PageFunc func(ctx context.Context, cursor string) (items []model.ResourceDescriptor, next string, err error)

// EnumerationError wraps a pagination or parsing failure. Descriptors
// collected from pages before the failing one remain valid.
type EnumerationError struct {
	Cursor string
	Err    error
}

func (e *EnumerationError) Error() string {
	if e.Cursor == "" {
		return fmt.Sprintf("enumeration failed on first page: %v", e.Err)
	}
	return fmt.Sprintf("enumeration failed at cursor %q: %v", e.Cursor, e.Err)
}

func (e *EnumerationError) Unwrap() error { return e.Err }

// Enumerator turns a page-by-page listing capability into a complete,
// deduplicated set of candidate descriptors matching the criteria.
type Enumerator struct {
	criteria *config.Criteria
	log      logger.Logger
}

// NewEnumerator creates an enumerator for the given criteria.
func NewEnumerator(criteria *config.Criteria, log logger.Logger) *Enumerator {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Enumerator{criteria: criteria, log: log}
}

// selects applies the criteria predicates to one listed item. The explicit
// name list and the window/pattern criteria are independent selection routes;
// an item matching either route is selected (duplicates across routes are
// removed by the identity set).
func (e *Enumerator) selects(d model.ResourceDescriptor) (bool, error) {
	name := d.Name
	if name == "" {
		name = d.Key
	}
	if e.criteria.Excluded(name) {
		return false, nil
	}
	for _, n := range e.criteria.Names {
		if n == name {
			return true, nil
		}
	}
	if !e.criteria.HasWindow() && e.criteria.Pattern == "" {
		// Only an explicit name list was given and this item is not on it.
		return false, nil
	}
	if e.criteria.HasWindow() {
		if d.Created.IsZero() {
			// The provider could not parse the creation timestamp. Skipping
			// silently could leave matching resources behind, so the whole
			// enumeration for this entity aborts.
			return false, fmt.Errorf("item %q has no usable creation timestamp", name)
		}
		if !e.criteria.InWindow(d.Created) {
			return false, nil
		}
	}
	return e.criteria.MatchesPattern(name), nil
}

// Enumerate walks the cursor chain to exhaustion and returns the deduplicated
// descriptor set. An empty result is valid. Pages are fetched strictly
// sequentially because the provider cursor is stateful.
func (e *Enumerator) Enumerate(ctx context.Context, page PageFunc) ([]model.ResourceDescriptor, error) {
	if err := e.criteria.Validate(); err != nil {
		return nil, err
	}

	var (
		out    []model.ResourceDescriptor
		seen   = make(map[string]struct{})
		cursor string
		pages  int
	)

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		items, next, err := page(ctx, cursor)
		if err != nil {
			return nil, &EnumerationError{Cursor: cursor, Err: err}
		}
		pages++

		for _, d := range items {
			ok, err := e.selects(d)
			if err != nil {
				return nil, &EnumerationError{Cursor: cursor, Err: err}
			}
			if !ok {
				continue
			}
			id := d.IdentityKey()
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, d)
		}

		if next == "" {
			break
		}
		cursor = next
	}

	e.log.Debug("Enumeration finished: %d page(s), %d matching descriptor(s)", pages, len(out))
	return out, nil
}

// EnumerateStream walks the cursor chain and emits batches of at most
// batchSize descriptors as soon as a page completes, so deletion can overlap
// continued page fetching. The descriptor channel closes when the chain is
// exhausted; a single error on the error channel ends the stream early.
func (e *Enumerator) EnumerateStream(ctx context.Context, page PageFunc, batchSize int) (<-chan model.Batch, <-chan error) {
	batchCh := make(chan model.Batch, 1)
	errCh := make(chan error, 1)

	go func() {
		defer close(batchCh)
		defer close(errCh)

		if err := e.criteria.Validate(); err != nil {
			errCh <- err
			return
		}
		if batchSize <= 0 {
			batchSize = 1000
		}

		var (
			pending []model.ResourceDescriptor
			seen    = make(map[string]struct{})
			cursor  string
			seq     int
		)

		flush := func(force bool) bool {
			for len(pending) >= batchSize || (force && len(pending) > 0) {
				n := batchSize
				if n > len(pending) {
					n = len(pending)
				}
				b := model.Batch{Seq: seq, Items: pending[:n:n]}
				pending = pending[n:]
				seq++
				select {
				case batchCh <- b:
				case <-ctx.Done():
					return false
				}
			}
			return true
		}

		for {
			if err := ctx.Err(); err != nil {
				errCh <- err
				return
			}

			items, next, err := page(ctx, cursor)
			if err != nil {
				errCh <- &EnumerationError{Cursor: cursor, Err: err}
				return
			}

			for _, d := range items {
				ok, err := e.selects(d)
				if err != nil {
					errCh <- &EnumerationError{Cursor: cursor, Err: err}
					return
				}
				if !ok {
					continue
				}
				id := d.IdentityKey()
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				pending = append(pending, d)
			}

			if !flush(false) {
				errCh <- ctx.Err()
				return
			}

			if next == "" {
				break
			}
			cursor = next
		}

		if !flush(true) {
			errCh <- ctx.Err()
		}
	}()

	return batchCh, errCh
}
