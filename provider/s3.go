package provider

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/vasylivanchyk330/AWS-Automation/engine"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

// I created an interface so the S3 client can be tested by providing a custom implementation.
type S3API interface {
	ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	ListObjectVersions(ctx context.Context, params *s3.ListObjectVersionsInput, optFns ...func(*s3.Options)) (*s3.ListObjectVersionsOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	ListMultipartUploads(ctx context.Context, params *s3.ListMultipartUploadsInput, optFns ...func(*s3.Options)) (*s3.ListMultipartUploadsOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	PutBucketPolicy(ctx context.Context, params *s3.PutBucketPolicyInput, optFns ...func(*s3.Options)) (*s3.PutBucketPolicyOutput, error)
	PutBucketLifecycleConfiguration(ctx context.Context, params *s3.PutBucketLifecycleConfigurationInput, optFns ...func(*s3.Options)) (*s3.PutBucketLifecycleConfigurationOutput, error)
	DeleteBucket(ctx context.Context, params *s3.DeleteBucketInput, optFns ...func(*s3.Options)) (*s3.DeleteBucketOutput, error)
}

// S3Teardown supplies the bucket pipeline's listing and deletion primitives.
type S3Teardown struct {
	client S3API
}

// NewS3Teardown creates the adapter from a loaded AWS config.
func NewS3Teardown(awsCfg aws.Config) *S3Teardown {
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if awsCfg.BaseEndpoint != nil {
			// Use path-style addressing for S3-compatible storage
			o.UsePathStyle = true
		}
	})
	return &S3Teardown{client: client}
}

// NewS3TeardownWithClient wires a custom client, used by tests.
func NewS3TeardownWithClient(client S3API) *S3Teardown {
	return &S3Teardown{client: client}
}

// ListBucketsPage lists all buckets as a single page; the API is not
// paginated. Creation dates feed the criteria window.
func (t *S3Teardown) ListBucketsPage() engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		resp, err := t.client.ListBuckets(ctx, &s3.ListBucketsInput{})
		if err != nil {
			return nil, "", fmt.Errorf("failed to list buckets: %w", err)
		}
		items := make([]model.ResourceDescriptor, 0, len(resp.Buckets))
		for _, b := range resp.Buckets {
			d := model.ResourceDescriptor{
				Key:  aws.ToString(b.Name),
				Name: aws.ToString(b.Name),
			}
			if b.CreationDate != nil {
				d.Created = *b.CreationDate
			}
			items = append(items, d)
		}
		return items, "", nil
	}
}

// versionCursor joins the two ListObjectVersions markers into one opaque
// cursor string.
func versionCursor(keyMarker, versionMarker string) string {
	if keyMarker == "" && versionMarker == "" {
		return ""
	}
	return keyMarker + "\x1f" + versionMarker
}

func splitVersionCursor(cursor string) (keyMarker, versionMarker string) {
	if cursor == "" {
		return "", ""
	}
	keyMarker, versionMarker, _ = strings.Cut(cursor, "\x1f")
	return keyMarker, versionMarker
}

// VersionsPage lists every object version and delete marker in the bucket.
// Both entry kinds carry a Key+VersionId identity and are deleted through
// the same DeleteObjects call.
func (t *S3Teardown) VersionsPage(bucket string) engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		keyMarker, versionMarker := splitVersionCursor(cursor)
		input := &s3.ListObjectVersionsInput{Bucket: aws.String(bucket)}
		if keyMarker != "" {
			input.KeyMarker = aws.String(keyMarker)
		}
		if versionMarker != "" {
			input.VersionIdMarker = aws.String(versionMarker)
		}

		resp, err := t.client.ListObjectVersions(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list object versions in %s: %w", bucket, err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.Versions)+len(resp.DeleteMarkers))
		for _, v := range resp.Versions {
			d := model.ResourceDescriptor{
				Key:     aws.ToString(v.Key),
				Version: aws.ToString(v.VersionId),
				Name:    aws.ToString(v.Key),
			}
			if v.LastModified != nil {
				d.Created = *v.LastModified
			}
			items = append(items, d)
		}
		for _, m := range resp.DeleteMarkers {
			d := model.ResourceDescriptor{
				Key:     aws.ToString(m.Key),
				Version: aws.ToString(m.VersionId),
				Name:    aws.ToString(m.Key),
			}
			if m.LastModified != nil {
				d.Created = *m.LastModified
			}
			items = append(items, d)
		}

		next := ""
		if aws.ToBool(resp.IsTruncated) {
			next = versionCursor(aws.ToString(resp.NextKeyMarker), aws.ToString(resp.NextVersionIdMarker))
		}
		return items, next, nil
	}
}

// ObjectsPage lists current objects (unversioned buckets, or leftovers after
// the version purge).
func (t *S3Teardown) ObjectsPage(bucket string) engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		input := &s3.ListObjectsV2Input{Bucket: aws.String(bucket)}
		if cursor != "" {
			input.ContinuationToken = aws.String(cursor)
		}

		resp, err := t.client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list objects in %s: %w", bucket, err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.Contents))
		for _, obj := range resp.Contents {
			d := model.ResourceDescriptor{
				Key:  aws.ToString(obj.Key),
				Name: aws.ToString(obj.Key),
			}
			if obj.LastModified != nil {
				d.Created = *obj.LastModified
			}
			items = append(items, d)
		}

		next := ""
		if aws.ToBool(resp.IsTruncated) {
			next = aws.ToString(resp.NextContinuationToken)
		}
		return items, next, nil
	}
}

// DeleteObjectsBatch deletes up to 1000 identities per call, the S3
// DeleteObjects maximum. Per-item errors come back in the response body;
// the call-level error covers transport and bucket-level failures.
func (t *S3Teardown) DeleteObjectsBatch(bucket string) engine.BatchDeleteFunc {
	return func(ctx context.Context, batch model.Batch) (int, []model.ItemError, error) {
		ids := make([]s3types.ObjectIdentifier, 0, len(batch.Items))
		for _, d := range batch.Items {
			id := s3types.ObjectIdentifier{Key: aws.String(d.Key)}
			if d.Version != "" {
				id.VersionId = aws.String(d.Version)
			}
			ids = append(ids, id)
		}

		resp, err := t.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &s3types.Delete{Objects: ids, Quiet: aws.Bool(false)},
		})
		if err != nil {
			return 0, nil, err
		}

		var itemErrs []model.ItemError
		for _, e := range resp.Errors {
			itemErrs = append(itemErrs, model.ItemError{
				Key:     aws.ToString(e.Key),
				Version: aws.ToString(e.VersionId),
				Code:    aws.ToString(e.Code),
				Message: aws.ToString(e.Message),
			})
		}
		return len(resp.Deleted), itemErrs, nil
	}
}

// MultipartUploadsPage lists unfinished multipart uploads; Version carries
// the upload ID.
func (t *S3Teardown) MultipartUploadsPage(bucket string) engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		keyMarker, uploadMarker := splitVersionCursor(cursor)
		input := &s3.ListMultipartUploadsInput{Bucket: aws.String(bucket)}
		if keyMarker != "" {
			input.KeyMarker = aws.String(keyMarker)
		}
		if uploadMarker != "" {
			input.UploadIdMarker = aws.String(uploadMarker)
		}

		resp, err := t.client.ListMultipartUploads(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list multipart uploads in %s: %w", bucket, err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.Uploads))
		for _, u := range resp.Uploads {
			d := model.ResourceDescriptor{
				Key:     aws.ToString(u.Key),
				Version: aws.ToString(u.UploadId),
				Name:    aws.ToString(u.Key),
			}
			if u.Initiated != nil {
				d.Created = *u.Initiated
			}
			items = append(items, d)
		}

		next := ""
		if aws.ToBool(resp.IsTruncated) {
			next = versionCursor(aws.ToString(resp.NextKeyMarker), aws.ToString(resp.NextUploadIdMarker))
		}
		return items, next, nil
	}
}

// AbortUploadsBatch aborts multipart uploads one by one; S3 has no bulk
// endpoint for them, so per-item calls run within the batch abstraction.
func (t *S3Teardown) AbortUploadsBatch(bucket string) engine.BatchDeleteFunc {
	return func(ctx context.Context, batch model.Batch) (int, []model.ItemError, error) {
		deleted := 0
		var itemErrs []model.ItemError
		for _, d := range batch.Items {
			_, err := t.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(bucket),
				Key:      aws.String(d.Key),
				UploadId: aws.String(d.Version),
			})
			if err != nil {
				itemErrs = append(itemErrs, model.ItemError{
					Key:     d.Key,
					Version: d.Version,
					Code:    errorCode(err),
					Message: err.Error(),
				})
				continue
			}
			deleted++
		}
		return deleted, itemErrs, nil
	}
}

// denyWritePolicy blocks new object writes while the teardown runs, so the
// purge cannot race fresh uploads.
const denyWritePolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Sid": "DenyNewWritesDuringTeardown",
      "Effect": "Deny",
      "Principal": "*",
      "Action": ["s3:PutObject"],
      "Resource": "arn:aws:s3:::%s/*"
    }
  ]
}`

// ApplyDenyPolicy installs the deny-writes bucket policy.
func (t *S3Teardown) ApplyDenyPolicy(ctx context.Context, bucket string) error {
	_, err := t.client.PutBucketPolicy(ctx, &s3.PutBucketPolicyInput{
		Bucket: aws.String(bucket),
		Policy: aws.String(fmt.Sprintf(denyWritePolicy, bucket)),
	})
	if err != nil {
		return fmt.Errorf("failed to apply deny policy to %s: %w", bucket, err)
	}
	return nil
}

// ApplyExpireLifecycle installs lifecycle rules that expire current objects,
// noncurrent versions and stale multipart uploads, as a second line of
// cleanup for anything created while the teardown runs.
func (t *S3Teardown) ApplyExpireLifecycle(ctx context.Context, bucket string) error {
	_, err := t.client.PutBucketLifecycleConfiguration(ctx, &s3.PutBucketLifecycleConfigurationInput{
		Bucket: aws.String(bucket),
		LifecycleConfiguration: &s3types.BucketLifecycleConfiguration{
			Rules: []s3types.LifecycleRule{
				{
					ID:         aws.String("teardown-expire-current"),
					Status:     s3types.ExpirationStatusEnabled,
					Filter:     &s3types.LifecycleRuleFilter{Prefix: aws.String("")},
					Expiration: &s3types.LifecycleExpiration{Days: aws.Int32(1)},
				},
				{
					ID:     aws.String("teardown-expire-noncurrent"),
					Status: s3types.ExpirationStatusEnabled,
					Filter: &s3types.LifecycleRuleFilter{Prefix: aws.String("")},
					NoncurrentVersionExpiration: &s3types.NoncurrentVersionExpiration{
						NoncurrentDays: aws.Int32(1),
					},
					AbortIncompleteMultipartUpload: &s3types.AbortIncompleteMultipartUpload{
						DaysAfterInitiation: aws.Int32(1),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to apply lifecycle rules to %s: %w", bucket, err)
	}
	return nil
}

// BucketExists checks bucket existence via HeadBucket.
func (t *S3Teardown) BucketExists(ctx context.Context, bucket string) (bool, error) {
	_, err := t.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		if Classify(err) == model.ClassNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// BucketStats returns the current object count and total size, used for the
// before/after report around the purge stages.
func (t *S3Teardown) BucketStats(ctx context.Context, bucket string) (count int64, size int64, err error) {
	var token *string
	for {
		resp, err := t.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			ContinuationToken: token,
		})
		if err != nil {
			return 0, 0, fmt.Errorf("failed to get stats for %s: %w", bucket, err)
		}
		count += int64(len(resp.Contents))
		for _, obj := range resp.Contents {
			size += aws.ToInt64(obj.Size)
		}
		if !aws.ToBool(resp.IsTruncated) {
			break
		}
		token = resp.NextContinuationToken
	}
	return count, size, nil
}

// DeleteBucket removes the bucket itself. The provider rejects non-empty
// buckets, so this stage runs last.
func (t *S3Teardown) DeleteBucket(ctx context.Context, bucket string) error {
	_, err := t.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)})
	if err != nil {
		return fmt.Errorf("failed to delete bucket %s: %w", bucket, err)
	}
	return nil
}
