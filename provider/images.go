package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/imagebuilder"

	"github.com/vasylivanchyk330/AWS-Automation/engine"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

type EC2API interface {
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	DeregisterImage(ctx context.Context, params *ec2.DeregisterImageInput, optFns ...func(*ec2.Options)) (*ec2.DeregisterImageOutput, error)
	DeleteSnapshot(ctx context.Context, params *ec2.DeleteSnapshotInput, optFns ...func(*ec2.Options)) (*ec2.DeleteSnapshotOutput, error)
}

// AMITeardown deregisters owned AMIs and deletes their backing snapshots.
type AMITeardown struct {
	client EC2API
}

func NewAMITeardown(awsCfg aws.Config) *AMITeardown {
	return &AMITeardown{client: ec2.NewFromConfig(awsCfg)}
}

func NewAMITeardownWithClient(client EC2API) *AMITeardown {
	return &AMITeardown{client: client}
}

// Page lists AMIs owned by the account. DescribeImages reports CreationDate
// as a string; a value that does not parse aborts the listing rather than
// silently passing the image through the date window.
func (t *AMITeardown) Page() engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		input := &ec2.DescribeImagesInput{Owners: []string{"self"}}
		if cursor != "" {
			input.NextToken = aws.String(cursor)
		}

		resp, err := t.client.DescribeImages(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to describe images: %w", err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.Images))
		for _, img := range resp.Images {
			d := model.ResourceDescriptor{
				Key:  aws.ToString(img.ImageId),
				Name: aws.ToString(img.Name),
			}
			if img.CreationDate != nil {
				created, err := time.Parse(time.RFC3339, *img.CreationDate)
				if err != nil {
					return nil, "", fmt.Errorf("unparseable creation date %q on image %s: %w",
						*img.CreationDate, d.Key, err)
				}
				d.Created = created
			}
			items = append(items, d)
		}
		return items, aws.ToString(resp.NextToken), nil
	}
}

// DeleteBatch deregisters each AMI and then deletes the EBS snapshots that
// backed it. Snapshots are looked up before deregistration because the
// mapping is gone afterwards.
func (t *AMITeardown) DeleteBatch() engine.BatchDeleteFunc {
	return func(ctx context.Context, batch model.Batch) (int, []model.ItemError, error) {
		deleted := 0
		var itemErrs []model.ItemError
		for _, d := range batch.Items {
			snapshots, err := t.imageSnapshots(ctx, d.Key)
			if err != nil {
				itemErrs = append(itemErrs, model.ItemError{
					Key:     d.Key,
					Code:    errorCode(err),
					Message: fmt.Sprintf("failed to resolve snapshots: %v", err),
				})
				continue
			}

			_, err = t.client.DeregisterImage(ctx, &ec2.DeregisterImageInput{
				ImageId: aws.String(d.Key),
			})
			if err != nil {
				itemErrs = append(itemErrs, model.ItemError{
					Key:     d.Key,
					Code:    errorCode(err),
					Message: err.Error(),
				})
				continue
			}

			for _, snap := range snapshots {
				_, err := t.client.DeleteSnapshot(ctx, &ec2.DeleteSnapshotInput{
					SnapshotId: aws.String(snap),
				})
				if err != nil && Classify(err) != model.ClassNotFound {
					itemErrs = append(itemErrs, model.ItemError{
						Key:     snap,
						Code:    errorCode(err),
						Message: fmt.Sprintf("failed to delete snapshot of %s: %v", d.Key, err),
					})
				}
			}
			deleted++
		}
		return deleted, itemErrs, nil
	}
}

func (t *AMITeardown) imageSnapshots(ctx context.Context, imageID string) ([]string, error) {
	resp, err := t.client.DescribeImages(ctx, &ec2.DescribeImagesInput{
		ImageIds: []string{imageID},
	})
	if err != nil {
		return nil, err
	}
	var snapshots []string
	for _, img := range resp.Images {
		for _, bdm := range img.BlockDeviceMappings {
			if bdm.Ebs != nil && bdm.Ebs.SnapshotId != nil {
				snapshots = append(snapshots, *bdm.Ebs.SnapshotId)
			}
		}
	}
	return snapshots, nil
}

type ImageBuilderAPI interface {
	ListImages(ctx context.Context, params *imagebuilder.ListImagesInput, optFns ...func(*imagebuilder.Options)) (*imagebuilder.ListImagesOutput, error)
	ListImageBuildVersions(ctx context.Context, params *imagebuilder.ListImageBuildVersionsInput, optFns ...func(*imagebuilder.Options)) (*imagebuilder.ListImageBuildVersionsOutput, error)
	DeleteImage(ctx context.Context, params *imagebuilder.DeleteImageInput, optFns ...func(*imagebuilder.Options)) (*imagebuilder.DeleteImageOutput, error)
	ListImagePipelines(ctx context.Context, params *imagebuilder.ListImagePipelinesInput, optFns ...func(*imagebuilder.Options)) (*imagebuilder.ListImagePipelinesOutput, error)
	DeleteImagePipeline(ctx context.Context, params *imagebuilder.DeleteImagePipelineInput, optFns ...func(*imagebuilder.Options)) (*imagebuilder.DeleteImagePipelineOutput, error)
}

// BuilderTeardown deletes EC2 Image Builder image versions and pipelines.
type BuilderTeardown struct {
	client ImageBuilderAPI
}

func NewBuilderTeardown(awsCfg aws.Config) *BuilderTeardown {
	return &BuilderTeardown{client: imagebuilder.NewFromConfig(awsCfg)}
}

func NewBuilderTeardownWithClient(client ImageBuilderAPI) *BuilderTeardown {
	return &BuilderTeardown{client: client}
}

func parseBuilderDate(raw, arn string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	created, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable creation date %q on %s: %w", raw, arn, err)
	}
	return created, nil
}

// ImagesPage lists image versions owned by the account; Key is the version
// ARN.
func (t *BuilderTeardown) ImagesPage() engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		input := &imagebuilder.ListImagesInput{}
		if cursor != "" {
			input.NextToken = aws.String(cursor)
		}

		resp, err := t.client.ListImages(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list builder images: %w", err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.ImageVersionList))
		for _, v := range resp.ImageVersionList {
			arn := aws.ToString(v.Arn)
			created, err := parseBuilderDate(aws.ToString(v.DateCreated), arn)
			if err != nil {
				return nil, "", err
			}
			items = append(items, model.ResourceDescriptor{
				Key:     arn,
				Name:    aws.ToString(v.Name),
				Created: created,
			})
		}
		return items, aws.ToString(resp.NextToken), nil
	}
}

// DeleteImagesBatch deletes every build version under each image version
// ARN. DeleteImage only accepts build version ARNs, so the versions are
// expanded first.
func (t *BuilderTeardown) DeleteImagesBatch() engine.BatchDeleteFunc {
	return func(ctx context.Context, batch model.Batch) (int, []model.ItemError, error) {
		deleted := 0
		var itemErrs []model.ItemError
		for _, d := range batch.Items {
			builds, err := t.buildVersions(ctx, d.Key)
			if err != nil {
				itemErrs = append(itemErrs, model.ItemError{
					Key:     d.Key,
					Code:    errorCode(err),
					Message: fmt.Sprintf("failed to list build versions: %v", err),
				})
				continue
			}

			failed := false
			for _, build := range builds {
				_, err := t.client.DeleteImage(ctx, &imagebuilder.DeleteImageInput{
					ImageBuildVersionArn: aws.String(build),
				})
				if err != nil && Classify(err) != model.ClassNotFound {
					itemErrs = append(itemErrs, model.ItemError{
						Key:     build,
						Code:    errorCode(err),
						Message: err.Error(),
					})
					failed = true
				}
			}
			if !failed {
				deleted++
			}
		}
		return deleted, itemErrs, nil
	}
}

func (t *BuilderTeardown) buildVersions(ctx context.Context, versionArn string) ([]string, error) {
	var builds []string
	var cursor *string
	for {
		resp, err := t.client.ListImageBuildVersions(ctx, &imagebuilder.ListImageBuildVersionsInput{
			ImageVersionArn: aws.String(versionArn),
			NextToken:       cursor,
		})
		if err != nil {
			return nil, err
		}
		for _, b := range resp.ImageSummaryList {
			builds = append(builds, aws.ToString(b.Arn))
		}
		if resp.NextToken == nil {
			return builds, nil
		}
		cursor = resp.NextToken
	}
}

// PipelinesPage lists image pipelines; Key is the pipeline ARN.
func (t *BuilderTeardown) PipelinesPage() engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		input := &imagebuilder.ListImagePipelinesInput{}
		if cursor != "" {
			input.NextToken = aws.String(cursor)
		}

		resp, err := t.client.ListImagePipelines(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list image pipelines: %w", err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.ImagePipelineList))
		for _, p := range resp.ImagePipelineList {
			arn := aws.ToString(p.Arn)
			created, err := parseBuilderDate(aws.ToString(p.DateCreated), arn)
			if err != nil {
				return nil, "", err
			}
			items = append(items, model.ResourceDescriptor{
				Key:     arn,
				Name:    aws.ToString(p.Name),
				Created: created,
			})
		}
		return items, aws.ToString(resp.NextToken), nil
	}
}

// DeletePipelinesBatch deletes image pipelines by ARN.
func (t *BuilderTeardown) DeletePipelinesBatch() engine.BatchDeleteFunc {
	return func(ctx context.Context, batch model.Batch) (int, []model.ItemError, error) {
		deleted := 0
		var itemErrs []model.ItemError
		for _, d := range batch.Items {
			_, err := t.client.DeleteImagePipeline(ctx, &imagebuilder.DeleteImagePipelineInput{
				ImagePipelineArn: aws.String(d.Key),
			})
			if err != nil {
				itemErrs = append(itemErrs, model.ItemError{
					Key:     d.Key,
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
