package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudformation"
	cfntypes "github.com/aws/aws-sdk-go-v2/service/cloudformation/types"

	"github.com/vasylivanchyk330/AWS-Automation/engine"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

type CloudFormationAPI interface {
	DescribeStacks(ctx context.Context, params *cloudformation.DescribeStacksInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DescribeStacksOutput, error)
	UpdateTerminationProtection(ctx context.Context, params *cloudformation.UpdateTerminationProtectionInput, optFns ...func(*cloudformation.Options)) (*cloudformation.UpdateTerminationProtectionOutput, error)
	DeleteStack(ctx context.Context, params *cloudformation.DeleteStackInput, optFns ...func(*cloudformation.Options)) (*cloudformation.DeleteStackOutput, error)
}

// StackTeardown enumerates and deletes CloudFormation stacks.
type StackTeardown struct {
	client CloudFormationAPI
}

func NewStackTeardown(awsCfg aws.Config) *StackTeardown {
	return &StackTeardown{client: cloudformation.NewFromConfig(awsCfg)}
}

func NewStackTeardownWithClient(client CloudFormationAPI) *StackTeardown {
	return &StackTeardown{client: client}
}

// Page lists stacks, skipping ones already gone.
func (t *StackTeardown) Page() engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		input := &cloudformation.DescribeStacksInput{}
		if cursor != "" {
			input.NextToken = aws.String(cursor)
		}

		resp, err := t.client.DescribeStacks(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to describe stacks: %w", err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.Stacks))
		for _, s := range resp.Stacks {
			if s.StackStatus == cfntypes.StackStatusDeleteComplete {
				continue
			}
			d := model.ResourceDescriptor{
				Key:  aws.ToString(s.StackName),
				Name: aws.ToString(s.StackName),
			}
			if s.CreationTime != nil {
				d.Created = *s.CreationTime
			}
			items = append(items, d)
		}
		return items, aws.ToString(resp.NextToken), nil
	}
}

// DeleteBatch disables termination protection and then deletes each stack.
// DeleteStack only starts the deletion; CloudFormation finishes it
// asynchronously.
func (t *StackTeardown) DeleteBatch() engine.BatchDeleteFunc {
	return func(ctx context.Context, batch model.Batch) (int, []model.ItemError, error) {
		deleted := 0
		var itemErrs []model.ItemError
		for _, d := range batch.Items {
			_, err := t.client.UpdateTerminationProtection(ctx, &cloudformation.UpdateTerminationProtectionInput{
				StackName:                   aws.String(d.Key),
				EnableTerminationProtection: aws.Bool(false),
			})
			if err != nil && Classify(err) != model.ClassNotFound {
				itemErrs = append(itemErrs, model.ItemError{
					Key:     d.Key,
					Code:    errorCode(err),
					Message: fmt.Sprintf("failed to disable termination protection: %v", err),
				})
				continue
			}

			_, err = t.client.DeleteStack(ctx, &cloudformation.DeleteStackInput{
				StackName: aws.String(d.Key),
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
