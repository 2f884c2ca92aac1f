package provider

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/require"

	"github.com/vasylivanchyk330/AWS-Automation/model"
)

type fakeCWL struct {
	describe func(*cloudwatchlogs.DescribeLogGroupsInput) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	delete   func(*cloudwatchlogs.DeleteLogGroupInput) (*cloudwatchlogs.DeleteLogGroupOutput, error)
}

func (f *fakeCWL) DescribeLogGroups(ctx context.Context, in *cloudwatchlogs.DescribeLogGroupsInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
	return f.describe(in)
}

func (f *fakeCWL) DeleteLogGroup(ctx context.Context, in *cloudwatchlogs.DeleteLogGroupInput, _ ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error) {
	return f.delete(in)
}

func TestLogGroupPage_ConvertsEpochMillis(t *testing.T) {
	createdMillis := int64(1717236000000) // 2024-06-01T10:00:00Z
	fake := &fakeCWL{
		describe: func(in *cloudwatchlogs.DescribeLogGroupsInput) (*cloudwatchlogs.DescribeLogGroupsOutput, error) {
			return &cloudwatchlogs.DescribeLogGroupsOutput{
				LogGroups: []cwltypes.LogGroup{
					{LogGroupName: aws.String("/aws/lambda/test-fn"), CreationTime: &createdMillis},
				},
			}, nil
		},
	}

	page := NewLogGroupTeardownWithClient(fake).Page()
	items, next, err := page(context.Background(), "")
	require.NoError(t, err)
	require.Empty(t, next)
	require.Len(t, items, 1)
	require.Equal(t, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), items[0].Created)
}

func TestLogGroupDeleteBatch_AccountsEveryItem(t *testing.T) {
	fake := &fakeCWL{
		delete: func(in *cloudwatchlogs.DeleteLogGroupInput) (*cloudwatchlogs.DeleteLogGroupOutput, error) {
			switch aws.ToString(in.LogGroupName) {
			case "gone":
				return nil, &smithy.GenericAPIError{Code: "ResourceNotFoundException"}
			case "denied":
				return nil, &smithy.GenericAPIError{Code: "AccessDeniedException"}
			}
			return &cloudwatchlogs.DeleteLogGroupOutput{}, nil
		},
	}

	del := NewLogGroupTeardownWithClient(fake).DeleteBatch()
	deleted, itemErrs, err := del(context.Background(), model.Batch{Items: []model.ResourceDescriptor{
		{Key: "ok"}, {Key: "gone"}, {Key: "denied"},
	}})

	require.NoError(t, err)
	require.Equal(t, 1, deleted)
	require.Len(t, itemErrs, 2)

	// The not-found entry keeps its code so the engine counts it as benign.
	require.Equal(t, "ResourceNotFoundException", itemErrs[0].Code)
	require.Equal(t, model.ClassNotFound, ClassifyItem(itemErrs[0]))
	require.Equal(t, model.ClassPermanent, ClassifyItem(itemErrs[1]))
}
