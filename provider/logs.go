package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/vasylivanchyk330/AWS-Automation/engine"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

type CloudWatchLogsAPI interface {
	DescribeLogGroups(ctx context.Context, params *cloudwatchlogs.DescribeLogGroupsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DescribeLogGroupsOutput, error)
	DeleteLogGroup(ctx context.Context, params *cloudwatchlogs.DeleteLogGroupInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.DeleteLogGroupOutput, error)
}

// LogGroupTeardown enumerates and deletes CloudWatch log groups.
type LogGroupTeardown struct {
	client CloudWatchLogsAPI
}

func NewLogGroupTeardown(awsCfg aws.Config) *LogGroupTeardown {
	return &LogGroupTeardown{client: cloudwatchlogs.NewFromConfig(awsCfg)}
}

func NewLogGroupTeardownWithClient(client CloudWatchLogsAPI) *LogGroupTeardown {
	return &LogGroupTeardown{client: client}
}

// Page lists log groups. CreationTime is epoch milliseconds on this API.
func (t *LogGroupTeardown) Page() engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		input := &cloudwatchlogs.DescribeLogGroupsInput{}
		if cursor != "" {
			input.NextToken = aws.String(cursor)
		}

		resp, err := t.client.DescribeLogGroups(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to describe log groups: %w", err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.LogGroups))
		for _, g := range resp.LogGroups {
			d := model.ResourceDescriptor{
				Key:  aws.ToString(g.LogGroupName),
				Name: aws.ToString(g.LogGroupName),
			}
			if g.CreationTime != nil {
				d.Created = time.UnixMilli(*g.CreationTime).UTC()
			}
			items = append(items, d)
		}
		return items, aws.ToString(resp.NextToken), nil
	}
}

// DeleteBatch deletes log groups one by one; the API has no bulk endpoint.
func (t *LogGroupTeardown) DeleteBatch() engine.BatchDeleteFunc {
	return func(ctx context.Context, batch model.Batch) (int, []model.ItemError, error) {
		deleted := 0
		var itemErrs []model.ItemError
		for _, d := range batch.Items {
			_, err := t.client.DeleteLogGroup(ctx, &cloudwatchlogs.DeleteLogGroupInput{
				LogGroupName: aws.String(d.Key),
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
