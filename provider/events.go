package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"

	"github.com/vasylivanchyk330/AWS-Automation/engine"
	"github.com/vasylivanchyk330/AWS-Automation/model"
)

type EventBridgeAPI interface {
	ListRules(ctx context.Context, params *eventbridge.ListRulesInput, optFns ...func(*eventbridge.Options)) (*eventbridge.ListRulesOutput, error)
	ListTargetsByRule(ctx context.Context, params *eventbridge.ListTargetsByRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.ListTargetsByRuleOutput, error)
	RemoveTargets(ctx context.Context, params *eventbridge.RemoveTargetsInput, optFns ...func(*eventbridge.Options)) (*eventbridge.RemoveTargetsOutput, error)
	DeleteRule(ctx context.Context, params *eventbridge.DeleteRuleInput, optFns ...func(*eventbridge.Options)) (*eventbridge.DeleteRuleOutput, error)
}

// RuleTeardown enumerates and deletes EventBridge rules. Rules carry no
// creation timestamp, so selection is by name and pattern only.
type RuleTeardown struct {
	client EventBridgeAPI
}

func NewRuleTeardown(awsCfg aws.Config) *RuleTeardown {
	return &RuleTeardown{client: eventbridge.NewFromConfig(awsCfg)}
}

func NewRuleTeardownWithClient(client EventBridgeAPI) *RuleTeardown {
	return &RuleTeardown{client: client}
}

// Page lists rules on the default event bus.
func (t *RuleTeardown) Page() engine.PageFunc {
	return func(ctx context.Context, cursor string) ([]model.ResourceDescriptor, string, error) {
		input := &eventbridge.ListRulesInput{}
		if cursor != "" {
			input.NextToken = aws.String(cursor)
		}

		resp, err := t.client.ListRules(ctx, input)
		if err != nil {
			return nil, "", fmt.Errorf("failed to list rules: %w", err)
		}

		items := make([]model.ResourceDescriptor, 0, len(resp.Rules))
		for _, r := range resp.Rules {
			items = append(items, model.ResourceDescriptor{
				Key:  aws.ToString(r.Name),
				Name: aws.ToString(r.Name),
			})
		}
		return items, aws.ToString(resp.NextToken), nil
	}
}

// DeleteBatch detaches every target from a rule and then deletes it. A rule
// with targets still attached cannot be deleted.
func (t *RuleTeardown) DeleteBatch() engine.BatchDeleteFunc {
	return func(ctx context.Context, batch model.Batch) (int, []model.ItemError, error) {
		deleted := 0
		var itemErrs []model.ItemError
		for _, d := range batch.Items {
			if err := t.detachTargets(ctx, d.Key); err != nil {
				itemErrs = append(itemErrs, model.ItemError{
					Key:     d.Key,
					Code:    errorCode(err),
					Message: fmt.Sprintf("failed to detach targets: %v", err),
				})
				continue
			}

			_, err := t.client.DeleteRule(ctx, &eventbridge.DeleteRuleInput{
				Name: aws.String(d.Key),
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

func (t *RuleTeardown) detachTargets(ctx context.Context, rule string) error {
	var cursor *string
	for {
		resp, err := t.client.ListTargetsByRule(ctx, &eventbridge.ListTargetsByRuleInput{
			Rule:      aws.String(rule),
			NextToken: cursor,
		})
		if err != nil {
			return err
		}
		if len(resp.Targets) > 0 {
			ids := make([]string, 0, len(resp.Targets))
			for _, tgt := range resp.Targets {
				ids = append(ids, aws.ToString(tgt.Id))
			}
			if _, err := t.client.RemoveTargets(ctx, &eventbridge.RemoveTargetsInput{
				Rule: aws.String(rule),
				Ids:  ids,
			}); err != nil {
				return err
			}
		}
		if resp.NextToken == nil {
			return nil
		}
		cursor = resp.NextToken
	}
}
