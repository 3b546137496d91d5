package workflow

import (
	"context"
	"math"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/template"
)

const defaultProbability = 0.5

func (e *Executor) executeCondition(
	ctx context.Context,
	r *run,
	node *models.Node,
	config *models.ConditionConfig,
	step *models.ExecutionStep,
) (string, error) {
	outcome := e.evaluateConditions(ctx, r, config)
	label := strconv.FormatBool(outcome)

	step.Action = models.StepActionConditionEvaluated
	step.Result = map[string]any{"result": label}

	next := config.Branches.False
	if outcome {
		next = config.Branches.True
	}

	if next == "" {
		next = r.flow.LabeledNodeID(node.ID, label)
	}

	return next, nil
}

// evaluateConditions evaluates every rule concurrently and combines the results. AND
// requires all rules to hold, any other operator requires at least one.
func (e *Executor) evaluateConditions(ctx context.Context, r *run, config *models.ConditionConfig) bool {
	results := make([]bool, len(config.Conditions))

	var wg sync.WaitGroup
	for i, rule := range config.Conditions {
		wg.Add(1)

		go func() {
			defer wg.Done()

			results[i] = e.evaluateRule(ctx, r, rule)
		}()
	}

	wg.Wait()

	if config.Operator == models.CombineAnd {
		for _, result := range results {
			if !result {
				return false
			}
		}

		return true
	}

	for _, result := range results {
		if result {
			return true
		}
	}

	return false
}

func (e *Executor) evaluateRule(ctx context.Context, r *run, rule models.ConditionRule) bool {
	switch rule.Type {
	case models.RuleKindField:
		return e.evaluateField(ctx, r, rule)
	case models.RuleKindTag:
		return r.ectx.Contact.HasTag(rule.Tag)
	case models.RuleKindFollower:
		return r.ectx.Contact.IsFollower
	case models.RuleKindTime:
		return e.evaluateTime(ctx, r, rule)
	case models.RuleKindSource:
		return r.ectx.ChannelType == rule.Source
	case models.RuleKindRandom:
		probability := defaultProbability
		if rule.Probability != nil {
			probability = *rule.Probability
		}

		return e.random() < probability
	default:
		r.logger.WarnContext(ctx, "Unknown condition rule type, evaluating to false", "rule_type", rule.Type)

		return false
	}
}

func (e *Executor) evaluateField(ctx context.Context, r *run, rule models.ConditionRule) bool {
	value, ok := r.ectx.Variables[rule.Field]

	switch rule.Operator {
	case models.OperatorEquals:
		return ok && strictEqual(value, rule.Value)
	case models.OperatorContains:
		return ok && strings.Contains(template.Stringify(value), template.Stringify(rule.Value))
	case models.OperatorGt:
		return ok && toNumber(value) > toNumber(rule.Value)
	case models.OperatorLt:
		return ok && toNumber(value) < toNumber(rule.Value)
	case models.OperatorExists:
		return ok && value != nil
	default:
		r.logger.WarnContext(ctx, "Unknown condition operator, evaluating to false", "operator", rule.Operator, "field", rule.Field)

		return false
	}
}

// evaluateTime checks the day of week. Time ranges are accepted but not applied.
func (e *Executor) evaluateTime(ctx context.Context, r *run, rule models.ConditionRule) bool {
	if len(rule.DayOfWeek) > 0 {
		today := e.now().Weekday().String()

		matched := false

		for _, day := range rule.DayOfWeek {
			if strings.EqualFold(day, today) {
				matched = true

				break
			}
		}

		if !matched {
			return false
		}
	}

	if rule.StartTime != "" || rule.EndTime != "" {
		r.logger.DebugContext(ctx, "Time range filter is not applied", "start_time", rule.StartTime, "end_time", rule.EndTime)
	}

	return true
}

// strictEqual compares without type coercion. Numbers of any Go numeric type are one type.
func strictEqual(a, b any) bool {
	if an, ok := numeric(a); ok {
		bn, ok := numeric(b)

		return ok && an == bn
	}

	if a == nil || b == nil {
		return a == nil && b == nil
	}

	typ := reflect.TypeOf(a)
	if typ != reflect.TypeOf(b) || !typ.Comparable() {
		return false
	}

	return a == b
}

func numeric(value any) (float64, bool) {
	v := reflect.ValueOf(value)

	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint()), true
	case reflect.Float32, reflect.Float64:
		return v.Float(), true
	default:
		return 0, false
	}
}

// toNumber coerces value to a number. Values that are not numeric become NaN, which makes
// every comparison false.
func toNumber(value any) float64 {
	if n, ok := numeric(value); ok {
		return n
	}

	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return 0
		}

		n, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return math.NaN()
		}

		return n
	case bool:
		if v {
			return 1
		}

		return 0
	case nil:
		return 0
	default:
		return math.NaN()
	}
}
