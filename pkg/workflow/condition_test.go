package workflow

import (
	"context"
	"testing"
	"time"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probability(p float64) *float64 {
	return &p
}

func TestEvaluateRule(t *testing.T) {
	vars := map[string]any{
		"x":      "a",
		"age":    "10",
		"score":  float64(7),
		"count":  3,
		"city":   "Sao Paulo",
		"empty":  nil,
		"active": true,
	}

	tests := []struct {
		name    string
		rule    models.ConditionRule
		channel models.ChannelType
		random  float64
		want    bool
	}{
		{name: "equals string", rule: models.ConditionRule{Type: models.RuleKindField, Field: "x", Operator: models.OperatorEquals, Value: "a"}, want: true},
		{name: "equals is strict", rule: models.ConditionRule{Type: models.RuleKindField, Field: "score", Operator: models.OperatorEquals, Value: "7"}},
		{name: "equals across numeric types", rule: models.ConditionRule{Type: models.RuleKindField, Field: "count", Operator: models.OperatorEquals, Value: float64(3)}, want: true},
		{name: "equals bool", rule: models.ConditionRule{Type: models.RuleKindField, Field: "active", Operator: models.OperatorEquals, Value: true}, want: true},
		{name: "equals missing", rule: models.ConditionRule{Type: models.RuleKindField, Field: "nope", Operator: models.OperatorEquals, Value: "a"}},
		{name: "contains", rule: models.ConditionRule{Type: models.RuleKindField, Field: "city", Operator: models.OperatorContains, Value: "Paulo"}, want: true},
		{name: "contains coerces numbers", rule: models.ConditionRule{Type: models.RuleKindField, Field: "score", Operator: models.OperatorContains, Value: float64(7)}, want: true},
		{name: "contains missing", rule: models.ConditionRule{Type: models.RuleKindField, Field: "nope", Operator: models.OperatorContains, Value: ""}},
		{name: "gt numeric not lexicographic", rule: models.ConditionRule{Type: models.RuleKindField, Field: "age", Operator: models.OperatorGt, Value: "9"}, want: true},
		{name: "gt false", rule: models.ConditionRule{Type: models.RuleKindField, Field: "score", Operator: models.OperatorGt, Value: 7}},
		{name: "lt", rule: models.ConditionRule{Type: models.RuleKindField, Field: "count", Operator: models.OperatorLt, Value: "4"}, want: true},
		{name: "gt non numeric", rule: models.ConditionRule{Type: models.RuleKindField, Field: "city", Operator: models.OperatorGt, Value: 1}},
		{name: "lt missing", rule: models.ConditionRule{Type: models.RuleKindField, Field: "nope", Operator: models.OperatorLt, Value: 100}},
		{name: "exists", rule: models.ConditionRule{Type: models.RuleKindField, Field: "x", Operator: models.OperatorExists}, want: true},
		{name: "exists null", rule: models.ConditionRule{Type: models.RuleKindField, Field: "empty", Operator: models.OperatorExists}},
		{name: "exists missing", rule: models.ConditionRule{Type: models.RuleKindField, Field: "nope", Operator: models.OperatorExists}},
		{name: "unknown operator", rule: models.ConditionRule{Type: models.RuleKindField, Field: "x", Operator: "regex", Value: "a"}},
		{name: "tag present", rule: models.ConditionRule{Type: models.RuleKindTag, Tag: "vip"}, want: true},
		{name: "tag absent", rule: models.ConditionRule{Type: models.RuleKindTag, Tag: "churned"}},
		{name: "follower", rule: models.ConditionRule{Type: models.RuleKindFollower}, want: true},
		{name: "day of week matches", rule: models.ConditionRule{Type: models.RuleKindTime, DayOfWeek: []string{"monday", "Friday"}}, want: true},
		{name: "day of week misses", rule: models.ConditionRule{Type: models.RuleKindTime, DayOfWeek: []string{"Saturday"}}},
		{name: "time range is not applied", rule: models.ConditionRule{Type: models.RuleKindTime, StartTime: "22:00", EndTime: "23:00"}, want: true},
		{name: "source matches", rule: models.ConditionRule{Type: models.RuleKindSource, Source: models.ChannelTelegram}, channel: models.ChannelTelegram, want: true},
		{name: "source differs", rule: models.ConditionRule{Type: models.RuleKindSource, Source: models.ChannelTelegram}},
		{name: "random under default probability", rule: models.ConditionRule{Type: models.RuleKindRandom}, random: 0.49, want: true},
		{name: "random over default probability", rule: models.ConditionRule{Type: models.RuleKindRandom}, random: 0.5},
		{name: "random with probability", rule: models.ConditionRule{Type: models.RuleKindRandom, Probability: probability(0.9)}, random: 0.8, want: true},
		{name: "random never", rule: models.ConditionRule{Type: models.RuleKindRandom, Probability: probability(0)}, random: 0},
		{name: "unknown kind", rule: models.ConditionRule{Type: "weather"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := newTestExecutor(Dependencies{Channels: newRecordingSender()},
				WithRandom(func() float64 { return tt.random }))

			channel := tt.channel
			if channel == "" {
				channel = models.ChannelInstagram
			}

			r := &run{
				ectx: &models.ExecutionContext{
					Contact:     &models.Contact{ID: "u1", Tags: []string{"vip"}, IsFollower: true},
					ChannelType: channel,
					Variables:   vars,
				},
				logger: testLogger(),
			}

			assert.Equal(t, tt.want, executor.evaluateRule(context.Background(), r, tt.rule))
		})
	}
}

func TestEvaluateConditions_Combination(t *testing.T) {
	truthy := models.ConditionRule{Type: models.RuleKindFollower}
	falsy := models.ConditionRule{Type: models.RuleKindTag, Tag: "missing"}

	tests := []struct {
		name     string
		operator string
		rules    []models.ConditionRule
		want     bool
	}{
		{name: "AND with a false rule", operator: "AND", rules: []models.ConditionRule{truthy, falsy}, want: false},
		{name: "OR with a true rule", operator: "OR", rules: []models.ConditionRule{truthy, falsy}, want: true},
		{name: "any other operator is OR", operator: "and", rules: []models.ConditionRule{truthy, falsy}, want: true},
		{name: "AND all true", operator: "AND", rules: []models.ConditionRule{truthy, truthy}, want: true},
		{name: "OR all false", rules: []models.ConditionRule{falsy, falsy}, want: false},
		{name: "AND of nothing", operator: "AND", want: true},
		{name: "OR of nothing", operator: "OR", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			executor := newTestExecutor(Dependencies{Channels: newRecordingSender()})
			r := &run{
				ectx: &models.ExecutionContext{
					Contact:   &models.Contact{ID: "u1", IsFollower: true},
					Variables: map[string]any{},
				},
				logger: testLogger(),
			}

			config := &models.ConditionConfig{Operator: tt.operator, Conditions: tt.rules}
			assert.Equal(t, tt.want, executor.evaluateConditions(context.Background(), r, config))
		})
	}
}

func TestExecute_ConditionBranches(t *testing.T) {
	newFlow := func(branches models.Branches, edges ...*models.Edge) *models.Flow {
		return &models.Flow{
			ID: "f",
			Nodes: []*models.Node{
				dmTrigger(),
				{ID: "c", Type: models.NodeTypeCondition, Config: &models.ConditionConfig{
					Operator:   models.CombineAnd,
					Conditions: []models.ConditionRule{{Type: models.RuleKindField, Field: "x", Operator: models.OperatorEquals, Value: "a"}},
					Branches:   branches,
				}},
				messageNode("yes", "yes"),
				messageNode("no", "no"),
			},
			Edges: append([]*models.Edge{edge("trigger", "c")}, edges...),
		}
	}

	tests := []struct {
		name      string
		flow      *models.Flow
		x         string
		wantTexts []string
		wantLabel string
	}{
		{name: "true branch", flow: newFlow(models.Branches{True: "yes", False: "no"}), x: "a", wantTexts: []string{"yes"}, wantLabel: "true"},
		{name: "false branch", flow: newFlow(models.Branches{True: "yes", False: "no"}), x: "b", wantTexts: []string{"no"}, wantLabel: "false"},
		{name: "absent branch ends", flow: newFlow(models.Branches{True: "yes"}), x: "b", wantTexts: []string{}, wantLabel: "false"},
		{
			name:      "labeled edge fallback",
			flow:      newFlow(models.Branches{}, &models.Edge{From: "c", To: "yes", Label: "true"}, &models.Edge{From: "c", To: "no", Label: "false"}),
			x:         "b",
			wantTexts: []string{"no"},
			wantLabel: "false",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := newRecordingSender()
			executor := newTestExecutor(Dependencies{Channels: sender})

			contact := &models.Contact{ID: "u1", CustomFields: map[string]any{"x": tt.x}}
			result := executor.Execute(context.Background(), tt.flow, contact, "page", models.ChannelInstagram, dmData())

			require.Equal(t, models.ExecutionStatusCompleted, result.Status)
			assert.Equal(t, models.StepActionConditionEvaluated, result.Steps[0].Action)
			assert.Equal(t, tt.wantLabel, result.Steps[0].Result["result"])
			assert.Equal(t, tt.wantTexts, sender.texts())
		})
	}
}

func TestEvaluateTime_UsesClock(t *testing.T) {
	saturday := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	executor := newTestExecutor(Dependencies{Channels: newRecordingSender()}, WithClock(func() time.Time { return saturday }))

	r := &run{ectx: &models.ExecutionContext{Contact: &models.Contact{}}, logger: testLogger()}

	assert.True(t, executor.evaluateTime(context.Background(), r, models.ConditionRule{DayOfWeek: []string{"SATURDAY"}}))
	assert.False(t, executor.evaluateTime(context.Background(), r, models.ConditionRule{DayOfWeek: []string{"Monday"}}))
}
