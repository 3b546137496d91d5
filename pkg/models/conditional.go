package models

// RuleKind identifies what a condition rule inspects.
type RuleKind string

const (
	RuleKindField    RuleKind = "field"
	RuleKindTag      RuleKind = "tag"
	RuleKindFollower RuleKind = "follower"
	RuleKindTime     RuleKind = "time"
	RuleKindSource   RuleKind = "source"
	RuleKindRandom   RuleKind = "random"
)

// RuleOperator compares a variable against a rule value.
type RuleOperator string

const (
	OperatorEquals   RuleOperator = "equals"
	OperatorContains RuleOperator = "contains"
	OperatorGt       RuleOperator = "gt"
	OperatorLt       RuleOperator = "lt"
	OperatorExists   RuleOperator = "exists"
)

// CombineAnd requires every rule to hold. Any other combinator means at least one.
const CombineAnd = "AND"

// ConditionRule is a single predicate of a condition node.
type ConditionRule struct {
	Type        RuleKind     `json:"type"`
	Field       string       `json:"field,omitempty"`
	Operator    RuleOperator `json:"operator,omitempty"`
	Value       any          `json:"value,omitempty"`
	Tag         string       `json:"tag,omitempty"`
	DayOfWeek   []string     `json:"dayOfWeek,omitempty"`
	StartTime   string       `json:"startTime,omitempty"`
	EndTime     string       `json:"endTime,omitempty"`
	Source      ChannelType  `json:"source,omitempty"`
	Probability *float64     `json:"probability,omitempty"`
}
