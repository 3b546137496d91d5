package workflow

import "errors"

var (
	ErrNoTriggerNode   = errors.New("no trigger node found")
	ErrNoTriggerEdge   = errors.New("no edge from trigger node")
	ErrUnknownNodeType = errors.New("unknown node type")
	ErrPolicyViolation = errors.New("policy violation")
	ErrCycleDetected   = errors.New("cycle detected")
	ErrNotWaiting      = errors.New("execution is not waiting for input")
	ErrInvalidAnswer   = errors.New("invalid answer")
)

// IsConfigurationError reports whether err comes from a malformed flow graph.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrNoTriggerNode) ||
		errors.Is(err, ErrNoTriggerEdge) ||
		errors.Is(err, ErrUnknownNodeType) ||
		errors.Is(err, ErrCycleDetected)
}
