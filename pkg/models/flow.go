package models

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Flow is an automation graph authored in the flow builder. The engine never mutates it.
type Flow struct {
	ID    string  `json:"id"              validate:"required"`
	Name  string  `json:"name,omitempty"`
	Nodes []*Node `json:"nodes"           validate:"required,min=1,dive,required"`
	Edges []*Edge `json:"edges,omitempty" validate:"dive,required"`
}

// Edge links two nodes. Label selects condition branches when present.
type Edge struct {
	From  string `json:"from"            validate:"required"`
	To    string `json:"to"              validate:"required"`
	Label string `json:"label,omitempty"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the structural invariants of a flow: required fields, unique node ids,
// exactly one trigger node, and a config matching every node type.
func (f *Flow) Validate() error {
	if err := validate.Struct(f); err != nil {
		return fmt.Errorf("invalid flow: %w", err)
	}

	seen := make(map[string]bool, len(f.Nodes))
	triggers := 0

	for _, node := range f.Nodes {
		if seen[node.ID] {
			return fmt.Errorf("invalid flow: duplicate node id %s", node.ID)
		}

		seen[node.ID] = true

		if node.Config == nil || node.Config.NodeType() != node.Type {
			return fmt.Errorf("invalid flow: node %s has no %s config", node.ID, node.Type)
		}

		if node.Type == NodeTypeTrigger {
			triggers++
		}
	}

	if triggers != 1 {
		return errors.New("invalid flow: exactly one trigger node is required")
	}

	return nil
}

// NodeByID returns the node with the given id, or nil.
func (f *Flow) NodeByID(id string) *Node {
	for _, node := range f.Nodes {
		if node.ID == id {
			return node
		}
	}

	return nil
}

// TriggerNode returns the first node of type trigger, or nil.
func (f *Flow) TriggerNode() *Node {
	for _, node := range f.Nodes {
		if node.Type == NodeTypeTrigger {
			return node
		}
	}

	return nil
}

// NextNodeID returns the target of the first edge leaving from, or "".
func (f *Flow) NextNodeID(from string) string {
	for _, edge := range f.Edges {
		if edge.From == from {
			return edge.To
		}
	}

	return ""
}

// LabeledNodeID returns the target of the first edge leaving from with the given label, or "".
func (f *Flow) LabeledNodeID(from, label string) string {
	for _, edge := range f.Edges {
		if edge.From == from && edge.Label == label {
			return edge.To
		}
	}

	return ""
}
