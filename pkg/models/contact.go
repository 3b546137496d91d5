package models

import (
	"maps"
	"slices"
	"time"
)

// Contact is the user record an execution runs for.
type Contact struct {
	ID            string         `json:"id"`
	Name          string         `json:"name,omitempty"`
	Handle        string         `json:"handle,omitempty"`
	Email         string         `json:"email,omitempty"`
	Phone         string         `json:"phone,omitempty"`
	CustomFields  map[string]any `json:"customFields,omitempty"`
	Tags          []string       `json:"tags,omitempty"`
	IsFollower    bool           `json:"isFollower"`
	LastInboundAt *time.Time     `json:"lastInboundAt,omitempty"`
}

// HasTag reports whether the contact carries tag.
func (c *Contact) HasTag(tag string) bool {
	return slices.Contains(c.Tags, tag)
}

// AddTag appends tag unless it is already present.
func (c *Contact) AddTag(tag string) {
	if tag == "" || c.HasTag(tag) {
		return
	}

	c.Tags = append(c.Tags, tag)
}

// Clone returns a deep copy so an execution can mutate it freely.
func (c *Contact) Clone() *Contact {
	if c == nil {
		return &Contact{}
	}

	clone := *c
	clone.CustomFields = maps.Clone(c.CustomFields)
	clone.Tags = slices.Clone(c.Tags)

	if c.LastInboundAt != nil {
		at := *c.LastInboundAt
		clone.LastInboundAt = &at
	}

	return &clone
}

// Variables returns the variable bag seeded from the profile and custom fields.
// Empty profile fields are left out so their tokens stay unresolved.
func (c *Contact) Variables() map[string]any {
	vars := make(map[string]any, 4+len(c.CustomFields))

	for key, value := range map[string]string{
		"name":   c.Name,
		"handle": c.Handle,
		"email":  c.Email,
		"phone":  c.Phone,
	} {
		if value != "" {
			vars[key] = value
		}
	}

	for key, value := range c.CustomFields {
		vars[key] = value
	}

	return vars
}
