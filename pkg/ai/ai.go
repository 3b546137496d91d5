// Package ai rewrites outbound text and extracts structured answers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/dukex/inboxflow/pkg/template"
)

// ErrInvalidAnswer is returned when a raw answer cannot be read as the expected type.
var ErrInvalidAnswer = errors.New("invalid answer")

// Service is the AI collaborator of the executor.
type Service interface {
	ProcessMessage(ctx context.Context, text string, config *models.AIConfig, variables map[string]any) (string, error)
	ExtractField(ctx context.Context, raw any, expectedType string) (any, error)
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\s().\-]{6,}[0-9]`)
	digitsOnly   = regexp.MustCompile(`[^0-9+]`)
	numberToken  = regexp.MustCompile(`-?[0-9]+(?:[.,][0-9]+)?`)
)

// Passthrough is a deterministic Service without a model behind it. It interpolates
// variables into the text and extracts answers with patterns.
type Passthrough struct{}

func (Passthrough) ProcessMessage(_ context.Context, text string, _ *models.AIConfig, variables map[string]any) (string, error) {
	return template.Interpolate(text, variables), nil
}

func (Passthrough) ExtractField(_ context.Context, raw any, expectedType string) (any, error) {
	text := strings.TrimSpace(template.Stringify(raw))

	switch expectedType {
	case "email":
		match := emailPattern.FindString(text)
		if match == "" {
			return nil, fmt.Errorf("%w: %q is not an email", ErrInvalidAnswer, text)
		}

		return strings.ToLower(match), nil
	case "phone":
		match := phonePattern.FindString(text)
		if match == "" {
			return nil, fmt.Errorf("%w: %q is not a phone number", ErrInvalidAnswer, text)
		}

		return digitsOnly.ReplaceAllString(match, ""), nil
	case "number":
		match := numberToken.FindString(text)
		if match == "" {
			return nil, fmt.Errorf("%w: %q is not a number", ErrInvalidAnswer, text)
		}

		return strconv.ParseFloat(strings.ReplaceAll(match, ",", "."), 64)
	case "boolean":
		switch strings.ToLower(text) {
		case "yes", "y", "true", "sim", "1":
			return true, nil
		case "no", "n", "false", "nao", "não", "0":
			return false, nil
		}

		return nil, fmt.Errorf("%w: %q is not yes or no", ErrInvalidAnswer, text)
	default:
		return text, nil
	}
}
