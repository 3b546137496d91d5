package ai

import (
	"context"
	"testing"

	"github.com/dukex/inboxflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassthrough_ProcessMessage(t *testing.T) {
	text, err := Passthrough{}.ProcessMessage(context.Background(), "Hi {{name}}", &models.AIConfig{Enabled: true}, map[string]any{"name": "Sam"})
	require.NoError(t, err)
	assert.Equal(t, "Hi Sam", text)
}

func TestPassthrough_ExtractField(t *testing.T) {
	tests := []struct {
		name         string
		raw          any
		expectedType string
		want         any
		wantErr      bool
	}{
		{name: "email in sentence", raw: "sure, it's Ann@Example.com", expectedType: "email", want: "ann@example.com"},
		{name: "bad email", raw: "no thanks", expectedType: "email", wantErr: true},
		{name: "phone", raw: "call +55 (11) 99999-0000", expectedType: "phone", want: "+5511999990000"},
		{name: "bad phone", raw: "later", expectedType: "phone", wantErr: true},
		{name: "number with comma", raw: "about 3,5 kg", expectedType: "number", want: 3.5},
		{name: "number from float", raw: 42.0, expectedType: "number", want: float64(42)},
		{name: "bad number", raw: "many", expectedType: "number", wantErr: true},
		{name: "boolean yes", raw: "Yes", expectedType: "boolean", want: true},
		{name: "boolean no", raw: " no ", expectedType: "boolean", want: false},
		{name: "bad boolean", raw: "maybe", expectedType: "boolean", wantErr: true},
		{name: "text trimmed", raw: "  hello ", expectedType: "text", want: "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Passthrough{}.ExtractField(context.Background(), tt.raw, tt.expectedType)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidAnswer)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
