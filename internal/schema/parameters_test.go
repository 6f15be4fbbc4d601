package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParametersKeepsDeclaredOrder(t *testing.T) {
	raw := []byte(`{
		"type": "object",
		"properties": {
			"zeta": {"type": "string"},
			"alpha": {"type": "number", "description": "first letter"},
			"mid": {"type": "boolean"}
		},
		"required": ["alpha"]
	}`)

	p, err := ParseParameters(raw)
	require.NoError(t, err)
	assert.Equal(t, []string{"zeta", "alpha", "mid"}, p.Names())
	assert.Equal(t, []string{"alpha"}, p.Required())

	prop, ok := p.Property("alpha")
	require.True(t, ok)
	assert.Equal(t, "number", prop.Type)
	assert.Equal(t, "first letter", prop.Description)
}

func TestParseParametersDefaults(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		p, err := ParseParameters(nil)
		require.NoError(t, err)
		assert.Empty(t, p.Names())
		assert.Equal(t, "object", p.Schema().Type)
	})

	t.Run("missing type", func(t *testing.T) {
		p, err := ParseParameters([]byte(`{"properties":{"a":{"type":"string"}}}`))
		require.NoError(t, err)
		assert.Equal(t, "object", p.Schema().Type)
		assert.Equal(t, []string{"a"}, p.Names())
	})
}

func TestParseParametersRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"not json":       `{"type":`,
		"not an object":  `{"type":"string"}`,
		"array document": `[1,2]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseParameters([]byte(raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTool)
		})
	}
}

func TestParametersFromValueOrdersRequiredFirst(t *testing.T) {
	p, err := ParametersFromValue(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"b": map[string]any{"type": "string"},
			"a": map[string]any{"type": "string"},
			"c": map[string]any{"type": "string"},
		},
		"required": []any{"c"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"c", "a", "b"}, p.Names())
}

func TestParametersFromValueString(t *testing.T) {
	p, err := ParametersFromValue(`{"type":"object","properties":{"y":{},"x":{}}}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"y", "x"}, p.Names())
}

func TestParametersMarshalPreservesOrder(t *testing.T) {
	p, err := ParseParameters([]byte(`{"type":"object","properties":{"b":{"type":"string"},"a":{"type":"integer"}},"required":["b"]}`))
	require.NoError(t, err)

	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, `{"properties":{"b":{"type":"string"},"a":{"type":"integer"}},"required":["b"],"type":"object"}`, string(data))

	var back Parameters
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []string{"b", "a"}, back.Names())
}
