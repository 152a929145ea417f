package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSchema(t *testing.T) {
	type Args struct {
		Query   string   `json:"query" description:"Search query"`
		Limit   int      `json:"limit,omitempty"`
		Exact   bool     `json:"exact"`
		Tags    []string `json:"tags,omitempty"`
		Cursor  *string  `json:"cursor"`
		skipped string   //nolint:unused // unexported fields are ignored
		Ignored string   `json:"-"`
	}

	schema := CreateSchema(Args{})
	assert.Equal(t, "object", schema["type"])

	props, ok := schema["properties"].(map[string]any)
	require.True(t, ok)
	require.Len(t, props, 5)

	query := props["query"].(map[string]any)
	assert.Equal(t, "string", query["type"])
	assert.Equal(t, "Search query", query["description"])

	assert.Equal(t, "integer", props["limit"].(map[string]any)["type"])
	assert.Equal(t, "boolean", props["exact"].(map[string]any)["type"])
	assert.Equal(t, "array", props["tags"].(map[string]any)["type"])
	assert.Equal(t, "string", props["cursor"].(map[string]any)["type"])

	assert.ElementsMatch(t, []string{"query", "exact"}, schema["required"])
}

func TestCreateSchemaNonStruct(t *testing.T) {
	schema := CreateSchema("not a struct")
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, schema["properties"])
}

func TestValidateParametersRequired(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"city": map[string]any{"type": "string"},
		},
		"required": []string{"city"},
	}

	err := ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "city", vErr.Field)

	require.NoError(t, ValidateParameters(map[string]any{"city": "Berlin"}, schema))
}

func TestValidateParametersRequiredFromJSON(t *testing.T) {
	// Schemas decoded from JSON carry []any, not []string.
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{"city": map[string]any{"type": "string"}},
		"required":   []any{"city"},
	}

	err := ValidateParameters(map[string]any{}, schema)
	require.Error(t, err)
	require.NoError(t, ValidateParameters(map[string]any{"city": "Lima"}, schema))
}

func TestValidateParametersTypes(t *testing.T) {
	schema := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name":  map[string]any{"type": "string"},
			"count": map[string]any{"type": "integer"},
			"score": map[string]any{"type": "number"},
			"flag":  map[string]any{"type": "boolean"},
			"items": map[string]any{"type": "array"},
			"meta":  map[string]any{"type": "object"},
		},
	}

	valid := map[string]any{
		"name":  "x",
		"count": float64(3), // JSON decoding yields float64
		"score": 1.5,
		"flag":  true,
		"items": []any{"a"},
		"meta":  map[string]any{"k": "v"},
	}
	require.NoError(t, ValidateParameters(valid, schema))

	cases := map[string]any{
		"name":  42,
		"count": 3.5,
		"score": "high",
		"flag":  "yes",
		"items": "a,b",
		"meta":  []any{},
	}
	for field, bad := range cases {
		err := ValidateParameters(map[string]any{field: bad}, schema)
		require.Error(t, err, "field %s should reject %v", field, bad)

		var vErr *ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, field, vErr.Field)
	}
}

func TestValidateParametersUnknownFieldsPass(t *testing.T) {
	schema := map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
	require.NoError(t, ValidateParameters(map[string]any{"extra": 1}, schema))
}
