package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleSchema = `{
	"$id": "article.json",
	"type": "object",
	"properties": {
		"rating": { "type": "integer", "minimum": 0 },
		"notes": { "type": "string" }
	},
	"additionalProperties": false
}`

func TestValidator(t *testing.T) {
	v, err := NewValidator([]string{articleSchema}, nil)
	require.NoError(t, err)

	assert.True(t, v.HasSchema("article.json"))
	assert.False(t, v.HasSchema("other.json"))

	assert.NoError(t, v.ValidateString(`{"rating": 3, "notes": "x"}`, "article.json"))
	assert.Error(t, v.ValidateString(`{"rating": -1}`, "article.json"))
	assert.Error(t, v.ValidateString(`{"surprise": true}`, "article.json"))
	assert.Error(t, v.ValidateString(`{}`, "other.json"), "unknown schema id")

	assert.NoError(t, v.ValidateStruct(map[string]interface{}{"rating": 5}, "article.json"))
}

func TestValidatorRejectsSchemaWithoutID(t *testing.T) {
	_, err := NewValidator([]string{`{"type": "object"}`}, nil)
	assert.Error(t, err)
}
