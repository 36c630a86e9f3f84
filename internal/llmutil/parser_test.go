// internal/llmutil/parser_test.go
package llmutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAction struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func TestParseJSONResponsePlainObject(t *testing.T) {
	got, err := ParseJSONResponse[fakeAction](`{"type":"navigate","value":"https://example.com"}`)
	require.NoError(t, err)
	assert.Equal(t, "navigate", got.Type)
}

func TestParseJSONResponseMarkdownWrappedObject(t *testing.T) {
	raw := "```json\n{\"type\":\"wait\",\"value\":\"5000\"}\n```"
	got, err := ParseJSONResponse[fakeAction](raw)
	require.NoError(t, err)
	assert.Equal(t, "5000", got.Value)
}

func TestParseJSONResponseMarkdownWrappedArray(t *testing.T) {
	raw := "```\n[{\"type\":\"click\"},{\"type\":\"screenshot\"}]\n```"
	got, err := ParseJSONResponse[[]fakeAction](raw)
	require.NoError(t, err)
	require.Len(t, *got, 2)
	assert.Equal(t, "screenshot", (*got)[1].Type)
}

func TestParseJSONResponseConversationalWrapper(t *testing.T) {
	raw := `Here is the action you asked for: {"type":"click","value":""} hope that helps!`
	got, err := ParseJSONResponse[fakeAction](raw)
	require.NoError(t, err)
	assert.Equal(t, "click", got.Type)
}

func TestParseJSONResponseRejectsNonJSON(t *testing.T) {
	_, err := ParseJSONResponse[fakeAction]("just click the button, trust me")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}
