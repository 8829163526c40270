package gateway

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func jsonNumber(s string) json.Number { return json.Number(s) }

func TestExtractJSON(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{`{"a":1}`, `{"a":1}`, true},
		{"```json\n{\"a\":1}\n```", `{"a":1}`, true},
		{"Sure:\n{\"a\":{\"b\":2}}\nThanks", `{"a":{"b":2}}`, true},
		{"no braces", "", false},
		{"} backwards {", "", false},
	}
	for _, tt := range tests {
		got, ok := extractJSON(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, "# Title", stripFences("```markdown\n# Title\n```"))
	assert.Equal(t, "plain", stripFences("  plain  "))
	assert.Equal(t, "", stripFences("```"))
}

func TestStringList(t *testing.T) {
	var l stringList
	assert.NoError(t, json.Unmarshal([]byte(`["a","b"]`), &l))
	assert.Equal(t, stringList{"a", "b"}, l)
	assert.NoError(t, json.Unmarshal([]byte(`"solo"`), &l))
	assert.Equal(t, stringList{"solo"}, l)
	assert.NoError(t, json.Unmarshal([]byte(`""`), &l))
	assert.Nil(t, l)
	assert.Error(t, json.Unmarshal([]byte(`42`), &l))
}

func TestCleanList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, cleanList([]string{" a ", "", "b", "a"}, 0))
	assert.Equal(t, []string{"a"}, cleanList([]string{"a", "b"}, 1))
	assert.Nil(t, cleanList(nil, 0))
}
