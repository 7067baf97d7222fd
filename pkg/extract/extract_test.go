package extract

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contaixt/contaixt/pkg/types"
)

func TestParseResult(t *testing.T) {
	result := ParseResult(`{
		"entities": [{"type": "Person", "name": "Ada Lovelace", "email": "ada@acme.com"}],
		"relations": [{"from_name": "Ada Lovelace", "to_name": "Acme", "type": "WORKS_AT", "evidence": "Ada works at Acme"}]
	}`)
	require.Len(t, result.Entities, 1)
	require.Len(t, result.Relations, 1)
	assert.Equal(t, "Person", result.Entities[0].Type)
	assert.Equal(t, "ada@acme.com", result.Entities[0].Email)
	assert.Equal(t, "WORKS_AT", result.Relations[0].Type)
}

func TestParseResultMalformed(t *testing.T) {
	for _, raw := range []string{"", "not json", `{"entities": "oops"}`, "[]"} {
		result := ParseResult(raw)
		require.NotNil(t, result, "raw=%q", raw)
		assert.Empty(t, result.Entities, "raw=%q", raw)
		assert.Empty(t, result.Relations, "raw=%q", raw)
	}
}

func TestHeuristicEntities(t *testing.T) {
	tests := []struct {
		name        string
		authorName  string
		authorEmail string
		want        []types.ExtractedEntity
	}{
		{
			name:        "corporate domain yields person and company",
			authorName:  "Ada Lovelace",
			authorEmail: "ada@acme.com",
			want: []types.ExtractedEntity{
				{Type: "Person", Name: "Ada Lovelace", Email: "ada@acme.com"},
				{Type: "Company", Name: "Acme", Domain: "acme.com"},
			},
		},
		{
			name:        "public mail domain yields person only",
			authorName:  "Bob",
			authorEmail: "bob@gmail.com",
			want: []types.ExtractedEntity{
				{Type: "Person", Name: "Bob", Email: "bob@gmail.com"},
			},
		},
		{
			name:        "missing author name falls back to local part",
			authorEmail: "carol@web.de",
			want: []types.ExtractedEntity{
				{Type: "Person", Name: "carol", Email: "carol@web.de"},
			},
		},
		{
			name:        "no email yields nothing",
			authorName:  "Dave",
		},
		{
			name:        "malformed email yields nothing",
			authorEmail: "not-an-email",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HeuristicEntities(tt.authorName, tt.authorEmail))
		})
	}
}

func TestMergeHeuristicEntitiesDedup(t *testing.T) {
	extracted := []types.ExtractedEntity{
		{Type: "Person", Name: "ada lovelace", Email: "ada@acme.com"},
	}

	merged := MergeHeuristicEntities(extracted, "Ada Lovelace", "ada@acme.com")

	// The model already extracted the author; only the company is added.
	require.Len(t, merged, 2)
	assert.Equal(t, "ada lovelace", merged[0].Name)
	assert.Equal(t, "Company", merged[1].Type)
	assert.Equal(t, "acme.com", merged[1].Domain)
}

func TestMergeHeuristicEntitiesNoEmail(t *testing.T) {
	extracted := []types.ExtractedEntity{{Type: "Topic", Name: "quarterly planning"}}
	merged := MergeHeuristicEntities(extracted, "", "")
	assert.Equal(t, extracted, merged)
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 100))
	assert.Equal(t, "abc", truncate("abcdef", 3))

	// A cut inside the two-byte é widens left to the rune boundary.
	got := truncate("héllo", 2)
	assert.Equal(t, "h", got)
	assert.True(t, utf8.ValidString(got))
}
