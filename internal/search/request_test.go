package search

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(b bool) *bool { return &b }

// =========================================================================
// ParseTags
// =========================================================================

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "only whitespace", raw: "   ", want: nil},
		{name: "single", raw: "work", want: []string{"work"}},
		{name: "trims entries", raw: " Work , urgent ", want: []string{"Work", "urgent"}},
		{name: "drops empty entries", raw: "a,,b, ,", want: []string{"a", "b"}},
		{name: "only commas", raw: ",,,", want: []string{}},
		{name: "keeps order and case", raw: "Zeta,alpha,Beta", want: []string{"Zeta", "alpha", "Beta"}},
		{name: "inner spaces preserved", raw: "deep work, home", want: []string{"deep work", "home"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseTags(tt.raw))
		})
	}
}

func TestParseTags_Idempotent(t *testing.T) {
	inputs := []string{" a , b,,c ", "work", ",x,", "Home, Errands ,  "}

	for _, raw := range inputs {
		once := ParseTags(raw)
		twice := ParseTags(strings.Join(once, ","))
		assert.ElementsMatch(t, once, twice, "raw=%q", raw)
		for _, tag := range once {
			assert.NotContains(t, tag, ",")
			assert.Equal(t, strings.TrimSpace(tag), tag)
			assert.NotEmpty(t, tag)
		}
	}
}

// =========================================================================
// ParseRequest
// =========================================================================

func TestParseRequest(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Request
	}{
		{
			name:  "no parameters",
			query: "",
			want:  Request{},
		},
		{
			name:  "text is trimmed",
			query: "text=%20%20milk%20",
			want:  Request{Text: "milk"},
		},
		{
			name:  "whitespace-only text is dropped",
			query: "text=%20%20%20",
			want:  Request{},
		},
		{
			name:  "tags are split",
			query: "tags=work,urgent",
			want:  Request{Tags: []string{"work", "urgent"}},
		},
		{
			name:  "repeated tags parameters are concatenated",
			query: "tags=work&tags=home,errands",
			want:  Request{Tags: []string{"work", "home", "errands"}},
		},
		{
			name:  "strict true",
			query: "strict=true",
			want:  Request{Strict: true},
		},
		{
			name:  "strict accepts ParseBool spellings",
			query: "strict=1",
			want:  Request{Strict: true},
		},
		{
			name:  "malformed strict is non-strict",
			query: "strict=yes",
			want:  Request{},
		},
		{
			name:  "completed false",
			query: "completed=false",
			want:  Request{Completed: boolPtr(false)},
		},
		{
			name:  "completed true",
			query: "completed=TRUE",
			want:  Request{Completed: boolPtr(true)},
		},
		{
			name:  "malformed completed is ignored",
			query: "completed=maybe",
			want:  Request{},
		},
		{
			name:  "everything at once",
			query: "text=report&tags=%20Work%20,,Q3&strict=true&completed=0",
			want: Request{
				Text:      "report",
				Tags:      []string{"Work", "Q3"},
				Strict:    true,
				Completed: boolPtr(false),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := url.ParseQuery(tt.query)
			assert.NoError(t, err)

			got := ParseRequest(q)

			assert.Equal(t, tt.want.Text, got.Text)
			assert.ElementsMatch(t, tt.want.Tags, got.Tags)
			assert.Equal(t, tt.want.Strict, got.Strict)
			assert.Equal(t, tt.want.Completed, got.Completed)
		})
	}
}

func TestRequest_IsEmpty(t *testing.T) {
	assert.True(t, Request{}.IsEmpty())
	assert.True(t, Request{Strict: true}.IsEmpty(), "strict alone adds no condition")
	assert.False(t, Request{Text: "x"}.IsEmpty())
	assert.False(t, Request{Tags: []string{"x"}}.IsEmpty())
	assert.False(t, Request{Completed: boolPtr(false)}.IsEmpty())
}

func TestRequest_Mode(t *testing.T) {
	assert.Equal(t, "any", Request{}.Mode())
	assert.Equal(t, "strict", Request{Strict: true}.Mode())
}
