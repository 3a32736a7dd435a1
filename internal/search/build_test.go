package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "user-1"

// scoped wraps the expected condition part the way Build always does.
func scoped(cond Predicate) Predicate {
	return And{Terms: []Predicate{Owner{ID: owner}, cond}}
}

// =========================================================================
// SHAPE OF THE TREE
// =========================================================================

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		want Predicate
	}{
		{
			name: "empty request is owner only",
			req:  Request{},
			want: scoped(True{}),
		},
		{
			name: "strict alone is owner only",
			req:  Request{Strict: true},
			want: scoped(True{}),
		},
		{
			name: "text only",
			req:  Request{Text: "milk"},
			want: scoped(TextContains{Pattern: "milk"}),
		},
		{
			name: "single tag is not wrapped",
			req:  Request{Tags: []string{"work"}},
			want: scoped(HasTag{Tag: "work"}),
		},
		{
			name: "single tag strict is the same",
			req:  Request{Tags: []string{"work"}, Strict: true},
			want: scoped(HasTag{Tag: "work"}),
		},
		{
			name: "completed only",
			req:  Request{Completed: boolPtr(false)},
			want: scoped(CompletedIs{Value: false}),
		},
		{
			name: "two tags non-strict",
			req:  Request{Tags: []string{"work", "urgent"}},
			want: scoped(Or{Terms: []Predicate{HasTag{Tag: "work"}, HasTag{Tag: "urgent"}}}),
		},
		{
			name: "two tags strict",
			req:  Request{Tags: []string{"work", "urgent"}, Strict: true},
			want: scoped(And{Terms: []Predicate{HasTag{Tag: "work"}, HasTag{Tag: "urgent"}}}),
		},
		{
			name: "text and single tag non-strict",
			req:  Request{Text: "report", Tags: []string{"work"}},
			want: scoped(Or{Terms: []Predicate{TextContains{Pattern: "report"}, HasTag{Tag: "work"}}}),
		},
		{
			name: "text and tags non-strict groups the tags",
			req:  Request{Text: "report", Tags: []string{"work", "q3"}},
			want: scoped(Or{Terms: []Predicate{
				TextContains{Pattern: "report"},
				Or{Terms: []Predicate{HasTag{Tag: "work"}, HasTag{Tag: "q3"}}},
			}}),
		},
		{
			name: "everything non-strict",
			req:  Request{Text: "a", Tags: []string{"x", "y"}, Completed: boolPtr(true)},
			want: scoped(Or{Terms: []Predicate{
				TextContains{Pattern: "a"},
				Or{Terms: []Predicate{HasTag{Tag: "x"}, HasTag{Tag: "y"}}},
				CompletedIs{Value: true},
			}}),
		},
		{
			name: "everything strict is a flat conjunction",
			req:  Request{Text: "a", Tags: []string{"x", "y"}, Completed: boolPtr(true), Strict: true},
			want: scoped(And{Terms: []Predicate{
				TextContains{Pattern: "a"},
				HasTag{Tag: "x"},
				HasTag{Tag: "y"},
				CompletedIs{Value: true},
			}}),
		},
		{
			name: "blank tags and text contribute nothing",
			req:  Request{Text: "  ", Tags: []string{" ", ""}},
			want: scoped(True{}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Build(owner, tt.req))
		})
	}
}

func TestBuild_AlwaysOwnerScoped(t *testing.T) {
	reqs := []Request{
		{},
		{Text: "x"},
		{Tags: []string{"a", "b"}},
		{Tags: []string{"a", "b"}, Strict: true},
		{Text: "x", Tags: []string{"a"}, Completed: boolPtr(true)},
	}

	for _, req := range reqs {
		p := Build("alice", req)

		root, ok := p.(And)
		require.True(t, ok, "root must be an And, got %T", p)
		require.Len(t, root.Terms, 2)
		assert.Equal(t, Owner{ID: "alice"}, root.Terms[0])
	}
}

func TestBuild_String(t *testing.T) {
	p := Build("u1", Request{Text: "milk", Tags: []string{"a", "b"}})

	assert.Equal(t, `(owner = "u1" AND (text ~ "milk" OR (tag = "a" OR tag = "b")))`, p.String())
}

// =========================================================================
// SEMANTICS (Build + Match)
// =========================================================================

func TestBuild_Semantics(t *testing.T) {
	todos := map[string]todoFixture{
		"milk":       {text: "Buy milk", tags: []string{"home"}},
		"report":     {text: "Write report", tags: []string{"work", "urgent"}, completed: true},
		"untagged":   {text: "Call mom"},
		"workonly":   {text: "Standup", tags: []string{"Work"}},
		"elsewhere":  {text: "Buy milk", tags: []string{"work"}, owner: "someone-else"},
		"workathome": {text: "Fix laptop", tags: []string{"work", "home"}},
	}

	tests := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "no conditions returns every owned todo",
			req:  Request{},
			want: []string{"milk", "report", "untagged", "workonly", "workathome"},
		},
		{
			name: "text is a case-insensitive substring",
			req:  Request{Text: "MILK"},
			want: []string{"milk"},
		},
		{
			name: "tag equality ignores case",
			req:  Request{Tags: []string{"WORK"}},
			want: []string{"report", "workonly", "workathome"},
		},
		{
			name: "tag is not a substring match",
			req:  Request{Tags: []string{"wor"}},
			want: nil,
		},
		{
			name: "any tag",
			req:  Request{Tags: []string{"urgent", "home"}},
			want: []string{"milk", "report", "workathome"},
		},
		{
			name: "all tags",
			req:  Request{Tags: []string{"work", "home"}, Strict: true},
			want: []string{"workathome"},
		},
		{
			name: "text or completed",
			req:  Request{Text: "milk", Completed: boolPtr(true)},
			want: []string{"milk", "report"},
		},
		{
			name: "text and not completed",
			req:  Request{Text: "r", Completed: boolPtr(false), Strict: true},
			want: nil,
		},
		{
			name: "completed false",
			req:  Request{Completed: boolPtr(false)},
			want: []string{"milk", "untagged", "workonly", "workathome"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Build(owner, tt.req)

			var got []string
			for name, f := range todos {
				if Match(p, f.todo(name)) {
					got = append(got, name)
				}
			}

			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

// Adding conditions in strict mode never grows the result; in non-strict
// mode it never shrinks it, once at least one condition is present.
func TestBuild_Monotonicity(t *testing.T) {
	fixtures := []todoFixture{
		{text: "alpha", tags: []string{"a"}},
		{text: "beta", tags: []string{"a", "b"}, completed: true},
		{text: "gamma", tags: []string{"c"}},
		{text: "alphabet"},
	}

	count := func(req Request) int {
		p := Build(owner, req)
		n := 0
		for i, f := range fixtures {
			if Match(p, f.todo(string(rune('0'+i)))) {
				n++
			}
		}
		return n
	}

	base := Request{Text: "alpha"}
	moreStrict := Request{Text: "alpha", Tags: []string{"a"}, Strict: true}
	evenMoreStrict := Request{Text: "alpha", Tags: []string{"a", "b"}, Strict: true}
	assert.GreaterOrEqual(t, count(Request{Text: "alpha", Strict: true}), count(moreStrict))
	assert.GreaterOrEqual(t, count(moreStrict), count(evenMoreStrict))

	moreAny := Request{Text: "alpha", Tags: []string{"c"}}
	evenMoreAny := Request{Text: "alpha", Tags: []string{"c"}, Completed: boolPtr(true)}
	assert.LessOrEqual(t, count(base), count(moreAny))
	assert.LessOrEqual(t, count(moreAny), count(evenMoreAny))
}
