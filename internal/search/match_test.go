package search

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/tagged-todos/internal/model"
)

type todoFixture struct {
	text      string
	tags      []string
	completed bool
	owner     string
}

func (f todoFixture) todo(id string) model.Todo {
	o := f.owner
	if o == "" {
		o = owner
	}
	return model.Todo{ID: id, UserID: o, Text: f.text, Tags: f.tags, Completed: f.completed}
}

func TestMatch(t *testing.T) {
	todo := model.Todo{
		ID:        "t1",
		UserID:    "u1",
		Text:      "Pay the Electricity bill",
		Tags:      []string{"Home", "bills"},
		Completed: false,
	}

	tests := []struct {
		name string
		p    Predicate
		want bool
	}{
		{"true", True{}, true},
		{"owner match", Owner{ID: "u1"}, true},
		{"owner mismatch", Owner{ID: "u2"}, false},
		{"text substring", TextContains{Pattern: "electric"}, true},
		{"text is literal", TextContains{Pattern: "Pay.*bill"}, false},
		{"text missing", TextContains{Pattern: "water"}, false},
		{"tag exact ignoring case", HasTag{Tag: "home"}, true},
		{"tag prefix does not match", HasTag{Tag: "bill"}, false},
		{"completed false", CompletedIs{Value: false}, true},
		{"completed true", CompletedIs{Value: true}, false},
		{"empty and", And{}, true},
		{"empty or", Or{}, false},
		{"and short-circuits on miss", And{Terms: []Predicate{Owner{ID: "u1"}, HasTag{Tag: "work"}}}, false},
		{"or finds one", Or{Terms: []Predicate{HasTag{Tag: "work"}, HasTag{Tag: "BILLS"}}}, true},
		{"nested", And{Terms: []Predicate{
			Owner{ID: "u1"},
			Or{Terms: []Predicate{TextContains{Pattern: "gas"}, Or{Terms: []Predicate{HasTag{Tag: "x"}, HasTag{Tag: "home"}}}}},
		}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Match(tt.p, todo))
		})
	}
}

func TestMatch_NoTags(t *testing.T) {
	todo := model.Todo{UserID: "u1", Text: "x"}

	assert.False(t, Match(HasTag{Tag: "anything"}, todo))
	assert.True(t, Match(Or{Terms: []Predicate{HasTag{Tag: "a"}, TextContains{Pattern: "X"}}}, todo))
}
