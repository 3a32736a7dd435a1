package search

import (
	"strings"

	"github.com/sakif/tagged-todos/internal/model"
)

// Match evaluates p against a single todo.
//
// It is the reference semantics for the predicate tree: the memory store
// filters with it directly, and the SQL and BSON translations are tested
// against the same cases.
func Match(p Predicate, todo model.Todo) bool {
	switch p := p.(type) {
	case True:
		return true
	case Owner:
		return todo.UserID == p.ID
	case TextContains:
		return strings.Contains(Fold(todo.Text), Fold(p.Pattern))
	case HasTag:
		want := Fold(p.Tag)
		for _, tag := range todo.Tags {
			if Fold(tag) == want {
				return true
			}
		}
		return false
	case CompletedIs:
		return todo.Completed == p.Value
	case And:
		for _, term := range p.Terms {
			if !Match(term, todo) {
				return false
			}
		}
		return true
	case Or:
		for _, term := range p.Terms {
			if Match(term, todo) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
