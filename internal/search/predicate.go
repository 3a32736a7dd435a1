// Package search turns the optional query parameters of GET /api/todos into a
// boolean predicate over todo records.
//
// The package has three parts:
//
//	ParseRequest  url.Values  → Request    (all string coercion happens here)
//	Build         Request     → Predicate  (pure; always owner-scoped)
//	Match         Predicate   → bool       (reference evaluator for one todo)
//
// Storage backends never look at a Request. They receive the Predicate tree
// and translate it into their own query language (SQL, BSON) or evaluate it
// directly with Match. Keeping the tree small and closed (the node types below
// are the only ones) is what lets every backend give identical answers.
package search

import (
	"strconv"
	"strings"
)

// Predicate is a node of the filter tree produced by Build.
//
// The interface is sealed with an unexported method: only the node types in
// this file implement it, so a type switch over them in a backend is
// exhaustive.
type Predicate interface {
	isPredicate()
	String() string
}

// True matches every todo. Build uses it when the request carries no
// conditions, so the final filter degrades to "owner only".
type True struct{}

// Owner matches todos whose owner is ID.
type Owner struct {
	ID string
}

// TextContains matches todos whose text contains Pattern, ignoring case.
// Pattern is literal text, not a regular expression.
type TextContains struct {
	Pattern string
}

// HasTag matches todos with at least one tag equal to Tag, ignoring case.
type HasTag struct {
	Tag string
}

// CompletedIs matches todos whose completed flag equals Value.
type CompletedIs struct {
	Value bool
}

// And matches when every term matches. An empty And matches everything.
type And struct {
	Terms []Predicate
}

// Or matches when at least one term matches. An empty Or matches nothing.
type Or struct {
	Terms []Predicate
}

func (True) isPredicate()         {}
func (Owner) isPredicate()        {}
func (TextContains) isPredicate() {}
func (HasTag) isPredicate()       {}
func (CompletedIs) isPredicate()  {}
func (And) isPredicate()          {}
func (Or) isPredicate()           {}

func (True) String() string           { return "TRUE" }
func (p Owner) String() string        { return "owner = " + strconv.Quote(p.ID) }
func (p TextContains) String() string { return "text ~ " + strconv.Quote(p.Pattern) }
func (p HasTag) String() string       { return "tag = " + strconv.Quote(p.Tag) }
func (p CompletedIs) String() string  { return "completed = " + strconv.FormatBool(p.Value) }
func (p And) String() string          { return join(p.Terms, " AND ") }
func (p Or) String() string           { return join(p.Terms, " OR ") }

func join(terms []Predicate, sep string) string {
	parts := make([]string, len(terms))
	for i, t := range terms {
		parts[i] = t.String()
	}
	return "(" + strings.Join(parts, sep) + ")"
}

// Fold is the case folding every backend applies to both sides of a text or
// tag comparison. The SQLite store persists folded copies of text and tags
// with it, so it must stay in sync with Match.
func Fold(s string) string {
	return strings.ToLower(s)
}
