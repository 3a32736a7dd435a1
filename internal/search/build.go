package search

import "strings"

// Build turns a Request into the filter for one owner's todo list.
//
// The result is always And(Owner(ownerID), conditions). The owner term sits
// outside the strict/non-strict logic, so nothing a client puts in the
// request can widen the query to another user's todos. ownerID must come
// from the authenticated identity, never from the request itself.
//
// The conditions part is built from the atomic conditions in the request
// (one for the text, one per tag, one for the completed flag):
//
//   - no conditions: True
//   - one condition: that condition, whatever Strict says
//   - strict: And of every condition, each tag its own conjunct, so a todo
//     must carry all listed tags
//   - non-strict: the tags are grouped into one Or first, then that group is
//     Or-ed with the text and completed conditions
//
// Build is pure and never fails.
func Build(ownerID string, req Request) Predicate {
	return And{Terms: []Predicate{
		Owner{ID: ownerID},
		conditions(req),
	}}
}

func conditions(req Request) Predicate {
	var text, completed Predicate
	if pattern := strings.TrimSpace(req.Text); pattern != "" {
		text = TextContains{Pattern: pattern}
	}
	if req.Completed != nil {
		completed = CompletedIs{Value: *req.Completed}
	}

	tags := make([]Predicate, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, HasTag{Tag: tag})
		}
	}

	atoms := make([]Predicate, 0, len(tags)+2)
	if text != nil {
		atoms = append(atoms, text)
	}
	atoms = append(atoms, tags...)
	if completed != nil {
		atoms = append(atoms, completed)
	}

	switch {
	case len(atoms) == 0:
		return True{}
	case len(atoms) == 1:
		return atoms[0]
	case req.Strict:
		return And{Terms: atoms}
	}

	terms := make([]Predicate, 0, 3)
	if text != nil {
		terms = append(terms, text)
	}
	switch len(tags) {
	case 0:
	case 1:
		terms = append(terms, tags[0])
	default:
		terms = append(terms, Or{Terms: tags})
	}
	if completed != nil {
		terms = append(terms, completed)
	}

	// Only tags: the tag group is the whole condition.
	if len(terms) == 1 {
		return terms[0]
	}
	return Or{Terms: terms}
}
