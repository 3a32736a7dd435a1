package search

import (
	"net/url"
	"strconv"
	"strings"
)

// Request is the typed form of the todo search query string.
//
// Every field is optional. The zero Request means "no restriction" and,
// once passed through Build, matches all of the owner's todos.
type Request struct {
	Text      string   // substring of the todo text, already trimmed
	Tags      []string // trimmed, non-empty tags in the order given
	Strict    bool     // AND every condition together instead of OR
	Completed *bool    // nil = don't filter on completion
}

// IsEmpty reports whether the request carries no conditions at all.
func (r Request) IsEmpty() bool {
	return r.Text == "" && len(r.Tags) == 0 && r.Completed == nil
}

// Mode names the combinator for logs and metrics.
func (r Request) Mode() string {
	if r.Strict {
		return "strict"
	}
	return "any"
}

// ParseRequest extracts a Request from query parameters:
//
//	text=<string>  tags=<a,b,c>  strict=<bool>  completed=<bool>
//
// Nothing here can fail. Values that don't parse degrade to "no
// restriction" for their dimension: a malformed strict is false (the
// permissive union), a malformed completed is ignored.
//
// Booleans accept whatever strconv.ParseBool accepts ("true", "1", "T", ...).
// Repeated tags parameters (?tags=a&tags=b,c) are concatenated.
func ParseRequest(q url.Values) Request {
	req := Request{
		Text: strings.TrimSpace(q.Get("text")),
		Tags: ParseTags(strings.Join(q["tags"], ",")),
	}

	if strict, err := strconv.ParseBool(strings.TrimSpace(q.Get("strict"))); err == nil {
		req.Strict = strict
	}

	if raw := strings.TrimSpace(q.Get("completed")); raw != "" {
		if completed, err := strconv.ParseBool(raw); err == nil {
			req.Completed = &completed
		}
	}

	return req
}

// ParseTags splits a comma-separated tag list, trims every entry and drops
// the empty ones. " Work, , urgent " becomes ["Work", "urgent"].
//
// The result never contains a comma or surrounding space, so joining it back
// with "," and parsing again yields the same slice.
func ParseTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tags = append(tags, p)
		}
	}
	return tags
}
