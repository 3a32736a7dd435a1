package sqlite

import (
	"fmt"
	"strings"

	"github.com/sakif/tagged-todos/internal/search"
)

// whereClause translates a search predicate into a SQL boolean expression
// over the todos table (aliased t) plus its positional arguments.
//
// Every value goes through a ? placeholder. Only the fixed fragments below
// are ever concatenated into the SQL string, so user input cannot change
// the shape of the query.
//
//	Owner        t.owner_id = ?
//	TextContains instr(t.text_folded, ?) > 0
//	HasTag       EXISTS (SELECT 1 FROM todo_tags ... tag_folded = ?)
//	CompletedIs  t.completed = ?
//	And / Or     ( a AND b ) / ( a OR b )
//
// instr() is used instead of LIKE so '%' and '_' in the search text are
// matched literally.
func whereClause(p search.Predicate) (string, []any, error) {
	var (
		b    strings.Builder
		args []any
	)
	if err := writePredicate(&b, &args, p); err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

func writePredicate(b *strings.Builder, args *[]any, p search.Predicate) error {
	switch p := p.(type) {
	case search.True:
		b.WriteString("1=1")
	case search.Owner:
		b.WriteString("t.owner_id = ?")
		*args = append(*args, p.ID)
	case search.TextContains:
		b.WriteString("instr(t.text_folded, ?) > 0")
		*args = append(*args, search.Fold(p.Pattern))
	case search.HasTag:
		b.WriteString("EXISTS (SELECT 1 FROM todo_tags tt WHERE tt.todo_id = t.id AND tt.tag_folded = ?)")
		*args = append(*args, search.Fold(p.Tag))
	case search.CompletedIs:
		b.WriteString("t.completed = ?")
		*args = append(*args, p.Value)
	case search.And:
		return writeGroup(b, args, p.Terms, " AND ", "1=1")
	case search.Or:
		return writeGroup(b, args, p.Terms, " OR ", "1=0")
	default:
		return fmt.Errorf("unsupported predicate %T", p)
	}
	return nil
}

func writeGroup(b *strings.Builder, args *[]any, terms []search.Predicate, op, empty string) error {
	if len(terms) == 0 {
		b.WriteString(empty)
		return nil
	}
	b.WriteByte('(')
	for i, term := range terms {
		if i > 0 {
			b.WriteString(op)
		}
		if err := writePredicate(b, args, term); err != nil {
			return err
		}
	}
	b.WriteByte(')')
	return nil
}
