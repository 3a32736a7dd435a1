package sqlite

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tagged-todos/internal/search"
)

func TestWhereClause(t *testing.T) {
	tests := []struct {
		name     string
		pred     search.Predicate
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "true",
			pred:     search.True{},
			wantSQL:  "1=1",
			wantArgs: nil,
		},
		{
			name:     "owner",
			pred:     search.Owner{ID: "u1"},
			wantSQL:  "t.owner_id = ?",
			wantArgs: []any{"u1"},
		},
		{
			name:     "text is folded",
			pred:     search.TextContains{Pattern: "MiLk"},
			wantSQL:  "instr(t.text_folded, ?) > 0",
			wantArgs: []any{"milk"},
		},
		{
			name:     "tag is folded",
			pred:     search.HasTag{Tag: "Work"},
			wantSQL:  "EXISTS (SELECT 1 FROM todo_tags tt WHERE tt.todo_id = t.id AND tt.tag_folded = ?)",
			wantArgs: []any{"work"},
		},
		{
			name:     "completed",
			pred:     search.CompletedIs{Value: true},
			wantSQL:  "t.completed = ?",
			wantArgs: []any{true},
		},
		{
			name:     "empty and",
			pred:     search.And{},
			wantSQL:  "1=1",
			wantArgs: nil,
		},
		{
			name:     "empty or",
			pred:     search.Or{},
			wantSQL:  "1=0",
			wantArgs: nil,
		},
		{
			name: "built request",
			pred: search.Build("u1", search.Request{Text: "a", Tags: []string{"x", "y"}}),
			wantSQL: "(t.owner_id = ? AND (instr(t.text_folded, ?) > 0 OR (" +
				"EXISTS (SELECT 1 FROM todo_tags tt WHERE tt.todo_id = t.id AND tt.tag_folded = ?) OR " +
				"EXISTS (SELECT 1 FROM todo_tags tt WHERE tt.todo_id = t.id AND tt.tag_folded = ?))))",
			wantArgs: []any{"u1", "a", "x", "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sql, args, err := whereClause(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, sql)
			assert.Equal(t, tt.wantArgs, args)
		})
	}
}

// Search text travels only as a bound argument.
func TestWhereClause_InjectionStaysInArgs(t *testing.T) {
	evil := "'); DROP TABLE todos; --"

	sql, args, err := whereClause(search.TextContains{Pattern: evil})
	require.NoError(t, err)
	assert.NotContains(t, sql, "DROP")
	assert.Equal(t, []any{search.Fold(evil)}, args)
}
