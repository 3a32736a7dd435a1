package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/repository"
	"github.com/sakif/tagged-todos/internal/search"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` fails to compile if *Y stops implementing X, so a
// missing method shows up here instead of wherever *DB is first passed
// around as a Store.
var _ repository.Store = (*DB)(nil)

// selectTodos is the column list shared by every todo read. The LEFT JOIN
// yields one row per tag (or a single row with NULL tag for untagged
// todos); scanTodos folds consecutive rows back into one model.Todo.
const selectTodos = `
	SELECT t.id, t.owner_id, t.text, t.completed, t.created_at, t.updated_at, tg.tag
	FROM todos t
	LEFT JOIN todo_tags tg ON tg.todo_id = t.id
`

// orderTodos puts the newest todo first. xid IDs grow with creation time,
// so t.id breaks ties between todos created within the same clock tick.
const orderTodos = `ORDER BY t.created_at DESC, t.id DESC, tg.position`

// Create inserts a new todo and its tags.
//
// ID GENERATION WITH xid:
// 20 chars, URL-safe and sortable by creation time. The caller's struct is
// modified in place (pointer argument), so after Create it carries the
// generated ID and timestamps.
//
// TRANSACTIONS:
// The todo row and its tag rows must land together. If the third tag insert
// failed without a transaction we would be left with a half-tagged todo.
// With BeginTx + deferred Rollback, any early return undoes everything;
// Rollback after a successful Commit is a harmless no-op.
func (db *DB) Create(ctx context.Context, todo *model.Todo) error {
	todo.ID = xid.New().String()
	now := time.Now().UTC()
	todo.CreatedAt = now
	todo.UpdatedAt = now
	if todo.Tags == nil {
		todo.Tags = []string{}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: creating todo: begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO todos (id, owner_id, text, text_folded, completed, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		todo.ID,
		todo.UserID,
		todo.Text,
		search.Fold(todo.Text),
		todo.Completed,
		todo.CreatedAt,
		todo.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating todo: %w", err)
	}

	if err := insertTags(ctx, tx, todo.ID, todo.Tags); err != nil {
		return fmt.Errorf("sqlite: creating todo: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: creating todo: commit: %w", err)
	}
	return nil
}

// GetByID retrieves one of ownerID's todos.
// A todo owned by someone else is reported as not found.
func (db *DB) GetByID(ctx context.Context, ownerID, id string) (*model.Todo, error) {
	todos, err := db.queryTodos(ctx,
		selectTodos+` WHERE t.id = ? AND t.owner_id = ? `+orderTodos,
		id, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: getting todo %s: %w", id, err)
	}
	if len(todos) == 0 {
		return nil, apperror.NotFound("todo", id)
	}
	return &todos[0], nil
}

// Find returns every todo matching pred, newest first.
//
// The predicate is compiled into the WHERE clause (see filter.go). The
// returned slice is never nil, so an empty result encodes as [] in JSON.
func (db *DB) Find(ctx context.Context, pred search.Predicate) ([]model.Todo, error) {
	where, args, err := whereClause(pred)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding todos: %w", err)
	}

	todos, err := db.queryTodos(ctx, selectTodos+` WHERE `+where+` `+orderTodos, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding todos: %w", err)
	}
	return todos, nil
}

// Update rewrites text, tags and completed of todo.ID, provided it belongs
// to todo.UserID. The tag list is replaced wholesale.
//
// RowsAffected tells us whether the WHERE matched. Zero rows means the todo
// does not exist or is not this owner's; both are "not found" to the caller.
func (db *DB) Update(ctx context.Context, todo *model.Todo) error {
	todo.UpdatedAt = time.Now().UTC()
	if todo.Tags == nil {
		todo.Tags = []string{}
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: updating todo %s: begin: %w", todo.ID, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE todos SET text = ?, text_folded = ?, completed = ?, updated_at = ?
		 WHERE id = ? AND owner_id = ?`,
		todo.Text,
		search.Fold(todo.Text),
		todo.Completed,
		todo.UpdatedAt,
		todo.ID,
		todo.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating todo %s: %w", todo.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: updating todo %s: checking rows affected: %w", todo.ID, err)
	}
	if rows == 0 {
		return apperror.NotFound("todo", todo.ID)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM todo_tags WHERE todo_id = ?`, todo.ID); err != nil {
		return fmt.Errorf("sqlite: updating todo %s: clearing tags: %w", todo.ID, err)
	}
	if err := insertTags(ctx, tx, todo.ID, todo.Tags); err != nil {
		return fmt.Errorf("sqlite: updating todo %s: %w", todo.ID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: updating todo %s: commit: %w", todo.ID, err)
	}
	return nil
}

// Delete removes one of ownerID's todos together with its tags.
func (db *DB) Delete(ctx context.Context, ownerID, id string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: begin: %w", id, err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`DELETE FROM todos WHERE id = ? AND owner_id = ?`,
		id, ownerID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: %w", id, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: checking rows affected: %w", id, err)
	}
	if rows == 0 {
		return apperror.NotFound("todo", id)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM todo_tags WHERE todo_id = ?`, id); err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: deleting tags: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: deleting todo %s: commit: %w", id, err)
	}
	return nil
}

func insertTags(ctx context.Context, tx *sql.Tx, todoID string, tags []string) error {
	for i, tag := range tags {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO todo_tags (todo_id, position, tag, tag_folded) VALUES (?, ?, ?, ?)`,
			todoID, i, tag, search.Fold(tag),
		)
		if err != nil {
			return fmt.Errorf("inserting tag %q: %w", tag, err)
		}
	}
	return nil
}

// queryTodos runs a selectTodos query and groups the joined rows.
//
// Rows for the same todo are adjacent because orderTodos sorts by t.id
// right after created_at, so a todo is complete as soon as the ID changes.
func (db *DB) queryTodos(ctx context.Context, query string, args ...any) ([]model.Todo, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	// CRITICAL: sql.Rows holds a pooled connection until closed.
	defer rows.Close()

	todos := make([]model.Todo, 0)
	for rows.Next() {
		var (
			t   model.Todo
			tag sql.NullString
		)
		if err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Text,
			&t.Completed,
			&t.CreatedAt,
			&t.UpdatedAt,
			&tag,
		); err != nil {
			return nil, fmt.Errorf("scanning todo row: %w", err)
		}

		if n := len(todos); n == 0 || todos[n-1].ID != t.ID {
			t.Tags = []string{}
			todos = append(todos, t)
		}
		if tag.Valid {
			last := &todos[len(todos)-1]
			last.Tags = append(last.Tags, tag.String)
		}
	}

	// rows.Err() catches errors that happened DURING iteration.
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating todo rows: %w", err)
	}

	return todos, nil
}
