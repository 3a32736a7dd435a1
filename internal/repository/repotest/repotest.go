// Package repotest is a behaviour suite shared by every repository.Store
// implementation. A backend's own test file only has to say how to build a
// fresh, empty store:
//
//	func TestStore(t *testing.T) {
//		repotest.RunSuite(t, func(t *testing.T) repository.Store { return newTestDB(t) })
//	}
//
// Compare todos by ID rather than by whole struct in here: backends store
// timestamps with different precision.
package repotest

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/repository"
	"github.com/sakif/tagged-todos/internal/search"
)

// NewStore returns an empty store. It should register its own cleanup.
type NewStore func(t *testing.T) repository.Store

// RunSuite runs every shared behaviour test against stores built by newStore.
func RunSuite(t *testing.T, newStore NewStore) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore) })
	t.Run("TodoCRUD", func(t *testing.T) { testTodoCRUD(t, newStore) })
	t.Run("OwnerScoping", func(t *testing.T) { testOwnerScoping(t, newStore) })
	t.Run("Search", func(t *testing.T) { testSearch(t, newStore) })
	t.Run("SearchProperties", func(t *testing.T) { testSearchProperties(t, newStore) })
	t.Run("Ping", func(t *testing.T) {
		require.NoError(t, newStore(t).Ping(context.Background()))
	})
}

// =========================================================================
// HELPERS
// =========================================================================

// CreateUser inserts a user with the given email and fails the test on error.
func CreateUser(t *testing.T, s repository.UserRepository, email string) *model.User {
	t.Helper()
	u := &model.User{Username: email, Email: email, PasswordHash: "hash"}
	require.NoError(t, s.CreateUser(context.Background(), u))
	return u
}

// CreateTodo inserts a todo for ownerID and fails the test on error.
func CreateTodo(t *testing.T, s repository.TodoRepository, ownerID, text string, completed bool, tags ...string) *model.Todo {
	t.Helper()
	if tags == nil {
		tags = []string{}
	}
	todo := &model.Todo{UserID: ownerID, Text: text, Tags: tags, Completed: completed}
	require.NoError(t, s.Create(context.Background(), todo))
	return todo
}

func ids(todos []model.Todo) []string {
	out := make([]string, len(todos))
	for i, t := range todos {
		out[i] = t.ID
	}
	return out
}

// find runs a raw query string through the same path the HTTP handler uses.
func find(t *testing.T, s repository.TodoRepository, ownerID, rawQuery string) []model.Todo {
	t.Helper()
	q, err := url.ParseQuery(rawQuery)
	require.NoError(t, err)
	todos, err := s.Find(context.Background(), search.Build(ownerID, search.ParseRequest(q)))
	require.NoError(t, err)
	return todos
}

// =========================================================================
// USERS
// =========================================================================

func testUsers(t *testing.T, newStore NewStore) {
	ctx := context.Background()

	t.Run("create assigns id and timestamps", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "ada@example.com")

		assert.NotEmpty(t, u.ID)
		assert.False(t, u.CreatedAt.IsZero())
		assert.False(t, u.UpdatedAt.IsZero())

		got, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "ada@example.com", got.Email)
		assert.Equal(t, "hash", got.PasswordHash)
		assert.Zero(t, got.GitHubID)
	})

	t.Run("duplicate email conflicts", func(t *testing.T) {
		s := newStore(t)
		CreateUser(t, s, "ada@example.com")

		err := s.CreateUser(ctx, &model.User{Email: "ada@example.com"})
		assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
	})

	t.Run("lookup by email", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "grace@example.com")

		got, err := s.GetUserByEmail(ctx, "grace@example.com")
		require.NoError(t, err)
		assert.Equal(t, u.ID, got.ID)

		_, err = s.GetUserByEmail(ctx, "nobody@example.com")
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})

	t.Run("github link", func(t *testing.T) {
		s := newStore(t)
		a := CreateUser(t, s, "a@example.com")
		CreateUser(t, s, "b@example.com") // second unlinked account must not collide

		_, err := s.GetUserByGitHubID(ctx, 42)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)

		a.GitHubID = 42
		require.NoError(t, s.UpdateUser(ctx, a))

		got, err := s.GetUserByGitHubID(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)

		err = s.CreateUser(ctx, &model.User{Email: "c@example.com", GitHubID: 42})
		assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
	})

	t.Run("update profile fields", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "old@example.com")
		before := u.UpdatedAt

		time.Sleep(2 * time.Millisecond)
		u.FirstName = "Ada"
		u.LastName = "Lovelace"
		u.Email = "new@example.com"
		u.ProfileImage = "avatars/ada.png"
		require.NoError(t, s.UpdateUser(ctx, u))
		assert.True(t, u.UpdatedAt.After(before))

		got, err := s.GetUserByID(ctx, u.ID)
		require.NoError(t, err)
		assert.Equal(t, "Ada", got.FirstName)
		assert.Equal(t, "Lovelace", got.LastName)
		assert.Equal(t, "new@example.com", got.Email)
		assert.Equal(t, "avatars/ada.png", got.ProfileImage)
	})

	t.Run("update to taken email conflicts", func(t *testing.T) {
		s := newStore(t)
		CreateUser(t, s, "taken@example.com")
		u := CreateUser(t, s, "mine@example.com")

		u.Email = "taken@example.com"
		err := s.UpdateUser(ctx, u)
		assert.True(t, errors.Is(err, apperror.ErrConflict), "got %v", err)
	})

	t.Run("unknown user", func(t *testing.T) {
		s := newStore(t)

		_, err := s.GetUserByID(ctx, "missing")
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)

		err = s.UpdateUser(ctx, &model.User{ID: "missing", Email: "x@example.com"})
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})
}

// =========================================================================
// TODO CRUD
// =========================================================================

func testTodoCRUD(t *testing.T, newStore NewStore) {
	ctx := context.Background()

	t.Run("create and get", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")

		todo := CreateTodo(t, s, u.ID, "Buy milk", false, "Shopping", "home")
		assert.NotEmpty(t, todo.ID)
		assert.False(t, todo.CreatedAt.IsZero())

		got, err := s.GetByID(ctx, u.ID, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, "Buy milk", got.Text)
		assert.Equal(t, []string{"Shopping", "home"}, got.Tags, "tags keep order and case")
		assert.False(t, got.Completed)
		assert.Equal(t, u.ID, got.UserID)
	})

	t.Run("untagged todo has empty tags", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		todo := CreateTodo(t, s, u.ID, "Call mom", false)

		got, err := s.GetByID(ctx, u.ID, todo.ID)
		require.NoError(t, err)
		assert.NotNil(t, got.Tags)
		assert.Empty(t, got.Tags)
	})

	t.Run("update replaces fields and tags", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		todo := CreateTodo(t, s, u.ID, "Draft", false, "a", "b")

		todo.Text = "Final"
		todo.Tags = []string{"c"}
		todo.Completed = true
		require.NoError(t, s.Update(ctx, todo))

		got, err := s.GetByID(ctx, u.ID, todo.ID)
		require.NoError(t, err)
		assert.Equal(t, "Final", got.Text)
		assert.Equal(t, []string{"c"}, got.Tags)
		assert.True(t, got.Completed)

		// The folded copies must follow the update too.
		assert.Len(t, find(t, s, u.ID, "text=final"), 1)
		assert.Empty(t, find(t, s, u.ID, "tags=a"))
		assert.Len(t, find(t, s, u.ID, "tags=C"), 1)
	})

	t.Run("delete", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		todo := CreateTodo(t, s, u.ID, "Temp", false, "x")

		require.NoError(t, s.Delete(ctx, u.ID, todo.ID))

		_, err := s.GetByID(ctx, u.ID, todo.ID)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
		assert.Empty(t, find(t, s, u.ID, "tags=x"))

		err = s.Delete(ctx, u.ID, todo.ID)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "second delete: got %v", err)
	})

	t.Run("find returns newest first", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		first := CreateTodo(t, s, u.ID, "first", false)
		second := CreateTodo(t, s, u.ID, "second", false)
		third := CreateTodo(t, s, u.ID, "third", false)

		got := find(t, s, u.ID, "")
		assert.Equal(t, []string{third.ID, second.ID, first.ID}, ids(got))
	})

	t.Run("find with no matches is empty, not nil", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")

		got := find(t, s, u.ID, "text=anything")
		assert.NotNil(t, got)
		assert.Empty(t, got)
	})
}

// =========================================================================
// OWNER SCOPING
// =========================================================================

func testOwnerScoping(t *testing.T, newStore NewStore) {
	ctx := context.Background()
	s := newStore(t)
	alice := CreateUser(t, s, "alice@example.com")
	bob := CreateUser(t, s, "bob@example.com")

	aliceTodo := CreateTodo(t, s, alice.ID, "alice secret", false, "private")
	bobTodo := CreateTodo(t, s, bob.ID, "bob secret", true, "private")

	t.Run("get", func(t *testing.T) {
		_, err := s.GetByID(ctx, alice.ID, bobTodo.ID)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)
	})

	t.Run("update", func(t *testing.T) {
		hijack := *bobTodo
		hijack.UserID = alice.ID
		hijack.Text = "pwned"
		err := s.Update(ctx, &hijack)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)

		got, err := s.GetByID(ctx, bob.ID, bobTodo.ID)
		require.NoError(t, err)
		assert.Equal(t, "bob secret", got.Text)
	})

	t.Run("delete", func(t *testing.T) {
		err := s.Delete(ctx, alice.ID, bobTodo.ID)
		assert.True(t, errors.Is(err, apperror.ErrNotFound), "got %v", err)

		_, err = s.GetByID(ctx, bob.ID, bobTodo.ID)
		assert.NoError(t, err)
	})

	t.Run("find never crosses owners", func(t *testing.T) {
		queries := []string{
			"",
			"text=secret",
			"tags=private",
			"completed=true",
			"text=bob&tags=private&completed=true",
			"text=bob&tags=private&completed=true&strict=true",
			"text=bob&strict=false",
			"strict=banana&tags=private,other",
		}
		for _, q := range queries {
			got := find(t, s, alice.ID, q)
			for _, todo := range got {
				assert.Equal(t, alice.ID, todo.UserID, "query %q leaked %s", q, todo.ID)
			}
			assert.NotContains(t, ids(got), bobTodo.ID, "query %q", q)
		}
		assert.Equal(t, []string{aliceTodo.ID}, ids(find(t, s, alice.ID, "")))
	})
}

// =========================================================================
// SEARCH
// =========================================================================

func testSearch(t *testing.T, newStore NewStore) {
	s := newStore(t)
	u := CreateUser(t, s, "u@example.com")

	milk := CreateTodo(t, s, u.ID, "Buy MILK", false, "Shopping")
	report := CreateTodo(t, s, u.ID, "Write report", true, "work", "urgent")
	percent := CreateTodo(t, s, u.ID, "100% done_ish", false)
	regex := CreateTodo(t, s, u.ID, "a.*b literal", false, "Deep Work")
	accented := CreateTodo(t, s, u.ID, "ÉCOLE meeting", false, "Ünïcode")

	tests := []struct {
		name  string
		query string
		want  []string
	}{
		{"text ignores case", "text=milk", []string{milk.ID}},
		{"text is a substring", "text=epor", []string{report.ID}},
		{"percent is literal", "text=%25", []string{percent.ID}},
		{"underscore is literal", "text=e_i", []string{percent.ID}},
		{"regex metacharacters are literal", "text=a.*b", []string{regex.ID}},
		{"dot does not match any char", "text=a.b", nil},
		{"non-ascii text ignores case", "text=%C3%A9cole", []string{accented.ID}},
		{"tag ignores case", "tags=SHOPPING", []string{milk.ID}},
		{"non-ascii tag ignores case", "tags=%C3%BCn%C3%AFcode", []string{accented.ID}},
		{"tag is exact, not prefix", "tags=shop", nil},
		{"tag with a space", "tags=deep%20work", []string{regex.ID}},
		{"tag does not match a word inside another tag", "tags=work", []string{report.ID}},
		{"any of several tags", "tags=shopping,urgent", []string{milk.ID, report.ID}},
		{"all of several tags", "tags=work,urgent&strict=true", []string{report.ID}},
		{"completed true", "completed=true", []string{report.ID}},
		{"text or completed", "text=milk&completed=true", []string{milk.ID, report.ID}},
		{"text and completed", "text=milk&completed=true&strict=true", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ElementsMatch(t, tt.want, ids(find(t, s, u.ID, tt.query)))
		})
	}
}

// testSearchProperties checks the search contract end to end, from the raw
// query string down to the rows the store returns.
func testSearchProperties(t *testing.T, newStore NewStore) {
	t.Run("empty request returns everything the owner has", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		a := CreateTodo(t, s, u.ID, "buy milk", false)
		b := CreateTodo(t, s, u.ID, "call mom", true, "family")

		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids(find(t, s, u.ID, "")))
		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids(find(t, s, u.ID, "text=%20&tags=,%20,&strict=true")))
	})

	t.Run("one condition ignores strict", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		CreateTodo(t, s, u.ID, "buy milk", false)
		CreateTodo(t, s, u.ID, "call mom", true, "family")
		CreateTodo(t, s, u.ID, "milk the cow", true, "farm", "family")

		for _, q := range []string{"text=milk", "tags=family", "tags=farm", "completed=true", "completed=false"} {
			strict := ids(find(t, s, u.ID, q+"&strict=true"))
			loose := ids(find(t, s, u.ID, q+"&strict=false"))
			assert.ElementsMatch(t, strict, loose, "query %q", q)
			assert.NotEmpty(t, strict, "query %q", q)
		}
	})

	t.Run("strict requires every tag", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		CreateTodo(t, s, u.ID, "buy milk", false, "shopping")
		CreateTodo(t, s, u.ID, "buy milk", false, "urgent")

		assert.Empty(t, find(t, s, u.ID, "text=milk&tags=shopping,urgent&strict=true"))
	})

	t.Run("non-strict accepts any condition", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		a := CreateTodo(t, s, u.ID, "buy milk", false, "shopping")
		b := CreateTodo(t, s, u.ID, "buy milk", false, "urgent")

		assert.ElementsMatch(t, []string{a.ID, b.ID}, ids(find(t, s, u.ID, "text=milk&tags=shopping,urgent&strict=false")))
	})

	t.Run("completed is exact under both modes", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		done := CreateTodo(t, s, u.ID, "done", true)
		open := CreateTodo(t, s, u.ID, "open", false)

		for _, mode := range []string{"", "&strict=true", "&strict=false"} {
			assert.Equal(t, []string{done.ID}, ids(find(t, s, u.ID, "completed=true"+mode)))
			assert.Equal(t, []string{open.ID}, ids(find(t, s, u.ID, "completed=false"+mode)))
		}
	})

	t.Run("malformed strict behaves like non-strict", func(t *testing.T) {
		s := newStore(t)
		u := CreateUser(t, s, "u@example.com")
		CreateTodo(t, s, u.ID, "buy milk", false, "shopping")
		CreateTodo(t, s, u.ID, "walk dog", true, "urgent")
		CreateTodo(t, s, u.ID, "nothing", false)

		base := "text=milk&tags=urgent"
		want := ids(find(t, s, u.ID, base+"&strict=false"))
		assert.Len(t, want, 2)
		assert.ElementsMatch(t, want, ids(find(t, s, u.ID, base+"&strict=banana")))
		assert.ElementsMatch(t, want, ids(find(t, s, u.ID, base)))
	})
}
