package mongo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/tagged-todos/internal/search"
)

func TestFilterDoc(t *testing.T) {
	tests := []struct {
		name string
		pred search.Predicate
		want bson.D
	}{
		{
			name: "true matches everything",
			pred: search.True{},
			want: bson.D{},
		},
		{
			name: "owner",
			pred: search.Owner{ID: "u1"},
			want: bson.D{{Key: "userId", Value: "u1"}},
		},
		{
			name: "text is folded and quoted",
			pred: search.TextContains{Pattern: "A.*B"},
			want: bson.D{{Key: "textFolded", Value: bson.D{{Key: "$regex", Value: `a\.\*b`}}}},
		},
		{
			name: "tag is folded equality",
			pred: search.HasTag{Tag: "Work"},
			want: bson.D{{Key: "tagsFolded", Value: "work"}},
		},
		{
			name: "completed",
			pred: search.CompletedIs{Value: false},
			want: bson.D{{Key: "completed", Value: false}},
		},
		{
			name: "empty or matches nothing",
			pred: search.Or{},
			want: bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}},
		},
		{
			name: "strict build",
			pred: search.Build("u1", search.Request{Tags: []string{"a", "b"}, Strict: true}),
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "userId", Value: "u1"}},
				bson.D{{Key: "$and", Value: bson.A{
					bson.D{{Key: "tagsFolded", Value: "a"}},
					bson.D{{Key: "tagsFolded", Value: "b"}},
				}}},
			}}},
		},
		{
			name: "non-strict build groups tags",
			pred: search.Build("u1", search.Request{Text: "x", Tags: []string{"a", "b"}}),
			want: bson.D{{Key: "$and", Value: bson.A{
				bson.D{{Key: "userId", Value: "u1"}},
				bson.D{{Key: "$or", Value: bson.A{
					bson.D{{Key: "textFolded", Value: bson.D{{Key: "$regex", Value: "x"}}}},
					bson.D{{Key: "$or", Value: bson.A{
						bson.D{{Key: "tagsFolded", Value: "a"}},
						bson.D{{Key: "tagsFolded", Value: "b"}},
					}}},
				}}},
			}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := filterDoc(tt.pred)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
