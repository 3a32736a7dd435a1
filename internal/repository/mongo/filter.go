package mongo

import (
	"fmt"
	"regexp"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/sakif/tagged-todos/internal/search"
)

// filterDoc translates a search predicate into a MongoDB query document.
//
//	Owner        { userId: id }
//	TextContains { textFolded: { $regex: QuoteMeta(fold(pattern)) } }
//	HasTag       { tagsFolded: fold(tag) }   array membership
//	CompletedIs  { completed: v }
//	And / Or     { $and: [...] } / { $or: [...] }
//
// The search text is escaped with regexp.QuoteMeta, so "a.*b" finds the
// literal characters a.*b and can never turn into a pathological pattern.
func filterDoc(p search.Predicate) (bson.D, error) {
	switch p := p.(type) {
	case search.True:
		return bson.D{}, nil
	case search.Owner:
		return bson.D{{Key: "userId", Value: p.ID}}, nil
	case search.TextContains:
		return bson.D{{Key: "textFolded", Value: bson.D{
			{Key: "$regex", Value: regexp.QuoteMeta(search.Fold(p.Pattern))},
		}}}, nil
	case search.HasTag:
		return bson.D{{Key: "tagsFolded", Value: search.Fold(p.Tag)}}, nil
	case search.CompletedIs:
		return bson.D{{Key: "completed", Value: p.Value}}, nil
	case search.And:
		if len(p.Terms) == 0 {
			return bson.D{}, nil
		}
		terms, err := filterList(p.Terms)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$and", Value: terms}}, nil
	case search.Or:
		// $or rejects an empty array; match nothing explicitly instead.
		if len(p.Terms) == 0 {
			return bson.D{{Key: "_id", Value: bson.D{{Key: "$exists", Value: false}}}}, nil
		}
		terms, err := filterList(p.Terms)
		if err != nil {
			return nil, err
		}
		return bson.D{{Key: "$or", Value: terms}}, nil
	default:
		return nil, fmt.Errorf("unsupported predicate %T", p)
	}
}

func filterList(preds []search.Predicate) (bson.A, error) {
	out := make(bson.A, 0, len(preds))
	for _, p := range preds {
		doc, err := filterDoc(p)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}
