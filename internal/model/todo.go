// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, composed rather than inherited.
package model

import "time"

// Todo is a single task on a user's list.
//
// Tags keep the case the user typed them in. Every comparison against a tag
// (search, filtering) is case-insensitive, so "Work" and "work" are the same
// tag for matching purposes but "Work" is what gets displayed.
//
// UserID is the owner. It is set once at creation and every query the
// application runs is scoped to it.
type Todo struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Tags      []string  `json:"tags"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
