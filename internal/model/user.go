package model

import "time"

// User represents a registered account.
//
// Accounts are normally created through /api/register with an email and a
// password. GitHub sign-in is also supported; such users get a GitHubID and
// may have no password at all (PasswordHash is empty), which means password
// login is impossible for them until they set one from the profile page.
//
// PasswordHash is tagged json:"-" so it can never leak into an API response,
// no matter which handler ends up serialising a User.
type User struct {
	ID           string    `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	ProfileImage string    `json:"profileImage,omitempty"` // relative path under the upload dir
	GitHubID     int64     `json:"githubId,omitempty"`     // 0 when the account isn't linked
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}
