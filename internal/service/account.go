package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/sakif/tagged-todos/internal/apperror"
	"github.com/sakif/tagged-todos/internal/auth"
	"github.com/sakif/tagged-todos/internal/model"
	"github.com/sakif/tagged-todos/internal/repository"
)

const MaxUsernameLength = 50

// invalidCredentials is the one message every failed login gets, whether
// the email is unknown or the password is wrong. Distinct messages would
// let anyone probe which emails have accounts.
const invalidCredentials = "invalid email or password"

// AvatarRemover deletes a stored profile image by the name kept in
// model.User.ProfileImage. upload.AvatarStore implements it.
type AvatarRemover interface {
	Remove(name string) error
}

// AccountService handles registration, login and the user's profile.
//
//	AccountHandler (HTTP) → AccountService → UserRepository (store)
//	                                       ↘ TokenService / PasswordService
type AccountService struct {
	users     repository.UserRepository
	tokens    *auth.TokenService
	passwords *auth.PasswordService
	avatars   AvatarRemover
	logger    *slog.Logger
}

// NewAccountService wires an AccountService. avatars may be nil, in which
// case replaced profile images are left on disk.
func NewAccountService(
	users repository.UserRepository,
	tokens *auth.TokenService,
	passwords *auth.PasswordService,
	avatars AvatarRemover,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		tokens:    tokens,
		passwords: passwords,
		avatars:   avatars,
		logger:    logger,
	}
}

// AuthResult bundles the user and a freshly issued token so the handler
// can respond (and set the cookie) in one step.
type AuthResult struct {
	User  *model.User
	Token string
}

// Register creates a password account and signs the user in.
func (s *AccountService) Register(ctx context.Context, username, email, password string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, apperror.ValidationFailed("username", "username is required")
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return nil, apperror.ValidationFailed("username",
			fmt.Sprintf("username must be %d characters or less", MaxUsernameLength))
	}

	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	// A friendly early check. The unique index is what actually guarantees
	// uniqueness; a concurrent registration still ends in Conflict below.
	if _, err := s.users.GetUserByEmail(ctx, email); err == nil {
		return nil, apperror.Conflict("user", "email already registered")
	} else if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/account: checking email: %w", err)
	}

	hash, err := s.passwords.Hash(password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: creating user: %w", err)
	}

	s.logger.Info("user registered", slog.String("userID", user.ID))
	return s.issue(user)
}

// Login checks an email and password and issues a token.
func (s *AccountService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, apperror.Unauthorized(invalidCredentials)
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/account: looking up user: %w", err)
	}

	if err := s.passwords.Verify(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Info("failed login", slog.String("userID", user.ID))
			return nil, apperror.Unauthorized(invalidCredentials)
		}
		return nil, fmt.Errorf("service/account: verifying password: %w", err)
	}

	return s.issue(user)
}

// LoginOrRegisterGitHub handles the GitHub OAuth callback.
//
// Resolution order:
//  1. an account already linked to this GitHub ID → sign in
//  2. an account with the same email → link it, then sign in
//  3. otherwise create a new, password-less account
//
// Users who hide their email on GitHub get the noreply address GitHub
// itself uses for them, so every account still has a unique email.
func (s *AccountService) LoginOrRegisterGitHub(ctx context.Context, gh *auth.GitHubUser) (*AuthResult, error) {
	if gh == nil || gh.ID == 0 {
		return nil, fmt.Errorf("service/account: GitHub user must not be empty")
	}

	user, err := s.users.GetUserByGitHubID(ctx, gh.ID)
	switch {
	case err == nil:
		return s.issue(user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/account: looking up GitHub user %d: %w", gh.ID, err)
	}

	email := strings.ToLower(strings.TrimSpace(gh.Email))
	if email == "" {
		email = fmt.Sprintf("%d+%s@users.noreply.github.com", gh.ID, strings.ToLower(gh.Login))
	}

	user, err = s.users.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		user.GitHubID = gh.ID
		if err := s.users.UpdateUser(ctx, user); err != nil {
			return nil, fmt.Errorf("service/account: linking GitHub user %d: %w", gh.ID, err)
		}
		s.logger.Info("GitHub account linked", slog.String("userID", user.ID), slog.String("login", gh.Login))
		return s.issue(user)
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("service/account: looking up email: %w", err)
	}

	first, last, _ := strings.Cut(strings.TrimSpace(gh.Name), " ")
	user = &model.User{
		Username:  gh.Login,
		Email:     email,
		FirstName: first,
		LastName:  strings.TrimSpace(last),
		GitHubID:  gh.ID,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: creating GitHub user %d: %w", gh.ID, err)
	}

	s.logger.Info("user registered via GitHub", slog.String("userID", user.ID), slog.String("login", gh.Login))
	return s.issue(user)
}

// Profile returns the user for the given internal ID.
func (s *AccountService) Profile(ctx context.Context, userID string) (*model.User, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required")
	}
	return s.users.GetUserByID(ctx, userID)
}

// ProfileUpdate lists the profile fields a request may change. nil means
// "leave as is". ProfileImage is the stored name of an already-saved upload.
type ProfileUpdate struct {
	FirstName    *string
	LastName     *string
	Email        *string
	Password     *string
	ProfileImage *string
}

// UpdateProfile applies upd to the user's account.
//
// A new email must not belong to another account (409). A new password is
// re-hashed. When the profile image is replaced, the previous file is
// removed once the update is saved; failing to remove it is only logged.
func (s *AccountService) UpdateProfile(ctx context.Context, userID string, upd ProfileUpdate) (*model.User, error) {
	user, err := s.Profile(ctx, userID)
	if err != nil {
		return nil, err
	}

	if upd.FirstName != nil {
		user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		user.LastName = strings.TrimSpace(*upd.LastName)
	}

	if upd.Email != nil {
		email, err := normalizeEmail(*upd.Email)
		if err != nil {
			return nil, err
		}
		if email != user.Email {
			if other, err := s.users.GetUserByEmail(ctx, email); err == nil && other.ID != user.ID {
				return nil, apperror.Conflict("user", "email already in use")
			} else if err != nil && !errors.Is(err, apperror.ErrNotFound) {
				return nil, fmt.Errorf("service/account: checking email: %w", err)
			}
			user.Email = email
		}
	}

	if upd.Password != nil {
		hash, err := s.passwords.Hash(*upd.Password)
		if err != nil {
			return nil, err
		}
		user.PasswordHash = hash
	}

	previousImage := user.ProfileImage
	if upd.ProfileImage != nil {
		user.ProfileImage = *upd.ProfileImage
	}

	if err := s.users.UpdateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("service/account: updating user %s: %w", user.ID, err)
	}

	if s.avatars != nil && previousImage != "" && previousImage != user.ProfileImage {
		if err := s.avatars.Remove(previousImage); err != nil {
			s.logger.Warn("failed to remove old profile image",
				slog.String("userID", user.ID),
				slog.String("image", previousImage),
				slog.String("error", err.Error()),
			)
		}
	}

	s.logger.Info("profile updated", slog.String("userID", user.ID))
	return user, nil
}

func (s *AccountService) issue(user *model.User) (*AuthResult, error) {
	token, err := s.tokens.Generate(user.ID)
	if err != nil {
		return nil, fmt.Errorf("service/account: generating token for user %s: %w", user.ID, err)
	}
	return &AuthResult{User: user, Token: token}, nil
}

// normalizeEmail trims and lower-cases an address and checks it is a bare
// address (no display name).
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperror.ValidationFailed("email", "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperror.ValidationFailed("email", "invalid email format")
	}
	return email, nil
}
