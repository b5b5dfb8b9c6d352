package auth

import (
	"context"
	"errors"

	"golang.org/x/crypto/bcrypt"

	"github.com/whisperbox/backend/internal/models"
	"github.com/whisperbox/backend/internal/store"
)

// Credential verification failure kinds. All three mean the sign-in is
// rejected; the distinction only drives the error message shown.
var (
	ErrUserNotFound = errors.New("no user found with this identifier")
	ErrUnverified   = errors.New("account not verified")
	ErrBadPassword  = errors.New("incorrect password")
)

// UserFinder looks up a user by email or username.
type UserFinder interface {
	FindByIdentifier(ctx context.Context, identifier string) (*models.User, error)
}

// Verifier checks an identifier/password pair against stored users.
type Verifier struct {
	users UserFinder
}

func NewVerifier(users UserFinder) *Verifier {
	return &Verifier{users: users}
}

// Verify returns the matched user record on success. The lookup is read-only
// and repeated calls with the same inputs give the same result.
func (v *Verifier) Verify(ctx context.Context, identifier, password string) (*models.User, error) {
	user, err := v.users.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	if !user.IsVerified {
		return nil, ErrUnverified
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, ErrBadPassword
	}
	return user, nil
}
