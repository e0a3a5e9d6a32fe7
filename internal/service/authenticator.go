package service

import (
	"context"
	"fmt"

	"github.com/kube-rca/auth/internal/hasher"
	"github.com/kube-rca/auth/internal/model"
)

// Authenticator checks credentials. It never writes to the store.
type Authenticator struct {
	users  UserStore
	hasher hasher.Hasher
	// verified against when the email is unknown so both failure paths
	// cost one hash comparison
	dummyDigest string
}

func NewAuthenticator(users UserStore, h hasher.Hasher) (*Authenticator, error) {
	dummy, err := h.Hash("timing-equaliser")
	if err != nil {
		return nil, fmt.Errorf("hash dummy digest: %w", err)
	}
	return &Authenticator{users: users, hasher: h, dummyDigest: dummy}, nil
}

// AuthenticateByPassword returns the user for a matching email/password pair.
// Unknown email and wrong password both yield ErrIncorrectCredentials.
func (a *Authenticator) AuthenticateByPassword(ctx context.Context, email, password string) (*model.User, error) {
	user, err := lookup(a.users.GetUserByEmail(ctx, email))
	if err != nil {
		return nil, err
	}
	if user == nil {
		a.hasher.Verify(password, a.dummyDigest)
		return nil, ErrIncorrectCredentials
	}
	if !a.hasher.Verify(password, user.PasswordHash) {
		return nil, ErrIncorrectCredentials
	}
	return user, nil
}

// AuthenticateRefresh reports whether presented matches the refresh token
// hash stored for userID.
func (a *Authenticator) AuthenticateRefresh(ctx context.Context, userID int64, presented string) (bool, error) {
	user, err := lookup(a.users.GetUserByID(ctx, userID))
	if err != nil {
		return false, err
	}
	if user == nil || user.RefreshTokenHash == nil || *user.RefreshTokenHash == "" {
		return false, nil
	}
	return a.hasher.Verify(presented, *user.RefreshTokenHash), nil
}
