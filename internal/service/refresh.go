package service

import (
	"context"
	"fmt"
	"log/slog"
)

// RefreshCoordinator turns a presented refresh token into a new access token:
//
//	PRESENTED -> DECODED -> VALIDATED -> REISSUED
//
// Any failing step ends in REJECTED with ErrInvalidCredentials. Nothing is
// kept between calls.
type RefreshCoordinator struct {
	codec  TokenCodec
	authn  *Authenticator
	issuer *Issuer
	rotate bool
	log    *slog.Logger
}

func NewRefreshCoordinator(codec TokenCodec, authn *Authenticator, issuer *Issuer, rotate bool, log *slog.Logger) *RefreshCoordinator {
	return &RefreshCoordinator{codec: codec, authn: authn, issuer: issuer, rotate: rotate, log: log}
}

// Refresh returns a new access token. With rotation enabled it also returns a
// new refresh token and the presented one stops verifying.
func (r *RefreshCoordinator) Refresh(ctx context.Context, presented string) (TokenPair, error) {
	claims, err := r.codec.Decode(presented)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}

	userID, ok := subjectID(claims, typeRefresh)
	if !ok {
		r.log.Debug("refresh rejected", "reason", "claims")
		return TokenPair{}, ErrInvalidCredentials
	}

	valid, err := r.authn.AuthenticateRefresh(ctx, userID, presented)
	if err != nil {
		return TokenPair{}, err
	}
	if !valid {
		r.log.Info("refresh rejected", "user_id", userID, "reason", "hash mismatch")
		return TokenPair{}, ErrInvalidCredentials
	}

	if r.rotate {
		return r.issuer.IssueSession(ctx, userID)
	}

	access, err := r.issuer.IssueAccessToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access}, nil
}
