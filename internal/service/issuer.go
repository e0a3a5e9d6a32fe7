package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/kube-rca/auth/internal/hasher"
	"github.com/kube-rca/auth/internal/token"
)

// claimType separates access from refresh tokens; both are signed with the
// same secret and would otherwise be interchangeable.
const (
	claimType   = "typ"
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

type Issuer struct {
	codec      TokenCodec
	hasher     hasher.Hasher
	users      UserStore
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(codec TokenCodec, h hasher.Hasher, users UserStore, accessTTL, refreshTTL time.Duration) (*Issuer, error) {
	if accessTTL <= 0 || refreshTTL <= accessTTL {
		return nil, fmt.Errorf("refresh ttl (%s) must exceed access ttl (%s)", refreshTTL, accessTTL)
	}
	return &Issuer{
		codec:      codec,
		hasher:     h,
		users:      users,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}, nil
}

func (i *Issuer) IssueAccessToken(userID int64) (string, error) {
	return i.codec.Encode(subjectClaims(userID, typeAccess), i.accessTTL)
}

// IssueSession mints an access/refresh pair and overwrites the stored refresh
// token hash, so any previously issued refresh token stops verifying.
func (i *Issuer) IssueSession(ctx context.Context, userID int64) (TokenPair, error) {
	access, err := i.IssueAccessToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.codec.Encode(subjectClaims(userID, typeRefresh), i.refreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	hash, err := i.hasher.Hash(refresh)
	if err != nil {
		return TokenPair{}, fmt.Errorf("hash refresh token: %w", err)
	}
	if err := i.users.SetRefreshTokenHash(ctx, userID, hash); err != nil {
		return TokenPair{}, storeErr(err)
	}

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

func subjectClaims(userID int64, typ string) token.Claims {
	return token.Claims{
		token.ClaimSubject: strconv.FormatInt(userID, 10),
		claimType:          typ,
	}
}

// subjectID extracts the user id from claims of the expected type.
func subjectID(claims token.Claims, typ string) (int64, bool) {
	if t, _ := claims[claimType].(string); t != typ {
		return 0, false
	}
	sub, err := token.Subject(claims)
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(sub, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
