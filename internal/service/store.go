package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kube-rca/auth/internal/db"
	"github.com/kube-rca/auth/internal/model"
	"github.com/kube-rca/auth/internal/token"
)

// UserStore is implemented by db.Postgres and db.MemoryStore.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, userID int64) (*model.User, error)
	CreateUser(ctx context.Context, email, passwordHash string) (*model.User, error)
	SetRefreshTokenHash(ctx context.Context, userID int64, hash string) error
}

type TokenCodec interface {
	Encode(claims token.Claims, ttl time.Duration) (string, error)
	Decode(tokenStr string) (token.Claims, error)
}

type LoginLimiter interface {
	Allow(ctx context.Context, email string) (bool, error)
	RecordFailure(ctx context.Context, email string) error
	Reset(ctx context.Context, email string) error
}

// lookup maps store errors: not found becomes (nil, nil), anything else is
// ErrStoreUnavailable.
func lookup(user *model.User, err error) (*model.User, error) {
	if err == nil {
		return user, nil
	}
	if errors.Is(err, db.ErrNotFound) {
		return nil, nil
	}
	return nil, storeErr(err)
}

func storeErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}
