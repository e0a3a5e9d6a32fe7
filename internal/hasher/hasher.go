// Package hasher provides one-way salted digests for passwords and refresh
// tokens.
//
// Digests are self-describing: Verify picks the algorithm from the digest
// prefix, so switching HASH_ALGORITHM keeps older digests verifiable.
package hasher

import (
	"errors"
	"fmt"
	"strings"
)

const (
	AlgorithmBcrypt   = "bcrypt"
	AlgorithmArgon2id = "argon2id"
)

var ErrUnsupportedAlgorithm = errors.New("unsupported hash algorithm")

// Hasher hashes secrets and verifies candidates against stored digests.
// Verify never returns an error: a malformed digest simply does not match.
type Hasher interface {
	Hash(secret string) (string, error)
	Verify(candidate, digest string) bool
}

// Auto hashes with the configured algorithm and verifies any known digest.
type Auto struct {
	primary Hasher
	bcrypt  *Bcrypt
	argon   *Argon2id
}

func New(algorithm string, bcryptCost int) (*Auto, error) {
	bc, err := NewBcrypt(bcryptCost)
	if err != nil {
		return nil, err
	}
	ar, err := NewArgon2id(DefaultArgon2Params())
	if err != nil {
		return nil, err
	}

	a := &Auto{bcrypt: bc, argon: ar}
	switch algorithm {
	case AlgorithmBcrypt, "":
		a.primary = bc
	case AlgorithmArgon2id:
		a.primary = ar
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	return a, nil
}

func (a *Auto) Hash(secret string) (string, error) {
	return a.primary.Hash(secret)
}

func (a *Auto) Verify(candidate, digest string) bool {
	switch {
	case strings.HasPrefix(digest, argon2Prefix):
		return a.argon.Verify(candidate, digest)
	case strings.HasPrefix(digest, "$2"):
		return a.bcrypt.Verify(candidate, digest)
	default:
		return false
	}
}
