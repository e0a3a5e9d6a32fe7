package token

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestCodec(t *testing.T, clock *fakeClock) *Codec {
	t.Helper()
	opts := []Option{}
	if clock != nil {
		opts = append(opts, WithClock(clock.Now))
	}
	c, err := NewCodec([]byte("test-secret"), "HS256", opts...)
	require.NoError(t, err)
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)

	tok, err := c.Encode(Claims{ClaimSubject: "42", "scope": "user"}, 15*time.Minute)
	require.NoError(t, err)

	claims, err := c.Decode(tok)
	require.NoError(t, err)

	assert.Equal(t, "42", claims[ClaimSubject])
	assert.Equal(t, "user", claims["scope"])

	sub, err := Subject(claims)
	require.NoError(t, err)
	assert.Equal(t, "42", sub)

	exp, err := ExpiresAt(claims)
	require.NoError(t, err)
	assert.True(t, exp.After(clock.Now()))
	assert.Equal(t, clock.Now().Add(15*time.Minute).Unix(), exp.Unix())
}

func TestDecodeExpired(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)

	tok, err := c.Encode(Claims{ClaimSubject: "7"}, time.Minute)
	require.NoError(t, err)

	clock.Advance(59 * time.Second)
	_, err = c.Decode(tok)
	require.NoError(t, err)

	clock.Advance(time.Second)
	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestEncodeProducesDistinctTokens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)

	first, err := c.Encode(Claims{ClaimSubject: "7"}, time.Minute)
	require.NoError(t, err)
	second, err := c.Encode(Claims{ClaimSubject: "7"}, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	clock.Advance(time.Second)
	third, err := c.Encode(Claims{ClaimSubject: "7"}, time.Minute)
	require.NoError(t, err)
	assert.NotEqual(t, first, third)
}

func TestEncodeOverridesReservedClaims(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCodec(t, clock)

	tok, err := c.Encode(Claims{ClaimSubject: "7", ClaimExpiresAt: int64(4_000_000_000)}, time.Minute)
	require.NoError(t, err)

	claims, err := c.Decode(tok)
	require.NoError(t, err)
	exp, err := ExpiresAt(claims)
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Minute).Unix(), exp.Unix())
}

func TestEncodeRejectsNonPositiveTTL(t *testing.T) {
	c := newTestCodec(t, nil)
	_, err := c.Encode(Claims{ClaimSubject: "7"}, 0)
	assert.Error(t, err)
}

func TestDecodeTamperedToken(t *testing.T) {
	c := newTestCodec(t, nil)

	tok, err := c.Encode(Claims{ClaimSubject: "42"}, time.Hour)
	require.NoError(t, err)

	for i := 0; i < len(tok); i++ {
		b := []byte(tok)
		b[i] ^= 0x01
		_, err := c.Decode(string(b))
		assert.ErrorIs(t, err, ErrInvalidToken, "flipped byte %d", i)
	}
}

func TestDecodeWrongSecret(t *testing.T) {
	c := newTestCodec(t, nil)
	other, err := NewCodec([]byte("other-secret"), "HS256")
	require.NoError(t, err)

	tok, err := other.Encode(Claims{ClaimSubject: "42"}, time.Hour)
	require.NoError(t, err)

	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeWrongAlgorithm(t *testing.T) {
	c := newTestCodec(t, nil)
	hs512, err := NewCodec([]byte("test-secret"), "HS512")
	require.NoError(t, err)

	tok, err := hs512.Encode(Claims{ClaimSubject: "42"}, time.Hour)
	require.NoError(t, err)

	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeUnsignedToken(t *testing.T) {
	c := newTestCodec(t, nil)

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		ClaimSubject:   "42",
		ClaimExpiresAt: time.Now().Add(time.Hour).Unix(),
	})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeMissingExpiry(t *testing.T) {
	c := newTestCodec(t, nil)

	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{ClaimSubject: "42"}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	_, err = c.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestDecodeMalformed(t *testing.T) {
	c := newTestCodec(t, nil)

	for _, in := range []string{"", "not.a.jwt", "abc", strings.Repeat(".", 3)} {
		_, err := c.Decode(in)
		assert.ErrorIs(t, err, ErrInvalidToken, "input %q", in)
	}
}

func TestSubjectMissing(t *testing.T) {
	_, err := Subject(Claims{})
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = Subject(Claims{ClaimSubject: 42})
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewCodecValidation(t *testing.T) {
	_, err := NewCodec(nil, "HS256")
	assert.ErrorIs(t, err, ErrEmptySecret)

	_, err = NewCodec([]byte("s"), "RS256")
	assert.Error(t, err)
}
