// Package token mints and verifies the two token forms the gateway hands out
// at login: a signed, self-contained token carrying claims and expiry, and an
// opaque session token used purely as a session store lookup key.
//
// The two forms have independent lifetimes. The signed token expires a fixed
// interval after issuance; the session behind the opaque token expires after
// idle time since last access. Neither is synchronized with the other.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/odoogate/odoogate/verifier"
)

// DefaultTTL is the signed token lifetime.
const DefaultTTL = time.Hour

// Sentinel errors returned by Verify.
var (
	// ErrTokenExpired indicates a structurally valid token whose expiry
	// has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid indicates a token that fails signature or structural
	// checks.
	ErrTokenInvalid = errors.New("token invalid")
)

// Claims are the payload of the signed token form.
type Claims struct {
	UID   int64  `json:"uid"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Issuer mints both token forms.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// Option configures an Issuer.
type Option func(*Issuer)

// WithTTL overrides the signed token lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(i *Issuer) { i.ttl = ttl }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(i *Issuer) { i.now = now }
}

// NewIssuer creates an issuer signing with the given process-wide secret.
func NewIssuer(secret []byte, opts ...Option) (*Issuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is required")
	}

	i := &Issuer{
		secret: secret,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}

	return i, nil
}

// Issue mints both token forms for a verified subject. No validation happens
// here: verification already happened upstream, and the caller is responsible
// for storing the session behind the opaque token.
func (i *Issuer) Issue(subject verifier.Subject) (signed, opaque string, err error) {
	issuedAt := i.now()

	claims := Claims{
		UID:   subject.ID,
		Email: subject.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(i.ttl)),
		},
	}

	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", "", fmt.Errorf("sign token: %w", err)
	}

	opaque, err = newOpaqueToken(issuedAt)
	if err != nil {
		return "", "", err
	}

	return signed, opaque, nil
}

// Verify checks a signed token's signature and expiry and returns its claims.
// Fails closed: anything that is not a well-formed, correctly signed,
// unexpired token is rejected.
func (i *Issuer) Verify(tokenString string) (*Claims, error) {
	claims := &Claims{}

	_, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (any, error) { return i.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	return claims, nil
}

// newOpaqueToken generates a high-entropy session key. The time component
// exists only to make keys sortable in debug output; unpredictability comes
// from the UUID and the trailing random block.
func newOpaqueToken(now time.Time) (string, error) {
	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}

	return strconv.FormatInt(now.UnixNano(), 36) + "." +
		uuid.NewString() + "." +
		base64.RawURLEncoding.EncodeToString(random), nil
}
