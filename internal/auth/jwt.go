package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier checks bearer tokens and extracts the principal. Tokens are RS256
// when a public key is configured, HS256 with a shared secret otherwise.
type Verifier struct {
	pub    *rsa.PublicKey
	secret []byte
	issuer string
}

type VerifierConfig struct {
	PublicKeyPath string
	Secret        string
	Issuer        string
}

func NewVerifier(cfg VerifierConfig) (*Verifier, error) {
	v := &Verifier{secret: []byte(cfg.Secret), issuer: cfg.Issuer}
	if cfg.PublicKeyPath != "" {
		b, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read jwt public key: %w", err)
		}
		pub, err := jwt.ParseRSAPublicKeyFromPEM(b)
		if err != nil {
			return nil, fmt.Errorf("parse jwt public key: %w", err)
		}
		v.pub = pub
	}
	if v.pub == nil && len(v.secret) == 0 {
		return nil, errors.New("jwt: a public key or a secret is required")
	}
	return v, nil
}

// Verify returns the principal named by a valid token.
func (v *Verifier) Verify(token string) (Principal, error) {
	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.pub != nil {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}))
	} else {
		opts = append(opts, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	}

	t, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if v.pub != nil {
			return v.pub, nil
		}
		return v.secret, nil
	}, opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("%w: invalid claims", ErrUnauthenticated)
	}
	// try common claim keys
	for _, key := range []string{"user_id", "user_uuid", "sub"} {
		if s, ok := claims[key].(string); ok && s != "" {
			return Principal{ID: s}, nil
		}
	}
	return Principal{}, fmt.Errorf("%w: user id not found in token", ErrUnauthenticated)
}

// Sign issues an HS256 token for userID. Only available with a shared secret;
// used by the dev token command and tests.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", errors.New("jwt: signing requires a shared secret")
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"iat":     now.Unix(),
		"exp":     now.Add(ttl).Unix(),
	}
	if v.issuer != "" {
		claims["iss"] = v.issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
