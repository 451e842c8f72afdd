package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers malformed or tampered download tokens.
	ErrInvalidToken = errors.New("invalid download token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("download token expired")
)

// DownloadToken is the payload of a signed artifact link.
type DownloadToken struct {
	RunID     string
	Path      string
	ExpiresAt time.Time
}

type downloadClaims struct {
	RunID string `json:"run_id"`
	Path  string `json:"path"`
	jwt.RegisteredClaims
}

// SignedURLSigner creates and validates HS256 download tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Generate returns a signed token for one artifact of a run.
func (s *SignedURLSigner) Generate(runID, relPath string) (string, time.Time, error) {
	if runID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("run id and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl).Truncate(time.Second)
	claims := downloadClaims{
		RunID: runID,
		Path:  relPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   runID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse validates a token. When allowExpired is true the expiry check is skipped.
func (s *SignedURLSigner) Parse(token string, allowExpired bool) (DownloadToken, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithExpirationRequired(),
	}
	if allowExpired {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	var claims downloadClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return DownloadToken{}, ErrTokenExpired
		}
		return DownloadToken{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.RunID == "" || claims.Path == "" || claims.ExpiresAt == nil {
		return DownloadToken{}, fmt.Errorf("%w: missing claims", ErrInvalidToken)
	}
	return DownloadToken{RunID: claims.RunID, Path: claims.Path, ExpiresAt: claims.ExpiresAt.Time}, nil
}
