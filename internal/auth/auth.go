package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
	ErrNoBearer     = errors.New("missing bearer token")
)

const issuer = "ideaboard"

// UserIDLength matches the length of the anonymous ids the browser boards
// were given, so ids from both sources can share one board.
const UserIDLength = 28

// Service issues anonymous identities. Tokens are self-contained, so signing
// in needs no storage and any server sharing the secret accepts them.
type Service struct {
	key      []byte
	tokenTTL time.Duration
	now      func() time.Time
}

type Verified struct {
	UserID    string
	ExpiresAt time.Time
}

type Credentials struct {
	UserID    string    `json:"user_id"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func NewService(secret string, tokenTTL time.Duration) (*Service, error) {
	key, err := deriveKey(secret)
	if err != nil {
		return nil, err
	}
	return &Service{key: key, tokenTTL: tokenTTL, now: time.Now}, nil
}

func deriveKey(secret string) ([]byte, error) {
	if secret == "" {
		return nil, errors.New("empty token secret")
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte(issuer), []byte("anonymous session token v1"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// SignInAnonymously creates a fresh user id and a token for it.
func (s *Service) SignInAnonymously(ctx context.Context) (Credentials, error) {
	userID, err := randomID(UserIDLength)
	if err != nil {
		return Credentials{}, err
	}
	return s.issue(userID)
}

// Refresh extends a still-valid token. The user id never changes for the
// life of a session.
func (s *Service) Refresh(ctx context.Context, bearer string) (Credentials, error) {
	v, err := s.Authenticate(ctx, bearer)
	if err != nil {
		return Credentials{}, err
	}
	return s.issue(v.UserID)
}

func (s *Service) Authenticate(ctx context.Context, bearer string) (Verified, error) {
	if bearer == "" {
		return Verified{}, ErrNoBearer
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(bearer, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return s.key, nil
		},
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Verified{}, ErrTokenExpired
		}
		return Verified{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Verified{}, ErrInvalidToken
	}
	v := Verified{UserID: claims.Subject}
	if claims.ExpiresAt != nil {
		v.ExpiresAt = claims.ExpiresAt.Time
	}
	return v, nil
}

func (s *Service) issue(userID string) (Credentials, error) {
	now := s.now()
	expires := now.Add(s.tokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{UserID: userID, Token: signed, ExpiresAt: expires.Truncate(time.Second)}, nil
}

// BearerToken extracts the token from an Authorization header.
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func randomID(length int) (string, error) {
	b := make([]byte, (length+1)/2)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b)[:length], nil
}
