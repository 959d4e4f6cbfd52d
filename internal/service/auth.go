// Package service contains application services for accounts, the activity ledger and dashboards.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	pkgcrypto "github.com/and161185/carbon-tracker/internal/crypto"
	"github.com/and161185/carbon-tracker/internal/errs"
	"github.com/and161185/carbon-tracker/internal/model"
	"github.com/and161185/carbon-tracker/internal/repository"
	"github.com/gofrs/uuid/v5"
	"github.com/golang-jwt/jwt/v5"
)

// Registration limits.
const (
	minUsernameLen = 3
	maxUsernameLen = 50
	minPasswordLen = 6
	maxPasswordLen = 72 // bcrypt input limit, bytes
)

// AuthService defines account and token operations.
type AuthService interface {
	// Register creates a new user and signs them in.
	Register(ctx context.Context, username, email, password string) (user model.User, tokens model.Tokens, err error)
	// Login authenticates by username or email.
	Login(ctx context.Context, login, password string) (tokens model.Tokens, user model.User, err error)
	// ParseToken verifies an access token and returns its subject.
	ParseToken(token string) (uuid.UUID, error)
	// Me returns the caller's current footprint.
	Me(ctx context.Context, userID uuid.UUID) (model.Footprint, error)
}

type AuthServiceImpl struct {
	users     repository.UserRepository
	signKey   []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewAuthService constructs AuthService with required dependencies.
func NewAuthService(users repository.UserRepository, signKey []byte, issuer string, accessTTL time.Duration) *AuthServiceImpl {
	return &AuthServiceImpl{users: users, signKey: signKey, issuer: issuer, accessTTL: accessTTL, now: time.Now}
}

// Register validates input, stores a bcrypt hash and issues a token for the new account.
func (s *AuthServiceImpl) Register(ctx context.Context, username, email, password string) (model.User, model.Tokens, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	if n := utf8.RuneCountInString(username); n < minUsernameLen || n > maxUsernameLen {
		return model.User{}, model.Tokens{}, fmt.Errorf("%w: username must be %d-%d characters",
			errs.ErrInvalidCredentials, minUsernameLen, maxUsernameLen)
	}
	if !strings.Contains(email, "@") {
		return model.User{}, model.Tokens{}, fmt.Errorf("%w: email is malformed", errs.ErrInvalidCredentials)
	}
	if len(password) < minPasswordLen {
		return model.User{}, model.Tokens{}, fmt.Errorf("%w: password must be at least %d characters",
			errs.ErrInvalidCredentials, minPasswordLen)
	}
	if len(password) > maxPasswordLen {
		return model.User{}, model.Tokens{}, fmt.Errorf("%w: password must be at most %d bytes",
			errs.ErrInvalidCredentials, maxPasswordLen)
	}

	uid, err := uuid.NewV4()
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	pwdHash, err := pkgcrypto.HashPassword([]byte(password))
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	u := &model.User{
		ID:        uid,
		Username:  username,
		Email:     email,
		PwdHash:   pwdHash,
		CreatedAt: s.now().UTC(),
		Footprint: model.Footprint{UserID: uid, Username: username},
	}
	if err := s.users.Create(ctx, u); err != nil {
		return model.User{}, model.Tokens{}, persistence(err)
	}

	tokens, err := s.issueAccessToken(uid)
	if err != nil {
		return model.User{}, model.Tokens{}, err
	}
	return *u, tokens, nil
}

// Login authenticates the user. Unknown logins and wrong passwords are indistinguishable.
func (s *AuthServiceImpl) Login(ctx context.Context, login, password string) (model.Tokens, model.User, error) {
	u, err := s.users.GetByLogin(ctx, strings.TrimSpace(login))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return model.Tokens{}, model.User{}, errs.ErrUnauthorized
		}
		return model.Tokens{}, model.User{}, persistence(err)
	}
	if !pkgcrypto.VerifyPassword([]byte(password), u.PwdHash) {
		return model.Tokens{}, model.User{}, errs.ErrUnauthorized
	}

	tokens, err := s.issueAccessToken(u.ID)
	if err != nil {
		return model.Tokens{}, model.User{}, err
	}
	return tokens, *u, nil
}

// issueAccessToken creates a signed HS256 JWT for the given subject.
func (s *AuthServiceImpl) issueAccessToken(userID uuid.UUID) (model.Tokens, error) {
	now := s.now()
	exp := now.Add(s.accessTTL)
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		Issuer:    s.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(s.signKey)
	if err != nil {
		return model.Tokens{}, err
	}
	return model.Tokens{AccessToken: signed, ExpiresAt: exp}, nil
}

// ParseToken validates signature, expiry and issuer. Any failure is ErrUnauthorized.
func (s *AuthServiceImpl) ParseToken(token string) (uuid.UUID, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.signKey, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return uuid.Nil, errs.ErrUnauthorized
	}
	id, err := uuid.FromString(claims.Subject)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errs.ErrUnauthorized
	}
	return id, nil
}

// Me loads the caller's footprint.
func (s *AuthServiceImpl) Me(ctx context.Context, userID uuid.UUID) (model.Footprint, error) {
	if userID == uuid.Nil {
		return model.Footprint{}, errs.ErrUnauthorized
	}
	fp, err := s.users.Footprint(ctx, userID)
	if err != nil {
		return model.Footprint{}, persistence(err)
	}
	return fp, nil
}

// persistence wraps storage failures with ErrPersistence, passing domain sentinels through.
func persistence(err error) error {
	if err == nil || errors.Is(err, errs.ErrNotFound) || errors.Is(err, errs.ErrAlreadyExists) ||
		errors.Is(err, errs.ErrPersistence) || errs.IsValidation(err) {
		return err
	}
	return fmt.Errorf("%w: %w", errs.ErrPersistence, err)
}
