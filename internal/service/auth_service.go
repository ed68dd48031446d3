package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/dkezele/ripple/internal/docstore"
	"github.com/dkezele/ripple/internal/domain"
	"github.com/dkezele/ripple/pkg/validator"
)

var (
	ErrInvalidRegistration = errors.New("invalid registration input")
	ErrEmailTaken          = errors.New("email already taken")
	ErrUsernameTaken       = errors.New("username already taken")
	ErrInvalidCreds        = errors.New("invalid email or password")
	ErrResetExpired        = errors.New("password reset token is invalid or expired")
)

const resetTokenTTL = time.Hour

type AuthService struct {
	store     docstore.Store
	jwtSecret []byte
	toaster   Toaster
}

func NewAuthService(store docstore.Store, jwtSecret string) *AuthService {
	return &AuthService{
		store:     store,
		jwtSecret: []byte(jwtSecret),
	}
}

// SetToaster sets the transient-notice sink (optional dependency).
func (s *AuthService) SetToaster(t Toaster) {
	s.toaster = t
}

type RegisterInput struct {
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	User        *domain.User `json:"user"`
	AccessToken string       `json:"access_token"`
}

// credentials is the auth provider's private document; it never appears on
// user snapshots.
type credentials struct {
	UserID       string `json:"user_id"`
	PasswordHash string `json:"password_hash"`
}

type lookup struct {
	UserID string `json:"user_id"`
}

type passwordReset struct {
	UserID    string           `json:"user_id"`
	ExpiresAt domain.Timestamp `json:"expires_at"`
}

// Register creates a user profile plus its credential and lookup
// documents. Email and username uniqueness hang off keyed lookup
// documents, so a racing duplicate registration loses at the Create.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResponse, error) {
	if errs := validator.ValidateRegister(input.Email, input.Username, input.DisplayName, input.Password); errs.HasErrors() {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRegistration, errs)
	}

	userID := uuid.NewString()

	if err := s.store.Create(ctx, docstore.UserEmailPath(input.Email), lookup{UserID: userID}); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("reserving email: %w", err)
	}
	if err := s.store.Create(ctx, docstore.UsernamePath(input.Username), lookup{UserID: userID}); err != nil {
		// The email key must not stay behind, or a retry with a free
		// username would be rejected on the email forever.
		if delErr := s.store.Delete(ctx, docstore.UserEmailPath(input.Email)); delErr != nil {
			log.Printf("auth: releasing email %s after failed registration: %v", input.Email, delErr)
		}
		if errors.Is(err, docstore.ErrExists) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("reserving username: %w", err)
	}

	hash, err := hashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	now := domain.Now()
	user := &domain.User{
		ID:          userID,
		Email:       input.Email,
		Username:    input.Username,
		DisplayName: input.DisplayName,
		Avatar:      domain.AvatarFalcon,
		CreatedAt:   now,
	}
	if err := s.store.Set(ctx, docstore.UserPath(userID), user); err != nil {
		return nil, fmt.Errorf("creating user: %w", err)
	}
	if err := s.store.Set(ctx, docstore.CredentialsPath(userID), credentials{UserID: userID, PasswordHash: hash}); err != nil {
		return nil, fmt.Errorf("storing credentials: %w", err)
	}

	token, err := s.generateToken(userID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	s.toast("Welcome, " + user.DisplayName)
	return &AuthResponse{User: user, AccessToken: token}, nil
}

func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResponse, error) {
	var ref lookup
	err := s.store.Get(ctx, docstore.UserEmailPath(input.Email), &ref)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, ErrInvalidCreds
	}
	if err != nil {
		return nil, err
	}

	var creds credentials
	if err := s.store.Get(ctx, docstore.CredentialsPath(ref.UserID), &creds); err != nil {
		return nil, ErrInvalidCreds
	}
	if !verifyPassword(input.Password, creds.PasswordHash) {
		s.toast("Wrong email or password")
		return nil, ErrInvalidCreds
	}

	var user domain.User
	if err := s.store.Get(ctx, docstore.UserPath(ref.UserID), &user); err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}

	token, err := s.generateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("generating token: %w", err)
	}

	return &AuthResponse{User: &user, AccessToken: token}, nil
}

// RequestPasswordReset mints a one-hour reset token for the account behind
// email. Delivery of the token is the mailer's job; the toast fires either
// way so the flow does not leak which emails exist.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	defer s.toast("If that email exists, a reset link is on its way")

	var ref lookup
	err := s.store.Get(ctx, docstore.UserEmailPath(email), &ref)
	if errors.Is(err, docstore.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	token := uuid.NewString()
	reset := passwordReset{
		UserID:    ref.UserID,
		ExpiresAt: domain.TimestampFromTime(time.Now().Add(resetTokenTTL)),
	}
	if err := s.store.Set(ctx, docstore.PasswordResetPath(token), reset); err != nil {
		return "", fmt.Errorf("storing reset token: %w", err)
	}
	return token, nil
}

// ResetPassword consumes a reset token and installs a new password hash.
func (s *AuthService) ResetPassword(ctx context.Context, token, newPassword string) error {
	var reset passwordReset
	err := s.store.Get(ctx, docstore.PasswordResetPath(token), &reset)
	if errors.Is(err, docstore.ErrNotFound) {
		return ErrResetExpired
	}
	if err != nil {
		return err
	}
	if time.Now().After(reset.ExpiresAt.Time()) {
		return ErrResetExpired
	}

	hash, err := hashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	if err := s.store.Update(ctx, docstore.CredentialsPath(reset.UserID), map[string]any{
		"password_hash": hash,
	}); err != nil {
		return fmt.Errorf("updating credentials: %w", err)
	}
	if err := s.store.Delete(ctx, docstore.PasswordResetPath(token)); err != nil {
		return fmt.Errorf("consuming reset token: %w", err)
	}

	s.toast("Password updated, you can sign in now")
	return nil
}

func (s *AuthService) generateToken(userID string) (string, error) {
	claims := jwt.MapClaims{
		"sub": userID,
		"exp": time.Now().Add(24 * time.Hour).Unix(),
		"iat": time.Now().Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *AuthService) toast(message string) {
	if s.toaster != nil {
		s.toaster.Toast(message)
	}
}

func hashPassword(password string) (string, error) {
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)

	return fmt.Sprintf("%s:%s",
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	), nil
}

func verifyPassword(password, encoded string) bool {
	saltB64, hashB64, ok := strings.Cut(encoded, ":")
	if !ok {
		return false
	}

	salt, err := base64.RawStdEncoding.DecodeString(saltB64)
	if err != nil {
		return false
	}

	expectedHash, err := base64.RawStdEncoding.DecodeString(hashB64)
	if err != nil {
		return false
	}

	hash := argon2.IDKey([]byte(password), salt, 1, 64*1024, 4, 32)
	return subtle.ConstantTimeCompare(hash, expectedHash) == 1
}
