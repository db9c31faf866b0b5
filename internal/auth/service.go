package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"bookreview/pkg/apperr"
	"bookreview/pkg/models"
)

const (
	MsgNoUsername          = "No username entered. Please try again."
	MsgNoPassword          = "No password entered. Please try again."
	MsgNoConfirmation      = "No password confirmation entered. Please try again."
	MsgPasswordMismatch    = "Passwords do not match. Please try again."
	MsgPasswordTooLong     = "Password is too long. Please use at most 72 bytes."
	MsgUsernameTaken       = "Username already exists. Please try again."
	MsgInvalidCredentials  = "Invalid credentials. Please try again."
	MsgAccountCreated      = "Account created"
	MsgLoginSuccessful     = "Login successful."
	MsgLoggedOut           = "Logged out of account."
	maxBcryptPasswordBytes = 72
)

// Service implements registration and credential checks.
type Service struct {
	Repo   *Repo
	Logger logrus.FieldLogger
	// Cost is the bcrypt cost; zero means bcrypt.DefaultCost.
	Cost int
}

func NewService(repo *Repo, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{Repo: repo, Logger: logger, Cost: bcrypt.DefaultCost}
}

// Register validates the form in the order the register page reports
// problems and stores a bcrypt hash of the password. The username is kept
// exactly as typed; a blank one counts as missing.
func (s *Service) Register(ctx context.Context, username, password, confirmPassword string) (*models.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperr.Validation(MsgNoUsername)
	}

	existing, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Duplicate(MsgUsernameTaken)
	}

	switch {
	case password == "":
		return nil, apperr.Validation(MsgNoPassword)
	case confirmPassword == "":
		return nil, apperr.Validation(MsgNoConfirmation)
	case password != confirmPassword:
		return nil, apperr.Validation(MsgPasswordMismatch)
	case len(password) > maxBcryptPasswordBytes:
		return nil, apperr.Validation(MsgPasswordTooLong)
	}

	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &models.User{Username: username, PasswordHash: string(hash)}
	if err := s.Repo.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	s.Logger.WithFields(logrus.Fields{"user_id": u.ID, "username": u.Username}).Info("user registered")
	return u, nil
}

// Authenticate checks credentials. Unknown users and wrong passwords get
// the same error.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	if strings.TrimSpace(username) == "" {
		return nil, apperr.Validation(MsgNoUsername)
	}
	if password == "" {
		return nil, apperr.Validation(MsgNoPassword)
	}

	u, err := s.Repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.Auth(MsgInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("stored password hash is unusable")
		}
		return nil, apperr.Auth(MsgInvalidCredentials)
	}
	return u, nil
}
