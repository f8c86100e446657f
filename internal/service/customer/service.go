package customer

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"storefront/internal/domain"
	custrepo "storefront/internal/repository/customer"
	tokenrepo "storefront/internal/repository/token"
)

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthorized)
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = fmt.Errorf("%w: invalid token", domain.ErrUnauthorized)
)

// Session is an issued access token.
type Session struct {
	AccessToken string    `json:"accessToken"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// Service handles customer signup/login flows.
type Service struct {
	repo        custrepo.Repository
	tokens      *tokenManager
	logger      *zap.Logger
	accessTTL   time.Duration
	passwordMin int
}

// New creates a Service with sane defaults.
func New(repo custrepo.Repository, tokens tokenrepo.Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:        repo,
		tokens:      newTokenManager(tokens, time.Now),
		logger:      logger.Named("customer"),
		accessTTL:   48 * time.Hour,
		passwordMin: 8,
	}
}

// SignupInput captures fields expected by the signup endpoint.
type SignupInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// Signup registers a new customer and signs them in. Input problems are reported as a
// *domain.ValidationError keyed by field.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*domain.Customer, Session, error) {
	email := strings.TrimSpace(strings.ToLower(in.Email))
	password := strings.TrimSpace(in.Password)

	verr := &domain.ValidationError{}
	if email == "" {
		verr.Add("email", "is required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		verr.Add("email", "is not a valid address")
	}
	if msg := validatePassword(password, s.passwordMin); msg != "" {
		verr.Add("password", msg)
	}
	if !verr.Empty() {
		return nil, Session{}, verr
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, Session{}, err
	}
	c, err := s.repo.Create(ctx, domain.Customer{
		Email:        email,
		PasswordHash: string(hashed),
		Name:         strings.TrimSpace(in.Name),
	})
	if errors.Is(err, domain.ErrAlreadyExists) {
		return nil, Session{}, domain.NewValidationError("email", "is already registered")
	}
	if err != nil {
		return nil, Session{}, err
	}

	session, err := s.issue(ctx, c.ID)
	if err != nil {
		return nil, Session{}, err
	}
	s.logger.Info("customer signed up", zap.String("customer_id", c.ID))
	return c, session, nil
}

// Login validates credentials and returns an issued session plus the customer.
func (s *Service) Login(ctx context.Context, email, password string) (*domain.Customer, Session, error) {
	verr := &domain.ValidationError{}
	if strings.TrimSpace(email) == "" {
		verr.Add("email", "is required")
	}
	if strings.TrimSpace(password) == "" {
		verr.Add("password", "is required")
	}
	if !verr.Empty() {
		return nil, Session{}, verr
	}

	c, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, Session{}, ErrInvalidCredentials
		}
		return nil, Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return nil, Session{}, ErrInvalidCredentials
	}

	session, err := s.issue(ctx, c.ID)
	if err != nil {
		return nil, Session{}, err
	}
	return c, session, nil
}

// Logout revokes an access token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.tokens.Revoke(ctx, token)
}

// LookupByToken returns the customer bound to a valid access token.
func (s *Service) LookupByToken(ctx context.Context, token string) (*domain.Customer, error) {
	customerID, ok := s.tokens.Validate(ctx, token)
	if !ok {
		return nil, ErrInvalidToken
	}
	c, err := s.repo.GetByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, ErrInvalidToken
		}
		return nil, err
	}
	return c, nil
}

// AccessTTL exposes the access token lifetime.
func (s *Service) AccessTTL() time.Duration {
	return s.accessTTL
}

func (s *Service) issue(ctx context.Context, customerID string) (Session, error) {
	token, expiresAt, err := s.tokens.Issue(ctx, customerID, s.accessTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: token, ExpiresAt: expiresAt}, nil
}

func validatePassword(p string, min int) string {
	if len(p) < min {
		return fmt.Sprintf("must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return "must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number"
	}
	return ""
}
