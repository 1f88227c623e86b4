package auth

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/models"
	"github.com/ayush/helsa/backend/internal/store"
)

const (
	MsgIncorrectCredentials = "Incorrect username or password"
	MsgUsernameExists       = "User with this email already exists"
	MsgUserCreated          = "User was successfully created!"
	MsgInvalidCredentials   = "Could not validate credentials"
	MsgInvalidUsername      = "Username must be a valid email address"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Revoker records and checks revoked token ids.
type Revoker interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Service registers users, checks credentials and issues/resolves tokens.
type Service struct {
	users      UserStore
	revoked    Revoker
	secret     []byte
	ttl        time.Duration
	bcryptCost int
	validate   *validator.Validate
	log        zerolog.Logger

	// dummyHash is compared against when the user does not exist so that
	// both failure paths cost one bcrypt comparison.
	dummyHash string
}

// Options configures a Service.
type Options struct {
	Secret     []byte
	TTL        time.Duration
	BcryptCost int
}

func NewService(users UserStore, revoked Revoker, opts Options, log zerolog.Logger) (*Service, error) {
	cost := opts.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	dummy, err := HashPassword("not-a-real-password-1A", cost)
	if err != nil {
		return nil, err
	}
	return &Service{
		users:      users,
		revoked:    revoked,
		secret:     opts.Secret,
		ttl:        opts.TTL,
		bcryptCost: cost,
		validate:   validator.New(),
		log:        log,
		dummyHash:  dummy,
	}, nil
}

// Register creates a user after validating username and password.
func (s *Service) Register(ctx context.Context, req models.RegisterRequest) (*models.User, error) {
	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && verrs[0].Field() == "Password" {
			return nil, apperr.Wrap(apperr.BadInput, "Password is required", err)
		}
		return nil, apperr.Wrap(apperr.BadInput, MsgInvalidUsername, err)
	}
	if err := CheckPasswordComposition(req.Password); err != nil {
		return nil, apperr.Wrap(apperr.BadInput, err.Error(), err)
	}

	hashed, err := HashPassword(req.Password, s.bcryptCost)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}

	u, err := s.users.CreateUser(ctx, req.Username, hashed)
	if err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Wrap(apperr.Conflict, MsgUsernameExists, err)
		}
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	s.log.Info().Str("user_id", u.ID.String()).Msg("user registered")
	return u, nil
}

// Authenticate returns the user when username and password match.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			VerifyPassword(s.dummyHash, password)
			return nil, apperr.New(apperr.Unauthenticated, MsgIncorrectCredentials)
		}
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	if !VerifyPassword(u.PasswordHash, password) {
		return nil, apperr.New(apperr.Unauthenticated, MsgIncorrectCredentials)
	}
	return u, nil
}

// Login authenticates and returns a bearer token.
func (s *Service) Login(ctx context.Context, username, password string) (*models.Token, error) {
	u, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return nil, err
	}
	tok, err := IssueToken(u.Username, s.secret, s.ttl)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	return &models.Token{AccessToken: tok, TokenType: TokenType}, nil
}

// ResolveToken verifies the token and loads its subject. The user is looked
// up on every call, so a removed user loses access immediately.
func (s *Service) ResolveToken(ctx context.Context, token string) (*models.User, error) {
	claims, err := ParseToken(token, s.secret)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unauthenticated, MsgInvalidCredentials, err)
	}

	if claims.ID != "" {
		revoked, err := s.revoked.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
		}
		if revoked {
			return nil, apperr.New(apperr.Unauthenticated, MsgInvalidCredentials)
		}
	}

	u, err := s.users.GetUserByUsername(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.Unauthenticated, MsgInvalidCredentials, err)
		}
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	return u, nil
}

// Revoke invalidates token for the rest of its lifetime.
func (s *Service) Revoke(ctx context.Context, token string) error {
	claims, err := ParseToken(token, s.secret)
	if err != nil {
		return apperr.Wrap(apperr.Unauthenticated, MsgInvalidCredentials, err)
	}
	if claims.ID == "" {
		return apperr.New(apperr.BadInput, "Token cannot be revoked")
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if err := s.revoked.Revoke(ctx, claims.ID, ttl); err != nil {
		return apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	return nil
}
