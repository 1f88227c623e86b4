// Package admin lets administrators change account flags and inspect the
// model exchanges of a user.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/models"
	"github.com/ayush/helsa/backend/internal/store"
)

const (
	MsgFlagsSet         = "User have been updated with flags: %s"
	MsgUserNotFound     = "User was not found. Flags unset."
	MsgNoFlags          = "At least one flag must be provided"
	MsgInvalidUsername  = "Username must be a valid email address"
	MsgUnknownUser      = "User was not found"
	defaultExchangeSize = 50
	maxExchangeSize     = 200
)

// UserStore defines the user persistence used by admin operations.
type UserStore interface {
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUserFlags(ctx context.Context, username string, flags models.UserFlags) (*models.User, error)
}

// ExchangeReader lists recorded model exchanges.
type ExchangeReader interface {
	ListExchanges(ctx context.Context, userID string, limit int64) ([]models.Exchange, error)
}

type Service struct {
	users     UserStore
	exchanges ExchangeReader
	validate  *validator.Validate
	log       zerolog.Logger
}

func NewService(users UserStore, exchanges ExchangeReader, log zerolog.Logger) *Service {
	return &Service{users: users, exchanges: exchanges, validate: validator.New(), log: log}
}

// SetFlags applies the provided flags to username and returns the
// confirmation message. Flags left nil keep their stored value.
func (s *Service) SetFlags(ctx context.Context, req models.UserFlagsRequest) (string, *models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validate.Struct(req); err != nil {
		return "", nil, apperr.Wrap(apperr.BadInput, MsgInvalidUsername, err)
	}
	if req.Flags.Empty() {
		return "", nil, apperr.New(apperr.BadInput, MsgNoFlags)
	}

	u, err := s.users.UpdateUserFlags(ctx, req.Username, req.Flags)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, apperr.Wrap(apperr.BadInput, MsgUserNotFound, err)
		}
		return "", nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}

	flags, err := json.Marshal(req.Flags)
	if err != nil {
		return "", nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	msg := fmt.Sprintf(MsgFlagsSet, flags)
	s.log.Info().Str("user_id", u.ID.String()).RawJSON("flags", flags).Msg("user flags updated")
	return msg, u, nil
}

// Exchanges returns the most recent model exchanges of username.
func (s *Service) Exchanges(ctx context.Context, username string, limit int64) ([]models.Exchange, error) {
	if limit <= 0 {
		limit = defaultExchangeSize
	}
	if limit > maxExchangeSize {
		limit = maxExchangeSize
	}

	u, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.Wrap(apperr.NotFound, MsgUnknownUser, err)
		}
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}

	out, err := s.exchanges.ListExchanges(ctx, u.ID.String(), limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.Unexpected, apperr.InternalMessage, err)
	}
	if out == nil {
		out = []models.Exchange{}
	}
	return out, nil
}
