package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/hexid"
	"github.com/blockstudio/server/internal/server/auth"
	"github.com/blockstudio/server/internal/server/models"
	"golang.org/x/crypto/bcrypt"
)

// GetOrCreateUserByEmail looks an account up by email ignoring case and
// creates it with defaults when absent (derived display name, zero email
// frequency, tos not accepted, non-admin, no password).
//
// Known race: two servers inserting the same email concurrently will have
// one fail on the unique index; that failure is fatal here, not retried.
func (s *Service) GetOrCreateUserByEmail(ctx context.Context, email string) (*models.Account, error) {
	var acct *models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		a, err := repo.GetByEmail(ctx, email)
		if err == nil {
			acct = a
			return nil
		}
		if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		a, err = repo.Create(ctx, email, defaultNameFor(email))
		if err != nil {
			return err
		}
		acct = a
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, ErrorContext{})
	}
	return acct, nil
}

// GetUser returns the account addressed by its external hex id.
// A missing account surfaces as common.ErrorNotFound.
func (s *Service) GetUser(ctx context.Context, userID string) (*models.Account, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return nil, err
	}

	var acct *models.Account
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := s.repos.Accounts(tx).GetByID(ctx, id)
		if err != nil {
			return err
		}
		acct = a
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{UserID: userID})
	}
	return acct, nil
}

// GetUserByEmail returns the account registered under email, matched
// case-insensitively. A missing account surfaces as common.ErrorNotFound.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*models.Account, error) {
	var acct *models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := s.repos.Accounts(tx).GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		acct = a
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{})
	}
	return acct, nil
}

// SetUserField updates one account column through the closed field enum.
// Zero rows affected is indistinguishable from a database failure: both
// surface as the same fatal error.
func (s *Service) SetUserField(ctx context.Context, userID string, field models.AccountField, value any) error {
	id, err := hexid.Decode(userID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Accounts(tx).SetField(ctx, id, field, value)
	})
	if err != nil {
		return s.fail(ctx, collapse(err), ErrorContext{UserID: userID})
	}
	return nil
}

// GetUserField reads one account column through the closed field enum.
func (s *Service) GetUserField(ctx context.Context, userID string, field models.AccountField) (any, error) {
	acct, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	switch field {
	case models.AccountEmail:
		return acct.Email, nil
	case models.AccountName:
		return acct.Name, nil
	case models.AccountLink:
		return acct.Link, nil
	case models.AccountEmailFrequency:
		return acct.EmailFrequency, nil
	case models.AccountTosAccepted:
		return acct.TosAccepted, nil
	case models.AccountSessionID:
		return acct.SessionID, nil
	case models.AccountPassword:
		return acct.Password, nil
	case models.AccountSettings:
		return acct.Settings, nil
	case models.AccountBackpackID:
		return acct.BackpackID, nil
	case models.AccountVisitedAt:
		return acct.VisitedAt, nil
	default:
		return nil, fmt.Errorf("%w: unknown account field %q", common.ErrorBadArgument, field)
	}
}

// SetUserPassword hashes and stores the password. An empty password means
// "no stored password" and is persisted as NULL.
func (s *Service) SetUserPassword(ctx context.Context, userID string, password string) error {
	if password == "" {
		return s.SetUserField(ctx, userID, models.AccountPassword, "")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return s.fail(ctx, err, ErrorContext{UserID: userID})
	}
	return s.SetUserField(ctx, userID, models.AccountPassword, string(hash))
}

// Login verifies credentials, rotates the stored session id, refreshes the
// last-visited stamp, and mints a session token. Bad credentials surface as
// common.ErrorUnauthorized, never as a fatal storage error.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.Account, error) {
	var acct *models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Accounts(tx)

		a, err := repo.GetByEmail(ctx, email)
		if err != nil {
			return err
		}
		if a.Password == "" {
			return common.ErrorUnauthorized
		}
		if bcrypt.CompareHashAndPassword([]byte(a.Password), []byte(password)) != nil {
			return common.ErrorUnauthorized
		}

		session, err := common.MakeRandHexString(16)
		if err != nil {
			return err
		}
		if err := repo.SetField(ctx, a.ID, models.AccountSessionID, session); err != nil {
			return err
		}
		if err := repo.SetField(ctx, a.ID, models.AccountVisitedAt, time.Now().UTC()); err != nil {
			return err
		}
		a.SessionID = session
		acct = a
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) || errors.Is(err, common.ErrorUnauthorized) {
			return "", nil, common.ErrorUnauthorized
		}
		return "", nil, s.fail(ctx, err, ErrorContext{})
	}

	token, err := auth.GenerateToken(hexid.Encode(acct.ID), []byte(s.cfg.SecretKey), s.cfg.SessionValidityDuration)
	if err != nil {
		return "", nil, s.fail(ctx, err, ErrorContext{UserID: hexid.Encode(acct.ID)})
	}
	return token, acct, nil
}

// ListUsers pages through accounts by ascending id; for admin tooling.
func (s *Service) ListUsers(ctx context.Context, afterID int64, limit int) ([]*models.Account, error) {
	var result []*models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		list, err := s.repos.Accounts(tx).List(ctx, afterID, limit)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, ErrorContext{})
	}
	return result, nil
}

// SearchUsersByEmail returns accounts whose email starts with prefix,
// compared case-insensitively; for admin tooling.
func (s *Service) SearchUsersByEmail(ctx context.Context, prefix string, limit int) ([]*models.Account, error) {
	var result []*models.Account
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		list, err := s.repos.Accounts(tx).SearchByEmailPrefix(ctx, prefix, limit)
		if err != nil {
			return err
		}
		result = list
		return nil
	})
	if err != nil {
		return nil, s.fail(ctx, err, ErrorContext{})
	}
	return result, nil
}

// defaultNameFor derives the initial display name from the email local part.
func defaultNameFor(email string) string {
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}
