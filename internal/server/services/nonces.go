package services

import (
	"context"
	"errors"
	"time"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/hexid"
	"github.com/blockstudio/server/internal/server/models"
	"github.com/google/uuid"
)

// StoreNonce mints a random pairing token bound to (user, project) and
// stores it. The upsert regenerates the binding on the negligible chance the
// token already exists, so collisions never fail the call.
func (s *Service) StoreNonce(ctx context.Context, userID string, projectID int64) (string, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return "", err
	}

	nonce, err := common.MakeRandHexString(8)
	if err != nil {
		return "", s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Nonces(tx).UpsertNonce(ctx, nonce, id, projectID)
	})
	if err != nil {
		return "", s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}
	return nonce, nil
}

// GetNonce resolves a pairing token, matching case-insensitively. Expiry is
// the caller's concern; this returns whatever row exists, however old.
func (s *Service) GetNonce(ctx context.Context, nonce string) (*models.Nonce, error) {
	var n *models.Nonce
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		row, err := s.repos.Nonces(tx).GetNonce(ctx, nonce)
		if err != nil {
			return err
		}
		n = row
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{})
	}
	return n, nil
}

// CleanUpNonces deletes nonces strictly older than the configured TTL and
// returns how many went. Meant to be called by an external scheduler.
func (s *Service) CleanUpNonces(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.NonceTTL)

	var removed int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repos.Nonces(tx).DeleteNoncesBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, s.fail(ctx, err, ErrorContext{})
	}
	return removed, nil
}

// CreatePWData records a password-reset request and returns its UUID.
func (s *Service) CreatePWData(ctx context.Context, email string) (string, error) {
	id := uuid.NewString()

	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Nonces(tx).CreatePWData(ctx, id, email)
	})
	if err != nil {
		return "", s.fail(ctx, err, ErrorContext{})
	}
	return id, nil
}

// GetPWData resolves a password-reset UUID. Missing rows surface as
// common.ErrorNotFound; age checking is left to the caller.
func (s *Service) GetPWData(ctx context.Context, id string) (*models.PWData, error) {
	var pw *models.PWData
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		row, err := s.repos.Nonces(tx).GetPWData(ctx, id)
		if err != nil {
			return err
		}
		pw = row
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, err
		}
		return nil, s.fail(ctx, err, ErrorContext{})
	}
	return pw, nil
}

// CleanUpPWData deletes password-reset requests strictly older than the
// configured TTL and returns how many went.
func (s *Service) CleanUpPWData(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-s.cfg.PWDataTTL)

	var removed int64
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		n, err := s.repos.Nonces(tx).DeletePWDataBefore(ctx, cutoff)
		if err != nil {
			return err
		}
		removed = n
		return nil
	})
	if err != nil {
		return 0, s.fail(ctx, err, ErrorContext{})
	}
	return removed, nil
}
