package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/blockstudio/server/internal/common"
	"github.com/blockstudio/server/internal/dbx"
	"github.com/blockstudio/server/internal/hexid"
	"github.com/blockstudio/server/internal/server/models"
)

const (
	motdKey   = "motd"
	splashKey = "splash"

	// DefaultBuildProgress is reported when no build status row exists:
	// assume a build is underway in an unknown state rather than failing.
	DefaultBuildProgress = 50

	emptyBackpack = "[]"
)

func defaultMotd() *models.Motd {
	return &models.Motd{Captain: "Hello!", Content: "Welcome to Block Studio."}
}

func defaultSplashConfig() *models.SplashConfig {
	return &models.SplashConfig{Version: 0, Content: "<b>Welcome to Block Studio</b>", Width: 350, Height: 100}
}

// GetCurrentMotd returns the message-of-the-day singleton. A missing or
// unparsable row is reset to the hard-coded default in the same transaction
// and the default is returned: the store heals itself instead of failing.
func (s *Service) GetCurrentMotd(ctx context.Context) (*models.Motd, error) {
	var motd models.Motd
	err := s.getSingleton(ctx, motdKey, &motd, func() any { return defaultMotd() })
	if err != nil {
		return nil, err
	}
	return &motd, nil
}

// GetSplashConfig returns the splash-screen singleton, self-healing like
// GetCurrentMotd.
func (s *Service) GetSplashConfig(ctx context.Context) (*models.SplashConfig, error) {
	var sc models.SplashConfig
	err := s.getSingleton(ctx, splashKey, &sc, func() any { return defaultSplashConfig() })
	if err != nil {
		return nil, err
	}
	return &sc, nil
}

// getSingleton reads one misc-table JSON blob into dst, persisting and
// decoding the default when the row is absent or corrupt.
func (s *Service) getSingleton(ctx context.Context, key string, dst any, def func() any) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repos.Misc(tx)

		raw, err := repo.GetValue(ctx, key)
		if err == nil {
			if jerr := json.Unmarshal([]byte(raw), dst); jerr == nil {
				return nil
			}
			s.log.Warn(ctx, "resetting corrupt singleton", "key", key)
		} else if !errors.Is(err, common.ErrorNotFound) {
			return err
		}

		encoded, err := json.Marshal(def())
		if err != nil {
			return err
		}
		if err := repo.SetValue(ctx, key, string(encoded)); err != nil {
			return err
		}
		return json.Unmarshal(encoded, dst)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{FileName: key})
	}
	return nil
}

// StoreMotd replaces the message-of-the-day singleton.
func (s *Service) StoreMotd(ctx context.Context, motd *models.Motd) error {
	return s.setSingleton(ctx, motdKey, motd)
}

// StoreSplashConfig replaces the splash-screen singleton.
func (s *Service) StoreSplashConfig(ctx context.Context, sc *models.SplashConfig) error {
	return s.setSingleton(ctx, splashKey, sc)
}

func (s *Service) setSingleton(ctx context.Context, key string, v any) error {
	encoded, err := json.Marshal(v)
	if err != nil {
		return s.fail(ctx, err, ErrorContext{FileName: key})
	}
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Misc(tx).SetValue(ctx, key, string(encoded))
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{FileName: key})
	}
	return nil
}

// StoreBuildStatus upserts the progress a build server reported for one
// (host, user, project) triple.
func (s *Service) StoreBuildStatus(ctx context.Context, host, userID string, projectID int64, progress int) error {
	id, err := hexid.Decode(userID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Misc(tx).UpsertBuildStatus(ctx, host, id, projectID, progress)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}
	return nil
}

// GetBuildStatus returns the recorded progress for a build, or
// DefaultBuildProgress when no row exists.
func (s *Service) GetBuildStatus(ctx context.Context, host, userID string, projectID int64) (int, error) {
	id, err := hexid.Decode(userID)
	if err != nil {
		return 0, err
	}

	var progress int
	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		p, err := s.repos.Misc(tx).GetBuildStatus(ctx, host, id, projectID)
		if errors.Is(err, common.ErrorNotFound) {
			progress = DefaultBuildProgress
			return nil
		}
		if err != nil {
			return err
		}
		progress = p
		return nil
	})
	if err != nil {
		return 0, s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID})
	}
	return progress, nil
}

// GetBackpack returns a shared backpack's serialized block list, or the
// empty list when the backpack does not exist yet.
func (s *Service) GetBackpack(ctx context.Context, backpackID string) (string, error) {
	var content string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		c, err := s.repos.Misc(tx).GetBackpack(ctx, backpackID)
		if errors.Is(err, common.ErrorNotFound) {
			content = emptyBackpack
			return nil
		}
		if err != nil {
			return err
		}
		content = c
		return nil
	})
	if err != nil {
		return "", s.fail(ctx, err, ErrorContext{})
	}
	return content, nil
}

// UploadBackpack inserts or fully replaces a shared backpack.
func (s *Service) UploadBackpack(ctx context.Context, backpackID, content string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Misc(tx).UpsertBackpack(ctx, backpackID, content)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{})
	}
	return nil
}

// StoreIPAddressByKey records a rendezvous address under an opaque key.
func (s *Service) StoreIPAddressByKey(ctx context.Context, key, address string) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Misc(tx).UpsertIPAddress(ctx, key, address)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{})
	}
	return nil
}

// GetIPAddressByKey resolves a rendezvous key; missing keys surface as
// common.ErrorNotFound.
func (s *Service) GetIPAddressByKey(ctx context.Context, key string) (string, error) {
	var address string
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		a, err := s.repos.Misc(tx).GetIPAddress(ctx, key)
		if err != nil {
			return err
		}
		address = a
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return "", err
		}
		return "", s.fail(ctx, err, ErrorContext{})
	}
	return address, nil
}

// IsUserInWhitelist reports whether the email is on the access whitelist,
// compared case-insensitively.
func (s *Service) IsUserInWhitelist(ctx context.Context, email string) (bool, error) {
	var ok bool
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		v, err := s.repos.Misc(tx).IsWhitelisted(ctx, email)
		if err != nil {
			return err
		}
		ok = v
		return nil
	})
	if err != nil {
		return false, s.fail(ctx, err, ErrorContext{})
	}
	return ok, nil
}

// StoreFeedback appends one feedback record.
func (s *Service) StoreFeedback(ctx context.Context, f *models.Feedback) error {
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return s.repos.Misc(tx).InsertFeedback(ctx, f)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{})
	}
	return nil
}

// StoreCorruptionRecord appends one corrupt-file report.
func (s *Service) StoreCorruptionRecord(ctx context.Context, userID string, projectID int64, fileName, message string) error {
	id, err := hexid.Decode(userID)
	if err != nil {
		return err
	}

	err = dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		rec := &models.CorruptionRecord{AccountID: id, ProjectID: projectID, FileName: fileName, Message: message}
		return s.repos.Misc(tx).InsertCorruptionRecord(ctx, rec)
	})
	if err != nil {
		return s.fail(ctx, err, ErrorContext{UserID: userID, ProjectID: projectID, FileName: fileName})
	}
	return nil
}
