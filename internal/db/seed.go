package db

import (
	"context"
	"errors"

	"github.com/geocoder89/apextrades/internal/account"
	"github.com/geocoder89/apextrades/internal/config"
	"github.com/geocoder89/apextrades/internal/domain/user"
)

// EnsureSeedUser registers the configured demo account unless it already
// exists. It is a no-op when SEED_USER_EMAIL or SEED_USER_PASSWORD is unset.
func EnsureSeedUser(ctx context.Context, svc *account.Service, cfg config.Config) (created bool, err error) {
	if cfg.SeedUserEmail == "" || cfg.SeedUserPassword == "" {
		return false, nil
	}

	_, err = svc.Register(ctx, account.RegisterInput{
		FullName: cfg.SeedUserName,
		Email:    cfg.SeedUserEmail,
		Password: cfg.SeedUserPassword,
	})

	if errors.Is(err, user.ErrEmailTaken) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}
