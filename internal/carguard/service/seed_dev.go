package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
)

type SeedDevOptions struct {
	// Identities to pre-enroll. Empty means one demo driver.
	Identities []model.EnrolledIdentity
}

// SeedDev enrolls starter identities for local development and returns how
// many were new. Existing ids are left as they are, revoked ones included.
func SeedDev(ctx context.Context, g *Gallery, opt SeedDevOptions) (int, error) {
	ids := opt.Identities
	if len(ids) == 0 {
		ids = []model.EnrolledIdentity{{
			ID:                  "demo-driver",
			DisplayName:         "Demo Driver",
			VehicleRegistration: "DEV 001",
		}}
	}

	added := 0
	for _, in := range ids {
		_, err := g.Enroll(ctx, in)
		if errors.Is(err, ErrDuplicateIdentity) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("seed %s: %w", in.ID, err)
		}
		added++
	}
	return added, nil
}
