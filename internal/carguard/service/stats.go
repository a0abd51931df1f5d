package service

import (
	"context"
	"math"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/types"
)

type StatsService struct {
	gallery *Gallery
	audit   *AuditLog
}

func NewStatsService(g *Gallery, a *AuditLog) *StatsService {
	return &StatsService{gallery: g, audit: a}
}

// Stats reports gallery size and attempt totals. SuccessRate is the
// percentage of attempts granted, to one decimal place.
func (s *StatsService) Stats(ctx context.Context) (types.StatsResponse, error) {
	ids, err := s.gallery.List(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}
	counts, err := s.audit.Count(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}

	out := types.StatsResponse{
		TotalIdentities: len(ids),
		TotalAttempts:   counts.Total,
		Granted:         counts.ByOutcome[model.OutcomeGranted],
		Denied:          counts.ByOutcome[model.OutcomeDenied],
	}
	for _, e := range ids {
		if e.Status == model.StatusActive {
			out.ActiveIdentities++
		}
	}
	if counts.Total > 0 {
		out.SuccessRate = math.Round(float64(out.Granted)/float64(counts.Total)*1000) / 10
	}
	return out, nil
}
