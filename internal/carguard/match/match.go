// Package match scores a probe against the enrolled gallery.
//
// Two paths exist. The primary path compares descriptors by Euclidean
// distance. The fallback path compares colour distributions of the probe
// and each stored reference image and is flagged as degraded in the
// result. Which paths may run is fixed at startup in Config.
package match

import (
	"context"
	"image"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
)

type Status string

const (
	StatusMatched           Status = "MATCHED"
	StatusNoCandidates      Status = "NO_CANDIDATES"
	StatusNoFaceDetected    Status = "NO_FACE_DETECTED"
	StatusEngineUnavailable Status = "ENGINE_UNAVAILABLE"
)

// ProbeState is what extraction produced for the probe.
type ProbeState int

const (
	// ProbeDetected: the engine found a face; Descriptor is set.
	ProbeDetected ProbeState = iota
	// ProbeNoFace: the engine ran and found no face.
	ProbeNoFace
	// ProbeEngineUnavailable: extraction did not run or did not finish.
	ProbeEngineUnavailable
)

type Probe struct {
	State      ProbeState
	Descriptor model.Descriptor
	Image      image.Image
}

// Result of one match. Score and IdentityID are meaningful only when
// Status is StatusMatched.
type Result struct {
	Status      Status
	IdentityID  string
	DisplayName string
	Score       float64
	Method      model.MatchMethod
}

type Config struct {
	EngineAvailable bool
	FallbackEnabled bool
	ImageSide       int
}

// ReferenceLoader fetches the decoded reference image behind a handle.
type ReferenceLoader interface {
	LoadReference(ctx context.Context, handle string) (image.Image, error)
}

// AppearanceScorer compares two images of equal dimensions, returning a
// similarity in [0,1].
type AppearanceScorer interface {
	Similarity(a, b image.Image) float64
}

type Matcher struct {
	cfg    Config
	refs   ReferenceLoader
	scorer AppearanceScorer
	logger *zap.Logger
}

// New builds a matcher. refs and scorer may be nil when fallback is
// disabled; a nil scorer defaults to the histogram scorer.
func New(cfg Config, refs ReferenceLoader, scorer AppearanceScorer, logger *zap.Logger) *Matcher {
	if cfg.ImageSide <= 0 {
		cfg.ImageSide = 300
	}
	if scorer == nil {
		scorer = HistogramScorer{}
	}
	if refs == nil {
		cfg.FallbackEnabled = false
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Matcher{cfg: cfg, refs: refs, scorer: scorer, logger: logger.Named("matcher")}
}

func (m *Matcher) Config() Config { return m.cfg }

// Match evaluates probe against gallery. Only ACTIVE identities are
// candidates regardless of what the caller passes.
func (m *Matcher) Match(ctx context.Context, probe Probe, gallery []model.EnrolledIdentity) (Result, error) {
	active := make([]model.EnrolledIdentity, 0, len(gallery))
	for _, id := range gallery {
		if id.Status == model.StatusActive {
			active = append(active, id)
		}
	}
	if len(active) == 0 {
		return Result{Status: StatusNoCandidates, DisplayName: model.UnknownSubject}, nil
	}

	state := probe.State
	if !m.cfg.EngineAvailable {
		state = ProbeEngineUnavailable
	}
	if state == ProbeNoFace {
		return noFace(), nil
	}

	if state == ProbeDetected && len(probe.Descriptor) > 0 {
		var withDesc []model.EnrolledIdentity
		for _, id := range active {
			if len(id.Descriptor) == len(probe.Descriptor) {
				withDesc = append(withDesc, id)
			}
		}
		if len(withDesc) > 0 {
			return m.matchPrimary(ctx, probe.Descriptor, withDesc)
		}
	}

	if m.cfg.FallbackEnabled && probe.Image != nil {
		var withRef []model.EnrolledIdentity
		for _, id := range active {
			if id.ReferenceImageHandle != "" {
				withRef = append(withRef, id)
			}
		}
		if len(withRef) > 0 {
			res, ok, err := m.matchFallback(ctx, probe.Image, withRef)
			if err != nil || ok {
				return res, err
			}
		}
	}

	if state == ProbeEngineUnavailable && !m.cfg.FallbackEnabled {
		return Result{Status: StatusEngineUnavailable, DisplayName: model.UnknownSubject}, nil
	}
	return noFace(), nil
}

func noFace() Result {
	return Result{Status: StatusNoFaceDetected, DisplayName: model.UnknownSubject}
}

func (m *Matcher) matchPrimary(ctx context.Context, probe model.Descriptor, cands []model.EnrolledIdentity) (Result, error) {
	scores, err := scoreAll(ctx, len(cands), func(_ context.Context, i int) (float64, bool, error) {
		return Similarity(probe, cands[i].Descriptor), true, nil
	})
	if err != nil {
		return Result{}, err
	}

	best, _ := argmax(cands, scores)
	return matched(cands[best], scores[best].value, model.MatchPrimary), nil
}

// matchFallback reports ok=false when no reference image could be loaded.
func (m *Matcher) matchFallback(ctx context.Context, probe image.Image, cands []model.EnrolledIdentity) (Result, bool, error) {
	side := m.cfg.ImageSide
	probeRS := resize(probe, side)

	scores, err := scoreAll(ctx, len(cands), func(ctx context.Context, i int) (float64, bool, error) {
		ref, err := m.refs.LoadReference(ctx, cands[i].ReferenceImageHandle)
		if err != nil {
			if ctx.Err() != nil {
				return 0, false, ctx.Err()
			}
			m.logger.Warn("reference image unusable, skipping",
				zap.String("identity_id", cands[i].ID),
				zap.Error(err),
			)
			return 0, false, nil
		}
		return m.scorer.Similarity(probeRS, resize(ref, side)), true, nil
	})
	if err != nil {
		return Result{}, false, err
	}

	best, ok := argmax(cands, scores)
	if !ok {
		return Result{}, false, nil
	}
	return matched(cands[best], scores[best].value, model.MatchFallback), true, nil
}

func matched(id model.EnrolledIdentity, score float64, method model.MatchMethod) Result {
	return Result{
		Status:      StatusMatched,
		IdentityID:  id.ID,
		DisplayName: id.DisplayName,
		Score:       score,
		Method:      method,
	}
}

type score struct {
	value float64
	ok    bool
}

// scoreAll evaluates fn for every index in parallel. Results land at
// their own index, so evaluation order cannot affect the arg-max.
func scoreAll(ctx context.Context, n int, fn func(ctx context.Context, i int) (float64, bool, error)) ([]score, error) {
	out := make([]score, n)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := 0; i < n; i++ {
		g.Go(func() error {
			v, ok, err := fn(ctx, i)
			if err != nil {
				return err
			}
			out[i] = score{value: v, ok: ok}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// argmax picks the highest score; ties go to the earliest enrolled_at,
// then the smallest id.
func argmax(cands []model.EnrolledIdentity, scores []score) (int, bool) {
	best := -1
	for i := range cands {
		if !scores[i].ok {
			continue
		}
		if best < 0 || better(cands[i], scores[i].value, cands[best], scores[best].value) {
			best = i
		}
	}
	return best, best >= 0
}

func better(a model.EnrolledIdentity, sa float64, b model.EnrolledIdentity, sb float64) bool {
	if sa != sb {
		return sa > sb
	}
	if !a.EnrolledAt.Equal(b.EnrolledAt) {
		return a.EnrolledAt.Before(b.EnrolledAt)
	}
	return a.ID < b.ID
}
