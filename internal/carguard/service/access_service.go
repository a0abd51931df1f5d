package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/engine"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/imaging"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/match"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/metrics"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/types"
	"github.com/BrandonDHaskell/Carguard/server/internal/logging"
)

type AccessDeps struct {
	Gallery   *Gallery
	Config    *ConfigService
	Matcher   *match.Matcher
	Extractor engine.Extractor // nil when no engine is deployed
	Audit     *AuditLog
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	// DescriptorDim rejects extractor output of the wrong size when positive.
	DescriptorDim int

	// MaxImagePixels bounds decoded probes; zero means imaging.DefaultMaxPixels.
	MaxImagePixels int
}

// AccessService turns a probe or a PIN into a verdict, applies its side
// effects and writes exactly one audit record per call.
type AccessService struct {
	gallery   *Gallery
	config    *ConfigService
	matcher   *match.Matcher
	extractor engine.Extractor
	audit     *AuditLog
	metrics   *metrics.Metrics
	logger    *zap.Logger
	dim       int
	maxPixels int

	now func() time.Time
}

func NewAccessService(d AccessDeps) *AccessService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessService{
		gallery:   d.Gallery,
		config:    d.Config,
		matcher:   d.Matcher,
		extractor: d.Extractor,
		audit:     d.Audit,
		metrics:   d.Metrics,
		logger:    logger.Named("access_service"),
		dim:       d.DescriptorDim,
		maxPixels: d.MaxImagePixels,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Decide dispatches on req.Method. The returned response is always
// populated; a non-nil error means the request failed (decode or
// persistence) and the response carries outcome ERROR.
func (s *AccessService) Decide(ctx context.Context, req types.AccessRequest) (types.AccessResponse, error) {
	switch model.Method(strings.ToUpper(strings.TrimSpace(req.Method))) {
	case model.MethodFace:
		return s.DecideFace(ctx, req.Image)
	case model.MethodPIN:
		return s.DecidePIN(ctx, req.PIN)
	}
	return types.AccessResponse{}, ErrInvalidMethod
}

func (s *AccessService) DecideFace(ctx context.Context, raw []byte) (types.AccessResponse, error) {
	start := s.now()
	defer func() { s.metrics.ObserveDecideLatency(string(model.MethodFace), time.Since(start)) }()

	v, err := s.evaluateFace(ctx, raw, start)
	return s.finish(ctx, model.MethodFace, v, start, err)
}

func (s *AccessService) evaluateFace(ctx context.Context, raw []byte, now time.Time) (Verdict, error) {
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return storeErrorVerdict(), err
	}

	img, _, err := imaging.DecodeLimited(raw, s.maxPixels)
	if err != nil {
		return Verdict{
			Outcome:     model.OutcomeError,
			Reason:      ReasonDecodeError,
			Message:     "The image could not be read",
			SubjectName: model.UnknownSubject,
		}, err
	}

	probe := s.extract(ctx, img, cfg)

	gallery, err := s.gallery.ListActive(ctx)
	if err != nil {
		return storeErrorVerdict(), err
	}

	res, err := s.matcher.Match(ctx, probe, gallery)
	if err != nil {
		return storeErrorVerdict(), err
	}
	if res.Status == match.StatusMatched {
		s.metrics.ObserveMatchScore(string(res.Method), res.Score)
	}

	v := EvaluateFace(res, cfg)
	if v.Outcome == model.OutcomeGranted {
		if err := s.gallery.RecordAccess(ctx, v.SubjectID, now); err != nil {
			failed := storeErrorVerdict()
			failed.Score = v.Score
			failed.MatchMethod = v.MatchMethod
			failed.SubjectName = v.SubjectName
			return failed, fmt.Errorf("record access for %s: %w", v.SubjectID, err)
		}
	}
	return v, nil
}

// extract runs the engine when it is deployed and enabled by config.
func (s *AccessService) extract(ctx context.Context, img image.Image, cfg model.SystemConfig) match.Probe {
	probe := match.Probe{State: match.ProbeEngineUnavailable, Image: img}
	if s.extractor == nil || !s.matcher.Config().EngineAvailable || !cfg.Flag(model.FlagEngineComputer) {
		return probe
	}

	faces, err := s.extractor.Extract(ctx, img)
	if err != nil {
		s.metrics.IncrementExtraction("unavailable")
		s.logger.Warn("descriptor extraction failed, treating engine as unavailable", zap.Error(err))
		return probe
	}

	face, ok := engine.First(faces)
	if !ok {
		s.metrics.IncrementExtraction("no_face")
		probe.State = match.ProbeNoFace
		return probe
	}

	s.metrics.IncrementExtraction("detected")
	probe.State = match.ProbeDetected
	if s.dim > 0 && len(face.Descriptor) != s.dim {
		s.logger.Warn("extractor returned descriptor of unexpected size",
			zap.Int("got", len(face.Descriptor)), zap.Int("want", s.dim))
		return probe
	}
	probe.Descriptor = face.Descriptor
	return probe
}

func (s *AccessService) DecidePIN(ctx context.Context, pin string) (types.AccessResponse, error) {
	start := s.now()
	defer func() { s.metrics.ObserveDecideLatency(string(model.MethodPIN), time.Since(start)) }()

	cfg, err := s.config.Get(ctx)
	if err != nil {
		return s.finish(ctx, model.MethodPIN, storeErrorVerdict(), start, err)
	}
	return s.finish(ctx, model.MethodPIN, EvaluatePIN(pin, cfg), start, nil)
}

// finish appends the audit record and renders the response. cause is the
// error that produced v, if any; an audit failure is joined onto it.
func (s *AccessService) finish(ctx context.Context, method model.Method, v Verdict, at time.Time, cause error) (types.AccessResponse, error) {
	requestID := logging.RequestIDFromContext(ctx)
	if cause != nil {
		s.logger.Error("access decision failed",
			zap.Error(logging.NewOperationError("access."+strings.ToLower(string(method)), requestID, cause)))
	} else if terminal := v.Err(); terminal != nil {
		s.logger.Info("access not decidable", zap.String("request_id", requestID), zap.Error(terminal))
	}

	rec, err := s.audit.Append(ctx, model.AccessAttempt{
		Timestamp:   at,
		SubjectName: v.SubjectName,
		Method:      method,
		Outcome:     v.Outcome,
		Score:       v.Score,
		Reason:      v.Reason,
		MatchMethod: v.MatchMethod,
	})
	if err != nil {
		wrapped := logging.NewOperationError("access.audit_append", requestID, err)
		s.logger.Error("audit append failed", zap.Error(wrapped))
		if v.Outcome != model.OutcomeError {
			v = storeErrorVerdict()
		}
		cause = errors.Join(cause, wrapped)
	}

	s.metrics.IncrementOutcome(string(method), string(v.Outcome))

	return types.AccessResponse{
		OK:          cause == nil,
		Granted:     v.Outcome == model.OutcomeGranted,
		Outcome:     string(v.Outcome),
		Reason:      v.Reason,
		Message:     v.Message,
		Subject:     v.SubjectName,
		Score:       v.Score,
		MatchMethod: string(v.MatchMethod),
		AttemptID:   rec.ID,
		ServerTime:  s.now().Format(time.RFC3339Nano),
	}, cause
}

func storeErrorVerdict() Verdict {
	return Verdict{
		Outcome:     model.OutcomeError,
		Reason:      ReasonStoreError,
		Message:     "Access could not be decided, please retry",
		SubjectName: model.UnknownSubject,
	}
}
