package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/types"
)

// ── Identities ───────────────────────────────────────────────────────────────

func (s *Server) handleListIdentities(w http.ResponseWriter, r *http.Request) {
	ids, err := s.gallery.List(r.Context())
	if err != nil {
		s.internalError(w, r, "identities.list", err)
		return
	}

	views := make([]types.IdentityView, 0, len(ids))
	for _, e := range ids {
		views = append(views, identityView(e))
	}
	writeJSON(w, http.StatusOK, types.IdentitiesResponse{Count: len(views), Identities: views})
}

// handleEnroll takes multipart/form-data with id, display_name, phone,
// vehicle_registration and an image file.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readImage(w, r)
	if err != nil {
		uploadError(w, err)
		return
	}

	req := types.EnrollRequest{
		ID:                  strings.TrimSpace(r.FormValue("id")),
		DisplayName:         strings.TrimSpace(r.FormValue("display_name")),
		Phone:               strings.TrimSpace(r.FormValue("phone")),
		VehicleRegistration: strings.TrimSpace(r.FormValue("vehicle_registration")),
		Image:               raw,
	}
	if !s.validateBody(w, &req) {
		return
	}

	enrolled, err := s.enrollment.Enroll(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrDuplicateIdentity):
			writeError(w, http.StatusConflict, "duplicate_identity", err.Error())
		case errors.Is(err, service.ErrDecode):
			writeError(w, http.StatusBadRequest, "image_decode_failed", "the image could not be read")
		case errors.Is(err, service.ErrNoFaceDetected):
			writeError(w, http.StatusUnprocessableEntity, "no_face_detected", err.Error())
		case errors.Is(err, service.ErrInvalidIdentity), errors.Is(err, service.ErrInvalidDescriptor):
			writeError(w, http.StatusBadRequest, "invalid_identity", err.Error())
		case errors.Is(err, service.ErrEngineUnavailable):
			writeError(w, http.StatusServiceUnavailable, "engine_unavailable", err.Error())
		default:
			s.internalError(w, r, "identities.enroll", err)
		}
		return
	}

	writeJSON(w, http.StatusCreated, identityView(enrolled))
}

func (s *Server) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req types.StatusRequest
	if !s.decodeJSON(w, r, maxJSONBody, &req) {
		return
	}

	if err := s.gallery.SetStatus(r.Context(), id, model.Status(req.Status)); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", err.Error())
		case errors.Is(err, service.ErrInvalidStatus):
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
		default:
			s.internalError(w, r, "identities.set_status", err)
		}
		return
	}

	e, ok, err := s.gallery.FindByID(r.Context(), id)
	if err != nil || !ok {
		s.internalError(w, r, "identities.set_status", errors.Join(err, service.ErrNotFound))
		return
	}
	writeJSON(w, http.StatusOK, identityView(e))
}

func identityView(e model.EnrolledIdentity) types.IdentityView {
	v := types.IdentityView{
		ID:                  e.ID,
		DisplayName:         e.DisplayName,
		Phone:               e.Phone,
		VehicleRegistration: e.VehicleRegistration,
		EnrolledAt:          e.EnrolledAt.UTC().Format(time.RFC3339Nano),
		Status:              string(e.Status),
		EncodingAvailable:   e.EncodingAvailable(),
		AccessCount:         e.AccessCount,
	}
	if e.LastAccess != nil {
		last := e.LastAccess.UTC().Format(time.RFC3339Nano)
		v.LastAccess = &last
	}
	return v
}

// ── Attempts and stats ───────────────────────────────────────────────────────

func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var outcome *model.Outcome
	if raw := strings.TrimSpace(q.Get("outcome")); raw != "" {
		o := model.Outcome(strings.ToUpper(raw))
		if !o.Valid() {
			writeError(w, http.StatusBadRequest, "invalid_outcome", "unknown outcome "+strconv.Quote(raw))
			return
		}
		outcome = &o
	}

	limit := 0
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer")
			return
		}
		limit = n
	}

	attempts, err := s.audit.Query(r.Context(), outcome, limit)
	if err != nil {
		s.internalError(w, r, "attempts.query", err)
		return
	}

	views := make([]types.AttemptView, 0, len(attempts))
	for _, a := range attempts {
		views = append(views, types.AttemptView{
			ID:          a.ID,
			Timestamp:   a.Timestamp.UTC().Format(time.RFC3339Nano),
			SubjectName: a.SubjectName,
			Method:      string(a.Method),
			Outcome:     string(a.Outcome),
			Score:       a.Score,
			Reason:      a.Reason,
			MatchMethod: string(a.MatchMethod),
		})
	}
	writeJSON(w, http.StatusOK, types.AttemptsResponse{Count: len(views), Attempts: views})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, "stats", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// ── Config ───────────────────────────────────────────────────────────────────

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.config.Get(r.Context())
	if err != nil {
		s.internalError(w, r, "config.get", err)
		return
	}
	writeJSON(w, http.StatusOK, configView(cfg))
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var req types.ConfigUpdateRequest
	if !s.decodeJSON(w, r, maxJSONBody, &req) {
		return
	}

	cfg, err := s.config.Update(r.Context(), service.ConfigPatch{
		RecognitionThreshold: req.RecognitionThreshold,
		EmergencyPIN:         req.EmergencyPIN,
		FeatureFlags:         req.FeatureFlags,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidThreshold), errors.Is(err, service.ErrInvalidPIN):
			writeError(w, http.StatusBadRequest, "invalid_config", err.Error())
		default:
			s.internalError(w, r, "config.update", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, configView(cfg))
}

// configView never carries the PIN hash.
func configView(c model.SystemConfig) types.ConfigView {
	flags := c.FeatureFlags
	if flags == nil {
		flags = map[string]bool{}
	}
	return types.ConfigView{
		RecognitionThreshold: c.RecognitionThreshold,
		FeatureFlags:         flags,
		SystemVersion:        c.SystemVersion,
		UpdatedAt:            c.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, types.HealthResponse{
		OK:              true,
		Backend:         s.backend,
		EngineAvailable: s.engineAvailable,
		FallbackEnabled: s.fallbackEnabled,
		ServerTime:      time.Now().UTC().Format(time.RFC3339Nano),
	})
}
