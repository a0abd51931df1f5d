package httpapi

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/service"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/types"
	"github.com/BrandonDHaskell/Carguard/server/internal/logging"
)

// handleAccess accepts the combined JSON form: {"method":"FACE","image":"<base64>"}
// or {"method":"PIN","pin":"..."}.
func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	var req types.AccessRequest
	// base64 inflates by 4/3
	if !s.decodeJSON(w, r, s.maxUpload/3*4+maxJSONBody, &req) {
		return
	}

	resp, err := s.access.Decide(r.Context(), req)
	s.respondDecision(w, r, "access", resp, err)
}

func (s *Server) handleAccessFace(w http.ResponseWriter, r *http.Request) {
	raw, err := s.readImage(w, r)
	if err != nil {
		uploadError(w, err)
		return
	}

	resp, err := s.access.DecideFace(r.Context(), raw)
	s.respondDecision(w, r, "access.face", resp, err)
}

func (s *Server) handleAccessPIN(w http.ResponseWriter, r *http.Request) {
	var req types.PINRequest
	if !s.decodeJSON(w, r, maxJSONBody, &req) {
		return
	}

	resp, err := s.access.DecidePIN(r.Context(), req.PIN)
	s.respondDecision(w, r, "access.pin", resp, err)
}

// respondDecision maps a decision and its error to a status. The decision
// body is returned even on failure since it names the recorded attempt.
func (s *Server) respondDecision(w http.ResponseWriter, r *http.Request, op string, resp types.AccessResponse, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, service.ErrInvalidMethod):
		writeError(w, http.StatusBadRequest, "invalid_method", err.Error())
	case errors.Is(err, service.ErrDecode):
		writeJSON(w, http.StatusBadRequest, resp)
	default:
		s.logOpError(r, op, err)
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

func (s *Server) logOpError(r *http.Request, op string, err error) {
	requestID := logging.RequestIDFromContext(r.Context())
	logging.WithOperation(s.logger, op, requestID).
		Error("request failed", zap.Error(logging.NewOperationError(op, requestID, err)))
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, op string, err error) {
	s.logOpError(r, op, err)
	writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
}
