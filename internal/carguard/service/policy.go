package service

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/match"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
)

// Verdict is the outcome of one decision before it is persisted.
type Verdict struct {
	Outcome     model.Outcome
	Reason      string // machine readable
	Message     string // shown to the user
	SubjectID   string
	SubjectName string
	Score       *float64
	MatchMethod model.MatchMethod
}

// Err names the terminal condition behind a non-matchable verdict, or nil.
func (v Verdict) Err() error {
	switch v.Reason {
	case ReasonNoCandidates:
		return ErrNoCandidates
	case ReasonNoFace:
		return ErrNoFaceDetected
	case ReasonEngineUnavailable:
		return ErrEngineUnavailable
	}
	return nil
}

// Reasons recorded with each verdict.
const (
	ReasonFaceMatched       = "face_matched"
	ReasonBelowThreshold    = "below_threshold"
	ReasonNoCandidates      = "no_enrolled_identities"
	ReasonNoFace            = "no_face_detected"
	ReasonEngineUnavailable = "engine_unavailable"
	ReasonDecodeError       = "image_decode_failed"
	ReasonStoreError        = "storage_error"
	ReasonPINAccepted       = "pin_accepted"
	ReasonPINRejected       = "pin_rejected"
)

// EvaluateFace maps a match result onto a verdict. A score equal to the
// threshold is granted. Non-matchable results pass through as their own
// outcomes, never as DENIED.
func EvaluateFace(res match.Result, cfg model.SystemConfig) Verdict {
	switch res.Status {
	case match.StatusNoCandidates:
		return Verdict{
			Outcome:     model.OutcomeNoCandidates,
			Reason:      ReasonNoCandidates,
			Message:     "No drivers are enrolled",
			SubjectName: model.UnknownSubject,
		}
	case match.StatusNoFaceDetected:
		return Verdict{
			Outcome:     model.OutcomeNoFace,
			Reason:      ReasonNoFace,
			Message:     "No face detected, please face the camera",
			SubjectName: model.UnknownSubject,
		}
	case match.StatusEngineUnavailable:
		return Verdict{
			Outcome:     model.OutcomeError,
			Reason:      ReasonEngineUnavailable,
			Message:     "Face verification is unavailable, use the emergency PIN",
			SubjectName: model.UnknownSubject,
		}
	}

	score := res.Score
	v := Verdict{Score: &score, MatchMethod: res.Method}
	if score >= cfg.RecognitionThreshold {
		v.Outcome = model.OutcomeGranted
		v.Reason = ReasonFaceMatched
		v.Message = "Welcome, " + res.DisplayName
		v.SubjectID = res.IdentityID
		v.SubjectName = res.DisplayName
		if res.Method == model.MatchFallback {
			v.Message += " (appearance match)"
		}
		return v
	}

	v.Outcome = model.OutcomeDenied
	v.Reason = ReasonBelowThreshold
	v.Message = "Face not recognised"
	v.SubjectName = model.UnknownSubject
	return v
}

// EvaluatePIN compares pin against the stored emergency hash.
func EvaluatePIN(pin string, cfg model.SystemConfig) Verdict {
	if VerifyPIN(pin, cfg.EmergencyPINHash) {
		return Verdict{
			Outcome:     model.OutcomeGranted,
			Reason:      ReasonPINAccepted,
			Message:     "PIN verified",
			SubjectName: model.UnknownSubject,
		}
	}
	return Verdict{
		Outcome:     model.OutcomeDenied,
		Reason:      ReasonPINRejected,
		Message:     "Invalid PIN",
		SubjectName: model.UnknownSubject,
	}
}

// HashPIN returns a bcrypt hash of pin.
func HashPIN(pin string) (string, error) {
	if len(pin) < 4 || len(pin) > 64 {
		return "", ErrInvalidPIN
	}
	h, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// VerifyPIN accepts bcrypt hashes and the unsalted SHA-256 hex hashes
// written by earlier deployments.
func VerifyPIN(pin, hash string) bool {
	if pin == "" || hash == "" {
		return false
	}
	if isLegacySHA256(hash) {
		sum := sha256.Sum256([]byte(pin))
		want := strings.ToLower(hash)
		return subtle.ConstantTimeCompare([]byte(hex.EncodeToString(sum[:])), []byte(want)) == 1
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin)) == nil
}

func isLegacySHA256(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	_, err := hex.DecodeString(hash)
	return err == nil
}
