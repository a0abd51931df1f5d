package service

import (
	"errors"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/engine"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/imaging"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/vault"
)

var (
	ErrDecode            = imaging.ErrDecode
	ErrEngineUnavailable = engine.ErrUnavailable
	ErrStoreCorrupt      = vault.ErrStoreCorrupt

	ErrNoFaceDetected    = errors.New("no face detected in image")
	ErrNoCandidates      = errors.New("no active identities enrolled")
	ErrDuplicateIdentity = errors.New("identity already enrolled")
	ErrNotFound          = errors.New("identity not found")
	ErrChainBroken       = errors.New("audit chain broken")

	ErrInvalidIdentity   = errors.New("id and display_name are required")
	ErrInvalidDescriptor = errors.New("descriptor has wrong dimension")
	ErrInvalidStatus     = errors.New("status must be ACTIVE or REVOKED")
	ErrInvalidThreshold  = errors.New("recognition_threshold must be within [0,1]")
	ErrInvalidPIN        = errors.New("pin must be 4 to 64 characters")
	ErrInvalidMethod     = errors.New("method must be FACE or PIN")
)
