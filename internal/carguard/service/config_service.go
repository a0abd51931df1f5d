package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/vault"
)

const (
	configResource = "config"

	DefaultRecognitionThreshold = 0.6

	// defaultPIN is installed on first run so the vehicle is never locked
	// out. It is publicly known and must be rotated.
	defaultPIN = "1234"
)

// ConfigPatch carries the fields an administrator wants to change. Nil
// fields are left alone; flags are merged key by key.
type ConfigPatch struct {
	RecognitionThreshold *float64
	EmergencyPIN         *string
	FeatureFlags         map[string]bool
}

type ConfigService struct {
	vault   *vault.Store
	version string
	logger  *zap.Logger
}

func NewConfigService(v *vault.Store, systemVersion string, logger *zap.Logger) *ConfigService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigService{vault: v, version: systemVersion, logger: logger.Named("config_service")}
}

// Get returns the live config, installing defaults on first use.
func (s *ConfigService) Get(ctx context.Context) (model.SystemConfig, error) {
	var out model.SystemConfig
	err := vault.Update(ctx, s.vault, configResource, func(doc *model.SystemConfig, found bool) error {
		if found {
			out = *doc
			return vault.ErrNoChange
		}
		def, err := s.defaults()
		if err != nil {
			return err
		}
		*doc = def
		out = def
		return nil
	})
	if err != nil {
		return model.SystemConfig{}, err
	}
	return out, nil
}

// Update merges patch into the persisted config. Validation happens before
// anything is written.
func (s *ConfigService) Update(ctx context.Context, patch ConfigPatch) (model.SystemConfig, error) {
	if t := patch.RecognitionThreshold; t != nil && (math.IsNaN(*t) || *t < 0 || *t > 1) {
		return model.SystemConfig{}, ErrInvalidThreshold
	}

	var pinHash string
	if patch.EmergencyPIN != nil {
		h, err := HashPIN(*patch.EmergencyPIN)
		if err != nil {
			return model.SystemConfig{}, err
		}
		pinHash = h
	}

	var out model.SystemConfig
	err := vault.Update(ctx, s.vault, configResource, func(doc *model.SystemConfig, found bool) error {
		if !found {
			def, err := s.defaults()
			if err != nil {
				return err
			}
			*doc = def
		}
		if patch.RecognitionThreshold != nil {
			doc.RecognitionThreshold = *patch.RecognitionThreshold
		}
		if pinHash != "" {
			doc.EmergencyPINHash = pinHash
		}
		if len(patch.FeatureFlags) > 0 && doc.FeatureFlags == nil {
			doc.FeatureFlags = make(map[string]bool, len(patch.FeatureFlags))
		}
		for k, v := range patch.FeatureFlags {
			doc.FeatureFlags[k] = v
		}
		doc.UpdatedAt = time.Now().UTC()
		out = *doc
		return nil
	})
	if err != nil {
		return model.SystemConfig{}, err
	}

	s.logger.Info("config updated",
		zap.Float64("recognition_threshold", out.RecognitionThreshold),
		zap.Bool("pin_rotated", pinHash != ""),
	)
	return out, nil
}

func (s *ConfigService) defaults() (model.SystemConfig, error) {
	hash, err := HashPIN(defaultPIN)
	if err != nil {
		return model.SystemConfig{}, err
	}
	s.logger.Warn("installed default config with the well-known emergency PIN; rotate it via PATCH /v1/config")

	return model.SystemConfig{
		RecognitionThreshold: DefaultRecognitionThreshold,
		EmergencyPINHash:     hash,
		FeatureFlags: map[string]bool{
			model.FlagEngineComputer: true,
			model.FlagGPSTracking:    true,
		},
		SystemVersion: s.version,
		UpdatedAt:     time.Now().UTC(),
	}, nil
}
