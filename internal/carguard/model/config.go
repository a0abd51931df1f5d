package model

import "time"

// Feature flags carried over from the first deployment's config file.
const (
	FlagEngineComputer = "engine_computer_enabled"
	FlagGPSTracking    = "gps_tracking_enabled"
)

// SystemConfig is the single live configuration document of a deployment.
type SystemConfig struct {
	RecognitionThreshold float64         `json:"recognition_threshold"`
	EmergencyPINHash     string          `json:"emergency_pin_hash"`
	FeatureFlags         map[string]bool `json:"feature_flags"`
	SystemVersion        string          `json:"system_version,omitempty"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// Flag returns the named feature flag, false when unset.
func (c SystemConfig) Flag(name string) bool {
	return c.FeatureFlags[name]
}
