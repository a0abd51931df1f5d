package types

type ConfigView struct {
	RecognitionThreshold float64         `json:"recognition_threshold"`
	FeatureFlags         map[string]bool `json:"feature_flags"`
	SystemVersion        string          `json:"system_version,omitempty"`
	UpdatedAt            string          `json:"updated_at"`
}

type ConfigUpdateRequest struct {
	RecognitionThreshold *float64        `json:"recognition_threshold,omitempty" validate:"omitempty,gte=0,lte=1"`
	EmergencyPIN         *string         `json:"emergency_pin,omitempty" validate:"omitempty,min=4,max=64"`
	FeatureFlags         map[string]bool `json:"feature_flags,omitempty"`
}

type StatsResponse struct {
	TotalIdentities  int     `json:"total_identities"`
	ActiveIdentities int     `json:"active_identities"`
	TotalAttempts    int     `json:"total_attempts"`
	Granted          int     `json:"granted"`
	Denied           int     `json:"denied"`
	SuccessRate      float64 `json:"success_rate"`
}

type HealthResponse struct {
	OK              bool   `json:"ok"`
	Backend         string `json:"backend"`
	EngineAvailable bool   `json:"engine_available"`
	FallbackEnabled bool   `json:"fallback_enabled"`
	ServerTime      string `json:"server_time"`
}
