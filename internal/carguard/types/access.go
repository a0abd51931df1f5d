package types

type AccessRequest struct {
	Method string `json:"method" validate:"required,oneof=FACE PIN"`
	Image  []byte `json:"image,omitempty"` // FACE: raw jpeg/png/webp bytes
	PIN    string `json:"pin,omitempty"`   // PIN
}

type PINRequest struct {
	PIN string `json:"pin" validate:"required,max=64"`
}

type AccessResponse struct {
	OK          bool     `json:"ok"`
	Granted     bool     `json:"granted"`
	Outcome     string   `json:"outcome"`
	Reason      string   `json:"reason"`
	Message     string   `json:"message"`
	Subject     string   `json:"subject"`
	Score       *float64 `json:"score,omitempty"`
	MatchMethod string   `json:"match_method,omitempty"`
	AttemptID   string   `json:"attempt_id,omitempty"`
	ServerTime  string   `json:"server_time"`
}

type AttemptView struct {
	ID          string   `json:"id"`
	Timestamp   string   `json:"timestamp"`
	SubjectName string   `json:"subject_name"`
	Method      string   `json:"method"`
	Outcome     string   `json:"outcome"`
	Score       *float64 `json:"score,omitempty"`
	Reason      string   `json:"reason,omitempty"`
	MatchMethod string   `json:"match_method,omitempty"`
}

type AttemptsResponse struct {
	Count    int           `json:"count"`
	Attempts []AttemptView `json:"attempts"`
}
