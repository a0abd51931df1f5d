package types

type EnrollRequest struct {
	ID                  string `validate:"required,max=64,identity_id"`
	DisplayName         string `validate:"required,max=128"`
	Phone               string `validate:"omitempty,max=32"`
	VehicleRegistration string `validate:"omitempty,max=32"`
	Image               []byte `validate:"required"`
}

// IdentityView is the admin listing shape: descriptors and image handles
// never leave the server.
type IdentityView struct {
	ID                  string  `json:"id"`
	DisplayName         string  `json:"display_name"`
	Phone               string  `json:"phone,omitempty"`
	VehicleRegistration string  `json:"vehicle_registration,omitempty"`
	EnrolledAt          string  `json:"enrolled_at"`
	Status              string  `json:"status"`
	EncodingAvailable   bool    `json:"encoding_available"`
	AccessCount         int64   `json:"access_count"`
	LastAccess          *string `json:"last_access,omitempty"`
}

type IdentitiesResponse struct {
	Count      int            `json:"count"`
	Identities []IdentityView `json:"identities"`
}

type StatusRequest struct {
	Status string `json:"status" validate:"required,oneof=ACTIVE REVOKED"`
}
