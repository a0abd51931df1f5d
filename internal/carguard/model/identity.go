package model

import "time"

// Status is the lifecycle state of an enrolled identity. REVOKED is the
// only deletion path; identities are never physically removed.
type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusRevoked Status = "REVOKED"
)

func (s Status) Valid() bool {
	return s == StatusActive || s == StatusRevoked
}

// Descriptor is a face embedding of the deployment-fixed dimension.
type Descriptor []float64

// EnrolledIdentity is one entry in the gallery document.
type EnrolledIdentity struct {
	ID                   string     `json:"id"`
	DisplayName          string     `json:"display_name"`
	Phone                string     `json:"phone,omitempty"`
	VehicleRegistration  string     `json:"vehicle_registration,omitempty"`
	Descriptor           Descriptor `json:"descriptor,omitempty"`
	ReferenceImageHandle string     `json:"reference_image_handle,omitempty"`
	EnrolledAt           time.Time  `json:"enrolled_at"`
	Status               Status     `json:"status"`
	AccessCount          int64      `json:"access_count"`
	LastAccess           *time.Time `json:"last_access,omitempty"`
}

// EncodingAvailable reports whether descriptor matching can consider this identity.
func (e EnrolledIdentity) EncodingAvailable() bool {
	return len(e.Descriptor) > 0
}

// GalleryDocument is the persisted shape of the gallery resource.
type GalleryDocument struct {
	Identities []EnrolledIdentity `json:"identities"`
}
