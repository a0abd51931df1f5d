package service

import (
	"context"
	"errors"
	"image"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/engine"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/imaging"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/types"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/vault"
)

type EnrollmentDeps struct {
	Gallery         *Gallery
	Config          *ConfigService
	Vault           *vault.Store
	Extractor       engine.Extractor
	EngineAvailable bool
	Logger          *zap.Logger

	// MaxImagePixels bounds decoded photos; zero means imaging.DefaultMaxPixels.
	MaxImagePixels int
}

// EnrollmentService registers a driver from a reference photo.
type EnrollmentService struct {
	gallery   *Gallery
	config    *ConfigService
	vault     *vault.Store
	extractor engine.Extractor
	engineOn  bool
	maxPixels int
	logger    *zap.Logger
}

func NewEnrollmentService(d EnrollmentDeps) *EnrollmentService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{
		gallery:   d.Gallery,
		config:    d.Config,
		vault:     d.Vault,
		extractor: d.Extractor,
		engineOn:  d.EngineAvailable && d.Extractor != nil,
		maxPixels: d.MaxImagePixels,
		logger:    logger.Named("enrollment"),
	}
}

// Enroll decodes the photo, extracts a descriptor when the engine is up,
// seals the photo as the fallback reference and adds the identity.
// A photo in which the engine finds no face is rejected. Without an
// engine the identity is enrolled with no descriptor.
func (s *EnrollmentService) Enroll(ctx context.Context, req types.EnrollRequest) (model.EnrolledIdentity, error) {
	id := strings.TrimSpace(req.ID)
	name := strings.TrimSpace(req.DisplayName)
	if id == "" || name == "" {
		return model.EnrolledIdentity{}, ErrInvalidIdentity
	}

	// Cheap pre-check so a duplicate does not leave a sealed image behind.
	// Gallery.Enroll still decides under the lock.
	if _, exists, err := s.gallery.FindByID(ctx, id); err != nil {
		return model.EnrolledIdentity{}, err
	} else if exists {
		return model.EnrolledIdentity{}, ErrDuplicateIdentity
	}

	img, _, err := imaging.DecodeLimited(req.Image, s.maxPixels)
	if err != nil {
		return model.EnrolledIdentity{}, err
	}

	desc, err := s.describe(ctx, img)
	if err != nil {
		return model.EnrolledIdentity{}, err
	}

	handle := "faces/" + id + "/" + uuid.NewString()
	if err := s.vault.PutRaw(ctx, handle, req.Image); err != nil {
		return model.EnrolledIdentity{}, err
	}

	enrolled, err := s.gallery.Enroll(ctx, model.EnrolledIdentity{
		ID:                   id,
		DisplayName:          name,
		Phone:                strings.TrimSpace(req.Phone),
		VehicleRegistration:  strings.TrimSpace(req.VehicleRegistration),
		Descriptor:           desc,
		ReferenceImageHandle: handle,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateIdentity) {
			s.logger.Warn("duplicate enrollment raced, reference image orphaned", zap.String("handle", handle))
		}
		return model.EnrolledIdentity{}, err
	}

	s.logger.Info("identity enrolled",
		zap.String("identity_id", enrolled.ID),
		zap.Bool("encoding_available", enrolled.EncodingAvailable()),
	)
	return enrolled, nil
}

func (s *EnrollmentService) describe(ctx context.Context, img image.Image) (model.Descriptor, error) {
	if !s.engineOn {
		return nil, nil
	}
	cfg, err := s.config.Get(ctx)
	if err != nil {
		return nil, err
	}
	if !cfg.Flag(model.FlagEngineComputer) {
		return nil, nil
	}

	faces, err := s.extractor.Extract(ctx, img)
	if err != nil {
		s.logger.Warn("extraction failed during enrollment, enrolling without descriptor", zap.Error(err))
		return nil, nil
	}
	face, ok := engine.First(faces)
	if !ok {
		return nil, ErrNoFaceDetected
	}
	if err := s.gallery.CheckDescriptor(face.Descriptor); err != nil {
		return nil, err
	}
	return face.Descriptor, nil
}

// ReferenceImages resolves gallery image handles for the fallback matcher.
type ReferenceImages struct {
	Vault *vault.Store
}

func (r ReferenceImages) LoadReference(ctx context.Context, handle string) (image.Image, error) {
	raw, err := r.Vault.GetRaw(ctx, handle)
	if err != nil {
		return nil, err
	}
	img, _, err := imaging.Decode(raw)
	return img, err
}
