package service

import (
	"context"
	"strings"
	"time"

	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/model"
	"github.com/BrandonDHaskell/Carguard/server/internal/carguard/vault"
)

const galleryResource = "gallery"

// Gallery is the repository of enrolled identities. The whole gallery is
// one sealed document; every mutation is a locked read-modify-write.
type Gallery struct {
	vault         *vault.Store
	descriptorDim int
}

// NewGallery enforces descriptorDim on enroll when it is positive.
func NewGallery(v *vault.Store, descriptorDim int) *Gallery {
	return &Gallery{vault: v, descriptorDim: descriptorDim}
}

// Enroll adds a new ACTIVE identity with zero accesses. A duplicate id is
// rejected without touching the stored document.
func (g *Gallery) Enroll(ctx context.Context, in model.EnrolledIdentity) (model.EnrolledIdentity, error) {
	in.ID = strings.TrimSpace(in.ID)
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	if in.ID == "" || in.DisplayName == "" {
		return model.EnrolledIdentity{}, ErrInvalidIdentity
	}
	if err := g.CheckDescriptor(in.Descriptor); err != nil {
		return model.EnrolledIdentity{}, err
	}

	in.Status = model.StatusActive
	in.AccessCount = 0
	in.LastAccess = nil
	if in.EnrolledAt.IsZero() {
		in.EnrolledAt = time.Now().UTC()
	}

	err := vault.Update(ctx, g.vault, galleryResource, func(doc *model.GalleryDocument, _ bool) error {
		for _, e := range doc.Identities {
			if e.ID == in.ID {
				return ErrDuplicateIdentity
			}
		}
		doc.Identities = append(doc.Identities, in)
		return nil
	})
	if err != nil {
		return model.EnrolledIdentity{}, err
	}
	return in, nil
}

// CheckDescriptor accepts an empty descriptor or one of the gallery's dimension.
func (g *Gallery) CheckDescriptor(d model.Descriptor) error {
	if len(d) > 0 && g.descriptorDim > 0 && len(d) != g.descriptorDim {
		return ErrInvalidDescriptor
	}
	return nil
}

// List returns every identity, revoked ones included.
func (g *Gallery) List(ctx context.Context) ([]model.EnrolledIdentity, error) {
	doc, _, err := vault.Load[model.GalleryDocument](ctx, g.vault, galleryResource)
	if err != nil {
		return nil, err
	}
	return doc.Identities, nil
}

func (g *Gallery) ListActive(ctx context.Context) ([]model.EnrolledIdentity, error) {
	all, err := g.List(ctx)
	if err != nil {
		return nil, err
	}
	active := all[:0:0]
	for _, e := range all {
		if e.Status == model.StatusActive {
			active = append(active, e)
		}
	}
	return active, nil
}

func (g *Gallery) FindByID(ctx context.Context, id string) (model.EnrolledIdentity, bool, error) {
	all, err := g.List(ctx)
	if err != nil {
		return model.EnrolledIdentity{}, false, err
	}
	for _, e := range all {
		if e.ID == id {
			return e, true, nil
		}
	}
	return model.EnrolledIdentity{}, false, nil
}

// RecordAccess increments access_count by one and sets last_access to at.
func (g *Gallery) RecordAccess(ctx context.Context, id string, at time.Time) error {
	at = at.UTC()
	return g.mutate(ctx, id, func(e *model.EnrolledIdentity) {
		e.AccessCount++
		e.LastAccess = &at
	})
}

// SetStatus is the only way an identity leaves the candidate set.
func (g *Gallery) SetStatus(ctx context.Context, id string, status model.Status) error {
	if !status.Valid() {
		return ErrInvalidStatus
	}
	return g.mutate(ctx, id, func(e *model.EnrolledIdentity) {
		e.Status = status
	})
}

func (g *Gallery) mutate(ctx context.Context, id string, fn func(e *model.EnrolledIdentity)) error {
	return vault.Update(ctx, g.vault, galleryResource, func(doc *model.GalleryDocument, _ bool) error {
		for i := range doc.Identities {
			if doc.Identities[i].ID == id {
				fn(&doc.Identities[i])
				return nil
			}
		}
		return ErrNotFound
	})
}
