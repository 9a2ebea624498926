package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tableNotes = "notes"

// NoteRepository manages notes
type NoteRepository interface {
	// Create stores a note; Timestamp defaults to now
	Create(ctx context.Context, n *Note) error
	Get(ctx context.Context, id uint) (*Note, error)
	List(ctx context.Context, filters Filters, opts ...ListOption) ([]Note, error)
	Update(ctx context.Context, n *Note) error
	Delete(ctx context.Context, id uint) ([]string, error)
}

type noteRepository struct {
	*base
}

// NewNoteRepository creates a NoteRepository
func NewNoteRepository(b *base) NoteRepository {
	return &noteRepository{base: b}
}

// validate checks the body and that at most one existing parent is referenced
func (r *noteRepository) validate(ctx context.Context, n *Note) error {
	fields := map[string]string{}
	if n.Body == "" {
		fields["body"] = "is required"
	}
	if n.parentCount() > 1 {
		fields["parent"] = "a note may reference at most one of plant_id, seed_packet_id, garden_supply_id"
	}

	parents := []struct {
		field string
		id    *uint
		model any
	}{
		{"plant_id", n.PlantID, &Plant{}},
		{"seed_packet_id", n.SeedPacketID, &SeedPacket{}},
		{"garden_supply_id", n.GardenSupplyID, &GardenSupply{}},
	}
	for _, p := range parents {
		if p.id == nil {
			continue
		}
		found, err := exists(r.db.WithContext(ctx), p.model, *p.id)
		if err != nil {
			return dbError(err, "get", tableNotes)
		}
		if !found {
			fields[p.field] = "referenced record does not exist"
		}
	}

	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

func (r *noteRepository) Create(ctx context.Context, n *Note) (err error) {
	defer r.observe("create", tableNotes, time.Now(), &err)

	if err := r.validate(ctx, n); err != nil {
		return err
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = r.now()
	}
	n.ID = 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(n).Error; err != nil {
		return dbError(err, "create", tableNotes)
	}
	return nil
}

func (r *noteRepository) Get(ctx context.Context, id uint) (_ *Note, err error) {
	defer r.observe("get", tableNotes, time.Now(), &err)

	var n Note
	err = r.db.WithContext(ctx).
		Preload("Plant").
		Preload("SeedPacket").
		Preload("GardenSupply").
		Preload("Images").
		First(&n, id).Error
	if err != nil {
		return nil, lookupError(err, resourceNote, id)
	}
	return &n, nil
}

func (r *noteRepository) List(ctx context.Context, filters Filters, opts ...ListOption) ([]Note, error) {
	return list[Note](ctx, r.base, tableNotes, filters, orderCol("timestamp", true),
		[]string{"Plant", "SeedPacket", "GardenSupply"}, opts...)
}

func (r *noteRepository) Update(ctx context.Context, n *Note) (err error) {
	defer r.observe("update", tableNotes, time.Now(), &err)

	var current Note
	if err := r.db.WithContext(ctx).First(&current, n.ID).Error; err != nil {
		return lookupError(err, resourceNote, n.ID)
	}
	if err := r.validate(ctx, n); err != nil {
		return err
	}
	if n.Timestamp.IsZero() {
		n.Timestamp = current.Timestamp
	}
	err = r.db.WithContext(ctx).Model(&current).
		Select("Body", "ImagePath", "Timestamp", "PlantID", "SeedPacketID", "GardenSupplyID").
		Updates(n).Error
	if err != nil {
		return dbError(err, "update", tableNotes)
	}
	return nil
}

func (r *noteRepository) Delete(ctx context.Context, id uint) (paths []string, err error) {
	defer r.observe("delete", tableNotes, time.Now(), &err)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		n := Note{ID: id}
		if err := tx.First(&n).Error; err != nil {
			return lookupError(err, resourceNote, id)
		}

		imageIDs, err := linkedImageIDs(tx, tableNoteImages, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&n).Association("Images").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&n).Error; err != nil {
			return err
		}

		orphans, err := deleteOrphanedImages(tx, imageIDs)
		if err != nil {
			return err
		}
		paths = append(appendPath(nil, n.ImagePath), orphans...)
		return nil
	})
	if err != nil {
		return nil, dbError(err, "delete", tableNotes)
	}
	return paths, nil
}
