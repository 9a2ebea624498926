package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gardentracker/gardentracker/internal/logger"
)

const tableSeedPackets = "seed_packets"

// seedPacketColumns are the columns written by Update
var seedPacketColumns = []string{
	"Name", "Variety", "Description", "PlantingInstructions", "DaysToGermination",
	"Spacing", "SunExposure", "SoilType", "Watering", "Fertilizer",
	"PackageWeight", "ExpirationDate", "Quantity", "ImagePath",
}

// SeedPacketRepository manages seed packets
type SeedPacketRepository interface {
	Create(ctx context.Context, sp *SeedPacket) error
	Get(ctx context.Context, id uint) (*SeedPacket, error)
	List(ctx context.Context, filters Filters, opts ...ListOption) ([]SeedPacket, error)
	// Update writes every editable column of sp, including nil ones
	Update(ctx context.Context, sp *SeedPacket) error
	// Delete unlinks plants and notes and returns image paths to remove
	Delete(ctx context.Context, id uint) ([]string, error)
	// Duplicate copies the packet; the image file is copied best-effort
	Duplicate(ctx context.Context, id uint) (*SeedPacket, error)
}

type seedPacketRepository struct {
	*base
	copier FileCopier
}

// NewSeedPacketRepository creates a SeedPacketRepository
func NewSeedPacketRepository(b *base, copier FileCopier) SeedPacketRepository {
	return &seedPacketRepository{base: b, copier: copier}
}

func validateSeedPacket(sp *SeedPacket) error {
	fields := map[string]string{}
	if sp.Name == "" {
		fields["name"] = "is required"
	}
	if sp.Quantity < 0 {
		fields["quantity"] = "must not be negative"
	}
	if sp.DaysToGermination != nil && *sp.DaysToGermination < 0 {
		fields["days_to_germination"] = "must not be negative"
	}
	if sp.PackageWeight != nil && *sp.PackageWeight < 0 {
		fields["package_weight"] = "must not be negative"
	}
	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

func (r *seedPacketRepository) Create(ctx context.Context, sp *SeedPacket) (err error) {
	defer r.observe("create", tableSeedPackets, time.Now(), &err)

	if err := validateSeedPacket(sp); err != nil {
		return err
	}
	sp.ID = 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(sp).Error; err != nil {
		return dbError(err, "create", tableSeedPackets)
	}
	return nil
}

func (r *seedPacketRepository) Get(ctx context.Context, id uint) (_ *SeedPacket, err error) {
	defer r.observe("get", tableSeedPackets, time.Now(), &err)

	var sp SeedPacket
	err = r.db.WithContext(ctx).
		Preload("Plants", orderByName).
		Preload("Notes", orderByTimestampDesc).
		Preload("Images").
		First(&sp, id).Error
	if err != nil {
		return nil, lookupError(err, resourceSeedPacket, id)
	}
	return &sp, nil
}

func (r *seedPacketRepository) List(ctx context.Context, filters Filters, opts ...ListOption) ([]SeedPacket, error) {
	return list[SeedPacket](ctx, r.base, tableSeedPackets, filters, orderCol("name", false), nil, opts...)
}

func (r *seedPacketRepository) Update(ctx context.Context, sp *SeedPacket) (err error) {
	defer r.observe("update", tableSeedPackets, time.Now(), &err)

	var current SeedPacket
	if err := r.db.WithContext(ctx).First(&current, sp.ID).Error; err != nil {
		return lookupError(err, resourceSeedPacket, sp.ID)
	}
	if err := validateSeedPacket(sp); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Model(&current).Select(seedPacketColumns).Updates(sp).Error; err != nil {
		return dbError(err, "update", tableSeedPackets)
	}
	sp.CreatedAt = current.CreatedAt
	return nil
}

func (r *seedPacketRepository) Delete(ctx context.Context, id uint) (paths []string, err error) {
	defer r.observe("delete", tableSeedPackets, time.Now(), &err)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sp := SeedPacket{ID: id}
		if err := tx.First(&sp).Error; err != nil {
			return lookupError(err, resourceSeedPacket, id)
		}

		imageIDs, err := linkedImageIDs(tx, tableSeedPacketImages, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&Plant{}).Where("seed_packet_id = ?", id).Update("seed_packet_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&Note{}).Where("seed_packet_id = ?", id).Update("seed_packet_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&sp).Association("Images").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&sp).Error; err != nil {
			return err
		}

		orphans, err := deleteOrphanedImages(tx, imageIDs)
		if err != nil {
			return err
		}
		paths = append(appendPath(nil, sp.ImagePath), orphans...)
		return nil
	})
	if err != nil {
		return nil, dbError(err, "delete", tableSeedPackets)
	}
	r.log.Debug("seed packet deleted", logger.Uint("id", id), logger.Int("orphaned_files", len(paths)))
	return paths, nil
}

func (r *seedPacketRepository) Duplicate(ctx context.Context, id uint) (_ *SeedPacket, err error) {
	defer r.observe("duplicate", tableSeedPackets, time.Now(), &err)

	var original SeedPacket
	if err := r.db.WithContext(ctx).First(&original, id).Error; err != nil {
		return nil, lookupError(err, resourceSeedPacket, id)
	}

	dup := original
	dup.ID = 0
	dup.CreatedAt = time.Time{}
	dup.UpdatedAt = time.Time{}
	dup.Name = withSuffix(original.Name)
	dup.ImagePath = r.copyImageFile(r.copier, original.ImagePath, resourceSeedPacket, id)

	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&dup).Error; err != nil {
		r.discardCopy(r.copier, dup.ImagePath)
		return nil, dbError(err, "duplicate", tableSeedPackets)
	}
	return &dup, nil
}
