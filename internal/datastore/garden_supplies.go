package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tableGardenSupplies = "garden_supplies"

// GardenSupplyRepository manages garden supplies
type GardenSupplyRepository interface {
	Create(ctx context.Context, gs *GardenSupply) error
	Get(ctx context.Context, id uint) (*GardenSupply, error)
	List(ctx context.Context, filters Filters, opts ...ListOption) ([]GardenSupply, error)
	Update(ctx context.Context, gs *GardenSupply) error
	Delete(ctx context.Context, id uint) ([]string, error)
	Duplicate(ctx context.Context, id uint) (*GardenSupply, error)
}

type gardenSupplyRepository struct {
	*base
	copier FileCopier
}

// NewGardenSupplyRepository creates a GardenSupplyRepository
func NewGardenSupplyRepository(b *base, copier FileCopier) GardenSupplyRepository {
	return &gardenSupplyRepository{base: b, copier: copier}
}

func validateGardenSupply(gs *GardenSupply) error {
	if gs.Name == "" {
		return validationError(map[string]string{"name": "is required"})
	}
	return nil
}

func (r *gardenSupplyRepository) Create(ctx context.Context, gs *GardenSupply) (err error) {
	defer r.observe("create", tableGardenSupplies, time.Now(), &err)

	if err := validateGardenSupply(gs); err != nil {
		return err
	}
	gs.ID = 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(gs).Error; err != nil {
		return dbError(err, "create", tableGardenSupplies)
	}
	return nil
}

func (r *gardenSupplyRepository) Get(ctx context.Context, id uint) (_ *GardenSupply, err error) {
	defer r.observe("get", tableGardenSupplies, time.Now(), &err)

	var gs GardenSupply
	err = r.db.WithContext(ctx).
		Preload("Plants", orderByName).
		Preload("Notes", orderByTimestampDesc).
		Preload("Images").
		First(&gs, id).Error
	if err != nil {
		return nil, lookupError(err, resourceGardenSupply, id)
	}
	return &gs, nil
}

func (r *gardenSupplyRepository) List(ctx context.Context, filters Filters, opts ...ListOption) ([]GardenSupply, error) {
	return list[GardenSupply](ctx, r.base, tableGardenSupplies, filters, orderCol("name", false), nil, opts...)
}

func (r *gardenSupplyRepository) Update(ctx context.Context, gs *GardenSupply) (err error) {
	defer r.observe("update", tableGardenSupplies, time.Now(), &err)

	var current GardenSupply
	if err := r.db.WithContext(ctx).First(&current, gs.ID).Error; err != nil {
		return lookupError(err, resourceGardenSupply, gs.ID)
	}
	if err := validateGardenSupply(gs); err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Model(&current).
		Select("Name", "Description", "ImagePath").
		Updates(gs).Error
	if err != nil {
		return dbError(err, "update", tableGardenSupplies)
	}
	gs.CreatedAt = current.CreatedAt
	return nil
}

func (r *gardenSupplyRepository) Delete(ctx context.Context, id uint) (paths []string, err error) {
	defer r.observe("delete", tableGardenSupplies, time.Now(), &err)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		gs := GardenSupply{ID: id}
		if err := tx.First(&gs).Error; err != nil {
			return lookupError(err, resourceGardenSupply, id)
		}

		imageIDs, err := linkedImageIDs(tx, tableGardenSupplyImages, id)
		if err != nil {
			return err
		}
		if err := tx.Model(&Note{}).Where("garden_supply_id = ?", id).Update("garden_supply_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&gs).Association("Plants").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&gs).Association("Images").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&gs).Error; err != nil {
			return err
		}

		orphans, err := deleteOrphanedImages(tx, imageIDs)
		if err != nil {
			return err
		}
		paths = append(appendPath(nil, gs.ImagePath), orphans...)
		return nil
	})
	if err != nil {
		return nil, dbError(err, "delete", tableGardenSupplies)
	}
	return paths, nil
}

func (r *gardenSupplyRepository) Duplicate(ctx context.Context, id uint) (_ *GardenSupply, err error) {
	defer r.observe("duplicate", tableGardenSupplies, time.Now(), &err)

	var original GardenSupply
	if err := r.db.WithContext(ctx).First(&original, id).Error; err != nil {
		return nil, lookupError(err, resourceGardenSupply, id)
	}

	dup := GardenSupply{
		Name:        withSuffix(original.Name),
		Description: original.Description,
		ImagePath:   r.copyImageFile(r.copier, original.ImagePath, resourceGardenSupply, id),
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&dup).Error; err != nil {
		r.discardCopy(r.copier, dup.ImagePath)
		return nil, dbError(err, "duplicate", tableGardenSupplies)
	}
	return &dup, nil
}
