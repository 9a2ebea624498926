package datastore

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const tableImages = "images"

// OwnerKind names an entity that images can be linked to
type OwnerKind string

const (
	OwnerPlant        OwnerKind = "plant"
	OwnerSeedPacket   OwnerKind = "seed_packet"
	OwnerGardenSupply OwnerKind = "garden_supply"
	OwnerNote         OwnerKind = "note"
)

// OwnerRef identifies one owner of an image
type OwnerRef struct {
	Kind OwnerKind
	ID   uint
}

// model returns the owner row and its image association name
func (o OwnerRef) model() (any, string, string, bool) {
	switch o.Kind {
	case OwnerPlant:
		return &Plant{ID: o.ID}, "Images", resourcePlant, true
	case OwnerSeedPacket:
		return &SeedPacket{ID: o.ID}, "Images", resourceSeedPacket, true
	case OwnerGardenSupply:
		return &GardenSupply{ID: o.ID}, "Images", resourceGardenSupply, true
	case OwnerNote:
		return &Note{ID: o.ID}, "Images", resourceNote, true
	}
	return nil, "", "", false
}

// ImageRepository manages uploaded image records
type ImageRepository interface {
	// Create stores img and links it to owners
	Create(ctx context.Context, img *Image, owners ...OwnerRef) error
	// Get loads the image with every owner
	Get(ctx context.Context, id uint) (*Image, error)
	List(ctx context.Context, filters Filters, opts ...ListOption) ([]Image, error)
	// Delete removes the record and its links and returns its file path
	Delete(ctx context.Context, id uint) (string, error)
	Attach(ctx context.Context, imageID uint, owner OwnerRef) error
	Detach(ctx context.Context, imageID uint, owner OwnerRef) error
	// MarkOCR records the outcome of an OCR run
	MarkOCR(ctx context.Context, id uint, state OCRState, text *string, structured []byte) error
}

type imageRepository struct {
	*base
}

// NewImageRepository creates an ImageRepository
func NewImageRepository(b *base) ImageRepository {
	return &imageRepository{base: b}
}

func (r *imageRepository) Create(ctx context.Context, img *Image, owners ...OwnerRef) (err error) {
	defer r.observe("create", tableImages, time.Now(), &err)

	if img.FilePath == "" {
		return validationError(map[string]string{"file_path": "is required"})
	}
	img.ID = 0
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(img).Error; err != nil {
			return err
		}
		for _, owner := range owners {
			if err := attach(tx, img, owner); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		img.ID = 0
		return dbError(err, "create", tableImages)
	}
	return nil
}

func (r *imageRepository) Get(ctx context.Context, id uint) (_ *Image, err error) {
	defer r.observe("get", tableImages, time.Now(), &err)

	var img Image
	err = r.db.WithContext(ctx).
		Preload("SeedPackets", orderByID).
		Preload("Plants").
		Preload("GardenSupplies").
		Preload("Notes").
		First(&img, id).Error
	if err != nil {
		return nil, lookupError(err, resourceImage, id)
	}
	return &img, nil
}

func (r *imageRepository) List(ctx context.Context, filters Filters, opts ...ListOption) ([]Image, error) {
	return list[Image](ctx, r.base, tableImages, filters, orderCol("created_at", true), nil, opts...)
}

func (r *imageRepository) Delete(ctx context.Context, id uint) (path string, err error) {
	defer r.observe("delete", tableImages, time.Now(), &err)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		img := Image{ID: id}
		if err := tx.First(&img).Error; err != nil {
			return lookupError(err, resourceImage, id)
		}
		for joinTable := range imageJoinTables {
			if err := tx.Exec("DELETE FROM "+joinTable+" WHERE image_id = ?", id).Error; err != nil {
				return err
			}
		}
		if err := tx.Delete(&img).Error; err != nil {
			return err
		}
		path = img.FilePath
		return nil
	})
	if err != nil {
		return "", dbError(err, "delete", tableImages)
	}
	return path, nil
}

func (r *imageRepository) Attach(ctx context.Context, imageID uint, owner OwnerRef) (err error) {
	defer r.observe("attach", tableImages, time.Now(), &err)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		img := Image{ID: imageID}
		if err := tx.First(&img).Error; err != nil {
			return lookupError(err, resourceImage, imageID)
		}
		return attach(tx, &img, owner)
	})
	if err != nil {
		return dbError(err, "attach", tableImages)
	}
	return nil
}

func (r *imageRepository) Detach(ctx context.Context, imageID uint, owner OwnerRef) (err error) {
	defer r.observe("detach", tableImages, time.Now(), &err)

	ownerModel, assoc, _, ok := owner.model()
	if !ok {
		return validationError(map[string]string{"owner": "unknown owner type " + string(owner.Kind)})
	}
	img := Image{ID: imageID}
	if err := r.db.WithContext(ctx).Model(ownerModel).Association(assoc).Delete(&img); err != nil {
		return dbError(err, "detach", tableImages)
	}
	return nil
}

func (r *imageRepository) MarkOCR(ctx context.Context, id uint, state OCRState, text *string, structured []byte) (err error) {
	defer r.observe("mark_ocr", tableImages, time.Now(), &err)

	updates := map[string]any{
		"ocr_processed": state,
		"ocr_text":      text,
	}
	if structured != nil {
		updates["structured_data"] = datatypes.JSON(structured)
	}
	res := r.db.WithContext(ctx).Model(&Image{ID: id}).Updates(updates)
	if res.Error != nil {
		return dbError(res.Error, "update", tableImages)
	}
	if res.RowsAffected == 0 {
		return notFound(resourceImage, id)
	}
	return nil
}

// attach links img to an existing owner
func attach(tx *gorm.DB, img *Image, owner OwnerRef) error {
	ownerModel, assoc, resource, ok := owner.model()
	if !ok {
		return validationError(map[string]string{"owner": "unknown owner type " + string(owner.Kind)})
	}
	if err := tx.First(ownerModel).Error; err != nil {
		return lookupError(err, resource, owner.ID)
	}
	return tx.Model(ownerModel).Association(assoc).Append(img)
}

func orderByID(db *gorm.DB) *gorm.DB {
	return db.Order("id")
}
