package datastore

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gardentracker/gardentracker/internal/logger"
)

const tablePlants = "plants"

// supplyFilterKey filters plants linked to a garden supply
const supplyFilterKey = "supply_id"

// PlantRepository manages plants
type PlantRepository interface {
	// Create stores p in the current calendar year's season unless YearID is set
	Create(ctx context.Context, p *Plant) error
	Get(ctx context.Context, id uint) (*Plant, error)
	// List accepts plant column filters plus supply_id
	List(ctx context.Context, filters Filters, opts ...ListOption) ([]Plant, error)
	// Update writes every editable column of p, including nil ones
	Update(ctx context.Context, p *Plant) error
	// Delete removes the plant and its harvests and returns orphaned image paths
	Delete(ctx context.Context, id uint) ([]string, error)
	Duplicate(ctx context.Context, id uint) (*Plant, error)
	// SetSupplies replaces the plant's garden supply links
	SetSupplies(ctx context.Context, id uint, supplyIDs []uint) error
}

type plantRepository struct {
	*base
	years YearRepository
}

// NewPlantRepository creates a PlantRepository
func NewPlantRepository(b *base, years YearRepository) PlantRepository {
	return &plantRepository{base: b, years: years}
}

func (r *plantRepository) validate(ctx context.Context, p *Plant) error {
	fields := map[string]string{}
	if p.Name == "" {
		fields["name"] = "is required"
	}
	if method, ok := ParsePlantingMethod(string(p.PlantingMethod)); ok {
		p.PlantingMethod = method
	} else {
		fields["planting_method"] = "must be one of Raised Bed, Seedling Tray, Pot, Ground"
	}
	if p.SeedPacketID != nil {
		found, err := exists(r.db.WithContext(ctx), &SeedPacket{}, *p.SeedPacketID)
		if err != nil {
			return dbError(err, "get", tableSeedPackets)
		}
		if !found {
			fields["seed_packet_id"] = "seed packet does not exist"
		}
	}
	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

func (r *plantRepository) Create(ctx context.Context, p *Plant) (err error) {
	defer r.observe("create", tablePlants, time.Now(), &err)

	if err := r.validate(ctx, p); err != nil {
		return err
	}
	if p.YearID == 0 {
		year, err := r.years.GetOrCreate(ctx, r.now().Year())
		if err != nil {
			return err
		}
		p.YearID = year.Year
	} else if _, err := r.years.GetOrCreate(ctx, p.YearID); err != nil {
		return err
	}

	p.ID = 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error; err != nil {
		return dbError(err, "create", tablePlants)
	}
	return nil
}

func (r *plantRepository) Get(ctx context.Context, id uint) (_ *Plant, err error) {
	defer r.observe("get", tablePlants, time.Now(), &err)

	var p Plant
	err = r.db.WithContext(ctx).
		Preload("Year").
		Preload("SeedPacket").
		Preload("GardenSupplies", orderByName).
		Preload("Notes", orderByTimestampDesc).
		Preload("Harvests", orderByTimestampDesc).
		Preload("Images").
		First(&p, id).Error
	if err != nil {
		return nil, lookupError(err, resourcePlant, id)
	}
	return &p, nil
}

func (r *plantRepository) List(ctx context.Context, filters Filters, opts ...ListOption) ([]Plant, error) {
	supplyID, rest := popFilter(filters, supplyFilterKey)
	if supplyID == nil {
		return list[Plant](ctx, r.base, tablePlants, rest, orderCol("name", false), []string{"SeedPacket"}, opts...)
	}

	// The supply predicate is a subquery, so run it through a scoped base
	scoped := *r.base
	scoped.db = r.db.Where("EXISTS (SELECT 1 FROM "+tablePlantSupplies+
		" WHERE "+tablePlantSupplies+".plant_id = plants.id AND "+tablePlantSupplies+".garden_supply_id = ?)", supplyID)
	return list[Plant](ctx, &scoped, tablePlants, rest, orderCol("name", false), []string{"SeedPacket"}, opts...)
}

func (r *plantRepository) Update(ctx context.Context, p *Plant) (err error) {
	defer r.observe("update", tablePlants, time.Now(), &err)

	var current Plant
	if err := r.db.WithContext(ctx).First(&current, p.ID).Error; err != nil {
		return lookupError(err, resourcePlant, p.ID)
	}
	if err := r.validate(ctx, p); err != nil {
		return err
	}
	if p.YearID == 0 {
		p.YearID = current.YearID
	} else if _, err := r.years.GetOrCreate(ctx, p.YearID); err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Model(&current).
		Select("Name", "Variety", "PlantingMethod", "YearID", "SeedPacketID").
		Updates(p).Error
	if err != nil {
		return dbError(err, "update", tablePlants)
	}
	p.CreatedAt = current.CreatedAt
	return nil
}

func (r *plantRepository) Delete(ctx context.Context, id uint) (paths []string, err error) {
	defer r.observe("delete", tablePlants, time.Now(), &err)

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		plant := Plant{ID: id}
		if err := tx.First(&plant).Error; err != nil {
			return lookupError(err, resourcePlant, id)
		}

		imageIDs, err := linkedImageIDs(tx, tablePlantImages, id)
		if err != nil {
			return err
		}
		if err := tx.Where("plant_id = ?", id).Delete(&Harvest{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&Note{}).Where("plant_id = ?", id).Update("plant_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&plant).Association("GardenSupplies").Clear(); err != nil {
			return err
		}
		if err := tx.Model(&plant).Association("Images").Clear(); err != nil {
			return err
		}
		if err := tx.Delete(&plant).Error; err != nil {
			return err
		}

		paths, err = deleteOrphanedImages(tx, imageIDs)
		return err
	})
	if err != nil {
		return nil, dbError(err, "delete", tablePlants)
	}
	r.log.Debug("plant deleted", logger.Uint("id", id), logger.Int("orphaned_files", len(paths)))
	return paths, nil
}

func (r *plantRepository) Duplicate(ctx context.Context, id uint) (_ *Plant, err error) {
	defer r.observe("duplicate", tablePlants, time.Now(), &err)

	var original Plant
	if err := r.db.WithContext(ctx).First(&original, id).Error; err != nil {
		return nil, lookupError(err, resourcePlant, id)
	}

	dup := Plant{
		Name:           withSuffix(original.Name),
		Variety:        original.Variety,
		PlantingMethod: original.PlantingMethod,
		YearID:         original.YearID,
		SeedPacketID:   original.SeedPacketID,
	}
	if err := r.db.WithContext(ctx).Create(&dup).Error; err != nil {
		return nil, dbError(err, "duplicate", tablePlants)
	}
	return &dup, nil
}

func (r *plantRepository) SetSupplies(ctx context.Context, id uint, supplyIDs []uint) (err error) {
	defer r.observe("set_supplies", tablePlants, time.Now(), &err)

	plant := Plant{ID: id}
	if err := r.db.WithContext(ctx).First(&plant).Error; err != nil {
		return lookupError(err, resourcePlant, id)
	}

	var supplies []GardenSupply
	if len(supplyIDs) > 0 {
		if err := r.db.WithContext(ctx).Where("id IN ?", supplyIDs).Find(&supplies).Error; err != nil {
			return dbError(err, "get", tableGardenSupplies)
		}
		if len(supplies) != len(uniqueIDs(supplyIDs)) {
			return validationError(map[string]string{"garden_supply_ids": "one or more garden supplies do not exist"})
		}
	}

	assoc := r.db.WithContext(ctx).Model(&plant).Association("GardenSupplies")
	if len(supplies) == 0 {
		err = assoc.Clear()
	} else {
		err = assoc.Replace(supplies)
	}
	if err != nil {
		return dbError(err, "update", tablePlantSupplies)
	}
	return nil
}

// popFilter returns the value stored under key and the remaining filters
func popFilter(filters Filters, key string) (any, Filters) {
	raw, present := filters[key]
	if !present {
		return nil, filters
	}
	rest := make(Filters, len(filters))
	for k, v := range filters {
		if k != key {
			rest[k] = v
		}
	}
	value, _ := filterValue(raw)
	return value, rest
}

func uniqueIDs(ids []uint) map[uint]struct{} {
	set := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func orderByName(db *gorm.DB) *gorm.DB {
	return db.Order("name")
}

func orderByTimestampDesc(db *gorm.DB) *gorm.DB {
	return db.Order("timestamp DESC")
}
