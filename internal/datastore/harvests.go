package datastore

import (
	"context"
	"sort"
	"time"

	"gorm.io/gorm/clause"
)

const tableHarvests = "harvests"

// HarvestRepository manages harvests
type HarvestRepository interface {
	// Create stores a harvest; Timestamp defaults to now
	Create(ctx context.Context, h *Harvest) error
	Get(ctx context.Context, id uint) (*Harvest, error)
	List(ctx context.Context, filters Filters, opts ...ListOption) ([]Harvest, error)
	Update(ctx context.Context, h *Harvest) error
	Delete(ctx context.Context, id uint) error
	// Duplicate copies weight and plant with a fresh timestamp
	Duplicate(ctx context.Context, id uint) (*Harvest, error)
	// Stats totals the harvests matching filters
	Stats(ctx context.Context, filters Filters) (*HarvestStats, error)
}

// HarvestStats summarises harvest weights
type HarvestStats struct {
	Count    int              `json:"count"`
	TotalOz  float64          `json:"total_weight_oz"`
	TotalLbs float64          `json:"total_weight_lbs"`
	Monthly  []MonthlyHarvest `json:"monthly"`
}

// MonthlyHarvest is the harvest total of one calendar month
type MonthlyHarvest struct {
	Year     int     `json:"year"`
	Month    int     `json:"month"`
	Label    string  `json:"label"`
	TotalOz  float64 `json:"total_weight_oz"`
	TotalLbs float64 `json:"total_weight_lbs"`
}

type harvestRepository struct {
	*base
}

// NewHarvestRepository creates a HarvestRepository
func NewHarvestRepository(b *base) HarvestRepository {
	return &harvestRepository{base: b}
}

func (r *harvestRepository) validate(ctx context.Context, h *Harvest) error {
	fields := map[string]string{}
	if h.WeightOz <= 0 {
		fields["weight_oz"] = "must be greater than zero"
	}
	if h.PlantID == 0 {
		fields["plant_id"] = "is required"
	} else {
		found, err := exists(r.db.WithContext(ctx), &Plant{}, h.PlantID)
		if err != nil {
			return dbError(err, "get", tablePlants)
		}
		if !found {
			fields["plant_id"] = "plant does not exist"
		}
	}
	if len(fields) > 0 {
		return validationError(fields)
	}
	return nil
}

func (r *harvestRepository) Create(ctx context.Context, h *Harvest) (err error) {
	defer r.observe("create", tableHarvests, time.Now(), &err)

	if err := r.validate(ctx, h); err != nil {
		return err
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = r.now()
	}
	h.ID = 0
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(h).Error; err != nil {
		return dbError(err, "create", tableHarvests)
	}
	return nil
}

func (r *harvestRepository) Get(ctx context.Context, id uint) (_ *Harvest, err error) {
	defer r.observe("get", tableHarvests, time.Now(), &err)

	var h Harvest
	if err := r.db.WithContext(ctx).Preload("Plant").First(&h, id).Error; err != nil {
		return nil, lookupError(err, resourceHarvest, id)
	}
	return &h, nil
}

func (r *harvestRepository) List(ctx context.Context, filters Filters, opts ...ListOption) ([]Harvest, error) {
	return list[Harvest](ctx, r.base, tableHarvests, filters, orderCol("timestamp", true), []string{"Plant"}, opts...)
}

func (r *harvestRepository) Update(ctx context.Context, h *Harvest) (err error) {
	defer r.observe("update", tableHarvests, time.Now(), &err)

	var current Harvest
	if err := r.db.WithContext(ctx).First(&current, h.ID).Error; err != nil {
		return lookupError(err, resourceHarvest, h.ID)
	}
	if err := r.validate(ctx, h); err != nil {
		return err
	}
	if h.Timestamp.IsZero() {
		h.Timestamp = current.Timestamp
	}
	err = r.db.WithContext(ctx).Model(&current).
		Select("WeightOz", "Timestamp", "PlantID").
		Updates(h).Error
	if err != nil {
		return dbError(err, "update", tableHarvests)
	}
	return nil
}

func (r *harvestRepository) Delete(ctx context.Context, id uint) (err error) {
	defer r.observe("delete", tableHarvests, time.Now(), &err)

	res := r.db.WithContext(ctx).Delete(&Harvest{}, id)
	if res.Error != nil {
		return dbError(res.Error, "delete", tableHarvests)
	}
	if res.RowsAffected == 0 {
		return notFound(resourceHarvest, id)
	}
	return nil
}

func (r *harvestRepository) Duplicate(ctx context.Context, id uint) (_ *Harvest, err error) {
	defer r.observe("duplicate", tableHarvests, time.Now(), &err)

	var original Harvest
	if err := r.db.WithContext(ctx).First(&original, id).Error; err != nil {
		return nil, lookupError(err, resourceHarvest, id)
	}

	dup := Harvest{
		WeightOz:  original.WeightOz,
		PlantID:   original.PlantID,
		Timestamp: r.now(),
	}
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(&dup).Error; err != nil {
		return nil, dbError(err, "duplicate", tableHarvests)
	}
	return &dup, nil
}

// Stats groups in Go so the month bucketing is identical on every driver
func (r *harvestRepository) Stats(ctx context.Context, filters Filters) (*HarvestStats, error) {
	harvests, err := r.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	return SummarizeHarvests(harvests), nil
}

// SummarizeHarvests totals harvests overall and per month, newest month first
func SummarizeHarvests(harvests []Harvest) *HarvestStats {
	stats := &HarvestStats{Count: len(harvests), Monthly: []MonthlyHarvest{}}

	type monthKey struct{ year, month int }
	totals := map[monthKey]float64{}
	for i := range harvests {
		h := &harvests[i]
		stats.TotalOz += h.WeightOz
		key := monthKey{h.Timestamp.Year(), int(h.Timestamp.Month())}
		totals[key] += h.WeightOz
	}
	stats.TotalLbs = stats.TotalOz / ouncesPerPound

	for key, oz := range totals {
		stats.Monthly = append(stats.Monthly, MonthlyHarvest{
			Year:     key.year,
			Month:    key.month,
			Label:    time.Date(key.year, time.Month(key.month), 1, 0, 0, 0, 0, time.UTC).Format("January 2006"),
			TotalOz:  oz,
			TotalLbs: oz / ouncesPerPound,
		})
	}
	sort.Slice(stats.Monthly, func(i, j int) bool {
		a, b := stats.Monthly[i], stats.Monthly[j]
		if a.Year != b.Year {
			return a.Year > b.Year
		}
		return a.Month > b.Month
	})
	return stats
}
