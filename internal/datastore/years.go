package datastore

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
)

const (
	tableYears = "years"

	yearCacheExpiration = time.Hour
	yearCacheCleanup    = 10 * time.Minute
)

// YearRepository manages growing seasons
type YearRepository interface {
	// GetOrCreate returns the row for year, creating it when absent
	GetOrCreate(ctx context.Context, year int) (*Year, error)
	Get(ctx context.Context, id uint) (*Year, error)
	// List returns all years, newest first
	List(ctx context.Context) ([]Year, error)
}

type yearRepository struct {
	*base
	cache *cache.Cache
	// group collapses concurrent misses for the same year into one query
	group singleflight.Group
}

// NewYearRepository creates a YearRepository with a lookup cache
func NewYearRepository(b *base) YearRepository {
	return &yearRepository{
		base:  b,
		cache: cache.New(yearCacheExpiration, yearCacheCleanup),
	}
}

func (r *yearRepository) GetOrCreate(ctx context.Context, year int) (_ *Year, err error) {
	key := strconv.Itoa(year)
	if cached, found := r.cache.Get(key); found {
		if r.metrics != nil {
			r.metrics.RecordCacheOperation(tableYears, "hit")
		}
		y := cached.(Year)
		return &y, nil
	}
	if r.metrics != nil {
		r.metrics.RecordCacheOperation(tableYears, "miss")
	}

	defer r.observe("get_or_create", tableYears, time.Now(), &err)

	if year < 1 {
		return nil, validationError(map[string]string{"year": "must be a positive year number"})
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.findOrCreate(ctx, year)
	})
	if err != nil {
		return nil, err
	}
	y := v.(Year)
	r.cache.SetDefault(key, y)
	return &y, nil
}

func (r *yearRepository) findOrCreate(ctx context.Context, year int) (Year, error) {
	var y Year
	findErr := r.db.WithContext(ctx).Where("year = ?", year).First(&y).Error
	if findErr == nil {
		return y, nil
	}
	if !errors.Is(findErr, gorm.ErrRecordNotFound) {
		return Year{}, dbError(findErr, "get", tableYears)
	}

	y = Year{Year: year}
	if createErr := r.db.WithContext(ctx).Create(&y).Error; createErr != nil {
		// Another process may have created it; the unique index keeps one row
		if refetchErr := r.db.WithContext(ctx).Where("year = ?", year).First(&y).Error; refetchErr != nil {
			return Year{}, dbError(createErr, "create", tableYears)
		}
		return y, nil
	}
	r.log.Info("created growing season", logger.Int("year", year))
	return y, nil
}

func (r *yearRepository) Get(ctx context.Context, id uint) (_ *Year, err error) {
	defer r.observe("get", tableYears, time.Now(), &err)

	var y Year
	if err := r.db.WithContext(ctx).First(&y, id).Error; err != nil {
		return nil, lookupError(err, resourceYear, id)
	}
	return &y, nil
}

func (r *yearRepository) List(ctx context.Context) (_ []Year, err error) {
	defer r.observe("list", tableYears, time.Now(), &err)

	var years []Year
	if err := r.db.WithContext(ctx).Order("year DESC").Find(&years).Error; err != nil {
		return nil, dbError(err, "list", tableYears)
	}
	return years, nil
}
