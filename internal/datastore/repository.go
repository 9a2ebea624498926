package datastore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/observability/metrics"
)

// FileCopier duplicates a stored file and returns the path of the copy.
type FileCopier interface {
	Copy(path string) (string, error)
	// Delete removes a copy whose record could not be written
	Delete(path string) bool
}

// ListOption adjusts ordering and paging of List calls
type ListOption func(*listOptions)

type listOptions struct {
	orderBy string
	desc    bool
	limit   int
	offset  int
}

// OrderBy sorts by column, replacing the repository's default order
func OrderBy(column string, desc bool) ListOption {
	return func(o *listOptions) {
		o.orderBy = column
		o.desc = desc
	}
}

// Limit caps the number of returned rows
func Limit(n int) ListOption {
	return func(o *listOptions) { o.limit = n }
}

// Offset skips the first n rows
func Offset(n int) ListOption {
	return func(o *listOptions) { o.offset = n }
}

// base holds what every repository shares
type base struct {
	db      *gorm.DB
	log     logger.Logger
	metrics *metrics.DatastoreMetrics
	now     func() time.Time
}

// observe records operation metrics; errp points at the caller's named return
func (b *base) observe(operation, table string, start time.Time, errp *error) {
	if b.metrics == nil {
		return
	}
	status := metrics.StatusSuccess
	if errp != nil && *errp != nil {
		status = metrics.StatusError
		var ee *errors.EnhancedError
		category := string(errors.CategoryGeneric)
		if errors.As(*errp, &ee) {
			category = ee.GetCategory()
		}
		b.metrics.RecordDbOperationError(operation, table, category)
	}
	b.metrics.RecordDbOperation(operation, table, status, time.Since(start).Seconds())
}

// list runs a filtered query with default ordering and preloads
func list[T any](ctx context.Context, b *base, table string, filters Filters, defaultOrder clause.OrderByColumn, preloads []string, opts ...ListOption) (_ []T, err error) {
	defer b.observe("list", table, time.Now(), &err)

	var o listOptions
	for _, opt := range opts {
		opt(&o)
	}

	var model T
	q, err := ApplyFilters(b.db.WithContext(ctx).Model(&model), &model, filters)
	if err != nil {
		return nil, err
	}

	order := defaultOrder
	if o.orderBy != "" {
		order = clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: o.orderBy}, Desc: o.desc}
	}
	q = q.Order(order).Order(clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: "id"}})
	if o.limit > 0 {
		q = q.Limit(o.limit)
	}
	if o.offset > 0 {
		q = q.Offset(o.offset)
	}
	for _, p := range preloads {
		q = q.Preload(p)
	}

	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, dbError(err, "list", table)
	}
	if b.metrics != nil {
		b.metrics.RecordQueryResultSize(table, len(rows))
	}
	return rows, nil
}

// orderCol orders by a column of the queried table
func orderCol(column string, desc bool) clause.OrderByColumn {
	return clause.OrderByColumn{Column: clause.Column{Table: clause.CurrentTable, Name: column}, Desc: desc}
}

// exists reports whether a row with id exists in model's table
func exists(tx *gorm.DB, model any, id uint) (bool, error) {
	var count int64
	if err := tx.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// linkedImageIDs returns the images linked to an owner through joinTable
func linkedImageIDs(tx *gorm.DB, joinTable string, ownerID uint) ([]uint, error) {
	var ids []uint
	fk := imageJoinTables[joinTable]
	err := tx.Table(joinTable).Where(fk+" = ?", ownerID).Pluck("image_id", &ids).Error
	return ids, err
}

// deleteOrphanedImages deletes those of ids that no owner links to any
// more and returns their file paths.
func deleteOrphanedImages(tx *gorm.DB, ids []uint) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	q := tx.Model(&Image{}).Where("id IN ?", ids)
	for joinTable := range imageJoinTables {
		q = q.Where(fmt.Sprintf("NOT EXISTS (SELECT 1 FROM %s WHERE %s.image_id = images.id)", joinTable, joinTable))
	}
	var orphans []Image
	if err := q.Find(&orphans).Error; err != nil {
		return nil, err
	}
	if len(orphans) == 0 {
		return nil, nil
	}

	orphanIDs := make([]uint, len(orphans))
	paths := make([]string, len(orphans))
	for i := range orphans {
		orphanIDs[i] = orphans[i].ID
		paths[i] = orphans[i].FilePath
	}
	if err := tx.Delete(&Image{}, orphanIDs).Error; err != nil {
		return nil, err
	}
	return paths, nil
}

// appendPath adds a non-empty optional path
func appendPath(paths []string, p *string) []string {
	if p != nil && *p != "" {
		return append(paths, *p)
	}
	return paths
}

// copyImageFile duplicates an entity image, logging and dropping failures
func (b *base) copyImageFile(copier FileCopier, path *string, resource string, id uint) *string {
	if path == nil || *path == "" || copier == nil {
		return nil
	}
	newPath, err := copier.Copy(*path)
	if err != nil {
		b.log.Warn("failed to copy image for duplicated record",
			logger.String("resource", resource),
			logger.Uint("id", id),
			logger.String("path", *path),
			logger.Error(err))
		return nil
	}
	return &newPath
}

// discardCopy removes an image copied for a duplicate that was not stored
func (b *base) discardCopy(copier FileCopier, path *string) {
	if path == nil || copier == nil {
		return
	}
	if !copier.Delete(*path) {
		b.log.Warn("failed to remove image copy of unsaved duplicate",
			logger.String("path", *path))
	}
}

// withSuffix returns the name used for a duplicate
func withSuffix(name string) string {
	return name + copySuffix
}
