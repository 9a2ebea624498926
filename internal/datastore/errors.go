package datastore

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/gardentracker/gardentracker/internal/errors"
)

const componentDatastore = "datastore"

// Resource types reported in not-found errors
const (
	resourcePlant        = "Plant"
	resourceSeedPacket   = "SeedPacket"
	resourceGardenSupply = "GardenSupply"
	resourceNote         = "Note"
	resourceHarvest      = "Harvest"
	resourceImage        = "Image"
	resourceYear         = "Year"
)

// ErrNotFound matches every not-found error returned by the repositories.
var ErrNotFound = errors.Newf("record not found").
	Component(componentDatastore).
	Category(errors.CategoryNotFound).
	Build()

// notFound builds a not-found error for one resource id
func notFound(resource string, id any) error {
	return errors.New(fmt.Errorf("%s with id %v not found", resource, id)).
		Component(componentDatastore).
		Category(errors.CategoryNotFound).
		Context(errors.ContextResourceType, resource).
		Context(errors.ContextResourceID, fmt.Sprint(id)).
		Build()
}

// dbError creates a properly categorized database error with context
func dbError(err error, operation, table string) error {
	if errors.IsCategory(err, errors.CategoryNotFound) || errors.IsCategory(err, errors.CategoryValidation) {
		return err
	}
	return errors.New(fmt.Errorf("database %s failed: %w", operation, err)).
		Component(componentDatastore).
		Category(errors.CategoryDatabase).
		Context(errors.ContextOperation, operation).
		Context("table", table).
		Build()
}

// validationError creates a validation error keyed by field name
func validationError(fields map[string]string) error {
	return errors.Validation(fields)
}

// lookupError maps a First/Take error to not-found or database
func lookupError(err error, resource string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound(resource, id)
	}
	return dbError(err, "get", resource)
}
