package datastore

import (
	"reflect"
	"sort"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// Filters maps column names to filter values. A key naming a column is an
// equality predicate, or IN when the value is a slice. A key with a _min or
// _max suffix on a column name is a >= or <= predicate. nil values are ignored.
type Filters map[string]any

const (
	suffixMin = "_min"
	suffixMax = "_max"
)

// ApplyFilters adds the AND-combined predicates of filters to db, resolving
// keys against model's schema. Unknown keys yield a validation error.
func ApplyFilters(db *gorm.DB, model any, filters Filters) (*gorm.DB, error) {
	if len(filters) == 0 {
		return db, nil
	}

	sch, err := parseSchema(db, model)
	if err != nil {
		return nil, err
	}

	// Sorted for stable SQL; predicate order does not change the result
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	invalid := map[string]string{}
	for _, key := range keys {
		value, ok := filterValue(filters[key])
		if !ok {
			continue
		}

		if field := sch.LookUpField(key); field != nil && field.DBName == key {
			db = applyEquality(db, key, value)
			continue
		}

		column, op := splitRangeKey(key)
		if op == "" {
			invalid[key] = "unknown filter field"
			continue
		}
		if field := sch.LookUpField(column); field == nil || field.DBName != column {
			invalid[key] = "unknown filter field"
			continue
		}
		col := clause.Column{Table: clause.CurrentTable, Name: column}
		if op == suffixMin {
			db = db.Where(clause.Gte{Column: col, Value: value})
		} else {
			db = db.Where(clause.Lte{Column: col, Value: value})
		}
	}

	if len(invalid) > 0 {
		return nil, validationError(invalid)
	}
	return db, nil
}

func parseSchema(db *gorm.DB, model any) (*schema.Schema, error) {
	stmt := &gorm.Statement{DB: db}
	if err := stmt.Parse(model); err != nil {
		return nil, dbError(err, "parse schema", reflect.TypeOf(model).String())
	}
	return stmt.Schema, nil
}

func applyEquality(db *gorm.DB, column string, value any) *gorm.DB {
	col := clause.Column{Table: clause.CurrentTable, Name: column}
	rv := reflect.ValueOf(value)
	if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() != reflect.Uint8 {
		if rv.Len() == 0 {
			// an empty set matches nothing
			return db.Where("1 = 0")
		}
		values := make([]any, rv.Len())
		for i := range rv.Len() {
			values[i] = rv.Index(i).Interface()
		}
		return db.Where(clause.IN{Column: col, Values: values})
	}
	return db.Where(clause.Eq{Column: col, Value: value})
}

// splitRangeKey returns the column and suffix of a range key
func splitRangeKey(key string) (column, op string) {
	switch {
	case strings.HasSuffix(key, suffixMin):
		return strings.TrimSuffix(key, suffixMin), suffixMin
	case strings.HasSuffix(key, suffixMax):
		return strings.TrimSuffix(key, suffixMax), suffixMax
	}
	return key, ""
}

// filterValue dereferences pointers and reports false for nil values
func filterValue(v any) (any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	return rv.Interface(), true
}
