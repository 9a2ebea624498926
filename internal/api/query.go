package api

import (
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gardentracker/gardentracker/internal/datastore"
	"github.com/gardentracker/gardentracker/internal/errors"
)

// fieldKind is how a query value is parsed
type fieldKind int

const (
	kindString fieldKind = iota
	kindInt
	kindID
	kindFloat
	kindDate
	kindTime
	kindMethod
	// kindDay is a date-only bound on the timestamp column
	kindDay
)

// filterSpec lists the filterable fields of one entity
type filterSpec map[string]fieldKind

// Reserved query keys that control paging rather than filtering
const (
	queryLimit  = "limit"
	queryOffset = "offset"
)

var (
	plantFilters = filterSpec{
		"name": kindString, "variety": kindString, "planting_method": kindMethod,
		"year_id": kindInt, "seed_packet_id": kindID, "supply_id": kindID, "created_at": kindTime,
	}
	seedPacketFilters = filterSpec{
		"name": kindString, "variety": kindString, "sun_exposure": kindString, "soil_type": kindString,
		"days_to_germination": kindInt, "package_weight": kindFloat, "quantity": kindInt,
		"expiration_date": kindDate, "created_at": kindTime,
	}
	gardenSupplyFilters = filterSpec{
		"name": kindString, "created_at": kindTime,
	}
	noteFilters = filterSpec{
		"plant_id": kindID, "seed_packet_id": kindID, "garden_supply_id": kindID,
		"timestamp": kindTime, "date": kindDay,
	}
	harvestFilters = filterSpec{
		"plant_id": kindID, "weight_oz": kindFloat, "timestamp": kindTime, "date": kindDay,
	}
	imageFilters = filterSpec{
		"ocr_processed": kindInt, "content_type": kindString, "created_at": kindTime,
	}
)

// parseFilters turns query parameters into datastore filters. Blank values
// are ignored; repeated keys become a set match. Range bounds use the
// _min and _max suffixes.
func parseFilters(q url.Values, spec filterSpec) (datastore.Filters, []datastore.ListOption, error) {
	filters := datastore.Filters{}
	fieldErrs := map[string]string{}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var opts []datastore.ListOption
	for _, key := range keys {
		values := nonBlank(q[key])
		switch key {
		case queryLimit, queryOffset:
			if len(values) == 0 {
				continue
			}
			n, err := strconv.Atoi(values[0])
			if err != nil || n < 0 {
				fieldErrs[key] = "must be a non-negative integer"
				continue
			}
			if key == queryLimit {
				opts = append(opts, datastore.Limit(n))
			} else {
				opts = append(opts, datastore.Offset(n))
			}
			continue
		}

		field, bound := key, ""
		kind, ok := spec[key]
		if !ok {
			for _, suffix := range []string{"_min", "_max"} {
				if base, found := strings.CutSuffix(key, suffix); found {
					if k, known := spec[base]; known && k != kindString && k != kindMethod {
						field, bound, kind, ok = base, suffix, k, true
					}
				}
			}
		}
		if !ok {
			fieldErrs[key] = "unknown filter"
			continue
		}
		if len(values) == 0 {
			continue
		}

		if kind == kindDay {
			if bound == "" {
				fieldErrs[key] = "use date_min or date_max"
				continue
			}
			day, err := time.ParseInLocation(time.DateOnly, values[0], time.Local)
			if err != nil {
				fieldErrs[key] = "must be a date in YYYY-MM-DD format"
				continue
			}
			if bound == "_min" {
				filters["timestamp_min"] = day
			} else {
				// last instant of the local calendar day, DST days included
				filters["timestamp_max"] = day.AddDate(0, 0, 1).Add(-time.Nanosecond)
			}
			continue
		}

		parsed := make([]any, 0, len(values))
		for _, v := range values {
			pv, msg := parseValue(kind, v)
			if msg != "" {
				fieldErrs[key] = msg
				break
			}
			parsed = append(parsed, pv)
		}
		if _, failed := fieldErrs[key]; failed {
			continue
		}

		switch {
		case bound != "":
			filters[field+bound] = parsed[0]
		case len(parsed) == 1:
			filters[field] = parsed[0]
		default:
			filters[field] = parsed
		}
	}

	if len(fieldErrs) > 0 {
		return nil, nil, errors.Validation(fieldErrs)
	}
	return filters, opts, nil
}

func parseValue(kind fieldKind, v string) (any, string) {
	switch kind {
	case kindInt:
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, "must be an integer"
		}
		return n, ""
	case kindID:
		id, err := parseID(v)
		if err != nil {
			return nil, "must be a positive integer"
		}
		return id, ""
	case kindFloat:
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, "must be a number"
		}
		return f, ""
	case kindDate:
		t, err := time.Parse(time.DateOnly, v)
		if err != nil {
			return nil, "must be a date in YYYY-MM-DD format"
		}
		return t, ""
	case kindTime:
		t, err := parseTimestamp(v)
		if err != nil {
			return nil, "must be a date or timestamp"
		}
		return t, ""
	case kindMethod:
		m, ok := datastore.ParsePlantingMethod(v)
		if !ok {
			return nil, "unknown planting method"
		}
		return m, ""
	default:
		return v, ""
	}
}

func nonBlank(values []string) []string {
	out := values[:0:0]
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
