package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/datatypes"

	"github.com/gardentracker/gardentracker/internal/errors"
)

const imageField = "image"

// timestampLayouts are accepted for timestamp fields, most specific first
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateTime,
	"2006-01-02 15:04",
	time.DateOnly,
}

// field is one request value bound by echo from a JSON body or a form. Set
// records that the key was sent, so a blank value differs from an absent one.
// JSON null binds as a blank value.
type field struct {
	Set   bool
	Value string
}

// UnmarshalParam implements echo.BindUnmarshaler for form values
func (f *field) UnmarshalParam(param string) error {
	f.Set, f.Value = true, param
	return nil
}

func (f *field) UnmarshalJSON(data []byte) error {
	f.Set = true
	value, err := jsonScalar(data)
	if err != nil {
		return err
	}
	f.Value = value
	return nil
}

// fieldList binds repeated form keys, a JSON array or a single value
type fieldList struct {
	Set    bool
	Values []string
}

// UnmarshalParams receives every value of a repeated form key
func (l *fieldList) UnmarshalParams(params []string) error {
	l.Set, l.Values = true, params
	return nil
}

// UnmarshalParam implements echo.BindUnmarshaler for a single form value
func (l *fieldList) UnmarshalParam(param string) error {
	return l.UnmarshalParams([]string{param})
}

func (l *fieldList) UnmarshalJSON(data []byte) error {
	l.Set = true
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		value, err := jsonScalar(data)
		if err != nil {
			return err
		}
		l.Values = []string{value}
		return nil
	}
	l.Values = make([]string, 0, len(items))
	for _, item := range items {
		value, err := jsonScalar(item)
		if err != nil {
			return err
		}
		l.Values = append(l.Values, value)
	}
	return nil
}

// jsonScalar renders a JSON value the way a form would carry it. Objects and
// arrays keep their compact JSON text.
func jsonScalar(data []byte) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return "", err
		}
		return buf.String(), nil
	}
}

// bindRequest binds a JSON or form body into req with echo's binder
func bindRequest(ctx echo.Context, req any) error {
	if err := ctx.Bind(req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return he
		}
		return echo.NewHTTPError(http.StatusBadRequest, "malformed request body").SetInternal(err)
	}
	return nil
}

// formImage returns the uploaded image part, or nil when none was chosen
func formImage(ctx echo.Context) *multipart.FileHeader {
	fh, err := ctx.FormFile(imageField)
	if err != nil || fh.Size == 0 || fh.Filename == "" {
		return nil
	}
	return fh
}

// fieldErrors collects per-field validation messages
type fieldErrors map[string]string

// str returns the trimmed value of f
func (f field) str() string {
	return strings.TrimSpace(f.Value)
}

// required returns the value of f, recording an error when it is blank
func (fe fieldErrors) required(key string, f field) string {
	s := f.str()
	if s == "" {
		fe[key] = "is required"
	}
	return s
}

// optStr returns nil for a blank or absent value
func optStr(f field) *string {
	if s := f.str(); s != "" {
		return &s
	}
	return nil
}

func (fe fieldErrors) optInt(key string, f field) *int {
	s := f.str()
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		fe[key] = "must be an integer"
		return nil
	}
	return &n
}

func (fe fieldErrors) optFloat(key string, f field) *float64 {
	s := f.str()
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		fe[key] = "must be a number"
		return nil
	}
	return &v
}

func (fe fieldErrors) optID(key string, f field) *uint {
	s := f.str()
	if s == "" {
		return nil
	}
	id, err := parseID(s)
	if err != nil {
		fe[key] = "must be a positive integer"
		return nil
	}
	return &id
}

// ids returns every id in l, accepting repeated keys or one comma
// separated value
func (fe fieldErrors) ids(key string, l fieldList) []uint {
	var out []uint
	for _, v := range l.Values {
		for part := range strings.SplitSeq(v, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := parseID(part)
			if err != nil {
				fe[key] = "must be a list of positive integers"
				return nil
			}
			out = append(out, id)
		}
	}
	return out
}

func (fe fieldErrors) optDate(key string, f field) *datatypes.Date {
	s := f.str()
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		fe[key] = "must be a date in YYYY-MM-DD format"
		return nil
	}
	d := datatypes.Date(t)
	return &d
}

// timestamp returns the zero time for a blank value
func (fe fieldErrors) timestamp(key string, f field) time.Time {
	s := f.str()
	if s == "" {
		return time.Time{}
	}
	t, err := parseTimestamp(s)
	if err != nil {
		fe[key] = "must be a date or timestamp"
	}
	return t
}

// err returns the collected messages as one validation error
func (fe fieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return errors.Validation(fe)
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}

// pathID reads the :id route parameter
func pathID(ctx echo.Context) (uint, error) {
	id, err := parseID(ctx.Param("id"))
	if err != nil {
		return 0, errors.ValidationError("id", "must be a positive integer")
	}
	return id, nil
}
