// internal/httpcontroller/template_functions.go
package httpcontroller

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/k3a/html2text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gorm.io/datatypes"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

const (
	dateLayout = "Jan 2, 2006"
	timeLayout = "Jan 2, 2006 15:04"
	ozPerLb    = 16.0

	excerptRunes = 120
)

// GetTemplateFunctions returns a map of functions that can be used in templates
func (s *Server) GetTemplateFunctions() template.FuncMap {
	return template.FuncMap{
		"title":           cases.Title(language.English).String,
		"formatDate":      formatDate,
		"formatTime":      formatTime,
		"deref":           deref,
		"lbs":             lbs,
		"excerpt":         excerpt,
		"add":             addFunc,
		"plantingMethods": datastore.PlantingMethods,
		"uploadURL":       func() string { return s.Settings.Upload.URLPrefix },
	}
}

func addFunc(a, b int) int { return a + b }

// formatDate renders a date, a time or a pointer to either; nil and the
// zero time render empty
func formatDate(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(dateLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return formatDate(*t)
	case datatypes.Date:
		return formatDate(time.Time(t))
	case *datatypes.Date:
		if t == nil {
			return ""
		}
		return formatDate(time.Time(*t))
	default:
		return ""
	}
}

// formatTime renders a timestamp with minutes
func formatTime(v any) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format(timeLayout)
	case *time.Time:
		if t == nil {
			return ""
		}
		return formatTime(*t)
	default:
		return ""
	}
}

// deref renders an optional value, or an empty string for nil
func deref(v any) string {
	switch p := v.(type) {
	case *string:
		if p != nil {
			return *p
		}
	case *int:
		if p != nil {
			return strconv.Itoa(*p)
		}
	case *uint:
		if p != nil {
			return strconv.FormatUint(uint64(*p), 10)
		}
	case *float64:
		if p != nil {
			return strconv.FormatFloat(*p, 'f', -1, 64)
		}
	case string:
		return p
	case nil:
	default:
		return fmt.Sprint(p)
	}
	return ""
}

// lbs converts ounces to pounds with two decimals
func lbs(oz float64) string {
	return strconv.FormatFloat(oz/ozPerLb, 'f', 2, 64)
}

// excerpt flattens a note body to one line of plain text for list pages.
// OCR output may carry HTML tables and image tags.
func excerpt(body string) string {
	text := strings.Join(strings.Fields(html2text.HTML2Text(body)), " ")
	if utf8.RuneCountInString(text) <= excerptRunes {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:excerptRunes])) + "…"
}
