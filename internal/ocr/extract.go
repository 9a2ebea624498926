package ocr

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ExtractionFields are the seed packet attributes requested from the chat model
var ExtractionFields = []struct {
	Name string
	Hint string
}{
	{"name", `Plant name (e.g., "Tomato")`},
	{"variety", `Variety name (e.g., "Roma")`},
	{"description", "Brief description"},
	{"planting_instructions", "How to plant"},
	{"days_to_germination", "Number of days (just the number)"},
	{"spacing", "Recommended spacing"},
	{"sun_exposure", "Light requirements"},
	{"soil_type", "Soil preferences"},
	{"watering", "Watering instructions"},
	{"fertilizer", "Fertilizer recommendations"},
	{"package_weight", "Weight in grams (just the number)"},
	{"expiration_date", "Date in YYYY-MM-DD format"},
}

// SeedPacketData holds normalized extraction output. Missing values are nil
// and omitted when encoded, so an empty value encodes as {}.
type SeedPacketData struct {
	Name                 *string  `json:"name,omitempty"`
	Variety              *string  `json:"variety,omitempty"`
	Description          *string  `json:"description,omitempty"`
	PlantingInstructions *string  `json:"planting_instructions,omitempty"`
	DaysToGermination    *int     `json:"days_to_germination,omitempty"`
	Spacing              *string  `json:"spacing,omitempty"`
	SunExposure          *string  `json:"sun_exposure,omitempty"`
	SoilType             *string  `json:"soil_type,omitempty"`
	Watering             *string  `json:"watering,omitempty"`
	Fertilizer           *string  `json:"fertilizer,omitempty"`
	PackageWeight        *float64 `json:"package_weight,omitempty"`
	ExpirationDate       *string  `json:"expiration_date,omitempty"`
}

// FieldCount returns the number of populated fields
func (d *SeedPacketData) FieldCount() int {
	n := 0
	for _, set := range []bool{
		d.Name != nil, d.Variety != nil, d.Description != nil, d.PlantingInstructions != nil,
		d.DaysToGermination != nil, d.Spacing != nil, d.SunExposure != nil, d.SoilType != nil,
		d.Watering != nil, d.Fertilizer != nil, d.PackageWeight != nil, d.ExpirationDate != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

// Empty reports whether no field was extracted
func (d *SeedPacketData) Empty() bool {
	return d.FieldCount() == 0
}

// EncodeImage returns a base64 data URL; the MIME subtype follows the
// file extension and defaults to jpeg.
func EncodeImage(data []byte, filename string) string {
	subtype := "jpeg"
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		subtype = "png"
	case ".gif":
		subtype = "gif"
	}
	return "data:image/" + subtype + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// JoinPages concatenates page texts with blank lines between them
func JoinPages(pages []Page) string {
	texts := make([]string, 0, len(pages))
	for _, p := range pages {
		if t := strings.TrimSpace(p.Markdown); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	htmlImageRe     = regexp.MustCompile(`(?i)<img\b[^>]*>`)
)

// IsDegenerate reports whether OCR text carries no readable content: empty,
// whitespace, or only image references.
func IsDegenerate(text string) bool {
	stripped := markdownImageRe.ReplaceAllString(text, "")
	stripped = htmlImageRe.ReplaceAllString(stripped, "")
	return strings.TrimSpace(stripped) == ""
}

var codeFenceRe = regexp.MustCompile("(?s)```[a-zA-Z]*\\s*\\n?(.*?)\\s*```")

// StripCodeFence returns the content of the first Markdown code fence, or
// the trimmed input when there is none.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[1])
	}
	return s
}

// ParseExtraction decodes a chat response into normalized seed packet data.
// Fields that fail to normalize become nil; only a response that holds no
// JSON object is an error.
func ParseExtraction(content string) (SeedPacketData, error) {
	body := StripCodeFence(content)

	var raw map[string]any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		start, end := strings.IndexByte(body, '{'), strings.LastIndexByte(body, '}')
		if start < 0 || end <= start {
			return SeedPacketData{}, fmt.Errorf("response is not a JSON object: %w", err)
		}
		if err := json.Unmarshal([]byte(body[start:end+1]), &raw); err != nil {
			return SeedPacketData{}, fmt.Errorf("response is not a JSON object: %w", err)
		}
	}
	if raw == nil {
		return SeedPacketData{}, fmt.Errorf("response is not a JSON object")
	}

	return SeedPacketData{
		Name:                 NormalizeString(raw["name"]),
		Variety:              NormalizeString(raw["variety"]),
		Description:          NormalizeString(raw["description"]),
		PlantingInstructions: NormalizeString(raw["planting_instructions"]),
		DaysToGermination:    NormalizeDaysToGermination(raw["days_to_germination"]),
		Spacing:              NormalizeString(raw["spacing"]),
		SunExposure:          NormalizeString(raw["sun_exposure"]),
		SoilType:             NormalizeString(raw["soil_type"]),
		Watering:             NormalizeString(raw["watering"]),
		Fertilizer:           NormalizeString(raw["fertilizer"]),
		PackageWeight:        NormalizePackageWeight(raw["package_weight"]),
		ExpirationDate:       NormalizeExpirationDate(raw["expiration_date"]),
	}, nil
}

// NormalizeString trims text values; empty and "null" become nil
func NormalizeString(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if p := NormalizeString(item); p != nil {
				parts = append(parts, *p)
			}
		}
		s = strings.Join(parts, ", ")
	default:
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "null") {
		return nil
	}
	return &s
}

var digitsRe = regexp.MustCompile(`\d+`)

// NormalizeDaysToGermination keeps the lower bound of a range: the first run
// of digits before any hyphen or en dash. Numbers are truncated.
func NormalizeDaysToGermination(v any) *int {
	switch t := v.(type) {
	case float64:
		if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		n := int(t)
		return &n
	case string:
		s := t
		if i := strings.IndexAny(s, "-–"); i >= 0 {
			s = s[:i]
		}
		m := digitsRe.FindString(s)
		if m == "" {
			return nil
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil
		}
		return &n
	}
	return nil
}

var weightRunRe = regexp.MustCompile(`[\d.]+`)

// NormalizePackageWeight parses the first run of digits and dots that holds a
// digit. Thousands separators are ignored and a run such as "1.2.3" that is
// not a number gives nil.
func NormalizePackageWeight(v any) *float64 {
	switch t := v.(type) {
	case float64:
		if t < 0 || math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return &t
	case string:
		s := strings.ReplaceAll(t, ",", "")
		for _, run := range weightRunRe.FindAllString(s, -1) {
			run = strings.TrimRight(run, ".")
			if !strings.ContainsAny(run, "0123456789") {
				continue
			}
			if strings.HasPrefix(run, "..") {
				run = strings.TrimLeft(run, ".")
			}
			f, err := strconv.ParseFloat(run, 64)
			if err != nil {
				return nil
			}
			return &f
		}
	}
	return nil
}

var (
	dayLayouts = []string{
		"2006-01-02", "2006/01/02", "2006.01.02",
		"01/02/2006", "1/2/2006", "01-02-2006", "1-2-2006", "01/02/06", "1/2/06",
		"January 2, 2006", "January 2 2006", "Jan 2, 2006", "Jan 2 2006",
		"2 January 2006", "2 Jan 2006", "02 Jan 2006",
		time.RFC3339,
	}
	monthLayouts = []string{
		"2006-01", "2006/01", "01/2006", "1/2006", "01-2006",
		"January 2006", "Jan 2006", "January, 2006", "Jan, 2006",
	}
	dateLabelRe = regexp.MustCompile(`(?i)^(packed\s+for|sell\s+by|use\s+by|best\s+by|expires|expiration(\s+date)?|exp\.?)[:\s]*`)
)

// NormalizeExpirationDate converts common date forms to YYYY-MM-DD. Month
// precision resolves to the last day of the month and year precision to
// 31 December. Unparseable values become nil.
func NormalizeExpirationDate(v any) *string {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return nil
	}
	s = strings.TrimSpace(dateLabelRe.ReplaceAllString(strings.TrimSpace(s), ""))
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return nil
	}

	format := func(t time.Time) *string {
		out := t.Format(time.DateOnly)
		return &out
	}
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return format(t)
		}
	}
	for _, layout := range monthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return format(time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC))
		}
	}
	if len(s) == 4 {
		if y, err := strconv.Atoi(s); err == nil && y >= 1900 && y <= 2200 {
			return format(time.Date(y, time.December, 31, 0, 0, 0, 0, time.UTC))
		}
	}
	return nil
}

// BuildExtractionPrompt asks for the fixed field list as a JSON object
func BuildExtractionPrompt(text string) string {
	var b strings.Builder
	b.WriteString("Extract these fields from the seed packet text (return as JSON):\n")
	for _, f := range ExtractionFields {
		fmt.Fprintf(&b, "- %s: %s\n", f.Name, f.Hint)
	}
	b.WriteString("\nOnly return a JSON object with these fields. Use null for missing information.\n\n")
	b.WriteString("Text from seed packet:\n")
	b.WriteString(text)
	b.WriteString("\n")
	return b.String()
}
