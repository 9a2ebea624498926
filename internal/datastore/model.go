// model.go defines the persisted garden entities
package datastore

import (
	"slices"
	"strings"
	"time"

	"gorm.io/datatypes"
)

// Join tables for many-to-many relations
const (
	tablePlantSupplies      = "plant_supplies"
	tablePlantImages        = "plant_images"
	tableSeedPacketImages   = "seed_packet_images"
	tableGardenSupplyImages = "garden_supply_images"
	tableNoteImages         = "note_images"
)

const (
	copySuffix     = " (Copy)"
	ouncesPerPound = 16.0
)

// imageJoinTables maps every owner join table to its owner foreign key column
var imageJoinTables = map[string]string{
	tablePlantImages:        "plant_id",
	tableSeedPacketImages:   "seed_packet_id",
	tableGardenSupplyImages: "garden_supply_id",
	tableNoteImages:         "note_id",
}

// PlantingMethod is how a plant was started
type PlantingMethod string

const (
	PlantingRaisedBed    PlantingMethod = "Raised Bed"
	PlantingSeedlingTray PlantingMethod = "Seedling Tray"
	PlantingPot          PlantingMethod = "Pot"
	PlantingGround       PlantingMethod = "Ground"

	// legacySeedlingTray is the spelling stored by earlier versions
	legacySeedlingTray = "Seedly Tray"
)

// PlantingMethods lists the valid planting methods in display order
func PlantingMethods() []PlantingMethod {
	return []PlantingMethod{PlantingRaisedBed, PlantingSeedlingTray, PlantingPot, PlantingGround}
}

// ParsePlantingMethod accepts display values, enum-style names such as
// "raised_bed" and the legacy "Seedly Tray" spelling, case-insensitively.
func ParsePlantingMethod(s string) (PlantingMethod, bool) {
	norm := strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, "_", " ")))
	if norm == strings.ToLower(legacySeedlingTray) {
		return PlantingSeedlingTray, true
	}
	for _, m := range PlantingMethods() {
		if strings.ToLower(string(m)) == norm {
			return m, true
		}
	}
	return "", false
}

// Valid reports whether m is one of the canonical planting methods
func (m PlantingMethod) Valid() bool {
	return slices.Contains(PlantingMethods(), m)
}

// OCRState records whether an image went through OCR
type OCRState int

const (
	OCRNotProcessed OCRState = 0
	OCRProcessed    OCRState = 1
	OCRFailed       OCRState = 2
)

// Year is a growing season; plants reference it by year number
type Year struct {
	ID   uint `gorm:"primaryKey" json:"id"`
	Year int  `gorm:"uniqueIndex;not null" json:"year"`
}

// Plant is a single planting in a season
type Plant struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Name           string         `gorm:"not null;index" json:"name"`
	Variety        *string        `json:"variety"`
	PlantingMethod PlantingMethod `gorm:"type:varchar(32);not null" json:"planting_method"`
	YearID         int            `gorm:"not null;index" json:"year_id"`
	SeedPacketID   *uint          `gorm:"index" json:"seed_packet_id"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	Year           *Year          `gorm:"foreignKey:YearID;references:Year" json:"-"`
	SeedPacket     *SeedPacket    `json:"seed_packet,omitempty"`
	GardenSupplies []GardenSupply `gorm:"many2many:plant_supplies" json:"garden_supplies,omitempty"`
	Notes          []Note         `json:"notes,omitempty"`
	Harvests       []Harvest      `json:"harvests,omitempty"`
	Images         []Image        `gorm:"many2many:plant_images" json:"images,omitempty"`
}

// SeedPacket is a packet of seeds on hand
type SeedPacket struct {
	ID                   uint            `gorm:"primaryKey" json:"id"`
	Name                 string          `gorm:"not null;index" json:"name"`
	Variety              *string         `json:"variety"`
	Description          *string         `gorm:"type:text" json:"description"`
	PlantingInstructions *string         `gorm:"type:text" json:"planting_instructions"`
	DaysToGermination    *int            `json:"days_to_germination"`
	Spacing              *string         `json:"spacing"`
	SunExposure          *string         `json:"sun_exposure"`
	SoilType             *string         `json:"soil_type"`
	Watering             *string         `json:"watering"`
	Fertilizer           *string         `json:"fertilizer"`
	PackageWeight        *float64        `json:"package_weight"`
	ExpirationDate       *datatypes.Date `json:"expiration_date"`
	Quantity             int             `gorm:"not null;default:0" json:"quantity"`
	ImagePath            *string         `json:"image_path"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`

	Plants []Plant `json:"plants,omitempty"`
	Notes  []Note  `json:"notes,omitempty"`
	Images []Image `gorm:"many2many:seed_packet_images" json:"images,omitempty"`
}

// GardenSupply is a tool, amendment or other supply
type GardenSupply struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"not null;index" json:"name"`
	Description *string   `gorm:"type:text" json:"description"`
	ImagePath   *string   `json:"image_path"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	Plants []Plant `gorm:"many2many:plant_supplies" json:"plants,omitempty"`
	Notes  []Note  `json:"notes,omitempty"`
	Images []Image `gorm:"many2many:garden_supply_images" json:"images,omitempty"`
}

// Note is free-form text, optionally attached to one parent entity
type Note struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Body           string    `gorm:"type:text;not null" json:"body"`
	ImagePath      *string   `json:"image_path"`
	Timestamp      time.Time `gorm:"not null;index" json:"timestamp"`
	PlantID        *uint     `gorm:"index" json:"plant_id"`
	SeedPacketID   *uint     `gorm:"index" json:"seed_packet_id"`
	GardenSupplyID *uint     `gorm:"index" json:"garden_supply_id"`

	Plant        *Plant        `json:"plant,omitempty"`
	SeedPacket   *SeedPacket   `json:"seed_packet,omitempty"`
	GardenSupply *GardenSupply `json:"garden_supply,omitempty"`
	Images       []Image       `gorm:"many2many:note_images" json:"images,omitempty"`
}

// parentCount returns how many parent references are set
func (n *Note) parentCount() int {
	count := 0
	for _, id := range []*uint{n.PlantID, n.SeedPacketID, n.GardenSupplyID} {
		if id != nil {
			count++
		}
	}
	return count
}

// Harvest is a weighed pick from one plant
type Harvest struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	WeightOz  float64   `gorm:"column:weight_oz;not null" json:"weight_oz"`
	Timestamp time.Time `gorm:"not null;index" json:"timestamp"`
	PlantID   uint      `gorm:"not null;index" json:"plant_id"`

	Plant *Plant `json:"plant,omitempty"`
}

// WeightLbs converts the harvest weight to pounds
func (h *Harvest) WeightLbs() float64 {
	return h.WeightOz / ouncesPerPound
}

// Image is an uploaded picture and its OCR results
type Image struct {
	ID               uint           `gorm:"primaryKey" json:"id"`
	FilePath         string         `gorm:"size:255;not null" json:"file_path"`
	OriginalFilename *string        `gorm:"size:255" json:"original_filename"`
	FileSize         *int64         `json:"file_size"`
	ContentType      *string        `gorm:"size:50" json:"content_type"`
	OCRProcessed     OCRState       `gorm:"column:ocr_processed;not null;default:0" json:"ocr_processed"`
	OCRText          *string        `gorm:"column:ocr_text;type:text" json:"ocr_text"`
	StructuredData   datatypes.JSON `gorm:"column:structured_data" json:"structured_data"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`

	SeedPackets    []SeedPacket   `gorm:"many2many:seed_packet_images" json:"seed_packets,omitempty"`
	Plants         []Plant        `gorm:"many2many:plant_images" json:"plants,omitempty"`
	GardenSupplies []GardenSupply `gorm:"many2many:garden_supply_images" json:"garden_supplies,omitempty"`
	Notes          []Note         `gorm:"many2many:note_images" json:"notes,omitempty"`
}

// models lists every table for migration, parents first
func models() []any {
	return []any{
		&Year{},
		&SeedPacket{},
		&GardenSupply{},
		&Plant{},
		&Note{},
		&Harvest{},
		&Image{},
	}
}
