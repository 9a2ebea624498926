package api

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/gardentracker/gardentracker/internal/datastore"
)

const (
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	sheetHarvests = "Harvests"
	sheetMonthly  = "Monthly"
)

var (
	harvestHeaders = []string{"Date", "Plant", "Variety", "Weight (oz)", "Weight (lbs)"}
	monthlyHeaders = []string{"Month", "Weight (oz)", "Weight (lbs)"}
)

// buildHarvestWorkbook writes one row per harvest plus a monthly summary sheet
func buildHarvestWorkbook(harvests []datastore.Harvest, stats *datastore.HarvestStats) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", sheetHarvests); err != nil {
		_ = f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(sheetMonthly); err != nil {
		_ = f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 11},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E2EFDA"}},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := writeHeader(f, sheetHarvests, harvestHeaders, headerStyle); err != nil {
		_ = f.Close()
		return nil, err
	}
	for i := range harvests {
		h := &harvests[i]
		row := i + 2
		plant, variety := "", ""
		if h.Plant != nil {
			plant = h.Plant.Name
			if h.Plant.Variety != nil {
				variety = *h.Plant.Variety
			}
		}
		values := []any{h.Timestamp.Format("2006-01-02 15:04"), plant, variety, h.WeightOz, h.WeightLbs()}
		if err := f.SetSheetRow(sheetHarvests, fmt.Sprintf("A%d", row), &values); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	totalRow := len(harvests) + 2
	total := []any{"Total", "", "", stats.TotalOz, stats.TotalLbs}
	if err := f.SetSheetRow(sheetHarvests, fmt.Sprintf("A%d", totalRow), &total); err != nil {
		_ = f.Close()
		return nil, err
	}

	if err := writeHeader(f, sheetMonthly, monthlyHeaders, headerStyle); err != nil {
		_ = f.Close()
		return nil, err
	}
	for i, m := range stats.Monthly {
		values := []any{m.Label, m.TotalOz, m.TotalLbs}
		if err := f.SetSheetRow(sheetMonthly, fmt.Sprintf("A%d", i+2), &values); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	for sheet, widths := range map[string][]float64{
		sheetHarvests: {18, 24, 18, 12, 12},
		sheetMonthly:  {18, 12, 12},
	} {
		for i, w := range widths {
			col, _ := excelize.ColumnNumberToName(i + 1)
			if err := f.SetColWidth(sheet, col, col, w); err != nil {
				_ = f.Close()
				return nil, err
			}
		}
	}
	return f, nil
}

func writeHeader(f *excelize.File, sheet string, headers []string, style int) error {
	for i, h := range headers {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		cell := col + "1"
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheet, cell, cell, style); err != nil {
			return err
		}
	}
	return nil
}
