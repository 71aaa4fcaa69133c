package excel

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"gocanopy/domain/canopy"
	"gocanopy/internal/errors"
)

// WriteObservations saves observations to an xlsx file with a header
// row, in the column layout the reader detects
func WriteObservations(filePath string, observations []canopy.Observation) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetList()[0]
	header := []interface{}{"response", "predictor", "group"}
	for col, v := range header {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return errors.Wrap(err, "failed to compute header cell name")
		}
		if err := f.SetCellValue(sheet, cell, v); err != nil {
			return errors.Wrap(err, "failed to write header")
		}
	}

	for i, obs := range observations {
		values := []interface{}{obs.Response, obs.Predictor, string(obs.Group)}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return errors.Wrap(err, "failed to compute cell name")
			}
			if err := f.SetCellValue(sheet, cell, v); err != nil {
				return errors.Wrapf(err, "failed to write row %d", i+2)
			}
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return errors.Wrap(err, fmt.Sprintf("failed to save %s", filePath))
	}
	return nil
}
