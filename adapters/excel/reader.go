package excel

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"gocanopy/domain/canopy"
	"gocanopy/internal/errors"
)

// DataReader loads observation rows from Excel or CSV files. The file
// needs three columns - response, predictor, group - matched by header
// name when a header is present, by position otherwise.
type DataReader struct {
	filePath string
	fileType string // "xlsx" or "csv"
}

// NewDataReader creates a reader for the given file path
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// ReadObservations reads all rows into observations. Domain validation
// (open-interval response, nonnegative predictor) happens later at
// design construction; this adapter only rejects unparsable cells.
func (r *DataReader) ReadObservations(ctx context.Context) ([]canopy.Observation, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.InvalidInput(fmt.Sprintf("input file does not exist: %s", r.filePath))
	}

	var rows [][]string
	var err error
	if r.fileType == "csv" {
		rows, err = r.readCSVRows()
	} else {
		rows, err = r.readExcelRows()
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.InvalidInput("input file contains no rows")
	}

	cols, start := detectColumns(rows)
	log.Printf("[DataReader] %s: %d data rows (response=col %d, predictor=col %d, group=col %d)",
		r.filePath, len(rows)-start, cols.response, cols.predictor, cols.group)

	observations := make([]canopy.Observation, 0, len(rows)-start)
	for i := start; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}
		obs, err := parseRow(row, cols)
		if err != nil {
			return nil, errors.Wrapf(errors.InvalidInput(err.Error()), "row %d", i+1)
		}
		observations = append(observations, obs)
	}
	return observations, nil
}

func (r *DataReader) readExcelRows() ([][]string, error) {
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open excel file")
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.InvalidInput("excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to read excel rows")
	}
	return rows, nil
}

func (r *DataReader) readCSVRows() ([][]string, error) {
	f, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open csv file")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse csv")
	}
	return rows, nil
}

// columnLayout maps the three observation fields to column indices
type columnLayout struct {
	response  int
	predictor int
	group     int
}

// detectColumns inspects the first row for known header names; without a
// recognizable header, columns are positional (response, predictor,
// group) and the first row is data.
func detectColumns(rows [][]string) (columnLayout, int) {
	cols := columnLayout{response: 0, predictor: 1, group: 2}
	header := rows[0]
	found := false
	for i, cell := range header {
		switch strings.ToLower(strings.TrimSpace(cell)) {
		case "response", "interception", "fraction", "y":
			cols.response = i
			found = true
		case "predictor", "lai", "leaf_area_index", "x":
			cols.predictor = i
			found = true
		case "group", "cultivar", "treatment":
			cols.group = i
			found = true
		}
	}
	if found {
		return cols, 1
	}
	return cols, 0
}

func parseRow(row []string, cols columnLayout) (canopy.Observation, error) {
	max := cols.response
	if cols.predictor > max {
		max = cols.predictor
	}
	if cols.group > max {
		max = cols.group
	}
	if len(row) <= max {
		return canopy.Observation{}, fmt.Errorf("expected at least %d columns, got %d", max+1, len(row))
	}

	response, err := strconv.ParseFloat(strings.TrimSpace(row[cols.response]), 64)
	if err != nil {
		return canopy.Observation{}, fmt.Errorf("unparsable response %q", row[cols.response])
	}
	predictor, err := strconv.ParseFloat(strings.TrimSpace(row[cols.predictor]), 64)
	if err != nil {
		return canopy.Observation{}, fmt.Errorf("unparsable predictor %q", row[cols.predictor])
	}
	group := strings.TrimSpace(row[cols.group])
	if group == "" {
		return canopy.Observation{}, fmt.Errorf("empty group label")
	}

	return canopy.Observation{
		Response:  response,
		Predictor: predictor,
		Group:     canopy.GroupLabel(group),
	}, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
