package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/shopspring/decimal"
)

var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"nan":  true,
	"null": true,
	"none": true,
}

func isMissing(raw string) bool {
	return missingTokens[strings.ToLower(strings.TrimSpace(raw))]
}

type CSVReader struct {
	filename string
}

func NewCSVReader(filename string) (*CSVReader, error) {
	if filename == "" {
		return nil, fmt.Errorf("csv reader: empty filename")
	}
	return &CSVReader{filename: filename}, nil
}

func (cr *CSVReader) LoadData() (*Table, error) {
	file, err := os.Open(cr.filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	table, err := ReadCSV(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cr.filename, err)
	}
	return table, nil
}

// LoadFile parses a local CSV file into a Table.
func LoadFile(path string) (*Table, error) {
	reader, err := NewCSVReader(path)
	if err != nil {
		return nil, err
	}
	return reader.LoadData()
}

// ReadCSV parses a header row followed by numeric records. Empty and NA/NaN
// cells become missing values; any other non-numeric cell is an error.
func ReadCSV(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no header row", ErrMalformedCSV)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(headers[i], "\ufeff"))
	}

	table := NewTable(headers)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedCSV, err)
		}

		row := make([]decimal.NullDecimal, len(record))
		for j, raw := range record {
			if isMissing(raw) {
				continue
			}
			val, err := decimal.NewFromString(strings.TrimSpace(raw))
			if err != nil {
				return nil, fmt.Errorf("%w: line %d column %q: %q is not numeric",
					ErrMalformedCSV, line, headers[j], raw)
			}
			row[j] = decimal.NewNullDecimal(val)
		}
		if err := table.AppendRow(row); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrMalformedCSV, line, err)
		}
	}

	if table.NumRows() == 0 {
		return nil, ErrEmptyDataset
	}
	return table, nil
}
