package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"PriceForecaster/internal/model"
	"PriceForecaster/internal/series"
)

// FileFetcher reads {Dir}/{SYMBOL}.csv or {Dir}/{SYMBOL}.xlsx. The first
// column is the date; the first HeaderRows rows label the remaining columns.
// With more than one header row every column gets a composite key, the shape
// produced by spreadsheet exports of multi-instrument downloads.
type FileFetcher struct {
	Dir        string
	HeaderRows int
}

// NewFileFetcher creates a fetcher over a directory of exported price files.
func NewFileFetcher(dir string, headerRows int) *FileFetcher {
	if headerRows < 1 {
		headerRows = 1
	}
	return &FileFetcher{Dir: dir, HeaderRows: headerRows}
}

func (f *FileFetcher) Name() string { return SourceFile }

// FetchTable loads the symbol's file and keeps rows whose date falls in
// [start, end). Rows with an unreadable date are kept for the validator to
// drop. A missing file is an empty table.
func (f *FileFetcher) FetchTable(ctx context.Context, symbol string, start, end time.Time) (*model.RawTable, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records, err := f.read(symbol)
	if errors.Is(err, os.ErrNotExist) {
		return &model.RawTable{Symbol: symbol}, nil
	}
	if err != nil {
		return nil, err
	}
	return tableFromRecords(symbol, records, f.HeaderRows, start, end)
}

func (f *FileFetcher) read(symbol string) ([][]string, error) {
	base := filepath.Join(f.Dir, strings.ToUpper(symbol))

	if file, err := os.Open(base + ".csv"); err == nil {
		defer file.Close()
		r := csv.NewReader(file)
		r.FieldsPerRecord = -1
		r.TrimLeadingSpace = true
		records, err := r.ReadAll()
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read csv %s: %w", base+".csv", err)
		}
		return records, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("open csv: %w", err)
	}

	wb, err := excelize.OpenFile(base + ".xlsx")
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheets[0], err)
	}
	return rows, nil
}

// tableFromRecords turns header rows plus data rows into a RawTable. Blank
// header cells become blank levels, which the normalizer skips.
func tableFromRecords(symbol string, records [][]string, headerRows int, start, end time.Time) (*model.RawTable, error) {
	table := &model.RawTable{Symbol: symbol}
	if len(records) == 0 {
		return table, nil
	}
	if len(records) < headerRows {
		return nil, fmt.Errorf("file for %s has %d rows, want at least %d header rows", symbol, len(records), headerRows)
	}

	width := 0
	for _, r := range records[:headerRows] {
		if len(r) > width {
			width = len(r)
		}
	}
	if width < 2 {
		return nil, fmt.Errorf("file for %s has no value columns", symbol)
	}

	for c := 1; c < width; c++ {
		levels := make([]string, headerRows)
		for h := 0; h < headerRows; h++ {
			levels[h] = headerCell(records[h], c)
		}
		table.Columns = append(table.Columns, model.ColumnKey{Levels: levels})
	}

	startDay, endDay := dayOf(start), dayOf(end)
	for _, rec := range records[headerRows:] {
		if len(rec) == 0 || (len(rec) == 1 && strings.TrimSpace(rec[0]) == "") {
			continue
		}
		if day, ok := series.ParseDate(rec[0]); ok && !inRange(day, startDay, endDay) {
			continue
		}
		row := model.RawRow{Index: rec[0], Values: make([]any, width-1)}
		for c := 1; c < width; c++ {
			if c < len(rec) {
				row.Values[c-1] = rec[c]
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func headerCell(row []string, c int) string {
	if c < len(row) {
		return strings.TrimSpace(row[c])
	}
	return ""
}
