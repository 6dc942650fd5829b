// Package sheet builds figures from spreadsheet workbooks.
//
// The first row holds column headers. The first column supplies the x values
// and every further column becomes a scatter trace named by its header.
package sheet

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/xuri/excelize/v2"

	"github.com/abemedia/plotview"
)

// ErrEmpty is returned for a sheet without a header row and at least one
// data column.
var ErrEmpty = errors.New("sheet: no data")

// Load reads the named sheet of the workbook at path. An empty name selects
// the first sheet.
func Load(path, name string) (plotview.Figure, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return plotview.Figure{}, fmt.Errorf("sheet: %w", err)
	}
	defer f.Close()
	return fromFile(f, name)
}

// Read is like Load for a workbook read from r.
func Read(r io.Reader, name string) (plotview.Figure, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return plotview.Figure{}, fmt.Errorf("sheet: %w", err)
	}
	defer f.Close()
	return fromFile(f, name)
}

func fromFile(f *excelize.File, name string) (plotview.Figure, error) {
	if name == "" {
		name = f.GetSheetName(0)
	}
	rows, err := f.GetRows(name)
	if err != nil {
		return plotview.Figure{}, fmt.Errorf("sheet: %w", err)
	}
	return build(name, rows)
}

func build(title string, rows [][]string) (plotview.Figure, error) {
	if len(rows) == 0 || len(rows[0]) < 2 {
		return plotview.Figure{}, ErrEmpty
	}
	header := rows[0]

	x := make([]any, 0, len(rows)-1)
	ys := make([][]any, len(header)-1)
	for _, row := range rows[1:] {
		if len(row) == 0 || row[0] == "" {
			continue
		}
		x = append(x, parseValue(row[0]))
		for col := range ys {
			var v any
			if col+1 < len(row) && row[col+1] != "" {
				v = parseValue(row[col+1])
			}
			ys[col] = append(ys[col], v)
		}
	}

	data := make([]plotview.Trace, 0, len(ys))
	for col, y := range ys {
		name := header[col+1]
		if name == "" {
			cell, _ := excelize.CoordinatesToCellName(col+2, 1)
			name = cell
		}
		data = append(data, plotview.Trace{
			"type": "scatter",
			"mode": "lines+markers",
			"name": name,
			"x":    x,
			"y":    y,
		})
	}

	return plotview.Figure{
		Data: data,
		Layout: map[string]any{
			"title": map[string]any{"text": title},
			"xaxis": map[string]any{"title": map[string]any{"text": header[0]}},
		},
	}, nil
}

// parseValue returns an int64 or float64 for numeric cells and the string
// otherwise. Missing cells become nil so that Plotly leaves a gap.
func parseValue(s string) any {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
