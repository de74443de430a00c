// Package fetcher reads connection rows out of spreadsheet exports.
package fetcher

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/contacts-cli/internal/model"
)

// XLSXOptions configures which sheet to read.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
}

// header aliases accepted for each connection field, normalized to
// lowercase with underscores.
var columnAliases = map[string]string{
	"full_name":    "full_name",
	"name":         "full_name",
	"profile_url":  "profile_url",
	"linkedin_url": "profile_url",
	"url":          "profile_url",
	"location":     "location",
}

// ReadConnections reads an XLSX export into connection records. The first
// row must be a header naming at least full_name and profile_url columns
// (aliases like "Name" and "LinkedIn URL" are accepted); unknown columns
// are ignored. Rows missing either required value are dropped.
func ReadConnections(path string, opts XLSXOptions) ([]model.Connection, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}
	if len(sheet.Rows) == 0 {
		return nil, eris.New("xlsx: empty sheet")
	}

	cols, err := mapHeader(rowToStrings(sheet.Rows[0]))
	if err != nil {
		return nil, err
	}

	var conns []model.Connection
	for _, row := range sheet.Rows[1:] {
		cells := rowToStrings(row)
		get := func(field string) string {
			idx, ok := cols[field]
			if !ok || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}

		conn := model.Connection{
			FullName:   get("full_name"),
			ProfileURL: get("profile_url"),
			Location:   get("location"),
		}
		if conn.FullName == "" || conn.ProfileURL == "" {
			continue
		}
		conns = append(conns, conn)
	}

	return conns, nil
}

// mapHeader resolves header cells to field column indexes.
func mapHeader(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(columnAliases))
	for i, cell := range header {
		key := strings.ToLower(strings.TrimSpace(cell))
		key = strings.ReplaceAll(key, " ", "_")
		if field, ok := columnAliases[key]; ok {
			if _, dup := cols[field]; !dup {
				cols[field] = i
			}
		}
	}

	for _, required := range []string{"full_name", "profile_url"} {
		if _, ok := cols[required]; !ok {
			return nil, eris.Errorf("xlsx: missing required column %q", required)
		}
	}
	return cols, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
