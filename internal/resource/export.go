package resource

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/schooladmin/school-admin/internal"
	"github.com/schooladmin/school-admin/internal/database"
	"github.com/schooladmin/school-admin/internal/record"
)

const (
	maxExportRows = 10000
	exportSheet   = "Records"
	xlsxMediaType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// export streams the filtered listing as an xlsx workbook. It accepts the
// same q, filter and sort parameters as list but ignores paging.
func (h *Handler) export(def Definition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conditions, err := filters(r)
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}
		order, err := sortOrder(r.URL.Query().Get("sort"))
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}

		rows, err := h.store.Search(r.Context(), def.Table, record.SearchQuery{
			Fields:     def.SearchFields,
			Term:       r.URL.Query().Get("q"),
			Conditions: conditions,
			OrderBy:    order,
			Limit:      record.Int(maxExportRows),
		})
		if err != nil {
			h.WriteAppError(w, r, err)
			return
		}

		buf, err := Workbook(rows)
		if err != nil {
			h.WriteAppError(w, r, internal.NewInternalError("failed to build export", err))
			return
		}

		filename := fmt.Sprintf("%s_%s.xlsx", def.Name, time.Now().UTC().Format("20060102_150405"))
		w.Header().Set("Content-Type", xlsxMediaType)
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write(buf.Bytes()); err != nil {
			h.Log(r.Context()).ErrorContext(r.Context(), "failed to write export", "resource", def.Name, "error", err)
			return
		}
		h.audit(r, "records exported", def, len(rows))
	}
}

// Workbook renders rows into a single sheet with one header row. Columns are
// ordered id first, then alphabetically.
func Workbook(rows []database.Record) (*bytes.Buffer, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, err
	}

	columns := exportColumns(rows)
	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, err
	}

	for i, col := range columns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		if err := f.SetCellValue(exportSheet, cell, col); err != nil {
			return nil, err
		}
		if err := f.SetCellStyle(exportSheet, cell, cell, header); err != nil {
			return nil, err
		}
	}

	for r, row := range rows {
		for c, col := range columns {
			cell, err := excelize.CoordinatesToCellName(c+1, r+2)
			if err != nil {
				return nil, err
			}
			if err := f.SetCellValue(exportSheet, cell, cellValue(row[col])); err != nil {
				return nil, err
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func exportColumns(rows []database.Record) []string {
	seen := map[string]bool{}
	var columns []string
	for _, row := range rows {
		for k := range row {
			if !seen[k] && k != "id" {
				seen[k] = true
				columns = append(columns, k)
			}
		}
	}
	sort.Strings(columns)
	return append([]string{"id"}, columns...)
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	default:
		return t
	}
}
