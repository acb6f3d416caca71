package preprocess

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

const (
	maxTableRows = 100
	maxFormulas  = 50
)

var financialKeywords = []string{
	"έσοδα", "έξοδα", "κέρδος", "ζημία", "revenue", "expenses",
	"profit", "loss", "σύνολο", "total", "υπόλοιπο", "balance",
}

type ExcelData struct {
	SheetCount int         `json:"sheet_count"`
	Sheets     []SheetData `json:"sheets"`
}

type SheetData struct {
	Name        string           `json:"name"`
	RowCount    int              `json:"row_count"`
	ColumnCount int              `json:"column_count"`
	TableData   []map[string]any `json:"table_data"`
	HasMoreRows bool             `json:"has_more_rows"`
	Comments    []CellComment    `json:"comments"`
	Formulas    []CellFormula    `json:"formulas"`
	KeyFigures  []KeyFigure      `json:"key_figures"`

	// text is the cell text of the header and data rows in reading order.
	text []string
}

type CellComment struct {
	Cell    string `json:"cell"`
	Value   string `json:"value"`
	Comment string `json:"comment"`
}

type CellFormula struct {
	Cell    string `json:"cell"`
	Formula string `json:"formula"`
}

type KeyFigure struct {
	Label    string  `json:"label"`
	Value    float64 `json:"value"`
	Location string  `json:"location"`
}

// ExtractExcel reads every sheet of a workbook: a header-keyed view of the
// first 100 data rows, cell comments, formulas and keyword-labelled figures.
func ExtractExcel(path string) (*ExcelData, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	out := &ExcelData{SheetCount: len(sheets), Sheets: make([]SheetData, 0, len(sheets))}
	for _, name := range sheets {
		sheet, err := extractSheet(f, name)
		if err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
		out.Sheets = append(out.Sheets, sheet)
	}
	return out, nil
}

func extractSheet(f *excelize.File, name string) (SheetData, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return SheetData{}, err
	}
	raw, err := f.GetRows(name, excelize.Options{RawCellValue: true})
	if err != nil {
		return SheetData{}, err
	}

	maxRow, maxCol := len(rows), 0
	for _, r := range rows {
		if len(r) > maxCol {
			maxCol = len(r)
		}
	}
	if dim, err := f.GetSheetDimension(name); err == nil && dim != "" {
		parts := strings.Split(dim, ":")
		if c, r, err := excelize.CellNameToCoordinates(parts[len(parts)-1]); err == nil {
			maxRow = max(maxRow, r)
			maxCol = max(maxCol, c)
		}
	}

	sheet := SheetData{
		Name:        name,
		RowCount:    maxRow,
		ColumnCount: maxCol,
		TableData:   []map[string]any{},
		Comments:    []CellComment{},
		Formulas:    []CellFormula{},
		KeyFigures:  []KeyFigure{},
	}

	var nonEmpty [][]string
	for _, r := range rows {
		if !isEmptyRow(r) {
			nonEmpty = append(nonEmpty, r)
		}
	}
	sheet.HasMoreRows = len(nonEmpty) > maxTableRows
	if len(nonEmpty) > 0 {
		headers := headerNames(nonEmpty[0])
		sheet.text = append(sheet.text, nonBlank(nonEmpty[0])...)
		for i, r := range nonEmpty[1:] {
			if i >= maxTableRows {
				break
			}
			record := make(map[string]any, len(headers))
			for c, h := range headers {
				v := ""
				if c < len(r) {
					v = r[c]
				}
				record[h] = v
			}
			sheet.TableData = append(sheet.TableData, record)
			sheet.text = append(sheet.text, nonBlank(r)...)
		}
	}

	comments, err := f.GetComments(name)
	if err != nil {
		return SheetData{}, err
	}
	for _, c := range comments {
		value, _ := f.GetCellValue(name, c.Cell)
		sheet.Comments = append(sheet.Comments, CellComment{
			Cell:    c.Cell,
			Value:   value,
			Comment: commentText(c),
		})
	}

	for r := 1; r <= maxRow && len(sheet.Formulas) < maxFormulas; r++ {
		for c := 1; c <= maxCol && len(sheet.Formulas) < maxFormulas; c++ {
			cell, _ := excelize.CoordinatesToCellName(c, r)
			formula, err := f.GetCellFormula(name, cell)
			if err != nil || formula == "" {
				continue
			}
			if !strings.HasPrefix(formula, "=") {
				formula = "=" + formula
			}
			sheet.Formulas = append(sheet.Formulas, CellFormula{Cell: cell, Formula: formula})
		}
	}

	sheet.KeyFigures = keyFigures(raw)
	return sheet, nil
}

// keyFigures pairs a cell mentioning a financial keyword with the numeric
// value immediately to its right.
func keyFigures(rows [][]string) []KeyFigure {
	figures := []KeyFigure{}
	for r, row := range rows {
		for c, cell := range row {
			if c+1 >= len(row) || !containsKeyword(cell) {
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[c+1]), 64)
			if err != nil || v == 0 {
				continue
			}
			figures = append(figures, KeyFigure{
				Label:    cell,
				Value:    v,
				Location: fmt.Sprintf("Row %d", r+1),
			})
		}
	}
	return figures
}

func containsKeyword(cell string) bool {
	lower := strings.ToLower(cell)
	for _, kw := range financialKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func headerNames(row []string) []string {
	seen := make(map[string]int, len(row))
	headers := make([]string, len(row))
	for i, h := range row {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("column_%d", i+1)
		}
		seen[h]++
		if n := seen[h]; n > 1 {
			h = fmt.Sprintf("%s_%d", h, n)
		}
		headers[i] = h
	}
	return headers
}

func commentText(c excelize.Comment) string {
	if c.Text != "" {
		return c.Text
	}
	var b strings.Builder
	for _, run := range c.Paragraph {
		b.WriteString(run.Text)
	}
	return b.String()
}

func isEmptyRow(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func nonBlank(row []string) []string {
	var out []string
	for _, v := range row {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
