package render

import (
	"errors"
	"fmt"
	"strings"

	"github.com/franchise/kpireport/internal/application/report"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// Ensure WorkbookRenderer implements report.WorkbookRenderer
var _ report.WorkbookRenderer = (*WorkbookRenderer)(nil)

// maxSheetNameLength is the XLSX worksheet name limit
const maxSheetNameLength = 31

var (
	summaryColumnWidths = []float64{6, 16, 24, 12, 10, 10, 10, 10, 12, 16, 16, 11, 14, 10}
	detailColumnWidths  = []float64{24, 12, 12, 12}

	invalidSheetChars = strings.NewReplacer(":", "_", `\`, "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")
)

// WorkbookRenderer renders the report as an XLSX workbook: one summary sheet per window
// followed by one sheet per store.
type WorkbookRenderer struct {
	logger *zap.Logger
}

// NewWorkbookRenderer creates a WorkbookRenderer
func NewWorkbookRenderer(logger *zap.Logger) *WorkbookRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkbookRenderer{logger: logger}
}

// workbookStyles holds the style ids of one file
type workbookStyles struct {
	title, subtitle, header, cell, money, currency, percent, integer int
}

// RenderWorkbook implements report.WorkbookRenderer
func (r *WorkbookRenderer) RenderWorkbook(doc *report.Document) ([]byte, error) {
	if doc == nil || doc.Aggregation == nil {
		return nil, errors.New("report document has no aggregation")
	}

	f := excelize.NewFile()
	defer f.Close()

	styles, err := newWorkbookStyles(f)
	if err != nil {
		return nil, err
	}

	used := make(map[string]bool)
	defaultSheet := f.GetSheetName(0)
	for i, summary := range doc.Aggregation.Windows {
		name := uniqueSheetName("Summary – "+summary.Label, used)
		if i == 0 {
			if err := f.SetSheetName(defaultSheet, name); err != nil {
				return nil, fmt.Errorf("failed to rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		if err := r.writeSummarySheet(f, name, summaryTable(doc, summary), styles); err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", name, err)
		}
	}

	for _, store := range doc.Aggregation.Stores {
		name := uniqueSheetName(store, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, fmt.Errorf("failed to add sheet %s: %w", name, err)
		}
		if err := r.writeStoreSheet(f, name, storeSections(doc, store), styles); err != nil {
			return nil, fmt.Errorf("failed to write sheet %s: %w", name, err)
		}
	}

	// A document without windows still needs its default sheet to be valid
	if len(doc.Aggregation.Windows) == 0 && len(doc.Aggregation.Stores) > 0 {
		if err := f.DeleteSheet(defaultSheet); err != nil {
			return nil, fmt.Errorf("failed to delete default sheet: %w", err)
		}
	}
	f.SetActiveSheet(0)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	r.logger.Debug("Workbook rendered",
		zap.Strings("sheets", f.GetSheetList()),
		zap.Int("bytes", buf.Len()),
	)
	return buf.Bytes(), nil
}

func newWorkbookStyles(f *excelize.File) (*workbookStyles, error) {
	border := []excelize.Border{
		{Type: "left", Color: "000000", Style: 1},
		{Type: "top", Color: "000000", Style: 1},
		{Type: "right", Color: "000000", Style: 1},
		{Type: "bottom", Color: "000000", Style: 1},
	}
	middle := &excelize.Alignment{Vertical: "center"}
	numFmt := func(format string) *string { return &format }

	defs := []*excelize.Style{
		{Font: &excelize.Font{Bold: true, Size: 14}},
		{Font: &excelize.Font{Bold: true, Italic: true, Color: "444444"}},
		{
			Font:      &excelize.Font{Bold: true},
			Fill:      excelize.Fill{Type: "pattern", Color: []string{"F2F2F2"}, Pattern: 1},
			Border:    border,
			Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center", WrapText: true},
		},
		{Border: border, Alignment: middle},
		{Border: border, Alignment: middle, CustomNumFmt: numFmt("$#,##0")},
		{Border: border, Alignment: middle, CustomNumFmt: numFmt("$#,##0.00")},
		{Border: border, Alignment: middle, CustomNumFmt: numFmt("0.0%")},
		{Border: border, Alignment: middle, NumFmt: 1},
	}

	s := &workbookStyles{}
	targets := []*int{&s.title, &s.subtitle, &s.header, &s.cell, &s.money, &s.currency, &s.percent, &s.integer}
	for i, d := range defs {
		id, err := f.NewStyle(d)
		if err != nil {
			return nil, fmt.Errorf("failed to create style: %w", err)
		}
		*targets[i] = id
	}
	return s, nil
}

// writeTable writes a title row, a header row and the body starting at row (1-based).
// It returns the next free row.
func writeTable(f *excelize.File, sheet string, row int, t Table, titleStyle int, s *workbookStyles) (int, error) {
	if err := setCell(f, sheet, 1, row, t.Title, titleStyle); err != nil {
		return 0, err
	}
	row++
	for j, h := range t.Headers {
		if err := setCell(f, sheet, j+1, row, h, s.header); err != nil {
			return 0, err
		}
	}
	row++
	for _, cells := range t.Rows {
		for j, c := range cells {
			value, style := cellValue(c, s)
			if err := setCell(f, sheet, j+1, row, value, style); err != nil {
				return 0, err
			}
		}
		row++
	}
	return row, nil
}

func cellValue(c Cell, s *workbookStyles) (any, int) {
	switch c.Kind {
	case KindInt:
		return c.Int, s.integer
	case KindMoney:
		return c.Value.InexactFloat64(), s.money
	case KindCurrency:
		return c.Value.InexactFloat64(), s.currency
	case KindPercent:
		return c.Value.Div(hundred).InexactFloat64(), s.percent
	default:
		return c.Text, s.cell
	}
}

func setCell(f *excelize.File, sheet string, col, row int, value any, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	if err := f.SetCellValue(sheet, cell, value); err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

func (r *WorkbookRenderer) writeSummarySheet(f *excelize.File, sheet string, t Table, s *workbookStyles) error {
	if err := setColumnWidths(f, sheet, summaryColumnWidths); err != nil {
		return err
	}
	next, err := writeTable(f, sheet, 1, t, s.title, s)
	if err != nil {
		return err
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      2,
		TopLeftCell: "A3",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	lastRow := next - 1
	if n := len(t.Rows); n > 0 {
		chartRow := next + 2
		revenue := chartSeries(sheet, t.Headers[summaryRevenueCol], summaryRevenueCol, n)
		aov := chartSeries(sheet, t.Headers[summaryAOVCol], summaryAOVCol, n)
		if err := addColumnChart(f, sheet, fmt.Sprintf("B%d", chartRow), t.Title+" · Revenue by Store", revenue, "$#,##0"); err != nil {
			return err
		}
		if err := addColumnChart(f, sheet, fmt.Sprintf("H%d", chartRow), t.Title+" · AOV by Store", aov, "$#,##0.00"); err != nil {
			return err
		}
		lastRow = chartRow + 20
	}

	return pageSetup(f, sheet, lastRow, len(t.Headers), true)
}

// chartSeries references the store names and one value column of the summary body (rows 3..n+2)
func chartSeries(sheet, name string, valueCol, n int) excelize.ChartSeries {
	ref := func(col int) string {
		letter, _ := excelize.ColumnNumberToName(col + 1)
		return fmt.Sprintf("'%s'!$%s$3:$%s$%d", strings.ReplaceAll(sheet, "'", "''"), letter, letter, n+2)
	}
	return excelize.ChartSeries{
		Name:       name,
		Categories: ref(summaryStoreCol),
		Values:     ref(valueCol),
	}
}

func addColumnChart(f *excelize.File, sheet, anchor, title string, series excelize.ChartSeries, numFmt string) error {
	return f.AddChart(sheet, anchor, &excelize.Chart{
		Type:     excelize.Col,
		Series:   []excelize.ChartSeries{series},
		Title:    []excelize.RichTextRun{{Text: title}},
		Legend:   excelize.ChartLegend{Position: "none"},
		PlotArea: excelize.ChartPlotArea{ShowVal: true},
		YAxis:    excelize.ChartAxis{NumFmt: excelize.ChartNumFmt{CustomNumFmt: numFmt}},
		Dimension: excelize.ChartDimension{
			Width:  480,
			Height: 290,
		},
	})
}

func (r *WorkbookRenderer) writeStoreSheet(f *excelize.File, sheet string, sections []Table, s *workbookStyles) error {
	if err := setColumnWidths(f, sheet, detailColumnWidths); err != nil {
		return err
	}
	row := 1
	maxCols := 1
	for _, t := range sections {
		next, err := writeTable(f, sheet, row, t, s.subtitle, s)
		if err != nil {
			return err
		}
		maxCols = max(maxCols, len(t.Headers))
		row = next + 2
	}
	return pageSetup(f, sheet, max(row-3, 1), maxCols, false)
}

func setColumnWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return err
		}
	}
	return nil
}

// pageSetup prints landscape, one page wide, without gridlines, limited to the used range
func pageSetup(f *excelize.File, sheet string, lastRow, lastCol int, repeatHeader bool) error {
	fitToPage := true
	if err := f.SetSheetProps(sheet, &excelize.SheetPropsOptions{FitToPage: &fitToPage}); err != nil {
		return err
	}

	orientation := "landscape"
	fitWidth, fitHeight := 1, 0
	if err := f.SetPageLayout(sheet, &excelize.PageLayoutOptions{
		Orientation: &orientation,
		FitToWidth:  &fitWidth,
		FitToHeight: &fitHeight,
	}); err != nil {
		return err
	}

	side, vertical := 0.5, 0.6
	if err := f.SetPageMargins(sheet, &excelize.PageLayoutMarginsOptions{
		Left:   &side,
		Right:  &side,
		Top:    &vertical,
		Bottom: &vertical,
	}); err != nil {
		return err
	}

	gridlines := false
	if err := f.SetSheetView(sheet, 0, &excelize.ViewOptions{ShowGridLines: &gridlines}); err != nil {
		return err
	}

	quoted := "'" + strings.ReplaceAll(sheet, "'", "''") + "'"
	endCol, err := excelize.ColumnNumberToName(max(lastCol, 1))
	if err != nil {
		return err
	}
	if err := f.SetDefinedName(&excelize.DefinedName{
		Name:     "_xlnm.Print_Area",
		RefersTo: fmt.Sprintf("%s!$A$1:$%s$%d", quoted, endCol, max(lastRow, 1)),
		Scope:    sheet,
	}); err != nil {
		return err
	}
	if repeatHeader {
		return f.SetDefinedName(&excelize.DefinedName{
			Name:     "_xlnm.Print_Titles",
			RefersTo: quoted + "!$1:$2",
			Scope:    sheet,
		})
	}
	return nil
}

// uniqueSheetName makes name a valid, unused worksheet name
func uniqueSheetName(name string, used map[string]bool) string {
	base := strings.Trim(invalidSheetChars.Replace(name), "'")
	if base == "" {
		base = "Sheet"
	}
	candidate := truncateRunes(base, maxSheetNameLength)
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := fmt.Sprintf(" (%d)", i)
		candidate = truncateRunes(base, maxSheetNameLength-len(suffix)) + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
