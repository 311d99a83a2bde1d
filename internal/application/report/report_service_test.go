package report

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/franchise/kpireport/internal/domain/sales"
	"github.com/franchise/kpireport/internal/infrastructure/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockStoreSource is a mock implementation of StoreSource
type MockStoreSource struct {
	mock.Mock
}

func (m *MockStoreSource) CollectStores(ctx context.Context, dataDir string) (sales.StoreSet, ingest.Stats, error) {
	args := m.Called(ctx, dataDir)
	stores, _ := args.Get(0).(sales.StoreSet)
	return stores, args.Get(1).(ingest.Stats), args.Error(2)
}

// MockWorkbookRenderer is a mock implementation of WorkbookRenderer
type MockWorkbookRenderer struct {
	mock.Mock
}

func (m *MockWorkbookRenderer) RenderWorkbook(doc *Document) ([]byte, error) {
	args := m.Called(doc)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// MockHTMLRenderer is a mock implementation of HTMLRenderer
type MockHTMLRenderer struct {
	mock.Mock
}

func (m *MockHTMLRenderer) RenderHTML(doc *Document) (string, error) {
	args := m.Called(doc)
	return args.String(0), args.Error(1)
}

// MockPDFExporter is a mock implementation of PDFExporter
type MockPDFExporter struct {
	mock.Mock
}

func (m *MockPDFExporter) Export(ctx context.Context, html, title string) ([]byte, error) {
	args := m.Called(ctx, html, title)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

// MockSink is a mock implementation of Sink
type MockSink struct {
	mock.Mock
}

func (m *MockSink) Put(ctx context.Context, name string, data []byte, contentType string) (string, error) {
	args := m.Called(ctx, name, data, contentType)
	return args.String(0), args.Error(1)
}

// MockRunRecorder is a mock implementation of RunRecorder
type MockRunRecorder struct {
	mock.Mock
}

func (m *MockRunRecorder) Record(result *RunResult) error {
	args := m.Called(result)
	return args.Error(0)
}

var fixedNow = time.Date(2025, time.January, 15, 9, 30, 0, 0, time.UTC)

func testStores() sales.StoreSet {
	return sales.StoreSet{
		"Store1": {
			line(at(time.January, 10), "A1", "10.00", "Latte", "Drink"),
			line(at(time.January, 11), "A2", "6.00", "Scone", "Food"),
		},
		"Store2": {
			line(at(time.January, 12), "B1", "20.00", "Mocha", "Drink"),
		},
	}
}

var testStats = ingest.Stats{Files: 2, Rows: 3, Stores: 2}

type serviceFixture struct {
	source   *MockStoreSource
	workbook *MockWorkbookRenderer
	html     *MockHTMLRenderer
	pdf      *MockPDFExporter
	sink     *MockSink
	recorder *MockRunRecorder
	service  *Service
}

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		source:   new(MockStoreSource),
		workbook: new(MockWorkbookRenderer),
		html:     new(MockHTMLRenderer),
		pdf:      new(MockPDFExporter),
		sink:     new(MockSink),
		recorder: new(MockRunRecorder),
	}
	f.service = NewService(
		f.source,
		NewAggregator(2, nil),
		f.workbook,
		f.sink,
		zap.NewNop(),
		WithPDFExport(f.html, f.pdf),
		WithRecorder(f.recorder),
		WithClock(func() time.Time { return fixedNow }),
	)
	return f
}

const baseName = "franchise_report_Jan_08_-_Jan_15_2025_2025-01-15_093000"

func TestService_Run_WorkbookOnly(t *testing.T) {
	f := newServiceFixture()
	f.source.On("CollectStores", mock.Anything, "data").Return(testStores(), testStats, nil)
	f.workbook.On("RenderWorkbook", mock.AnythingOfType("*report.Document")).Return([]byte("xlsx"), nil)
	f.sink.On("Put", mock.Anything, baseName+".xlsx", []byte("xlsx"), ContentTypeXLSX).
		Return("out/"+baseName+".xlsx", nil)
	f.recorder.On("Record", mock.AnythingOfType("*report.RunResult")).Return(nil)

	result, err := f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30})
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, fixedNow, result.GeneratedAt)
	assert.Equal(t, testStats, result.Load)
	require.Len(t, result.Windows, 2)
	assert.Equal(t, time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), result.Windows[0].Window.End)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, Artifact{
		Name:        baseName + ".xlsx",
		Location:    "out/" + baseName + ".xlsx",
		ContentType: ContentTypeXLSX,
		Bytes:       4,
	}, result.Artifacts[0])

	require.NotNil(t, result.Aggregation)
	assert.Equal(t, []string{"Store1", "Store2"}, result.Aggregation.Stores)

	f.html.AssertNotCalled(t, "RenderHTML", mock.Anything)
	f.pdf.AssertNotCalled(t, "Export", mock.Anything, mock.Anything, mock.Anything)
	f.source.AssertExpectations(t)
	f.workbook.AssertExpectations(t)
	f.sink.AssertExpectations(t)
	f.recorder.AssertExpectations(t)
}

func TestService_Run_WithPDF(t *testing.T) {
	f := newServiceFixture()
	f.source.On("CollectStores", mock.Anything, "data").Return(testStores(), testStats, nil)
	f.workbook.On("RenderWorkbook", mock.Anything).Return([]byte("xlsx"), nil)
	f.html.On("RenderHTML", mock.Anything).Return("<html></html>", nil)
	f.pdf.On("Export", mock.Anything, "<html></html>", "Franchise Sales Report").Return([]byte("%PDF"), nil)
	f.sink.On("Put", mock.Anything, baseName+".xlsx", mock.Anything, ContentTypeXLSX).Return("a.xlsx", nil)
	f.sink.On("Put", mock.Anything, baseName+".pdf", []byte("%PDF"), ContentTypePDF).Return("a.pdf", nil)
	f.recorder.On("Record", mock.Anything).Return(nil)

	result, err := f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30, PDF: true})
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 2)
	assert.Equal(t, "a.xlsx", result.Artifacts[0].Location)
	assert.Equal(t, "a.pdf", result.Artifacts[1].Location)
	f.pdf.AssertExpectations(t)
	f.sink.AssertExpectations(t)
}

func TestService_Run_PDFFailureKeepsWorkbook(t *testing.T) {
	f := newServiceFixture()
	f.source.On("CollectStores", mock.Anything, "data").Return(testStores(), testStats, nil)
	f.workbook.On("RenderWorkbook", mock.Anything).Return([]byte("xlsx"), nil)
	f.html.On("RenderHTML", mock.Anything).Return("<html></html>", nil)
	f.pdf.On("Export", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("chrome not found"))
	f.sink.On("Put", mock.Anything, baseName+".xlsx", mock.Anything, ContentTypeXLSX).Return("a.xlsx", nil)
	f.recorder.On("Record", mock.Anything).Return(nil)

	result, err := f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30, PDF: true})
	require.NoError(t, err)

	require.Len(t, result.Artifacts, 1)
	assert.Equal(t, ContentTypeXLSX, result.Artifacts[0].ContentType)
	f.sink.AssertNumberOfCalls(t, "Put", 1)
}

func TestService_Run_ExplicitAsOf(t *testing.T) {
	f := newServiceFixture()
	f.source.On("CollectStores", mock.Anything, "data").Return(testStores(), testStats, nil)
	f.workbook.On("RenderWorkbook", mock.Anything).Return([]byte("xlsx"), nil)
	f.sink.On("Put", mock.Anything, "franchise_report_Jan_01_-_Jan_08_2025_2025-01-15_093000.xlsx", mock.Anything, ContentTypeXLSX).
		Return("a.xlsx", nil)
	f.recorder.On("Record", mock.Anything).Return(nil)

	result, err := f.service.Run(context.Background(), RunRequest{
		AsOf:      time.Date(2025, time.January, 8, 23, 0, 0, 0, time.UTC),
		DataDir:   "data",
		WeekDays:  7,
		MonthDays: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 1, 8, 0, 0, 0, 0, time.UTC), result.Windows[0].Window.End)
	f.sink.AssertExpectations(t)
}

func TestService_Run_NoStoresUsesNoWeekSlug(t *testing.T) {
	f := newServiceFixture()
	f.source.On("CollectStores", mock.Anything, "data").Return(sales.StoreSet{}, ingest.Stats{Files: 1}, nil)
	f.workbook.On("RenderWorkbook", mock.Anything).Return([]byte("xlsx"), nil)
	f.sink.On("Put", mock.Anything, "franchise_report_No_Week_2025-01-15_093000.xlsx", mock.Anything, ContentTypeXLSX).
		Return("a.xlsx", nil)
	f.recorder.On("Record", mock.Anything).Return(nil)

	_, err := f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30})
	require.NoError(t, err)
	f.sink.AssertExpectations(t)
}

func TestService_Run_RecorderErrorIsNotFatal(t *testing.T) {
	f := newServiceFixture()
	f.source.On("CollectStores", mock.Anything, "data").Return(testStores(), testStats, nil)
	f.workbook.On("RenderWorkbook", mock.Anything).Return([]byte("xlsx"), nil)
	f.sink.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("a.xlsx", nil)
	f.recorder.On("Record", mock.Anything).Return(errors.New("disk full"))

	_, err := f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30})
	assert.NoError(t, err)
}

func TestService_Run_Errors(t *testing.T) {
	t.Run("Invalid request", func(t *testing.T) {
		f := newServiceFixture()

		_, err := f.service.Run(context.Background(), RunRequest{WeekDays: 7, MonthDays: 30})
		assert.ErrorIs(t, err, ErrInvalidRequest)

		_, err = f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 0, MonthDays: 30})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		f.source.AssertNotCalled(t, "CollectStores", mock.Anything, mock.Anything)
	})

	t.Run("PDF requested without exporter", func(t *testing.T) {
		source := new(MockStoreSource)
		svc := NewService(source, NewAggregator(1, nil), new(MockWorkbookRenderer), new(MockSink), nil)

		_, err := svc.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30, PDF: true})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "PDF export is not configured")
	})

	t.Run("Load failure", func(t *testing.T) {
		f := newServiceFixture()
		f.source.On("CollectStores", mock.Anything, "data").Return(nil, ingest.Stats{}, ingest.ErrNoInputFiles)

		_, err := f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30})
		assert.ErrorIs(t, err, ingest.ErrNoInputFiles)
		assert.True(t, strings.HasPrefix(err.Error(), "failed to load store data"))
	})

	t.Run("Render failure", func(t *testing.T) {
		f := newServiceFixture()
		f.source.On("CollectStores", mock.Anything, "data").Return(testStores(), testStats, nil)
		f.workbook.On("RenderWorkbook", mock.Anything).Return(nil, errors.New("boom"))

		_, err := f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30})
		assert.ErrorContains(t, err, "failed to render workbook")
		f.sink.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Sink failure", func(t *testing.T) {
		f := newServiceFixture()
		f.source.On("CollectStores", mock.Anything, "data").Return(testStores(), testStats, nil)
		f.workbook.On("RenderWorkbook", mock.Anything).Return([]byte("xlsx"), nil)
		f.sink.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return("", errors.New("denied"))

		_, err := f.service.Run(context.Background(), RunRequest{DataDir: "data", WeekDays: 7, MonthDays: 30})
		assert.ErrorContains(t, err, "failed to store "+baseName+".xlsx")
		f.recorder.AssertNotCalled(t, "Record", mock.Anything)
	})
}

func TestService_StoreKPIs(t *testing.T) {
	f := newServiceFixture()
	f.source.On("CollectStores", mock.Anything, "data").Return(testStores(), testStats, nil)
	w := sales.TrailingWindow(time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), 7)

	r, err := f.service.StoreKPIs(context.Background(), "data", "Store1", w)
	require.NoError(t, err)
	assert.Equal(t, "16.00", r.Revenue.StringFixed(2))
	assert.Equal(t, 2, r.Orders)

	_, err = f.service.StoreKPIs(context.Background(), "data", "Store9", w)
	assert.ErrorIs(t, err, ErrUnknownStore)
}

func TestDocument_Ranked(t *testing.T) {
	agg, err := NewAggregator(1, nil).Aggregate(context.Background(), testStores(), windows)
	require.NoError(t, err)
	doc := &Document{Aggregation: agg}

	ranked := doc.Ranked(WindowWeekly)
	require.Len(t, ranked, 2)
	assert.Equal(t, "Store2", ranked[0].Store)
	assert.Equal(t, 1, ranked[0].Rank)

	assert.Empty(t, doc.Ranked("Quarterly"))
}
