package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"project_report_srv/internal/datasource"
	"project_report_srv/internal/models"
	"project_report_srv/internal/pdf"
	"project_report_srv/internal/report"
	"project_report_srv/internal/storage"
	"project_report_srv/internal/template"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// MockStorage is a mock implementation of the Storage interface
type MockStorage struct {
	mock.Mock
}

func (m *MockStorage) Save(ctx context.Context, key string, reader io.Reader) error {
	args := m.Called(ctx, key, reader)
	return args.Error(0)
}

func (m *MockStorage) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	args := m.Called(ctx, key)
	rc, _ := args.Get(0).(io.ReadCloser)
	return rc, args.Error(1)
}

func (m *MockStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockStorage) PresignGet(ctx context.Context, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, key, expiration)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) PresignDelete(ctx context.Context, key string, expiration time.Duration) (string, error) {
	args := m.Called(ctx, key, expiration)
	return args.String(0), args.Error(1)
}

func (m *MockStorage) ValidateKey(key string) error {
	args := m.Called(key)
	return args.Error(0)
}

// MockGenerator is a mock implementation of ReportGenerator
type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, data models.ProjectReport) ([]byte, error) {
	args := m.Called(ctx, data)
	out, _ := args.Get(0).([]byte)
	return out, args.Error(1)
}

type notFoundSource struct{}

func (notFoundSource) Project(ctx context.Context, projectID string) (*models.Project, error) {
	return nil, datasource.ErrProjectNotFound
}

var fixedNow = time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)

func setupTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

func templateBytes(t *testing.T) []byte {
	t.Helper()
	f, err := template.NewWorkbook()
	require.NoError(t, err)
	defer f.Close()
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func openerFor(s storage.Storage) storage.Opener {
	return storage.OpenerFunc(func(ctx context.Context) (storage.Storage, error) {
		return s, nil
	})
}

func newTestService(generators map[report.Format]ReportGenerator, opener storage.Opener) *ReportServiceImpl {
	svc := NewReportService(datasource.NewSampleSource(), generators, opener, StorageSettings{}, setupTestLogger())
	svc.SetClock(func() time.Time { return fixedNow })
	return svc
}

func xlsxRequest(name string) report.Request {
	return report.Request{ProjectID: "42", Format: report.FormatXLSX, BaseName: name}
}

func TestGenerateReportUsesGeneratorForFormat(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(d models.ProjectReport) bool {
		return d.Project.Code == "99435" && d.Date.Equal(fixedNow) && len(d.Substructures) == 3
	})).Return([]byte("%PDF-1.4"), nil)

	svc := newTestService(map[report.Format]ReportGenerator{report.FormatPDF: gen}, nil)

	file, err := svc.GenerateReport(context.Background(), report.Request{
		ProjectID: "42", Format: report.FormatPDF, BaseName: "Report",
	})
	require.NoError(t, err)
	assert.Equal(t, "Report.pdf", file.Name)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.Equal(t, []byte("%PDF-1.4"), file.Data)
	gen.AssertExpectations(t)
}

func TestGenerateReportGeneratorError(t *testing.T) {
	gen := new(MockGenerator)
	gen.On("Generate", mock.Anything, mock.Anything).Return(nil, errors.New("chromium crashed"))

	svc := newTestService(map[report.Format]ReportGenerator{report.FormatPDF: gen}, nil)

	file, err := svc.GenerateReport(context.Background(), report.Request{ProjectID: "42", Format: report.FormatPDF, BaseName: "R"})
	require.Error(t, err)
	assert.Nil(t, file)
	assert.Equal(t, http.StatusInternalServerError, report.StatusCode(err))
}

func TestGenerateReportRejectsMismatchedContent(t *testing.T) {
	tests := []struct {
		name   string
		format report.Format
		data   []byte
	}{
		{"html instead of pdf", report.FormatPDF, []byte("<html><body>render failed</body></html>")},
		{"empty pdf", report.FormatPDF, []byte{}},
		{"pdf instead of xlsx", report.FormatXLSX, []byte("%PDF-1.7\n")},
		{"garbage xlsx", report.FormatXLSX, []byte{0x00, 0x01, 0x02, 0x03}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := new(MockGenerator)
			gen.On("Generate", mock.Anything, mock.Anything).Return(tt.data, nil)
			svc := newTestService(map[report.Format]ReportGenerator{tt.format: gen}, nil)

			file, err := svc.GenerateReport(context.Background(), report.Request{ProjectID: "42", Format: tt.format, BaseName: "R"})
			require.Error(t, err)
			assert.Nil(t, file)
			assert.ErrorIs(t, err, ErrUnexpectedContent)
			assert.Equal(t, http.StatusInternalServerError, report.StatusCode(err))
			assert.Equal(t, fmt.Sprintf("Failed to generate %s report", tt.format), err.(*report.Error).Message)
		})
	}
}

func TestVerifyContentAcceptsWorkbook(t *testing.T) {
	assert.NoError(t, verifyContent(report.FormatXLSX, templateBytes(t)))
	assert.NoError(t, verifyContent(report.FormatPDF, []byte("%PDF-1.7\n%âãÏÓ\n")))
}

func TestGenerateReportUnknownProject(t *testing.T) {
	gen := new(MockGenerator)
	svc := NewReportService(notFoundSource{}, map[report.Format]ReportGenerator{report.FormatXLSX: gen}, nil, StorageSettings{}, setupTestLogger())

	_, err := svc.GenerateReport(context.Background(), xlsxRequest("R"))
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, report.StatusCode(err))
	gen.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
}

func TestGenerateReportMissingGenerator(t *testing.T) {
	svc := newTestService(map[report.Format]ReportGenerator{}, nil)

	_, err := svc.GenerateReport(context.Background(), xlsxRequest("R"))
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, report.StatusCode(err))
}

func TestExcelReportGeneratorFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ExcelTemplate.xlsx")
	require.NoError(t, os.WriteFile(path, templateBytes(t), 0644))

	svc := newTestService(map[report.Format]ReportGenerator{
		report.FormatXLSX: NewExcelReportGenerator(FileTemplate{Path: path}),
	}, nil)

	file, err := svc.GenerateReport(context.Background(), xlsxRequest("Report"))
	require.NoError(t, err)
	assert.Equal(t, "Report.xlsx", file.Name)
	assert.Equal(t, report.FormatXLSX.ContentType(), file.ContentType)

	f, err := excelize.OpenReader(bytes.NewReader(file.Data))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(template.SheetTotalCost, "L5")
	require.NoError(t, err)
	assert.Equal(t, "2024-03-07", v)
}

func TestExcelReportGeneratorMissingTemplate(t *testing.T) {
	gen := NewExcelReportGenerator(FileTemplate{Path: filepath.Join(t.TempDir(), "missing.xlsx")})

	out, err := gen.Generate(context.Background(), models.NewProjectReport(*datasource.SampleProject(), fixedNow))
	require.Error(t, err)
	assert.Nil(t, out)
}

func TestPDFReportGenerator(t *testing.T) {
	var rendered string
	engine := pdf.EngineFunc(func(ctx context.Context, html string) ([]byte, error) {
		rendered = html
		return []byte("%PDF-1.7"), nil
	})
	filler := template.HTMLFiller{
		MainPath: "../../templates/PDFTemplate.html",
		RowPath:  "../../templates/SubstructureTableTemplate.html",
	}
	gen := NewPDFReportGenerator(filler, engine, setupTestLogger())

	out, err := gen.Generate(context.Background(), models.NewProjectReport(*datasource.SampleProject(), fixedNow))
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.7"), out)
	assert.Contains(t, rendered, "AFRY Head Office")
	assert.NotContains(t, rendered, "{{{")
}

func TestCreateStorageReport(t *testing.T) {
	store := new(MockStorage)
	store.On("Get", mock.Anything, "ExcelTemplate.xlsx").
		Return(io.NopCloser(bytes.NewReader(templateBytes(t))), nil)

	var uploaded []byte
	store.On("Save", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "Report") && strings.HasSuffix(key, ".xlsx")
	}), mock.Anything).Run(func(args mock.Arguments) {
		data, err := io.ReadAll(args.Get(2).(io.Reader))
		require.NoError(t, err)
		uploaded = data
	}).Return(nil)
	store.On("PresignGet", mock.Anything, mock.Anything, 30*time.Minute).
		Return("https://blob.example/report-templates/get?sig=1", nil)
	store.On("PresignDelete", mock.Anything, mock.Anything, 30*time.Minute).
		Return("https://blob.example/report-templates/delete?sig=2", nil)

	svc := newTestService(nil, openerFor(store))

	result, err := svc.CreateStorageReport(context.Background(), xlsxRequest("Report"))
	require.NoError(t, err)

	// Report + 36-char uuid + .xlsx
	assert.Len(t, result.Name, len("Report")+36+len(".xlsx"))
	assert.Equal(t, "https://blob.example/report-templates/get?sig=1", result.URI)
	assert.Equal(t, "https://blob.example/report-templates/delete?sig=2", result.DeleteURI)
	assert.Equal(t, fixedNow.Add(30*time.Minute), result.ExpiresAt)

	f, err := excelize.OpenReader(bytes.NewReader(uploaded))
	require.NoError(t, err)
	defer f.Close()
	v, err := f.GetCellValue(template.SheetSubstructures, "B17")
	require.NoError(t, err)
	assert.Equal(t, "Attic", v)

	store.AssertExpectations(t)
	saved := store.Calls[1].Arguments.String(1)
	store.AssertCalled(t, "PresignGet", mock.Anything, saved, 30*time.Minute)
}

func TestCreateStorageReportUniqueNames(t *testing.T) {
	store := new(MockStorage)
	tmpl := templateBytes(t)
	store.On("Get", mock.Anything, "ExcelTemplate.xlsx").
		Return(io.NopCloser(bytes.NewReader(tmpl)), nil).Once()
	store.On("Get", mock.Anything, "ExcelTemplate.xlsx").
		Return(io.NopCloser(bytes.NewReader(tmpl)), nil).Once()
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("PresignGet", mock.Anything, mock.Anything, mock.Anything).Return("u", nil)
	store.On("PresignDelete", mock.Anything, mock.Anything, mock.Anything).Return("d", nil)

	svc := newTestService(nil, openerFor(store))

	a, err := svc.CreateStorageReport(context.Background(), xlsxRequest("Same"))
	require.NoError(t, err)
	b, err := svc.CreateStorageReport(context.Background(), xlsxRequest("Same"))
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, b.Name)
}

func TestCreateStorageReportRejectsPDF(t *testing.T) {
	store := new(MockStorage)
	svc := newTestService(nil, openerFor(store))

	_, err := svc.CreateStorageReport(context.Background(), report.Request{ProjectID: "1", Format: report.FormatPDF, BaseName: "R"})
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, report.StatusCode(err))
	assert.Equal(t, "Format not supported: pdf", err.Error())
	store.AssertNotCalled(t, "Get", mock.Anything, mock.Anything)
}

func TestCreateStorageReportFailures(t *testing.T) {
	t.Run("opener", func(t *testing.T) {
		opener := storage.OpenerFunc(func(ctx context.Context) (storage.Storage, error) {
			return nil, storage.ErrNotConfigured
		})
		svc := newTestService(nil, opener)

		_, err := svc.CreateStorageReport(context.Background(), xlsxRequest("R"))
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, report.StatusCode(err))
		assert.ErrorIs(t, err, storage.ErrNotConfigured)
	})

	t.Run("template missing", func(t *testing.T) {
		store := new(MockStorage)
		store.On("Get", mock.Anything, "ExcelTemplate.xlsx").Return(nil, storage.ErrNotFound)
		svc := newTestService(nil, openerFor(store))

		_, err := svc.CreateStorageReport(context.Background(), xlsxRequest("R"))
		require.Error(t, err)
		assert.Equal(t, http.StatusInternalServerError, report.StatusCode(err))
		store.AssertNotCalled(t, "Save", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("upload", func(t *testing.T) {
		store := new(MockStorage)
		store.On("Get", mock.Anything, "ExcelTemplate.xlsx").
			Return(io.NopCloser(bytes.NewReader(templateBytes(t))), nil)
		store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))
		svc := newTestService(nil, openerFor(store))

		result, err := svc.CreateStorageReport(context.Background(), xlsxRequest("R"))
		require.Error(t, err)
		assert.Nil(t, result)
		store.AssertNotCalled(t, "PresignGet", mock.Anything, mock.Anything, mock.Anything)
		store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	signing := []struct {
		name        string
		getErr      error
		deleteErr   error
		cleanupErr  error
		wantPresign bool
	}{
		{name: "read link", getErr: errors.New("signer down")},
		{name: "delete link", deleteErr: errors.New("signer down"), wantPresign: true},
		{name: "cleanup fails too", getErr: errors.New("signer down"), cleanupErr: errors.New("bucket gone")},
	}
	for _, tt := range signing {
		t.Run("sign "+tt.name, func(t *testing.T) {
			store := new(MockStorage)
			store.On("Get", mock.Anything, "ExcelTemplate.xlsx").
				Return(io.NopCloser(bytes.NewReader(templateBytes(t))), nil)
			var saved string
			store.On("Save", mock.Anything, mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
				saved = args.String(1)
			}).Return(nil)
			store.On("PresignGet", mock.Anything, mock.Anything, mock.Anything).Return("u", tt.getErr)
			store.On("PresignDelete", mock.Anything, mock.Anything, mock.Anything).Return("d", tt.deleteErr)
			store.On("Delete", mock.Anything, mock.Anything).Return(tt.cleanupErr)
			svc := newTestService(nil, openerFor(store))

			result, err := svc.CreateStorageReport(context.Background(), xlsxRequest("R"))
			require.Error(t, err)
			assert.Nil(t, result)
			assert.Equal(t, http.StatusInternalServerError, report.StatusCode(err))
			assert.Equal(t, "Failed to sign the report link", err.(*report.Error).Message)

			require.NotEmpty(t, saved)
			store.AssertCalled(t, "Delete", mock.Anything, saved)
			store.AssertNumberOfCalls(t, "Delete", 1)
			if !tt.wantPresign {
				store.AssertNotCalled(t, "PresignDelete", mock.Anything, mock.Anything, mock.Anything)
			}
		})
	}

	t.Run("cleanup survives cancelled request", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		store := new(MockStorage)
		store.On("Get", mock.Anything, "ExcelTemplate.xlsx").
			Return(io.NopCloser(bytes.NewReader(templateBytes(t))), nil)
		store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)
		store.On("PresignGet", mock.Anything, mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			cancel()
		}).Return("", context.Canceled)
		store.On("Delete", mock.MatchedBy(func(c context.Context) bool {
			return c.Err() == nil
		}), mock.Anything).Return(nil)
		svc := newTestService(nil, openerFor(store))

		_, err := svc.CreateStorageReport(ctx, xlsxRequest("R"))
		require.Error(t, err)
		store.AssertNumberOfCalls(t, "Delete", 1)
	})
}

func TestCreateStorageReportCustomSettings(t *testing.T) {
	store := new(MockStorage)
	store.On("Get", mock.Anything, "templates/custom.xlsx").
		Return(io.NopCloser(bytes.NewReader(templateBytes(t))), nil)
	store.On("Save", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	store.On("PresignGet", mock.Anything, mock.Anything, 5*time.Minute).Return("u", nil)
	store.On("PresignDelete", mock.Anything, mock.Anything, 5*time.Minute).Return("d", nil)

	svc := NewReportService(datasource.NewSampleSource(), nil, openerFor(store), StorageSettings{
		TemplateKey: "templates/custom.xlsx",
		LinkExpiry:  5 * time.Minute,
	}, setupTestLogger())
	svc.SetClock(func() time.Time { return fixedNow })

	result, err := svc.CreateStorageReport(context.Background(), xlsxRequest("R"))
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(5*time.Minute), result.ExpiresAt)
	store.AssertExpectations(t)
}
