package httpadapter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mklenk/belegwerk/internal/core/domain"
)

type uploaderFake struct {
	err error
	doc *domain.Document
}

func (f uploaderFake) Upload(context.Context, string, string, string, io.Reader) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.doc != nil {
		return f.doc, nil
	}
	return &domain.Document{ID: "doc-1"}, nil
}

type retrierFake struct {
	err   error
	id    string
	force bool
}

func (f *retrierFake) Retry(_ context.Context, id string, force bool) error {
	f.id = id
	f.force = force
	return f.err
}

type localizerFake struct {
	err    error
	report domain.LocalizeReport
}

func (f localizerFake) Localize(context.Context, string) (domain.LocalizeReport, error) {
	return f.report, f.err
}

type categorizerFake struct {
	err         error
	suggestions []domain.CategorySuggestion
}

func (f categorizerFake) SuggestCategories(context.Context, string) ([]domain.CategorySuggestion, error) {
	return f.suggestions, f.err
}

type readerFake struct {
	err  error
	docs []domain.Document
}

func (f readerFake) GetByID(context.Context, string) (*domain.Document, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Document{ID: "doc-1"}, nil
}

func (f readerFake) ListByOwner(context.Context, string, int) ([]domain.Document, error) {
	return f.docs, f.err
}

type exporterFake struct {
	err error
}

func (f exporterFake) Export(context.Context, string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []byte("xlsx-bytes"), nil
}

type routerFakes struct {
	uploader    uploaderFake
	retrier     *retrierFake
	localizer   localizerFake
	categorizer categorizerFake
	reader      readerFake
	exporter    exporterFake
}

func newTestHandler(f routerFakes) http.Handler {
	if f.retrier == nil {
		f.retrier = &retrierFake{}
	}
	return NewRouter(f.uploader, f.retrier, f.localizer, f.categorizer, f.reader, f.exporter).Handler()
}

func multipartBody(t *testing.T, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, writer.FormDataContentType()
}

func TestUploadRequiresOwnerHeader(t *testing.T) {
	handler := newTestHandler(routerFakes{})

	body, contentType := multipartBody(t, "invoice.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadAcceptsMultipartFile(t *testing.T) {
	handler := newTestHandler(routerFakes{})

	body, contentType := multipartBody(t, "invoice.pdf", "%PDF-1.4")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-Id", "owner-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if !strings.Contains(res.Body.String(), "doc-1") {
		t.Fatalf("expected document payload, got %s", res.Body.String())
	}
}

func TestUploadMapsInvalidInputTo400(t *testing.T) {
	handler := newTestHandler(routerFakes{
		uploader: uploaderFake{err: domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("unsupported mime type"))},
	})

	body, contentType := multipartBody(t, "notes.txt", "plain text")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Owner-Id", "owner-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestGetDocumentMapsNotFoundTo404(t *testing.T) {
	handler := newTestHandler(routerFakes{
		reader: readerFake{err: domain.WrapError(domain.ErrDocumentNotFound, "get", errors.New("id missing"))},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestRetryMapsAlreadyExtractedTo409(t *testing.T) {
	retrier := &retrierFake{err: domain.WrapError(domain.ErrAlreadyExtracted, "retry", errors.New("clean document"))}
	handler := newTestHandler(routerFakes{retrier: retrier})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/retry", strings.NewReader(`{"force": false}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", res.Code)
	}
	if retrier.id != "doc-1" {
		t.Fatalf("retry id = %q", retrier.id)
	}
}

func TestRetryPassesForceFlag(t *testing.T) {
	retrier := &retrierFake{}
	handler := newTestHandler(routerFakes{retrier: retrier})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/doc-1/retry", strings.NewReader(`{"force": true}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.Code)
	}
	if !retrier.force {
		t.Fatal("force flag not passed through")
	}
}

func TestListDocumentsRejectsBadLimit(t *testing.T) {
	handler := newTestHandler(routerFakes{})

	req := httptest.NewRequest(http.MethodGet, "/v1/documents?limit=lots", nil)
	req.Header.Set("X-Owner-Id", "owner-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestLocalizeReturnsReport(t *testing.T) {
	handler := newTestHandler(routerFakes{
		localizer: localizerFake{report: domain.LocalizeReport{PartnersCreated: 2, TransactionsUpdated: 5}},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/partners/localize", nil)
	req.Header.Set("X-Owner-Id", "owner-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), `"partners_created":2`) {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
}

func TestTransactionCategoriesRoute(t *testing.T) {
	handler := newTestHandler(routerFakes{
		categorizer: categorizerFake{suggestions: []domain.CategorySuggestion{
			{CategoryID: "cat-1", Confidence: 85, MatchedBy: "partner"},
		}},
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/transactions/tx-1/categories", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "cat-1") {
		t.Fatalf("unexpected body: %s", res.Body.String())
	}
}

func TestExportSetsAttachmentHeaders(t *testing.T) {
	handler := newTestHandler(routerFakes{})

	req := httptest.NewRequest(http.MethodGet, "/v1/export", nil)
	req.Header.Set("X-Owner-Id", "owner-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if got := res.Header().Get("Content-Disposition"); !strings.Contains(got, "documents.xlsx") {
		t.Fatalf("Content-Disposition = %q", got)
	}
}

func TestTemporaryErrorMapsTo503(t *testing.T) {
	handler := newTestHandler(routerFakes{
		localizer: localizerFake{err: domain.WrapError(domain.ErrTemporary, "localize", errors.New("queue down"))},
	})

	req := httptest.NewRequest(http.MethodPost, "/v1/partners/localize", nil)
	req.Header.Set("X-Owner-Id", "owner-1")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}
