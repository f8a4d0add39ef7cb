package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/docs-manager/internal/config"
	"github.com/kirillkom/docs-manager/internal/core/domain"
)

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.WrapError(domain.ErrInvalidInput, "op", errors.New("x")), http.StatusBadRequest},
		{domain.WrapError(domain.ErrPermissionDenied, "op", errors.New("x")), http.StatusForbidden},
		{domain.WrapError(domain.ErrDocumentNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrCaptureNotFound, "op", errors.New("x")), http.StatusNotFound},
		{domain.WrapError(domain.ErrTemporary, "op", errors.New("x")), http.StatusServiceUnavailable},
		{domain.WrapError(domain.ErrStorage, "op", errors.New("x")), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := mapErrorToHTTPStatus(tc.err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestRenameMapsPermissionDeniedTo403(t *testing.T) {
	svc := newTestServices()
	svc.library.err = domain.WrapError(domain.ErrPermissionDenied, "rename", errors.New("read-only folder"))
	handler := newTestHandler(t, config.Config{}, svc.services())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/rename", strings.NewReader(`{"path":"a.jpg","new_name":"b.jpg"}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", res.Code)
	}
}

func TestStorageFailureHidesDetail(t *testing.T) {
	svc := newTestServices()
	svc.library.err = domain.WrapError(domain.ErrStorage, "delete", errors.New("/srv/data/documents: input/output error"))
	handler := newTestHandler(t, config.Config{}, svc.services())

	req := httptest.NewRequest(http.MethodPost, "/v1/documents/delete", strings.NewReader(`{"paths":["a.jpg"]}`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["error"] == "" || strings.Contains(resp["error"], "/srv/data") {
		t.Fatalf("expected generic error message, got %q", resp["error"])
	}
}

func TestInvalidJSONReturns400(t *testing.T) {
	handler := newTestHandler(t, config.Config{}, newTestServices().services())

	req := httptest.NewRequest(http.MethodPost, "/v1/classify", strings.NewReader(`{"text":`))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}
