package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMaxBodySize_StandardRequest_WithinLimit(t *testing.T) {
	handler := MaxBodySize(512*1024, 5*1024*1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := bytes.NewReader(make([]byte, 100*1024)) // 100KB
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestMaxBodySize_StandardRequest_ExceedsLimit(t *testing.T) {
	handler := MaxBodySize(512*1024, 5*1024*1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	body := bytes.NewReader(make([]byte, 600*1024)) // 600KB > 512KB limit
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify", body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rec.Code)
	}
}

func TestMaxBodySize_BatchRequest_WithinLimit(t *testing.T) {
	handler := MaxBodySize(512*1024, 5*1024*1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	body := bytes.NewReader(make([]byte, 2*1024*1024)) // 2MB
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify/batch", body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestMaxBodySize_BatchRequest_ExceedsLimit(t *testing.T) {
	handler := MaxBodySize(512*1024, 5*1024*1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	body := bytes.NewReader(make([]byte, 6*1024*1024)) // 6MB > 5MB limit
	req := httptest.NewRequest(http.MethodPost, "/api/v1/classify/batch", body)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("Expected status 413, got %d", rec.Code)
	}
}

func TestMaxBodySize_GETRequest_NoLimit(t *testing.T) {
	handler := MaxBodySize(512*1024, 5*1024*1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestMaxBodySize_NilBody(t *testing.T) {
	handler := MaxBodySize(512*1024, 5*1024*1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}
}

func TestMaxBodySize_BatchPathDetection(t *testing.T) {
	tests := []struct {
		path    string
		isBatch bool
	}{
		{"/api/v1/classify/batch", true},
		{"/api/v1/classify/batch/", true},
		{"/api/v1/classify", false},
		{"/api/v1/reports", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			handler := MaxBodySize(512*1024, 5*1024*1024)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			bodySize := 1 * 1024 * 1024 // 1MB
			body := bytes.NewReader(make([]byte, bodySize))
			req := httptest.NewRequest(http.MethodPost, tt.path, body)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if tt.isBatch && rec.Code != http.StatusOK {
				t.Errorf("Batch path should allow 1MB body, got status %d", rec.Code)
			}
		})
	}
}
