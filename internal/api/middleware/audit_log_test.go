package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monosonet/modcore/internal/pkg/audit"
)

func newTestAuditLogger(buf *bytes.Buffer) *audit.Logger {
	return audit.NewLogger(zerolog.New(buf))
}

func lastAuditEvent(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.NotEmpty(t, lines)
	var line struct {
		Event json.RawMessage `json:"event"`
	}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &line))
	var event map[string]interface{}
	require.NoError(t, json.Unmarshal(line.Event, &event))
	return event
}

func TestAuditLog_LogsPOST(t *testing.T) {
	var buf bytes.Buffer
	handler := AuditLog(newTestAuditLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	event := lastAuditEvent(t, &buf)
	assert.Equal(t, "report.create", event["action"])
	assert.Equal(t, "success", event["outcome"])
}

func TestAuditLog_LogsPATCH(t *testing.T) {
	var buf bytes.Buffer
	handler := AuditLog(newTestAuditLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/reports/abc-123/status", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	event := lastAuditEvent(t, &buf)
	assert.Equal(t, "report.status_update", event["action"])
	assert.Equal(t, "abc-123", event["report_id"])
}

func TestAuditLog_SkipsGET(t *testing.T) {
	var buf bytes.Buffer
	handler := AuditLog(newTestAuditLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Empty(t, buf.String())
}

func TestAuditLog_CapturesFailureOutcome(t *testing.T) {
	var buf bytes.Buffer
	handler := AuditLog(newTestAuditLogger(&buf))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/reports/abc-123", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	event := lastAuditEvent(t, &buf)
	assert.Equal(t, "failure", event["outcome"])
}

func TestAuditLog_NilAuditor(t *testing.T) {
	handler := AuditLog(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", nil)
	rec := httptest.NewRecorder()

	assert.NotPanics(t, func() { handler.ServeHTTP(rec, req) })
	assert.Equal(t, http.StatusOK, rec.Code)
}
