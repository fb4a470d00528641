package middleware

import (
	"net/http"
	"strings"

	"github.com/monosonet/modcore/internal/pkg/audit"
	"github.com/monosonet/modcore/internal/pkg/logger"
)

// responseRecorder wraps http.ResponseWriter to capture status code.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

// AuditLog returns middleware that audit-logs mutating moderation
// operations (POST, PATCH, DELETE) via audit.Logger.
func AuditLog(auditor *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			method := r.Method
			if method != http.MethodPost && method != http.MethodPatch && method != http.MethodDelete {
				next.ServeHTTP(w, r)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if auditor == nil {
				return
			}

			outcome := "success"
			if rec.statusCode >= 400 {
				outcome = "failure"
			}
			reqID := logger.FromContext(r.Context())
			actorID := audit.ClientIP(r)
			action := audit.ActionFromRequest(method, r.URL.Path)
			reportID := reportIDFromPath(r.URL.Path)

			auditor.Log(reqID, actorID, reportID, action, outcome, method+" "+r.URL.Path)
		})
	}
}

// reportIDFromPath pulls the path segment following "/reports/" or
// "/investigations/", if present, for correlation in the audit event.
func reportIDFromPath(path string) string {
	for _, prefix := range []string{"/reports/", "/investigations/"} {
		if idx := strings.Index(path, prefix); idx >= 0 {
			rest := path[idx+len(prefix):]
			if end := strings.IndexByte(rest, '/'); end >= 0 {
				return rest[:end]
			}
			return rest
		}
	}
	return ""
}
