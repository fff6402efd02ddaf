package server

import (
	"bytes"
	"embed"
	"html/template"
	"net/http"
	"strings"

	"blocklist/internal/apperror"
	"blocklist/internal/metrics"

	"github.com/charmbracelet/log"
)

//go:embed templates/error.html
var templateFS embed.FS

var errorPage = template.Must(template.ParseFS(templateFS, "templates/error.html"))

type errorBody struct {
	Code      int    `json:"code"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError logs err in full and answers with its public form only.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperror.As(err)
	status := appErr.Status()
	body := errorBody{
		Code:      status,
		Status:    http.StatusText(status),
		Message:   appErr.Public(),
		RequestID: requestIDFrom(r.Context()),
	}

	metrics.ErrorsTotal.WithLabelValues(appErr.Kind.String()).Inc()
	fields := []any{
		"request_id", body.RequestID,
		"method", r.Method,
		"path", r.URL.Path,
		"status", status,
		"error", appErr.Error(),
	}
	if appErr.Kind.IsServerSide() {
		log.Error("request failed", fields...)
	} else {
		log.Warn("request rejected", fields...)
	}

	if prefersJSON(r) {
		writeJSON(w, status, body)
		return
	}

	var buf bytes.Buffer
	if err := errorPage.Execute(&buf, body); err != nil {
		tmplErr := apperror.Wrap(apperror.KindTemplating, err, "render error page")
		metrics.ErrorsTotal.WithLabelValues(apperror.KindTemplating.String()).Inc()
		log.Error("error page failed", "request_id", body.RequestID, "error", tmplErr)
		http.Error(w, apperror.KindInternal.String(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func prefersJSON(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	switch {
	case strings.Contains(accept, "application/json"):
		return true
	case strings.Contains(accept, "text/html"):
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}
