package serializer

import (
	"bytes"
	"log/slog"
	"net/http"
	"strings"

	"gopkg.in/yaml.v3"
)

// RespondJSON writes data as JSON with statusCode. The body is encoded
// before any header is written, so an encoding failure becomes a 500.
func RespondJSON(w http.ResponseWriter, statusCode int, data any) {
	buf := &bytes.Buffer{}
	if err := json.NewEncoder(buf).Encode(data); err != nil {
		slog.Error("json encoding failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	write(w, statusCode, "application/json", buf.Bytes())
}

// RespondYAML writes data as YAML with statusCode.
func RespondYAML(w http.ResponseWriter, statusCode int, data any) {
	b, err := yaml.Marshal(data)
	if err != nil {
		slog.Error("yaml encoding failed", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}
	write(w, statusCode, "application/yaml", b)
}

// Respond picks YAML when the request asks for it with ?format=yaml or an
// Accept header naming yaml, JSON otherwise.
func Respond(w http.ResponseWriter, r *http.Request, statusCode int, data any) {
	if wantsYAML(r) {
		RespondYAML(w, statusCode, data)
		return
	}
	RespondJSON(w, statusCode, data)
}

func wantsYAML(r *http.Request) bool {
	if f := r.URL.Query().Get("format"); f != "" {
		return Format(strings.ToLower(f)) == FormatYAML
	}
	return strings.Contains(r.Header.Get("Accept"), "yaml")
}

func write(w http.ResponseWriter, statusCode int, contentType string, body []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		// client went away
		slog.Warn("response write failed", "error", err)
	}
}
