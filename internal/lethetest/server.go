// Package lethetest runs an in-process stand-in for the Lethe service.
//
// The default handlers echo their input back (nothing is anonymized) and
// reject malformed requests the way the real service does. Tests can script
// any route with Respond and inspect what the client sent with Requests.
package lethetest

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// Request is a recorded inbound request.
type Request struct {
	Method      string
	Path        string
	ContentType string
	Body        []byte
}

// JSON decodes the recorded body into v.
func (r Request) JSON(v any) error {
	return json.Unmarshal(r.Body, v)
}

// Multipart parses a recorded multipart/form-data body.
func (r Request) Multipart() (*multipart.Form, error) {
	_, params, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		return nil, err
	}
	return multipart.NewReader(bytes.NewReader(r.Body), params["boundary"]).ReadForm(10 << 20)
}

type scripted struct {
	status int
	body   string
}

// Server is a fake Lethe service listening on a loopback port.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	scripts  map[string]scripted // "METHOD /path" -> canned reply
}

// New starts a Server and closes it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	s := &Server{scripts: make(map[string]scripted)}

	mux := http.NewServeMux()
	s.Register(mux)
	s.Server = httptest.NewServer(s.record(mux))
	t.Cleanup(s.Close)
	return s
}

// Register mounts the default routes on the given mux. The method patterns
// need Go 1.22 or later.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.health)
	mux.HandleFunc("POST /api/anonymize", s.anonymize)
	mux.HandleFunc("POST /api/anonymize/file", s.anonymizeFile)
	mux.HandleFunc("POST /api/anonymize/batch", s.anonymizeBatch)
	mux.HandleFunc("POST /api/synthetic", s.synthetic)
}

// Respond makes every later request to method+path return status and body
// verbatim instead of running the default handler.
func (s *Server) Respond(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scripts[method+" "+path] = scripted{status: status, body: body}
}

// Requests returns a copy of all requests received so far.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// LastRequest returns the most recent request. ok is false if none arrived.
func (s *Server) LastRequest() (req Request, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// record captures each request and short-circuits scripted routes.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "failed to read body: "+err.Error())
			return
		}
		r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(body))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method:      r.Method,
			Path:        r.URL.Path,
			ContentType: r.Header.Get("Content-Type"),
			Body:        body,
		})
		sc, ok := s.scripts[r.Method+" "+r.URL.Path]
		s.mu.Unlock()

		if ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(sc.status)
			_, _ = io.WriteString(w, sc.body)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ---------- default endpoints ----------

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"name":    "Lethe",
		"version": "1.0.0",
	})
}

func (s *Server) anonymize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text              string `json:"text"`
		GenerateSynthetic bool   `json:"generateSynthetic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeErr(w, http.StatusBadRequest, "Brak tekstu")
		return
	}
	writeJSON(w, http.StatusOK, echo(req.Text, req.GenerateSynthetic))
}

func (s *Server) anonymizeFile(w http.ResponseWriter, r *http.Request) {
	f, hdr, err := r.FormFile("file")
	if err != nil {
		writeErr(w, http.StatusBadRequest, "Brak pliku")
		return
	}
	defer f.Close()
	content, err := io.ReadAll(f)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := echo(string(content), r.FormValue("generateSynthetic") == "true")
	out["filename"] = hdr.Filename
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) anonymizeBatch(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Texts             []string `json:"texts"`
		GenerateSynthetic bool     `json:"generateSynthetic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Texts == nil {
		writeErr(w, http.StatusBadRequest, "texts musi być tablicą")
		return
	}
	results := make([]map[string]any, 0, len(req.Texts))
	for _, t := range req.Texts {
		results = append(results, echo(t, req.GenerateSynthetic))
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (s *Server) synthetic(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text     string            `json:"text"`
		Entities []json.RawMessage `json:"entities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" || req.Entities == nil {
		writeErr(w, http.StatusBadRequest, "Wymagane: text i entities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"synthetic":    req.Text,
		"replacements": map[string]string{},
	})
}

// ---------- helpers ----------

// echo builds the response for a text the fake does not change.
func echo(text string, synthetic bool) map[string]any {
	out := map[string]any{
		"original":   text,
		"anonymized": text,
		"entities":   []any{},
	}
	if synthetic {
		out["synthetic"] = text
		out["replacements"] = map[string]string{}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
