// Package server exposes document capture over HTTP.
//
//	GET /pdf?url=...          paged-image PDF attachment
//	GET /archive?url=...      ZIP of page images
//	GET /screenshots?url=...  JSON object of page number to data URI
//	GET /healthz
//
// Every capture endpoint accepts optional max_pages and settle_ms query
// parameters. A client disconnect cancels the request context, which
// aborts the capture and closes its browser tab.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	pagecapture "github.com/porticus-lab/go-page-capture"
	"github.com/porticus-lab/go-page-capture/internal/output"
)

// Capturer is the capture engine used by the handlers.
type Capturer interface {
	Capture(ctx context.Context, rawURL string, cfg *pagecapture.CaptureConfig) (*pagecapture.Artifact, error)
	Frames(ctx context.Context, rawURL string, cfg *pagecapture.CaptureConfig) ([]pagecapture.Frame, error)
}

// Options configures the HTTP layer.
type Options struct {
	RateLimit      float64 // requests per second across all clients
	Burst          int
	AllowedOrigins []string
}

// Server routes HTTP requests to a Capturer.
type Server struct {
	capturer Capturer
	base     pagecapture.CaptureConfig
	limiter  *rate.Limiter
	log      logrus.FieldLogger
	router   chi.Router
}

// New builds the router. base holds the capture settings applied to every
// request before query overrides.
func New(c Capturer, base pagecapture.CaptureConfig, opts Options, log logrus.FieldLogger) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.Burst <= 0 {
		opts.Burst = 3
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		capturer: c,
		base:     base,
		limiter:  rate.NewLimiter(rate.Limit(opts.RateLimit), opts.Burst),
		log:      log,
	}

	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		ExposedHeaders: []string{"Content-Disposition", "X-Page-Count"},
	}).Handler)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Group(func(r chi.Router) {
		r.Use(s.rateLimit)
		r.Get("/pdf", s.handleArtifact(pagecapture.PDF))
		r.Get("/archive", s.handleArtifact(pagecapture.Archive))
		r.Get("/screenshots", s.handleScreenshots)
	})
	s.router = r
	return s
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleArtifact(kind pagecapture.OutputKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		target, cfg, err := s.parseRequest(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
			return
		}
		cfg.Output = kind

		art, err := s.capturer.Capture(r.Context(), target, &cfg)
		if err != nil {
			s.fail(w, r, target, err)
			return
		}

		name := art.Filename(output.FilenameFromURL(target))
		w.Header().Set("Content-Type", art.ContentType())
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		w.Header().Set("Content-Length", strconv.Itoa(art.Len()))
		w.Header().Set("X-Page-Count", strconv.Itoa(art.Pages()))
		w.WriteHeader(http.StatusOK)
		if _, err := art.WriteTo(w); err != nil {
			s.log.WithError(err).WithField("url", target).Warn("server: writing artifact")
		}
	}
}

func (s *Server) handleScreenshots(w http.ResponseWriter, r *http.Request) {
	target, cfg, err := s.parseRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "bad_request")
		return
	}

	frames, err := s.capturer.Frames(r.Context(), target, &cfg)
	if err == nil && len(frames) == 0 {
		err = &pagecapture.Error{Kind: pagecapture.NoPagesFound, URL: target, Err: pagecapture.ErrNoPages}
	}
	if err != nil {
		s.fail(w, r, target, err)
		return
	}

	out := make(map[string]string, len(frames))
	for _, f := range frames {
		out[strconv.Itoa(f.Seq)] = f.DataURI()
	}
	w.Header().Set("X-Page-Count", strconv.Itoa(len(frames)))
	writeJSON(w, http.StatusOK, out)
}

// parseRequest reads the target URL and per-request overrides.
func (s *Server) parseRequest(r *http.Request) (string, pagecapture.CaptureConfig, error) {
	cfg := s.base
	q := r.URL.Query()

	target := q.Get("url")
	if target == "" {
		return "", cfg, errors.New("missing url parameter")
	}
	u, err := url.ParseRequestURI(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", cfg, fmt.Errorf("invalid url %q: want an absolute http(s) URL", target)
	}

	if v := q.Get("max_pages"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return "", cfg, fmt.Errorf("invalid max_pages %q", v)
		}
		cfg.MaxPages = n
	}
	if v := q.Get("settle_ms"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 60000 {
			return "", cfg, fmt.Errorf("invalid settle_ms %q", v)
		}
		cfg.SettleDelay = time.Duration(n) * time.Millisecond
	}
	return target, cfg, nil
}

// fail maps a capture failure to a JSON error response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, target string, err error) {
	entry := s.log.WithError(err).WithField("url", target)
	if r.Context().Err() != nil {
		entry.Info("server: client went away")
		return
	}

	kind := pagecapture.KindOf(err)
	status := http.StatusInternalServerError
	msg := "Failed to generate document"
	switch kind {
	case pagecapture.NavigationFailure:
		status, msg = http.StatusBadGateway, "Failed to load document"
	case pagecapture.NoPagesFound:
		status, msg = http.StatusNotFound, "No pages found"
	case pagecapture.CaptureFailure:
		msg = "Failed to capture document"
	case pagecapture.AssemblyFailure:
		msg = "Failed to assemble document"
	}
	if kind == pagecapture.NoPagesFound {
		entry.Info("server: no pages found")
	} else {
		entry.Warn("server: capture failed")
	}
	writeError(w, status, msg+": "+err.Error(), kind.String())
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow() {
			writeError(w, http.StatusTooManyRequests, "Too Many Requests", "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.WithFields(logrus.Fields{
			"method": r.Method,
			"path":   r.URL.Path,
			"took":   time.Since(start),
		}).Debug("server: request")
	})
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeError(w http.ResponseWriter, status int, msg, kind string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
