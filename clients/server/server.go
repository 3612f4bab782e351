// Package server exposes the render engine over HTTP.
//
// Routes:
//
//	GET  /health    liveness
//	POST /inspect   parse a job, list overlays and warnings
//	POST /preview   render one composite frame as PNG
//	POST /render    render a job to its output_path
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image/png"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/xob0t/ReelStencil/internal/pkg/errors"
	"github.com/xob0t/ReelStencil/internal/pkg/logger"
	"github.com/xob0t/ReelStencil/pkg/compositor"
	"github.com/xob0t/ReelStencil/pkg/template"
)

// maxBody bounds request bodies; jobs reference media by path.
const maxBody = 4 << 20

// Options configures a Server.
type Options struct {
	Engine *compositor.Engine
	Log    *logger.Logger
	// Policy is used when a request names none.
	Policy template.Policy
}

// Server serves render requests.
type Server struct {
	engine *compositor.Engine
	log    *logger.Logger
	policy template.Policy
}

// New creates a server.
func New(opts Options) *Server {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Server{engine: opts.Engine, log: log.WithComponent("server"), policy: opts.Policy}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/health", s.handleHealth)
	r.Post("/inspect", s.handleInspect)
	r.Post("/preview", s.handlePreview)
	r.Post("/render", s.handleRender)
	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", "addr", addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if err == http.ErrServerClosed {
			return nil
		}
		return errors.Wrap(err, "server.run", "listen "+addr)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		s.log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLog tags the request context with the request ID as job ID and
// logs every request.
func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := logger.ContextWithJobID(r.Context(), middleware.GetReqID(r.Context()))
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		s.log.FromContext(ctx).Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).Round(time.Millisecond).String(),
		)
	})
}

// ── Requests ──

// jobRequest is a job document plus request options.
type jobRequest struct {
	template.Job
	// Policy selects the substitution rule: "drop_lines" or "replace".
	Policy string `json:"policy,omitempty"`
	// At is the preview time in seconds.
	At float64 `json:"at,omitempty"`
}

type jobResponse struct {
	Result   *compositor.Result `json:"result,omitempty"`
	Overlays string             `json:"overlays,omitempty"`
	Warnings []string           `json:"warnings"`
}

func (s *Server) decodeJob(w http.ResponseWriter, r *http.Request) (*jobRequest, []template.Overlay, []template.Warning, error) {
	const op = "server.decode"

	var req jobRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(&req); err != nil {
		return nil, nil, nil, errors.WrapWithCode(err, errors.CodeValidation, op, "invalid JSON body")
	}
	if req.VideoPath == "" {
		return nil, nil, nil, errors.New(errors.CodeValidation, "video_path is required")
	}
	if req.Overlays == nil {
		return nil, nil, nil, errors.New(errors.CodeValidation, "overlays is required")
	}

	policy := s.policy
	if req.Policy != "" {
		policy = template.ParsePolicy(req.Policy)
	}

	overlays, warnings, err := req.Resolve(policy)
	if err != nil {
		return nil, nil, nil, err
	}
	return &req, overlays, warnings, nil
}

// ── Handlers ──

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	_, overlays, warnings, err := s.decodeJob(w, r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	warnings = append(warnings, template.CheckAssets(overlays)...)
	writeJSON(w, http.StatusOK, jobResponse{
		Overlays: template.Describe(overlays, warnings),
		Warnings: warningStrings(warnings),
	})
}

func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	req, overlays, warnings, err := s.decodeJob(w, r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	frame, res, err := s.engine.Snapshot(r.Context(), req.VideoPath, overlays, req.At)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		s.writeErr(w, r, errors.Encode("server.preview", err, "encode PNG"))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Reel-Layers", strconv.Itoa(res.Layers))
	w.Header().Set("X-Reel-Warnings", strconv.Itoa(len(warnings)+len(res.Dropped)))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	req, overlays, warnings, err := s.decodeJob(w, r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	if req.OutputPath == "" {
		s.writeErr(w, r, errors.New(errors.CodeValidation, "output_path is required"))
		return
	}

	res, err := s.engine.Render(r.Context(), req.VideoPath, overlays, req.OutputPath)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, jobResponse{Result: res, Warnings: warningStrings(warnings)})
}

// ── Responses ──

type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.GetHTTPStatus(err)
	log := s.log.FromContext(r.Context()).WithError(err)
	if status >= 500 {
		log.Error("request failed", "code", string(errors.GetCode(err)))
	} else {
		log.Warn("request rejected", "code", string(errors.GetCode(err)))
	}

	var env errorEnvelope
	env.Error.Code = string(errors.GetCode(err))
	env.Error.Message = err.Error()
	writeJSON(w, status, env)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func warningStrings(ws []template.Warning) []string {
	out := make([]string, len(ws))
	for i, w := range ws {
		out[i] = w.String()
	}
	return out
}
