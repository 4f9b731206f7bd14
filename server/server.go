// Package server exposes a trained classifier over HTTP.
//
//	POST /predict  {"data": [[5.1, 3.5], [6.2, 2.9]]}  -> {"prediction": [0, 1]}
//	GET  /healthz                                       -> {"status": "ok", ...}
//
// A single record may be sent as a flat array: {"data": [5.1, 3.5]}.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/mlu/dataset"
	"github.com/YuminosukeSato/mlu/models"
	"github.com/YuminosukeSato/mlu/pkg/errors"
	"github.com/YuminosukeSato/mlu/pkg/log"
)

// MaxBodyBytes bounds a prediction request.
const MaxBodyBytes = 8 << 20

// Server serves predictions from one classifier. The classifier is only
// read, so requests are handled concurrently.
type Server struct {
	clf       models.Classifier
	modelType string
	logger    log.Logger
	router    *chi.Mux
	started   time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// New returns a Server for a trained classifier.
func New(clf models.Classifier, opts ...Option) (*Server, error) {
	if clf == nil || !clf.IsFitted() {
		return nil, errors.NewPreconditionError("serve", "a trained model")
	}
	typ, err := models.TypeOf(clf)
	if err != nil {
		return nil, err
	}
	s := &Server{
		clf:       clf,
		modelType: typ,
		logger:    log.GetLoggerWithName("server"),
		router:    chi.NewRouter(),
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(s.requestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Get("/healthz", s.handleHealth)
	s.router.Post("/predict", s.handlePredict)
	return s, nil
}

// Open loads a model saved with models.SaveFile and returns a Server for it.
func Open(path string, opts ...Option) (*Server, error) {
	clf, err := models.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return New(clf, opts...)
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr, log.ModelTypeKey, s.modelType)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.logger.Info("server shutting down")
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"request_id", middleware.GetReqID(r.Context()),
			log.DurationMsKey, time.Since(start).Milliseconds(),
		)
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Model     string `json:"model"`
	UptimeSec int64  `json:"uptime_sec"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "ok",
		Model:     s.modelType,
		UptimeSec: int64(time.Since(s.started).Seconds()),
	})
}

type predictRequest struct {
	Data json.RawMessage `json:"data"`
}

type predictResponse struct {
	Prediction    []float64   `json:"prediction"`
	Probabilities [][]float64 `json:"probabilities,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid JSON: " + err.Error()})
		return
	}
	if len(req.Data) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{"missing 'data' field in request JSON"})
		return
	}
	X, err := decodeRecords(req.Data)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})
		return
	}

	pred, err := s.clf.Predict(X.Dense())
	if err != nil {
		status := http.StatusInternalServerError
		if errors.As(err, new(*errors.DimensionError)) {
			status = http.StatusBadRequest
		}
		s.logger.Error("prediction failed", err, "status", status)
		writeJSON(w, status, errorResponse{err.Error()})
		return
	}
	resp := predictResponse{Prediction: mat.Col(nil, 0, pred)}
	if r.URL.Query().Get("proba") == "true" {
		proba, err := s.clf.PredictProba(X.Dense())
		if err != nil {
			s.logger.Error("probability prediction failed", err)
			writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
			return
		}
		resp.Probabilities = dataset.MatrixFrom(proba).Rows()
	}
	writeJSON(w, http.StatusOK, resp)
}

// decodeRecords accepts a list of records or a single flat record.
func decodeRecords(raw json.RawMessage) (*dataset.Matrix, error) {
	var rows [][]float64
	if err := json.Unmarshal(raw, &rows); err == nil {
		return recordsMatrix(rows)
	}
	var row []float64
	if err := json.Unmarshal(raw, &row); err == nil {
		return recordsMatrix([][]float64{row})
	}
	return nil, errors.NewValueError("predict",
		"data format not recognized: provide a list of records or a single record")
}

func recordsMatrix(rows [][]float64) (*dataset.Matrix, error) {
	if len(rows) == 0 {
		return nil, errors.NewValueError("predict", "no records")
	}
	return dataset.MatrixFromRows(rows)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
