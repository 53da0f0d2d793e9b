package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tagfind/internal/domain/record"
	logpkg "github.com/kailas-cloud/tagfind/internal/logger"
	"github.com/kailas-cloud/tagfind/internal/metrics"
	gen "github.com/kailas-cloud/tagfind/internal/transport/generated"
	healthuc "github.com/kailas-cloud/tagfind/internal/usecase/health"
	recordsuc "github.com/kailas-cloud/tagfind/internal/usecase/records"
	"github.com/kailas-cloud/tagfind/internal/version"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server implements gen.ServerInterface for the record and processing API.
type Server struct {
	gen.Unimplemented

	records       *recordsuc.Service
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

var _ gen.ServerInterface = (*Server)(nil)

// NewServer creates an HTTP API server.
func NewServer(records *recordsuc.Service, health *healthuc.Service, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		records: records,
		health:  health,
		logger:  logger,
	}
	s.errorHandlers = defaultErrorHandlers()
	return s
}

// Router builds the chi router with the full middleware stack and mounts the
// generated routes. Empty apiKeys disables authentication.
func (s *Server) Router(apiKeys []string) http.Handler {
	r := chi.NewRouter()
	r.Use(jsonRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(wideEventMiddleware(s.logger))
	r.Use(BearerAuthMiddleware(apiKeys))
	r.Use(metrics.Middleware())

	gen.HandlerWithOptions(s, gen.ChiServerOptions{
		BaseRouter:       r,
		ErrorHandlerFunc: paramErrorHandler,
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, gen.ErrorResponseCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, gen.ErrorResponseCodeBadRequest, "method not allowed")
	})
	return r
}

// paramErrorHandler answers parameter binding failures from the generated wrapper.
func paramErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	msg := "invalid request"
	var paramErr *gen.InvalidParamFormatError
	if errors.As(err, &paramErr) {
		msg = "invalid parameter " + paramErr.ParamName
	}
	logpkg.FromContext(r.Context()).Debug("parameter binding failed", zap.Error(err))
	writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, msg)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]gen.HealthResponseChecks, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = gen.HealthResponseChecks(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, gen.HealthResponse{
		Status:  gen.HealthResponseStatus(report.Status),
		Checks:  checks,
		Version: version.Version,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

// GetQuery handles GET /query.
func (s *Server) GetQuery(w http.ResponseWriter, r *http.Request) {
	q, err := s.records.Query(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, gen.QueryResponse{Query: q})
}

// SetQuery handles PUT /query.
func (s *Server) SetQuery(w http.ResponseWriter, r *http.Request) {
	var req gen.SetQueryJSONRequestBody
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Query == nil {
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeValidationFailed, "query is required")
		return
	}

	rec, err := s.records.SetQuery(r.Context(), *req.Query)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(rec))
}

// ListRecords handles GET /records. The optional domain parameter filters by key domain.
func (s *Server) ListRecords(w http.ResponseWriter, r *http.Request, params gen.ListRecordsParams) {
	keys, err := s.records.List(r.Context(), params.Domain)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	writeJSON(w, http.StatusOK, gen.RecordListResponse{Keys: out, Count: len(out)})
}

// GetRecord handles GET /records/{key}.
func (s *Server) GetRecord(w http.ResponseWriter, r *http.Request, key gen.RecordKeyParam) {
	k, err := record.ParseKey(key)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	rec, err := s.records.Get(r.Context(), k)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(rec))
}

// PutRecord handles PUT /records/{key}.
func (s *Server) PutRecord(w http.ResponseWriter, r *http.Request, key gen.RecordKeyParam) {
	k, err := record.ParseKey(key)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	var req gen.PutRecordJSONRequestBody
	if !decodeBody(w, r, &req) {
		return
	}

	var tags []string
	if req.Tags != nil {
		tags = *req.Tags
	}
	rec := record.New(k, req.Value, tags...)
	if err := s.records.Put(r.Context(), rec); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recordToResponse(rec))
}

// ListResults handles GET /results.
func (s *Server) ListResults(w http.ResponseWriter, r *http.Request) {
	recs, err := s.records.Results(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	items := make([]gen.RecordResponse, len(recs))
	for i, rec := range recs {
		items[i] = recordToResponse(rec)
	}
	writeJSON(w, http.StatusOK, gen.ResultListResponse{Items: items, Count: len(items)})
}

// ProcessRecords handles POST /process.
func (s *Server) ProcessRecords(w http.ResponseWriter, r *http.Request) {
	passes, err := s.records.Process(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	logpkg.FromContext(r.Context()).Debug("records processed", zap.Int("passes", passes))
	writeJSON(w, http.StatusOK, gen.ProcessResponse{Passes: passes})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, gen.ErrorResponseCodeBadRequest,
				fmt.Sprintf("request body exceeds %d bytes", maxErr.Limit))
			return false
		}
		writeError(w, http.StatusBadRequest, gen.ErrorResponseCodeBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func recordToResponse(rec record.Record) gen.RecordResponse {
	tags := rec.Tags
	if tags == nil {
		tags = []string{}
	}
	return gen.RecordResponse{Key: rec.Key.String(), Value: rec.Value, Tags: tags}
}
