package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"validert/internal/activities"
	"validert/internal/config"
	"validert/internal/logger"
	"validert/internal/models"
	"validert/internal/providers"
	"validert/internal/storage"
	"validert/internal/util"
	"validert/internal/workflows"

	"github.com/google/uuid"
	enumspb "go.temporal.io/api/enums/v1"
	tclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
)

const maxUploadBytes = 64 << 20

// ReportStore is the slice of storage.ReportRepo the API reads and writes.
type ReportStore interface {
	UpsertReport(ctx context.Context, rep models.Report) error
	GetReport(ctx context.Context, reportID string) (models.Report, error)
	ListReports(ctx context.Context, limit int) ([]models.Report, error)
}

type CacheIndex interface {
	ListByDocument(ctx context.Context, documentHash string) ([]models.CacheKey, error)
}

// WorkflowClient is the part of the Temporal client used to start and query report runs.
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options tclient.StartWorkflowOptions, workflow interface{}, args ...interface{}) (tclient.WorkflowRun, error)
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

type Deps struct {
	Reports  ReportStore
	Cache    CacheIndex
	Temporal WorkflowClient
	Metrics  http.Handler
	Logger   *logger.Logger
}

type Server struct {
	cfg       config.Config
	reports   ReportStore
	cache     CacheIndex
	temporal  WorkflowClient
	metrics   http.Handler
	log       *logger.Logger
	providers int
}

func NewServer(cfg config.Config, d Deps) *Server {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		cfg:       cfg,
		reports:   d.Reports,
		cache:     d.Cache,
		temporal:  d.Temporal,
		metrics:   d.Metrics,
		log:       log,
		providers: len(providers.ParseProviderList(cfg.LLMProviders)),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/reports", s.handleReports)
	mux.HandleFunc("/reports/", s.handleReportScoped)
	mux.HandleFunc("/cache/", s.handleCache)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return withCORS(mux)
}

func reportWorkflowID(reportID string) string {
	return "report-" + reportID
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		if limit <= 0 {
			limit = 50
		}
		reports, err := s.reports.ListReports(r.Context(), limit)
		if err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
	case http.MethodPost:
		s.handleUpload(w, r)
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("parse multipart: %w", err))
		return
	}
	fh, ok := uploadedFile(r.MultipartForm.File)
	if !ok {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("no files provided"))
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if ext != ".pdf" && ext != ".txt" {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("unsupported file type %q", ext))
		return
	}
	buildingYear := 0
	if v := strings.TrimSpace(r.FormValue("building_year")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid building_year: %w", err))
			return
		}
		buildingYear = n
	}

	reportID := uuid.NewString()
	inDir := filepath.Join(s.cfg.DataInRoot, reportID)
	if err := util.EnsureDir(inDir); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	savedPath, err := saveUploadedFile(inDir, fh)
	if err != nil {
		if errors.Is(err, util.ErrUnsafePath) {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	filename := filepath.Base(savedPath)
	if err := s.reports.UpsertReport(r.Context(), models.Report{
		ReportID: reportID,
		Filename: filename,
		Status:   storage.ReportQueued,
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}

	we, err := s.temporal.ExecuteWorkflow(r.Context(), tclient.StartWorkflowOptions{
		ID:                                       reportWorkflowID(reportID),
		TaskQueue:                                s.cfg.TemporalTaskQueue,
		WorkflowIDReusePolicy:                    enumspb.WORKFLOW_ID_REUSE_POLICY_ALLOW_DUPLICATE,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, workflows.ReportAnalysisWorkflow, workflows.ReportAnalysisInput{
		ReportID:        reportID,
		ReportPath:      savedPath,
		Filename:        filename,
		ReportSystem:    strings.TrimSpace(r.FormValue("report_system")),
		BuildingYear:    buildingYear,
		LLMProviders:    s.providers,
		CooldownSeconds: s.cfg.ProviderCooldownSecs,
	})
	if err != nil {
		writeErr(w, http.StatusConflict, err)
		return
	}
	s.log.Info("report queued", "report_id", reportID, "filename", filename, "workflow_id", we.GetID())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"report_id":   reportID,
		"filename":    filename,
		"workflow_id": we.GetID(),
		"run_id":      we.GetRunID(),
	})
}

func (s *Server) handleReportScoped(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(strings.TrimPrefix(r.URL.Path, "/reports/"), "/"), "/")
	if len(parts) < 1 || parts[0] == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	reportID := parts[0]

	switch {
	case len(parts) == 1:
		rep, err := s.reports.GetReport(r.Context(), reportID)
		if err != nil {
			writeErr(w, statusFor(err), err)
			return
		}
		out := map[string]any{"report": rep}
		b, err := os.ReadFile(activities.FeedbackPath(s.cfg.DataOutRoot, reportID))
		switch {
		case err == nil:
			out["feedback"] = json.RawMessage(b)
		case !errors.Is(err, os.ErrNotExist):
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	case len(parts) == 2 && parts[1] == "status":
		resp, err := s.temporal.QueryWorkflow(r.Context(), reportWorkflowID(reportID), "", workflows.QueryReportStatus)
		if err != nil {
			// Finished or unknown runs fall back to the stored report row.
			rep, rErr := s.reports.GetReport(r.Context(), reportID)
			if rErr != nil {
				writeErr(w, statusFor(rErr), rErr)
				return
			}
			writeJSON(w, http.StatusOK, workflows.ReportStatus{
				ReportID:     rep.ReportID,
				Status:       rep.Status,
				FailReason:   rep.FailReason,
				DocumentHash: rep.DocumentHash,
				ScoreTotal:   rep.ScoreTotal,
			})
			return
		}
		var st workflows.ReportStatus
		if err := resp.Get(&st); err != nil {
			writeErr(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	default:
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
	}
}

func (s *Server) handleCache(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	docHash := strings.Trim(strings.TrimPrefix(r.URL.Path, "/cache/"), "/")
	if docHash == "" || strings.Contains(docHash, "/") {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	if s.cache == nil {
		writeJSON(w, http.StatusOK, map[string]any{"document_hash": docHash, "entries": []models.CacheKey{}})
		return
	}
	keys, err := s.cache.ListByDocument(r.Context(), docHash)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if keys == nil {
		keys = []models.CacheKey{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"document_hash": docHash, "entries": keys})
}

func statusFor(err error) int {
	if errors.Is(err, storage.ErrReportNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (string, error) {
	finalPath, err := util.SafeJoin(dstDir, fh.Filename)
	if err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*"+filepath.Ext(finalPath))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()
	if _, err := io.Copy(tmp, src); err != nil {
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), finalPath); err != nil {
		return "", fmt.Errorf("atomic move upload: %w", err)
	}
	return finalPath, nil
}

func uploadedFile(m map[string][]*multipart.FileHeader) (*multipart.FileHeader, bool) {
	if v := m["file"]; len(v) > 0 {
		return v[0], true
	}
	for _, v := range m {
		if len(v) > 0 {
			return v[0], true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "VR-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{Code: "VR-DB-5001", Message: "Database schema is not initialized. Start the worker once and retry."}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{Code: "VR-DB-5002", Message: "Database connection is unavailable. Check local services and retry."}
		default:
			return apiError{Code: "VR-API-5000", Message: "Internal server error. Please retry or check service logs."}
		}
	case status == http.StatusBadRequest:
		code = "VR-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "VR-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusConflict:
		code = "VR-API-4009"
		msg = "Operation conflicts with current state. Retry after checking status."
	case status == http.StatusMethodNotAllowed:
		code = "VR-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "no files provided"):
			msg = "No report file was provided."
		case strings.Contains(raw, "unsupported file type"):
			msg = "Only PDF and plain text reports are accepted."
		case strings.Contains(raw, "unsafe file name"):
			msg = "The file name is not usable."
		case strings.Contains(raw, "building_year"):
			msg = "building_year must be a whole number."
		}
	}
	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
