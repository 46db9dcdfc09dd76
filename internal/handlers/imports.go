package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/leadline-crm/apps/api/internal/httpx"
	"github.com/leadline-crm/apps/api/internal/importer"
	"github.com/leadline-crm/apps/api/internal/middleware"
	"github.com/leadline-crm/apps/api/internal/store"
)

const (
	importKindProperties = "property"
	importKindContacts   = "contact"

	importModePreview = "preview"
	importModeCommit  = "commit"

	importStatusCompleted = "completed"
	importStatusFailed    = "failed"
)

type appError struct {
	Status  int
	Code    string
	Message string
	Details any
}

type importUpload struct {
	Filename   string
	FileSHA256 string
	File       *importer.ParsedFile
}

// parseImportUpload reads the multipart "file" field, hashes it, and parses
// it into rows. The whole body is capped at the configured import file limit
// before the multipart parser sees it.
func (s *Server) parseImportUpload(w http.ResponseWriter, r *http.Request) (importUpload, *appError) {
	if !strings.HasPrefix(strings.ToLower(r.Header.Get("Content-Type")), "multipart/form-data") {
		return importUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_content_type",
			Message: "Content-Type must be multipart/form-data",
		}
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.Config.ImportMaxFileBytes)
	if err := r.ParseMultipartForm(s.Config.ImportMaxFileBytes); err != nil {
		return importUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_multipart",
			Message: "Failed to parse multipart form",
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return importUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "missing_file",
			Message: "file is required",
		}
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return importUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_file",
			Message: "Failed to read uploaded file",
		}
	}
	digest := sha256.Sum256(data)

	parsed, err := importer.ParseSpreadsheet(bytes.NewReader(data), header.Filename)
	if err != nil {
		if errors.Is(err, importer.ErrEmptyFile) {
			return importUpload{}, &appError{
				Status:  http.StatusBadRequest,
				Code:    "empty_file",
				Message: "Uploaded file has no data rows",
			}
		}
		return importUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "invalid_file",
			Message: "Failed to parse uploaded file",
			Details: map[string]any{"reason": err.Error()},
		}
	}
	if len(parsed.Rows) > s.Config.ImportMaxRows {
		return importUpload{}, &appError{
			Status:  http.StatusBadRequest,
			Code:    "too_many_rows",
			Message: fmt.Sprintf("File exceeds the %d row limit", s.Config.ImportMaxRows),
			Details: map[string]any{"rows": len(parsed.Rows)},
		}
	}

	return importUpload{
		Filename:   header.Filename,
		FileSHA256: hex.EncodeToString(digest[:]),
		File:       parsed,
	}, nil
}

func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, appErr *appError) {
	httpx.WriteError(w, r, appErr.Status, appErr.Code, appErr.Message, appErr.Details)
}

func (s *Server) PostImportsPropertiesPreview(w http.ResponseWriter, r *http.Request) {
	upload, appErr := s.parseImportUpload(w, r)
	if appErr != nil {
		s.writeAppError(w, r, appErr)
		return
	}

	preview, err := importer.New(s.Store).PreviewProperties(r.Context(), upload.File)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Preview failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, preview)
}

func (s *Server) PostImportsContactsPreview(w http.ResponseWriter, r *http.Request) {
	upload, appErr := s.parseImportUpload(w, r)
	if appErr != nil {
		s.writeAppError(w, r, appErr)
		return
	}

	preview, err := importer.New(s.Store).PreviewContacts(r.Context(), upload.File)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Preview failed", nil)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, preview)
}

func (s *Server) PostImportsPropertiesCommit(w http.ResponseWriter, r *http.Request) {
	upload, appErr := s.parseImportUpload(w, r)
	if appErr != nil {
		s.writeAppError(w, r, appErr)
		return
	}

	var sel importer.PropertySelection
	if raw := strings.TrimSpace(r.FormValue("selections")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &sel); err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_selections", "selections must be valid JSON", nil)
			return
		}
	} else {
		// No explicit selection means commit every row.
		for i := range upload.File.Rows {
			sel.NewRows = append(sel.NewRows, i)
		}
	}

	s.runImportCommit(w, r, upload, importKindProperties, func(imp *importer.Importer) (*importer.CommitStats, error) {
		return imp.CommitProperties(r.Context(), upload.File, sel)
	})
}

func (s *Server) PostImportsContactsCommit(w http.ResponseWriter, r *http.Request) {
	upload, appErr := s.parseImportUpload(w, r)
	if appErr != nil {
		s.writeAppError(w, r, appErr)
		return
	}

	var selections []importer.ContactSelection
	if raw := strings.TrimSpace(r.FormValue("selections")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &selections); err != nil {
			httpx.WriteError(w, r, http.StatusBadRequest, "invalid_selections", "selections must be valid JSON", nil)
			return
		}
	} else {
		for i := range upload.File.Rows {
			selections = append(selections, importer.ContactSelection{RowIndex: i})
		}
	}

	s.runImportCommit(w, r, upload, importKindContacts, func(imp *importer.Importer) (*importer.CommitStats, error) {
		return imp.CommitContacts(r.Context(), upload.File, selections)
	})
}

// runImportCommit wraps one commit batch in a single transaction: the upserts
// and their per-row results land together or not at all. The import run row
// itself is created up front so a failed batch still leaves a record.
func (s *Server) runImportCommit(w http.ResponseWriter, r *http.Request, upload importUpload, kind string, commit func(*importer.Importer) (*importer.CommitStats, error)) {
	var createdBy *uuid.UUID
	if actor, ok := middleware.ActorFromContext(r.Context()); ok {
		if parsed, err := uuid.Parse(actor.UserID); err == nil {
			createdBy = &parsed
		}
	}

	run, err := s.Store.CreateImportRun(r.Context(), store.CreateImportRunParams{
		CreatedByUserID: createdBy,
		Kind:            kind,
		Mode:            importModeCommit,
		Filename:        upload.Filename,
		FileSHA256:      upload.FileSHA256,
	})
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to start import", nil)
		return
	}

	tx, err := s.DB.Begin(r.Context())
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to start import", nil)
		return
	}
	defer tx.Rollback(r.Context())
	txStore := s.Store.WithTx(tx)

	stats, err := commit(importer.New(txStore))
	if err != nil {
		failure, _ := json.Marshal(map[string]any{"error": err.Error()})
		_, _ = s.Store.CompleteImportRun(r.Context(), run.ID, importStatusFailed, failure)
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Import failed", nil)
		return
	}

	for _, outcome := range stats.Outcomes {
		if err := txStore.InsertImportRowResult(r.Context(), store.InsertImportRowResultParams{
			ImportRunID: run.ID,
			RowNumber:   outcome.RowNumber,
			Severity:    outcome.Severity,
			EntityType:  outcome.EntityType,
			Result:      outcome.Result,
			Message:     outcome.Message,
		}); err != nil {
			httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to record import results", nil)
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to commit import", nil)
		return
	}

	summary, _ := json.Marshal(stats)
	run, err = s.Store.CompleteImportRun(r.Context(), run.ID, importStatusCompleted, summary)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to finalize import", nil)
		return
	}

	runID := run.ID
	s.auditAction(r, "imports.commit", "import_run", &runID, map[string]any{
		"kind":     kind,
		"filename": upload.Filename,
	})

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"importRunId": run.ID,
		"status":      run.Status,
		"stats":       stats,
	})
}

type importRunResponse struct {
	ID          uuid.UUID       `json:"id"`
	Kind        string          `json:"kind"`
	Mode        string          `json:"mode"`
	Filename    string          `json:"filename"`
	FileSHA256  string          `json:"fileSha256"`
	Status      string          `json:"status"`
	Summary     json.RawMessage `json:"summary,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
	CompletedAt *time.Time      `json:"completedAt,omitempty"`
	Errors      []importRowItem `json:"errors"`
}

type importRowItem struct {
	RowNumber  int    `json:"rowNumber"`
	Severity   string `json:"severity"`
	EntityType string `json:"entityType"`
	Result     string `json:"result"`
	Message    string `json:"message,omitempty"`
}

func (s *Server) GetImportRun(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "importRunId")
	if !ok {
		return
	}

	run, err := s.Store.GetImportRunByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "import_run_not_found", "Import run not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import run", nil)
		return
	}

	rows, err := s.Store.ListImportRowResults(r.Context(), run.ID)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import rows", nil)
		return
	}

	resp := importRunResponse{
		ID:         run.ID,
		Kind:       run.Kind,
		Mode:       run.Mode,
		Filename:   run.Filename,
		FileSHA256: run.FileSHA256,
		Status:     run.Status,
		Summary:    json.RawMessage(run.Summary),
		CreatedAt:  run.CreatedAt.UTC(),
		Errors:     []importRowItem{},
	}
	if run.CompletedAt != nil {
		completed := run.CompletedAt.UTC()
		resp.CompletedAt = &completed
	}
	for _, row := range rows {
		if row.Severity != importer.SeverityError {
			continue
		}
		resp.Errors = append(resp.Errors, importRowItem{
			RowNumber:  row.RowNumber,
			Severity:   row.Severity,
			EntityType: row.EntityType,
			Result:     row.Result,
			Message:    row.Message,
		})
		if len(resp.Errors) >= 100 {
			break
		}
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) GetImportRunErrorsCSV(w http.ResponseWriter, r *http.Request) {
	id, ok := uuidParam(w, r, "importRunId")
	if !ok {
		return
	}

	if _, err := s.Store.GetImportRunByID(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			httpx.WriteError(w, r, http.StatusNotFound, "import_run_not_found", "Import run not found", nil)
			return
		}
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import run", nil)
		return
	}

	rows, err := s.Store.ListImportRowResults(r.Context(), id)
	if err != nil {
		httpx.WriteError(w, r, http.StatusInternalServerError, "internal_error", "Failed to load import rows", nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=\"import-%s-errors.csv\"", id.String()))
	writer := csv.NewWriter(w)
	_ = writer.Write([]string{"row_number", "severity", "entity_type", "result", "message"})
	for _, row := range rows {
		if row.Severity != importer.SeverityError {
			continue
		}
		_ = writer.Write([]string{
			strconv.Itoa(row.RowNumber),
			row.Severity,
			row.EntityType,
			row.Result,
			row.Message,
		})
	}
	writer.Flush()
}
