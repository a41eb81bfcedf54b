package receipt

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/radityaharya/workers-receipt-parser/internal/media"
	"github.com/radityaharya/workers-receipt-parser/internal/model"
	"github.com/radityaharya/workers-receipt-parser/internal/scanning"
	"github.com/radityaharya/workers-receipt-parser/internal/validation"
)

const (
	maxUploadSize   = int64(50 << 20) // high-resolution phone photos
	maxReceiptJSON  = int64(1 << 20)
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// writeJSON encodes v as the response body
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Error encoding response", "error", err)
	}
}

// writeError writes a JSON error body
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// errorStatus maps service errors onto HTTP status codes
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, media.ErrUnsupportedMedia), errors.Is(err, scanning.ErrUnsupportedContent):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, media.ErrEmptyUpload), errors.Is(err, media.ErrTooManyPages):
		return http.StatusBadRequest
	case errors.Is(err, ErrScanFailed):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// writeServiceError logs err and writes it with the mapped status. Internal
// errors are not echoed to the client.
func writeServiceError(w http.ResponseWriter, msg string, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		slog.Error(msg, "error", err)
		writeError(w, status, "Internal server error")
		return
	}
	slog.Warn(msg, "status", status, "error", err)
	writeError(w, status, err.Error())
}

// contentTypeFromFilename guesses a MIME type when the client sent none
func contentTypeFromFilename(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".jpg", ".jpeg":
		return media.TypeJPEG
	case ".png":
		return media.TypePNG
	case ".gif":
		return media.TypeGIF
	case ".webp":
		return media.TypeWEBP
	case ".pdf":
		return media.TypePDF
	case ".heic":
		return media.TypeHEIC
	case ".heif":
		return media.TypeHEIF
	}
	return "application/octet-stream"
}

// handleParseReceipt scans an uploaded receipt and stores the result
func (s *Server) handleParseReceipt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		slog.Warn("Error parsing multipart form", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "File is too large. Maximum size is 50MB. Please compress or resize your image.")
			return
		}
		writeError(w, http.StatusBadRequest, "Error parsing form")
		return
	}

	f, header, err := r.FormFile("file")
	if err != nil {
		slog.Warn("Error getting file from form", "error", err)
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, http.StatusBadRequest, "No file was selected. Please choose a file to upload.")
			return
		}
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		slog.Error("Error reading file data", "error", err, "filename", header.Filename)
		writeError(w, http.StatusInternalServerError, "Error reading file. Please try again.")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromFilename(header.Filename)
	}

	result, err := s.service.ParseReceipt(r.Context(), header.Filename, data, contentType)
	if err != nil {
		writeServiceError(w, "Error parsing receipt", err)
		return
	}

	writeJSON(w, http.StatusCreated, result)
}

// handleValidateReceipt checks a receipt posted as JSON without scanning or storing it
func (s *Server) handleValidateReceipt(w http.ResponseWriter, r *http.Request) {
	var rec model.Receipt
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReceiptJSON))
	if err := dec.Decode(&rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid receipt JSON: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, s.service.ValidateReceipt(rec))
}

// handleListResults returns the parse history
func (s *Server) handleListResults(w http.ResponseWriter, r *http.Request) {
	results, err := s.service.ListResults()
	if err != nil {
		writeServiceError(w, "Error listing parse results", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// handleGetResult returns a single parse result
func (s *Server) handleGetResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.service.GetResult(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting parse result", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleGetResultFile returns the uploaded file
func (s *Server) handleGetResultFile(w http.ResponseWriter, r *http.Request) {
	data, contentType, err := s.service.GetResultFile(r.PathValue("id"))
	if err != nil {
		writeServiceError(w, "Error getting receipt file", err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Write(data)
}

// handleDeleteResult deletes a parse result and its file
func (s *Server) handleDeleteResult(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteResult(r.PathValue("id")); err != nil {
		writeServiceError(w, "Error deleting parse result", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExport downloads the history as a spreadsheet
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := s.service.Export(&buf); err != nil {
		writeServiceError(w, "Error exporting parse results", err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="receipts.xlsx"`)
	w.Write(buf.Bytes())
}

// handleRules lists the checks and the thresholds in effect
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"rules":  validation.Catalog(),
		"config": s.service.Rules(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
