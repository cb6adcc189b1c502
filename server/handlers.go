package server

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/helpcomp/finsight/analysis"
	"github.com/helpcomp/finsight/chat"
	"github.com/helpcomp/finsight/httperror"
	"github.com/helpcomp/finsight/report"
	"github.com/helpcomp/finsight/transactions"
	"golang.org/x/exp/slices"
)

// MaxUploadSize caps the whole upload request body.
const MaxUploadSize = 16 << 20

var allowedExtensions = []string{"csv", "txt"}

func allowedFile(name string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	return ext != "" && slices.Contains(allowedExtensions, ext)
}

func (s *Server) upload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return httperror.TooLarge("File too large")
		}
		return httperror.BadRequest("No file uploaded")
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		// A part with an empty filename is kept as a plain form value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			return httperror.BadRequest("No file selected")
		}
		return httperror.BadRequest("No file uploaded")
	}
	if err != nil {
		return httperror.BadRequest("No file uploaded")
	}
	defer file.Close()

	if header.Filename == "" {
		return httperror.BadRequest("No file selected")
	}
	if !allowedFile(header.Filename) {
		return httperror.BadRequest("Invalid file type")
	}

	txns, err := s.opts.Loader.Ingest(file, filepath.Ext(header.Filename))
	var parseErr *csv.ParseError
	switch {
	case errors.Is(err, transactions.ErrMissingHeader):
		return httperror.BadRequest("No transactions found in file")
	case errors.As(err, &parseErr):
		return &httperror.Error{Status: http.StatusBadRequest, Message: "Invalid CSV file", Err: err}
	case err != nil:
		return httperror.Internal("Failed to process uploaded file", err)
	}
	if len(txns) == 0 {
		return httperror.BadRequest("No transactions found in file")
	}

	return s.analyze(w, r, txns)
}

type manualRequest struct {
	Transactions []transactions.Transaction `json:"transactions"`
}

func (s *Server) analyzeManual(w http.ResponseWriter, r *http.Request) error {
	var req manualRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &httperror.Error{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}
	if len(req.Transactions) == 0 {
		return httperror.BadRequest("No transactions provided")
	}
	return s.analyze(w, r, req.Transactions)
}

// analyze answers 200 with the record, including a parse failure record.
func (s *Server) analyze(w http.ResponseWriter, r *http.Request, txns []transactions.Transaction) error {
	rec, err := s.opts.Analyzer.Analyze(r.Context(), txns)
	if err != nil {
		return httperror.Internal("Failed to analyze transactions", err)
	}
	httperror.WriteJSON(w, http.StatusOK, rec)
	return nil
}

type exportRequest struct {
	Analysis json.RawMessage `json:"analysis"`
}

func (s *Server) exportPDF(w http.ResponseWriter, r *http.Request) error {
	var req exportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &httperror.Error{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	var rec analysis.Record
	if raw := bytes.TrimSpace(req.Analysis); len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		if err := json.Unmarshal(raw, &rec); err != nil {
			return &httperror.Error{Status: http.StatusBadRequest, Message: "Invalid analysis", Err: err}
		}
	}

	pdf, err := s.opts.Reports.Report(rec)
	if err != nil {
		return httperror.Internal("Failed to generate report", err)
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+report.Filename)
	w.Header().Set("Content-Length", strconv.Itoa(len(pdf)))
	w.WriteHeader(http.StatusOK)
	_, err = w.Write(pdf)
	return err
}

type chatRequest struct {
	Message  string          `json:"message"`
	Analysis json.RawMessage `json:"analysis"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

func (s *Server) chat(w http.ResponseWriter, r *http.Request) error {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &httperror.Error{Status: http.StatusBadRequest, Message: "Invalid request body", Err: err}
	}

	reply, err := s.opts.Chat.Ask(r.Context(), req.Message, req.Analysis)
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		return httperror.BadRequest("Empty message")
	case err != nil:
		return httperror.Internal("Chat failed", err)
	}

	httperror.WriteJSON(w, http.StatusOK, chatResponse{Reply: reply})
	return nil
}
