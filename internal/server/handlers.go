package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"example.com/sorgate/internal/archive"
	"example.com/sorgate/internal/common"
	"example.com/sorgate/internal/report"
	"example.com/sorgate/internal/rules"
	"example.com/sorgate/internal/sor"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		common.Logf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, errorResponse{Error: fmt.Sprintf(format, args...)})
}

// readTraceBody accepts either a raw binary body or a multipart form with a
// "file" field, and returns the bytes plus the client-supplied file name.
func (s *Server) readTraceBody(r *http.Request) ([]byte, string, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "multipart/form-data") {
		if err := r.ParseMultipartForm(s.maxUpload); err != nil {
			return nil, "", fmt.Errorf("parse form: %w", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			return nil, "", fmt.Errorf("form field %q: %w", "file", err)
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, s.maxUpload+1))
		if err != nil {
			return nil, "", err
		}
		if int64(len(data)) > s.maxUpload {
			return nil, "", fmt.Errorf("upload exceeds %d bytes", s.maxUpload)
		}
		return data, header.Filename, nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, s.maxUpload+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > s.maxUpload {
		return nil, "", fmt.Errorf("upload exceeds %d bytes", s.maxUpload)
	}
	return data, r.URL.Query().Get("name"), nil
}

func (s *Server) acquireSlot() func() {
	s.decodeSlots <- struct{}{}
	return func() { <-s.decodeSlots }
}

type decodeResponse struct {
	Hash     string         `json:"hash,omitempty"`
	Document *sor.Document  `json:"document,omitempty"`
	Summary  *archive.Entry `json:"summary,omitempty"`
}

// handleDecode decodes an uploaded trace and, unless store=false, archives
// the result under its content hash. summary=1 returns the catalog summary
// instead of the full document.
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}
	release := s.acquireSlot()
	defer release()

	raw, name, err := s.readTraceBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: %v", err)
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "empty trace upload")
		return
	}

	doc, err := sor.Decode(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "decode: %v", err)
		return
	}

	resp := decodeResponse{Document: doc}
	if r.URL.Query().Get("summary") == "1" {
		entry := archive.Summarize(raw, name, doc)
		resp.Document = nil
		resp.Summary = &entry
	}
	if r.URL.Query().Get("store") != "false" {
		entry, err := s.archive.Put(raw, name, doc)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "archive: %v", err)
			return
		}
		resp.Hash = entry.Hash
		if err := s.audit.Append(common.AuditEntry{Action: "store", Hash: entry.Hash, File: name}); err != nil {
			common.Logf("audit append: %v", err)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type validateResponse struct {
	Hash   string                 `json:"hash"`
	Report rules.AcceptanceReport `json:"report"`
}

// handleValidate decodes an uploaded trace and evaluates the configured
// acceptance rules against it.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}
	release := s.acquireSlot()
	defer release()

	raw, name, err := s.readTraceBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload: %v", err)
		return
	}
	if len(raw) == 0 {
		writeError(w, http.StatusBadRequest, "empty trace upload")
		return
	}

	doc, err := sor.Decode(raw)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "decode: %v", err)
		return
	}

	engine := rules.NewEngine(s.rulePack)
	engine.RegisterBuiltins()
	if _, err := engine.Eval(&rules.Context{InputFile: name, Doc: doc}); err != nil {
		writeError(w, http.StatusInternalServerError, "evaluate rules: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Hash:   archive.HashOf(raw),
		Report: engine.MakeAcceptance(),
	})
}

// handleArchive serves the catalog at /archive and individual records at
// /archive/{hash}, plus the printable label at /archive/{hash}/label.png.
func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/archive"), "/")
	if rest == "" {
		s.handleArchiveList(w, r)
		return
	}
	parts := strings.Split(rest, "/")
	hash := parts[0]
	switch {
	case len(parts) == 1:
		s.handleArchiveRecord(w, r, hash)
	case len(parts) == 2 && parts[1] == "label.png":
		s.handleArchiveLabel(w, r, hash)
	default:
		writeError(w, http.StatusNotFound, "unknown archive resource %q", rest)
	}
}

func (s *Server) handleArchiveList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}
	entries, err := s.archive.List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list archive: %v", err)
		return
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit %q", raw)
			return
		}
		if limit < len(entries) {
			entries = entries[:limit]
		}
	}
	if entries == nil {
		entries = []archive.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleArchiveRecord(w http.ResponseWriter, r *http.Request, hash string) {
	switch r.Method {
	case http.MethodGet:
		doc, entry, err := s.archive.Get(hash)
		if err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no archived decode for %s", hash)
				return
			}
			writeError(w, http.StatusInternalServerError, "load archive record: %v", err)
			return
		}
		writeJSON(w, http.StatusOK, struct {
			Entry    archive.Entry `json:"entry"`
			Document *sor.Document `json:"document"`
		}{Entry: entry, Document: doc})
	case http.MethodDelete:
		if err := s.archive.Delete(hash); err != nil {
			if errors.Is(err, archive.ErrNotFound) {
				writeError(w, http.StatusNotFound, "no archived decode for %s", hash)
				return
			}
			writeError(w, http.StatusInternalServerError, "delete archive record: %v", err)
			return
		}
		if err := s.audit.Append(common.AuditEntry{Action: "delete", Hash: hash}); err != nil {
			common.Logf("audit append: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
	}
}

func (s *Server) handleArchiveLabel(w http.ResponseWriter, r *http.Request, hash string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}
	doc, _, err := s.archive.Get(hash)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no archived decode for %s", hash)
			return
		}
		writeError(w, http.StatusInternalServerError, "load archive record: %v", err)
		return
	}
	png, err := report.FiberLabelQR(doc, 256)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, "label: %v", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(png); err != nil {
		common.Logf("write label: %v", err)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method %s not allowed", r.Method)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
