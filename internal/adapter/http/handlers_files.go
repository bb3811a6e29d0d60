package http

import (
	"net/http"
)

type fileNameRequest struct {
	Name string `json:"name"`
}

type importFileRequest struct {
	Name     string `json:"name"`
	Positive string `json:"positive"`
	Negative string `json:"negative"`
}

type fileResponse struct {
	File string `json:"file"`
}

// ListFiles handles GET /api/v1/files
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.Tree.ListFiles(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"files":    files,
		"selected": h.Tree.SelectedFile(),
	})
}

// CreateFile handles POST /api/v1/files
func (h *Handlers) CreateFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[fileNameRequest](w, r)
	if !ok || !requireField(w, req.Name, "name") {
		return
	}
	file, err := h.Tree.CreateFile(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusCreated, fileResponse{File: file})
}

// SelectFile handles POST /api/v1/files/select
func (h *Handlers) SelectFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[fileNameRequest](w, r)
	if !ok || !requireField(w, req.Name, "name") {
		return
	}
	if err := h.Tree.SelectFile(r.Context(), req.Name); err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// DuplicateFile handles POST /api/v1/files/duplicate
func (h *Handlers) DuplicateFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[fileNameRequest](w, r)
	if !ok || !requireField(w, req.Name, "name") {
		return
	}
	file, err := h.Tree.DuplicateFile(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusCreated, fileResponse{File: file})
}

// RenameFile handles POST /api/v1/files/rename
func (h *Handlers) RenameFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[fileNameRequest](w, r)
	if !ok || !requireField(w, req.Name, "name") {
		return
	}
	file, err := h.Tree.RenameFile(r.Context(), req.Name)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, fileResponse{File: file})
}

// DeleteCurrentFile handles DELETE /api/v1/files/current
func (h *Handlers) DeleteCurrentFile(w http.ResponseWriter, r *http.Request) {
	if err := h.Tree.DeleteFile(r.Context()); err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportFile handles POST /api/v1/files/import
func (h *Handlers) ImportFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[importFileRequest](w, r)
	if !ok || !requireField(w, req.Name, "name") {
		return
	}
	file, err := h.Tree.ImportFile(r.Context(), req.Name, req.Positive, req.Negative)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusCreated, fileResponse{File: file})
}

// GetConfig handles GET /api/v1/config
func (h *Handlers) GetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Tree.Config(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// UpdateConfig handles PUT /api/v1/config
func (h *Handlers) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[setConfigRequest](w, r)
	if !ok {
		return
	}
	if err := h.Tree.SetConfig(r.Context(), req.SaveDir, req.DevMode); err != nil {
		writeDomainError(w, err, "config not found")
		return
	}
	h.GetConfig(w, r)
}
