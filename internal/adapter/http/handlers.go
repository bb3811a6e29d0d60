package http

import (
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/Strob0t/PromptStruct/internal/domain"
	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
	"github.com/Strob0t/PromptStruct/internal/port/filestore"
	"github.com/Strob0t/PromptStruct/internal/service"
)

// Handlers holds the HTTP handler dependencies.
type Handlers struct {
	// Tree serves the /api/v1 tree and file session endpoints.
	Tree *service.TreeStore
	// Files serves the /psm file API.
	Files filestore.Store
}

type filePairRequest struct {
	Src string `json:"src"`
	Dst string `json:"dst"`
}

type savePromptsRequest struct {
	File     string             `json:"file"`
	Positive []*prompttree.Node `json:"positive"`
	Negative []*prompttree.Node `json:"negative"`
}

type setConfigRequest struct {
	SaveDir string `json:"save_dir"`
	DevMode bool   `json:"dev_mode"`
}

// ---------------------------------------------------------------------------
// /psm file API
// ---------------------------------------------------------------------------

// PSMListFiles handles GET /psm/list-files
func (h *Handlers) PSMListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.Files.ListFiles(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"files": files})
}

// PSMGetPrompts handles GET /psm/get-prompts?file=
func (h *Handlers) PSMGetPrompts(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if !requireField(w, file, "file") {
		return
	}
	f, err := h.Files.GetPrompts(r.Context(), file)
	if err != nil {
		writeDomainError(w, err, "file not found")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// PSMSavePrompts handles POST /psm/save-prompts
func (h *Handlers) PSMSavePrompts(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[savePromptsRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.File, "file") {
		return
	}
	f := prompttree.Forest{Positive: req.Positive, Negative: req.Negative}
	if err := h.Files.SavePrompts(r.Context(), req.File, f); err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeStatus(w, http.StatusBadRequest, err.Error())
			return
		}
		writeInternalError(w, err)
		return
	}
	if h.Tree != nil {
		if _, err := h.Tree.ReloadIfSelected(r.Context(), req.File); err != nil {
			slog.Warn("reload selected file after save", "file", req.File, "error", err)
		}
	}
	writeStatus(w, http.StatusOK, "")
}

// PSMDuplicateFile handles POST /psm/duplicate-file
func (h *Handlers) PSMDuplicateFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[filePairRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Src, "src") || !requireField(w, req.Dst, "dst") {
		return
	}
	h.writeFileOp(w, h.Files.DuplicateFile(r.Context(), req.Src, req.Dst))
}

// PSMRenameFile handles POST /psm/rename-file
func (h *Handlers) PSMRenameFile(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[filePairRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.Src, "src") || !requireField(w, req.Dst, "dst") {
		return
	}
	h.writeFileOp(w, h.Files.RenameFile(r.Context(), req.Src, req.Dst))
}

// PSMDeleteFile handles DELETE /psm/delete-file?file=
func (h *Handlers) PSMDeleteFile(w http.ResponseWriter, r *http.Request) {
	file := r.URL.Query().Get("file")
	if !requireField(w, file, "file") {
		return
	}
	h.writeFileOp(w, h.Files.DeleteFile(r.Context(), file))
}

// PSMGetConfig handles GET /psm/get-config
func (h *Handlers) PSMGetConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.Files.GetConfig(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

// PSMSetConfig handles POST /psm/set-config
func (h *Handlers) PSMSetConfig(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[setConfigRequest](w, r)
	if !ok {
		return
	}
	if !requireField(w, req.SaveDir, "save_dir") {
		return
	}
	// Through the tree store so the open session and the config hook follow
	// the new save directory.
	var err error
	if h.Tree != nil {
		err = h.Tree.SetConfig(r.Context(), req.SaveDir, req.DevMode)
	} else {
		err = h.Files.SetConfig(r.Context(), req.SaveDir, req.DevMode)
	}
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeStatus(w, http.StatusOK, "")
}

// PSMCheckPath handles GET /psm/check-path?path=
func (h *Handlers) PSMCheckPath(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	exists := false
	if path != "" {
		info, err := os.Stat(path)
		exists = err == nil && info.IsDir()
	}
	writeJSON(w, http.StatusOK, map[string]bool{"exists": exists})
}

func (h *Handlers) writeFileOp(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeStatus(w, http.StatusOK, "")
	case errors.Is(err, domain.ErrNotFound):
		writeStatus(w, http.StatusNotFound, "file not found")
	case errors.Is(err, domain.ErrValidation):
		writeStatus(w, http.StatusBadRequest, strings.TrimPrefix(err.Error(), domain.ErrValidation.Error()+": "))
	default:
		writeInternalError(w, err)
	}
}
