package http

import (
	"net/http"

	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
)

type addNodeRequest struct {
	prompttree.Location
	IsGroup bool `json:"is_group"`
	AtIndex *int `json:"at_index,omitempty"`
}

type confirmDeleteRequest struct {
	Mode prompttree.DeleteMode `json:"mode"`
}

type childrenEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

type groupsOpenRequest struct {
	Open bool `json:"open"`
}

// GetTree handles GET /api/v1/tree
func (h *Handlers) GetTree(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// AddNode handles POST /api/v1/tree/nodes
func (h *Handlers) AddNode(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[addNodeRequest](w, r)
	if !ok {
		return
	}
	n, err := h.Tree.Add(req.Location, req.IsGroup, req.AtIndex)
	if err != nil {
		writeDomainError(w, err, "parent group not found")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

// StartEdit handles POST /api/v1/tree/nodes/{id}/edit
func (h *Handlers) StartEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	n, err := h.Tree.StartEdit(id)
	if err != nil {
		writeDomainError(w, err, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// FinishEdit handles PUT /api/v1/tree/edit
func (h *Handlers) FinishEdit(w http.ResponseWriter, r *http.Request) {
	edited, ok := readJSON[prompttree.Node](w, r)
	if !ok {
		return
	}
	if err := h.Tree.FinishEdit(r.Context(), edited); err != nil {
		writeDomainError(w, err, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// CancelEdit handles DELETE /api/v1/tree/edit
func (h *Handlers) CancelEdit(w http.ResponseWriter, _ *http.Request) {
	h.Tree.CancelEdit()
	w.WriteHeader(http.StatusNoContent)
}

// RequestDelete handles POST /api/v1/tree/nodes/{id}/delete
func (h *Handlers) RequestDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	n, err := h.Tree.RequestDelete(id)
	if err != nil {
		writeDomainError(w, err, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// ConfirmDelete handles POST /api/v1/tree/delete/confirm
func (h *Handlers) ConfirmDelete(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[confirmDeleteRequest](w, r)
	if !ok {
		return
	}
	if req.Mode == "" {
		req.Mode = prompttree.DeleteAll
	}
	if err := h.Tree.ConfirmDelete(r.Context(), req.Mode); err != nil {
		writeDomainError(w, err, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// CancelDelete handles DELETE /api/v1/tree/delete
func (h *Handlers) CancelDelete(w http.ResponseWriter, _ *http.Request) {
	h.Tree.CancelDelete()
	w.WriteHeader(http.StatusNoContent)
}

// DeleteNode handles DELETE /api/v1/tree/nodes/{id}?mode=all|only
func (h *Handlers) DeleteNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	mode := prompttree.DeleteMode(r.URL.Query().Get("mode"))
	if mode == "" {
		mode = prompttree.DeleteAll
	}
	if err := h.Tree.Delete(r.Context(), id, mode); err != nil {
		writeDomainError(w, err, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// DuplicateNode handles POST /api/v1/tree/nodes/{id}/duplicate
func (h *Handlers) DuplicateNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	parent, ok := readJSON[prompttree.Location](w, r)
	if !ok {
		return
	}
	clone, err := h.Tree.Duplicate(r.Context(), id, parent)
	if err != nil {
		writeDomainError(w, err, "parent group not found")
		return
	}
	if clone == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusCreated, clone)
}

// ToggleNode handles POST /api/v1/tree/nodes/{id}/toggle
func (h *Handlers) ToggleNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	if err := h.Tree.ToggleEnabled(r.Context(), id); err != nil {
		writeDomainError(w, err, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// SetChildrenEnabled handles POST /api/v1/tree/nodes/{id}/children-enabled
func (h *Handlers) SetChildrenEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	req, ok := readJSON[childrenEnabledRequest](w, r)
	if !ok {
		return
	}
	if err := h.Tree.SetChildrenEnabled(r.Context(), id, req.Enabled); err != nil {
		writeDomainError(w, err, "node not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// MoveNode handles POST /api/v1/tree/nodes/{id}/move
func (h *Handlers) MoveNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(w, r)
	if !ok {
		return
	}
	dest, ok := readJSON[prompttree.Location](w, r)
	if !ok {
		return
	}
	if err := h.Tree.Move(r.Context(), id, dest); err != nil {
		writeDomainError(w, err, "destination group not found")
		return
	}
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// SetGroupsOpen handles POST /api/v1/tree/groups-open
func (h *Handlers) SetGroupsOpen(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[groupsOpenRequest](w, r)
	if !ok {
		return
	}
	h.Tree.SetAllGroupsOpen(req.Open)
	writeJSON(w, http.StatusOK, h.Tree.Snapshot())
}

// GetCompiled handles GET /api/v1/tree/compiled[?side=positive|negative]
func (h *Handlers) GetCompiled(w http.ResponseWriter, r *http.Request) {
	side := r.URL.Query().Get("side")
	if side == "" {
		writeJSON(w, http.StatusOK, h.Tree.CompileAll(r.Context()))
		return
	}
	prompt, err := h.Tree.Compile(r.Context(), prompttree.Side(side))
	if err != nil {
		writeDomainError(w, err, "unknown side")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"side": side, "prompt": prompt})
}

// ApplyPrompts handles POST /api/v1/tree/apply
func (h *Handlers) ApplyPrompts(w http.ResponseWriter, r *http.Request) {
	p, err := h.Tree.Apply(r.Context())
	if err != nil {
		writeDomainError(w, err, "generation backend not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}
