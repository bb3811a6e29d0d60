package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers the /psm file API and the /api/v1 tree API on the
// given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	// File API, wire compatible with the web UI extension.
	r.Route("/psm", func(r chi.Router) {
		r.Get("/list-files", h.PSMListFiles)
		r.Get("/get-prompts", h.PSMGetPrompts)
		r.Post("/save-prompts", h.PSMSavePrompts)
		r.Post("/duplicate-file", h.PSMDuplicateFile)
		r.Post("/rename-file", h.PSMRenameFile)
		r.Delete("/delete-file", h.PSMDeleteFile)
		r.Get("/get-config", h.PSMGetConfig)
		r.Post("/set-config", h.PSMSetConfig)
		r.Get("/check-path", h.PSMCheckPath)
	})

	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Tree
		r.Get("/tree", h.GetTree)
		r.Post("/tree/nodes", h.AddNode)
		r.Delete("/tree/nodes/{id}", h.DeleteNode)
		r.Post("/tree/nodes/{id}/edit", h.StartEdit)
		r.Post("/tree/nodes/{id}/delete", h.RequestDelete)
		r.Post("/tree/nodes/{id}/duplicate", h.DuplicateNode)
		r.Post("/tree/nodes/{id}/toggle", h.ToggleNode)
		r.Post("/tree/nodes/{id}/children-enabled", h.SetChildrenEnabled)
		r.Post("/tree/nodes/{id}/move", h.MoveNode)
		r.Post("/tree/groups-open", h.SetGroupsOpen)

		// Edit and delete workflows
		r.Put("/tree/edit", h.FinishEdit)
		r.Delete("/tree/edit", h.CancelEdit)
		r.Post("/tree/delete/confirm", h.ConfirmDelete)
		r.Delete("/tree/delete", h.CancelDelete)

		// Compiled prompts
		r.Get("/tree/compiled", h.GetCompiled)
		r.Post("/tree/apply", h.ApplyPrompts)

		// File session
		r.Get("/files", h.ListFiles)
		r.Post("/files", h.CreateFile)
		r.Post("/files/select", h.SelectFile)
		r.Post("/files/duplicate", h.DuplicateFile)
		r.Post("/files/rename", h.RenameFile)
		r.Delete("/files/current", h.DeleteCurrentFile)
		r.Post("/files/import", h.ImportFile)

		// Configuration
		r.Get("/config", h.GetConfig)
		r.Put("/config", h.UpdateConfig)
	})
}
