package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	cfhttp "github.com/Strob0t/PromptStruct/internal/adapter/http"
	"github.com/Strob0t/PromptStruct/internal/adapter/yamlfs"
	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
	"github.com/Strob0t/PromptStruct/internal/port/generation"
	"github.com/Strob0t/PromptStruct/internal/service"
)

// failingStore fails every save.
type failingStore struct {
	*yamlfs.Store
}

func (failingStore) SavePrompts(context.Context, string, prompttree.Forest) error {
	return errors.New("disk full")
}

type recordingApplier struct {
	got []generation.Prompt
}

func (a *recordingApplier) Apply(_ context.Context, p generation.Prompt) error {
	a.got = append(a.got, p)
	return nil
}

type testServer struct {
	router chi.Router
	files  *yamlfs.Store
	tree   *service.TreeStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	files := yamlfs.New(filepath.Join(root, "config.json"), filepath.Join(root, "psm_data"))
	tree := service.NewTreeStore(files)

	r := chi.NewRouter()
	cfhttp.MountRoutes(r, &cfhttp.Handlers{Tree: tree, Files: files})
	return &testServer{router: r, files: files, tree: tree}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected status %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

// --- /psm file API ---

func TestPSMSaveAndGetPrompts(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/psm/save-prompts", map[string]any{
		"file": "a.yaml",
		"positive": []map[string]any{
			{"id": 1, "content": "masterpiece", "enabled": true, "weight": 1.2, "is_group": false},
		},
		"negative": []any{},
	})
	expectStatus(t, rec, http.StatusOK)
	if st := decode[map[string]string](t, rec); st["status"] != "success" {
		t.Fatalf("unexpected status body: %v", st)
	}

	rec = s.do(t, http.MethodGet, "/psm/list-files", nil)
	expectStatus(t, rec, http.StatusOK)
	files := decode[map[string][]string](t, rec)["files"]
	if len(files) != 1 || files[0] != "a.yaml" {
		t.Fatalf("unexpected files: %v", files)
	}

	rec = s.do(t, http.MethodGet, "/psm/get-prompts?file=a.yaml", nil)
	expectStatus(t, rec, http.StatusOK)
	f := decode[prompttree.Forest](t, rec)
	if len(f.Positive) != 1 || f.Positive[0].Content != "masterpiece" || f.Positive[0].Weight != 1.2 {
		t.Fatalf("unexpected document: %+v", f)
	}
}

func TestPSMSaveReloadsSelectedFile(t *testing.T) {
	s := newTestServer(t)
	ctx := context.Background()
	if _, err := s.tree.ImportFile(ctx, "a", "cat", ""); err != nil {
		t.Fatal(err)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/psm/save-prompts", map[string]any{
		"file":     "b.yaml",
		"positive": []map[string]any{{"id": 9, "content": "bird", "enabled": true, "weight": 1}},
		"negative": []any{},
	}), http.StatusOK)
	if got := s.tree.Snapshot().Positive; len(got) != 1 || got[0].Content != "cat" {
		t.Fatalf("saving another file changed the trees: %+v", got)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/psm/save-prompts", map[string]any{
		"file":     "a.yaml",
		"positive": []map[string]any{{"id": 7, "content": "dog", "enabled": true, "weight": 1}},
		"negative": []any{},
	}), http.StatusOK)
	got := s.tree.Snapshot().Positive
	if len(got) != 1 || got[0].Content != "dog" {
		t.Fatalf("trees not reloaded after save: %+v", got)
	}

	if err := s.tree.ToggleEnabled(ctx, got[0].ID); err != nil {
		t.Fatal(err)
	}
	f, err := s.files.GetPrompts(ctx, "a.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Positive) != 1 || f.Positive[0].Content != "dog" || f.Positive[0].Enabled {
		t.Fatalf("toggle overwrote the saved document: %+v", f.Positive)
	}
}

func TestPSMGetPromptsMissingFile(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/psm/get-prompts?file=nope.yaml", nil)
	expectStatus(t, rec, http.StatusOK)
	if rec.Body.String() != "{\"positive\":[],\"negative\":[]}\n" {
		t.Fatalf("expected empty lists, got %s", rec.Body.String())
	}
}

func TestPSMFileOperations(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/psm/save-prompts", map[string]any{"file": "a.yaml"}), http.StatusOK)

	expectStatus(t, s.do(t, http.MethodPost, "/psm/duplicate-file", map[string]string{"src": "a.yaml", "dst": "b"}), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodPost, "/psm/rename-file", map[string]string{"src": "b.yaml", "dst": "c.yaml"}), http.StatusOK)
	expectStatus(t, s.do(t, http.MethodDelete, "/psm/delete-file?file=c.yaml", nil), http.StatusOK)

	rec := s.do(t, http.MethodDelete, "/psm/delete-file?file=c.yaml", nil)
	expectStatus(t, rec, http.StatusNotFound)
	if st := decode[map[string]string](t, rec); st["status"] != "error" {
		t.Fatalf("expected error envelope, got %v", st)
	}
}

func TestPSMRejectsBadInput(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"missing file param", http.MethodGet, "/psm/get-prompts", nil, http.StatusBadRequest},
		{"path traversal", http.MethodPost, "/psm/save-prompts", map[string]any{"file": "../x.yaml"}, http.StatusBadRequest},
		{"rename escape", http.MethodPost, "/psm/rename-file", map[string]string{"src": "a.yaml", "dst": "../b"}, http.StatusBadRequest},
		{"missing dst", http.MethodPost, "/psm/duplicate-file", map[string]string{"src": "a.yaml"}, http.StatusBadRequest},
		{"missing save dir", http.MethodPost, "/psm/set-config", map[string]any{"dev_mode": true}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(t, tt.method, tt.path, tt.body), tt.want)
		})
	}
}

func TestPSMConfig(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	var hookDirs []string
	s.tree.SetConfigHook(func(saveDir string, _ bool) { hookDirs = append(hookDirs, saveDir) })

	rec := s.do(t, http.MethodGet, "/psm/get-config", nil)
	expectStatus(t, rec, http.StatusOK)
	if cfg := decode[map[string]any](t, rec); cfg["is_configured"] != false {
		t.Fatalf("expected unconfigured store, got %v", cfg)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/psm/set-config", map[string]any{"save_dir": dir, "dev_mode": true}), http.StatusOK)

	rec = s.do(t, http.MethodGet, "/psm/get-config", nil)
	cfg := decode[map[string]any](t, rec)
	if cfg["save_dir"] != dir || cfg["dev_mode"] != true || cfg["is_configured"] != true {
		t.Fatalf("unexpected config: %v", cfg)
	}
	if len(hookDirs) != 1 || hookDirs[0] != dir {
		t.Fatalf("config hook calls: %v", hookDirs)
	}

	rec = s.do(t, http.MethodGet, "/psm/check-path?path="+dir, nil)
	if got := decode[map[string]bool](t, rec); !got["exists"] {
		t.Fatalf("expected %s to exist", dir)
	}
	rec = s.do(t, http.MethodGet, "/psm/check-path?path="+filepath.Join(dir, "missing"), nil)
	if got := decode[map[string]bool](t, rec); got["exists"] {
		t.Fatal("expected missing path to not exist")
	}
}

// --- /api/v1 tree API ---

func TestTreeAddAndFinishEdit(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/files", map[string]string{"name": "a"}), http.StatusCreated)

	rec := s.do(t, http.MethodPost, "/api/v1/tree/nodes", map[string]any{"side": "positive"})
	expectStatus(t, rec, http.StatusCreated)
	n := decode[prompttree.Node](t, rec)
	if n.ID == 0 || !n.Enabled || n.Weight != 1 {
		t.Fatalf("unexpected new node: %+v", n)
	}

	n.Content = "sunset (golden)"
	n.Weight = 1.3
	expectStatus(t, s.do(t, http.MethodPut, "/api/v1/tree/edit", n), http.StatusOK)

	rec = s.do(t, http.MethodGet, "/api/v1/tree/compiled?side=positive", nil)
	expectStatus(t, rec, http.StatusOK)
	if got := decode[map[string]string](t, rec)["prompt"]; got != `(sunset \(golden\):1.3)` {
		t.Fatalf("unexpected prompt %q", got)
	}

	saved, err := s.files.GetPrompts(context.Background(), "a.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Positive) != 1 || saved.Positive[0].Content != "sunset (golden)" {
		t.Fatalf("edit not persisted: %+v", saved.Positive)
	}
}

func TestTreeEditConflict(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/tree/nodes", map[string]any{"side": "positive"}), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/tree/nodes", map[string]any{"side": "negative"}), http.StatusConflict)

	expectStatus(t, s.do(t, http.MethodDelete, "/api/v1/tree/edit", nil), http.StatusNoContent)
	if st := s.tree.Snapshot(); len(st.Positive) != 0 || st.Editing != nil {
		t.Fatalf("cancel should discard the new node: %+v", st)
	}
}

func TestTreeStructuralErrors(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.tree.ImportFile(context.Background(), "a", "cat", ""); err != nil {
		t.Fatal(err)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/tree/nodes", map[string]any{"side": "positive", "is_group": true})
	group := decode[prompttree.Node](t, rec)
	group.Name = "G"
	expectStatus(t, s.do(t, http.MethodPut, "/api/v1/tree/edit", group), http.StatusOK)

	leafID := s.tree.Snapshot().Positive[0].ID
	gid := strconvID(group.ID)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"move into itself", http.MethodPost, "/api/v1/tree/nodes/" + gid + "/move", map[string]any{"side": "positive", "parent_id": group.ID}, http.StatusUnprocessableEntity},
		{"promote children of leaf", http.MethodDelete, "/api/v1/tree/nodes/" + strconvID(leafID) + "?mode=only", nil, http.StatusUnprocessableEntity},
		{"children enabled on leaf", http.MethodPost, "/api/v1/tree/nodes/" + strconvID(leafID) + "/children-enabled", map[string]bool{"enabled": false}, http.StatusUnprocessableEntity},
		{"unknown destination", http.MethodPost, "/api/v1/tree/nodes/" + gid + "/move", map[string]any{"side": "positive", "parent_id": 999}, http.StatusNotFound},
		{"invalid id", http.MethodPost, "/api/v1/tree/nodes/abc/toggle", nil, http.StatusBadRequest},
		{"bad delete mode", http.MethodDelete, "/api/v1/tree/nodes/" + gid + "?mode=some", nil, http.StatusBadRequest},
		{"bad side", http.MethodGet, "/api/v1/tree/compiled?side=sideways", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectStatus(t, s.do(t, tt.method, tt.path, tt.body), tt.want)
		})
	}
}

func TestTreeDeleteWorkflow(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.tree.ImportFile(context.Background(), "a", "cat, dog", "blurry"); err != nil {
		t.Fatal(err)
	}
	id := s.tree.Snapshot().Positive[0].ID

	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/tree/nodes/"+strconvID(id)+"/delete", nil), http.StatusOK)
	if s.tree.Snapshot().Deleting == nil {
		t.Fatal("expected pending deletion")
	}
	expectStatus(t, s.do(t, http.MethodDelete, "/api/v1/tree/delete", nil), http.StatusNoContent)
	if st := s.tree.Snapshot(); st.Deleting != nil || len(st.Positive) != 2 {
		t.Fatalf("cancel should keep the node: %+v", st)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/tree/nodes/"+strconvID(id)+"/delete", nil), http.StatusOK)
	rec := s.do(t, http.MethodPost, "/api/v1/tree/delete/confirm", map[string]string{"mode": "all"})
	expectStatus(t, rec, http.StatusOK)
	st := decode[service.TreeState](t, rec)
	if len(st.Positive) != 1 || st.Positive[0].Content != "dog" {
		t.Fatalf("unexpected tree after delete: %+v", st.Positive)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/tree/delete/confirm", map[string]string{"mode": "all"}), http.StatusBadRequest)
}

func TestTreeDuplicateOutsideParent(t *testing.T) {
	s := newTestServer(t)
	if _, err := s.tree.ImportFile(context.Background(), "a", "cat", "blurry"); err != nil {
		t.Fatal(err)
	}
	id := s.tree.Snapshot().Positive[0].ID

	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/tree/nodes/"+strconvID(id)+"/duplicate", map[string]string{"side": "negative"}), http.StatusNoContent)

	rec := s.do(t, http.MethodPost, "/api/v1/tree/nodes/"+strconvID(id)+"/duplicate", map[string]string{"side": "positive"})
	expectStatus(t, rec, http.StatusCreated)
	clone := decode[prompttree.Node](t, rec)
	if clone.ID == id || clone.Name != "" || clone.Memo != "" || clone.Content != "cat" {
		t.Fatalf("unexpected clone: %+v", clone)
	}
}

func TestTreeSaveFailure(t *testing.T) {
	root := t.TempDir()
	files := failingStore{yamlfs.New(filepath.Join(root, "config.json"), filepath.Join(root, "psm_data"))}
	tree := service.NewTreeStore(files)
	if err := tree.SelectFile(context.Background(), "a.yaml"); err != nil {
		t.Fatal(err)
	}
	r := chi.NewRouter()
	cfhttp.MountRoutes(r, &cfhttp.Handlers{Tree: tree, Files: files})

	add := httptest.NewRecorder()
	r.ServeHTTP(add, httptest.NewRequest(http.MethodPost, "/api/v1/tree/nodes", bytes.NewBufferString(`{"side":"positive"}`)))
	expectStatus(t, add, http.StatusCreated)
	n := decode[prompttree.Node](t, add)
	n.Content = "cat"
	body, _ := json.Marshal(n)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/v1/tree/edit", bytes.NewReader(body)))
	expectStatus(t, rec, http.StatusBadGateway)

	if st := tree.Snapshot(); st.Editing == nil || st.Positive[0].Content != "cat" {
		t.Fatalf("change should be kept in memory with the edit open: %+v", st)
	}
}

func TestApply(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/tree/apply", nil), http.StatusServiceUnavailable)

	applier := &recordingApplier{}
	s.tree.SetApplier(applier)
	if _, err := s.tree.ImportFile(context.Background(), "a", "cat, (dog)", "blurry,"); err != nil {
		t.Fatal(err)
	}
	rec := s.do(t, http.MethodPost, "/api/v1/tree/apply", nil)
	expectStatus(t, rec, http.StatusOK)
	p := decode[generation.Prompt](t, rec)
	want := generation.Prompt{File: "a.yaml", Positive: `cat, \(dog\)`, Negative: "blurry"}
	if p != want || len(applier.got) != 1 || applier.got[0] != want {
		t.Fatalf("unexpected applied prompt %+v (recorded %+v)", p, applier.got)
	}
}

func TestFileSession(t *testing.T) {
	s := newTestServer(t)
	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/files/select", map[string]string{}), http.StatusBadRequest)
	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/files/rename", map[string]string{"name": "x"}), http.StatusBadRequest)

	rec := s.do(t, http.MethodPost, "/api/v1/files/import", map[string]string{"name": "imported", "positive": "a, b", "negative": "c"})
	expectStatus(t, rec, http.StatusCreated)
	if got := decode[map[string]string](t, rec)["file"]; got != "imported.yaml" {
		t.Fatalf("unexpected file %q", got)
	}

	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/files/duplicate", map[string]string{"name": "copy"}), http.StatusCreated)
	expectStatus(t, s.do(t, http.MethodPost, "/api/v1/files/rename", map[string]string{"name": "renamed"}), http.StatusOK)

	rec = s.do(t, http.MethodGet, "/api/v1/files", nil)
	listing := decode[struct {
		Files    []string `json:"files"`
		Selected string   `json:"selected"`
	}](t, rec)
	if len(listing.Files) != 2 || listing.Selected != "renamed.yaml" {
		t.Fatalf("unexpected listing: %+v", listing)
	}

	expectStatus(t, s.do(t, http.MethodDelete, "/api/v1/files/current", nil), http.StatusNoContent)
	if s.tree.SelectedFile() != "" {
		t.Fatal("delete should clear the selection")
	}
}

func TestUpdateConfig(t *testing.T) {
	s := newTestServer(t)
	var devMode []bool
	s.tree.SetConfigHook(func(_ string, on bool) { devMode = append(devMode, on) })
	dir := t.TempDir()

	expectStatus(t, s.do(t, http.MethodPut, "/api/v1/config", map[string]any{"save_dir": ""}), http.StatusBadRequest)

	rec := s.do(t, http.MethodPut, "/api/v1/config", map[string]any{"save_dir": dir, "dev_mode": true})
	expectStatus(t, rec, http.StatusOK)
	cfg := decode[map[string]any](t, rec)
	if cfg["save_dir"] != dir || len(devMode) != 1 || !devMode[0] {
		t.Fatalf("unexpected config %v, dev mode calls %v", cfg, devMode)
	}
}

func strconvID(id prompttree.ID) string {
	return strconv.FormatInt(int64(id), 10)
}
