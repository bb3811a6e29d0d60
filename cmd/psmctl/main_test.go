package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Strob0t/PromptStruct/internal/domain/prompttree"
)

// runCLI executes psmctl against a save directory in t's temp dir.
func runCLI(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{
		"--dir", filepath.Join(root, "psm_data"),
		"--config", filepath.Join(root, "config.json"),
	}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestImportCompileShow(t *testing.T) {
	root := t.TempDir()

	out, err := runCLI(t, root, "import", "portrait", "--positive", "masterpiece, red hair,", "--negative", "lowres")
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "imported portrait.yaml: 2 positive, 1 negative") {
		t.Fatalf("unexpected import output: %q", out)
	}

	out, err = runCLI(t, root, "files")
	if err != nil || strings.TrimSpace(out) != "portrait.yaml" {
		t.Fatalf("files: %q %v", out, err)
	}

	out, err = runCLI(t, root, "compile", "portrait", "--side", "positive")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if strings.TrimSpace(out) != "masterpiece, red hair" {
		t.Fatalf("unexpected compile output: %q", out)
	}

	out, err = runCLI(t, root, "show", "portrait.yaml")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"[positive]", "[x] #", "masterpiece", "[negative]", "lowres"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q:\n%s", want, out)
		}
	}
}

func TestImportRefusesOverwrite(t *testing.T) {
	root := t.TempDir()
	if _, err := runCLI(t, root, "import", "a", "--positive", "x"); err != nil {
		t.Fatal(err)
	}
	if _, err := runCLI(t, root, "import", "a", "--positive", "y"); err == nil {
		t.Fatal("expected error for existing file")
	}
	if _, err := runCLI(t, root, "import", "a", "--positive", "y", "--force"); err != nil {
		t.Fatalf("forced import: %v", err)
	}
	out, _ := runCLI(t, root, "compile", "a", "--side", "positive")
	if strings.TrimSpace(out) != "y" {
		t.Fatalf("expected overwritten file, got %q", out)
	}
}

func TestRemoveMissingFile(t *testing.T) {
	if _, err := runCLI(t, t.TempDir(), "rm", "nope"); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigSetAndGet(t *testing.T) {
	root := t.TempDir()
	other := filepath.Join(root, "elsewhere")

	if _, err := runCLI(t, root, "config", "set"); err == nil {
		t.Fatal("expected error without flags")
	}
	if _, err := runCLI(t, root, "config", "set", "--save-dir", other, "--dev-mode", "true"); err != nil {
		t.Fatalf("set: %v", err)
	}
	out, err := runCLI(t, root, "config", "get")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	for _, want := range []string{"save_dir:      " + other, "is_configured: true", "dev_mode:      true"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}
}

func TestInvalidSide(t *testing.T) {
	root := t.TempDir()
	if _, err := runCLI(t, root, "compile", "a", "--side", "both"); err == nil {
		t.Fatal("expected error for invalid side")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		node prompttree.Node
		want string
	}{
		{"leaf", prompttree.Node{ID: 3, Content: "red", Enabled: true, Weight: 1}, "[x] #3 red"},
		{"weighted disabled", prompttree.Node{ID: 4, Content: "blue", Weight: 0.8}, "[ ] #4 blue :0.8"},
		{"random group", prompttree.Node{ID: 2, Name: "Colors", Enabled: true, Weight: 1, IsGroup: true, IsRandom: true}, "[x] #2 Colors/ (random)"},
		{"memo", prompttree.Node{ID: 5, Content: "x", Enabled: true, Weight: 1, Memo: "note"}, "[x] #5 x  # note"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describe(&tt.node); got != tt.want {
				t.Fatalf("describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRendererCutsToWidth(t *testing.T) {
	var buf bytes.Buffer
	r := &renderer{w: &buf, width: 8}
	r.line("abcdefghijkl")
	if got := strings.TrimSpace(buf.String()); got != "abcdefg…" {
		t.Fatalf("got %q", got)
	}
}
