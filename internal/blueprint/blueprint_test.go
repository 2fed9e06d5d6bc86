package blueprint

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func write(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bp.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoadStringCommand(t *testing.T) {
	bp, err := Load(write(t, `
name: roms-marbl
command: ./roms "marbl input.in"
working_dir: roms_marbl_example
environment:
  OMP_NUM_THREADS: "4"
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := []string{"./roms", "marbl input.in"}
	if len(bp.Command) != len(want) {
		t.Fatalf("Command = %v, want %v", bp.Command, want)
	}
	for i := range want {
		if bp.Command[i] != want[i] {
			t.Fatalf("Command[%d] = %q, want %q", i, bp.Command[i], want[i])
		}
	}

	spec, err := bp.Spec()
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	if spec.Dir != "roms_marbl_example" {
		t.Fatalf("Dir = %q", spec.Dir)
	}
	if spec.Env["OMP_NUM_THREADS"] != "4" {
		t.Fatalf("Env = %v", spec.Env)
	}
	// Prefix falls back to the blueprint name.
	if spec.OutputPrefix != "roms-marbl" {
		t.Fatalf("OutputPrefix = %q, want blueprint name", spec.OutputPrefix)
	}
}

func TestLoadListCommand(t *testing.T) {
	bp, err := Load(write(t, `
name: listy
command: [sh, -c, "echo hi"]
output_prefix: custom
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(bp.Command) != 3 || bp.Command[2] != "echo hi" {
		t.Fatalf("Command = %v", bp.Command)
	}

	spec, err := bp.Spec()
	if err != nil {
		t.Fatalf("Spec: %v", err)
	}
	if spec.OutputPrefix != "custom" {
		t.Fatalf("OutputPrefix = %q, want custom", spec.OutputPrefix)
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	_, err := Load(write(t, `
name: typo
command: echo hi
working_dri: oops
`))
	if err == nil || !strings.Contains(err.Error(), "working_dri") {
		t.Fatalf("Load = %v, want unknown-field error naming working_dri", err)
	}
}

func TestLoadRejectsUnterminatedQuote(t *testing.T) {
	_, err := Load(write(t, `
name: broken
command: echo "oops
`))
	if err == nil {
		t.Fatalf("expected error for unterminated quote in command")
	}
}

func TestSpecRequiresCommand(t *testing.T) {
	bp, err := Load(write(t, `
name: empty
`))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := bp.Spec(); err == nil {
		t.Fatalf("expected error for blueprint without command")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing blueprint file")
	}
}
