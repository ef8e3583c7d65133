package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteBytes(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())

	path, err := s.WriteBytes("report.json", []byte(`{"ok":4}`))
	if err != nil {
		t.Fatalf("WriteBytes() error = %v", err)
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}
	if string(content) != `{"ok":4}` {
		t.Errorf("Expected %q, got %q", `{"ok":4}`, string(content))
	}
}

func TestWriteBytes_CreatesDirectory(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s := NewStore(filepath.Join(dir, "runs"))

	if _, err := s.WriteBytes("study/nested/states.csv", []byte("job\n")); err != nil {
		t.Fatalf("WriteBytes() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "runs", "study", "nested", "states.csv")); err != nil {
		t.Errorf("Expected file to exist: %v", err)
	}
}

func TestWriteBytes_Replaces(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())

	for _, content := range []string{"10", "15"} {
		if _, err := s.WriteBytes("progress", []byte(content)); err != nil {
			t.Fatalf("WriteBytes() error = %v", err)
		}
	}

	path, _ := s.Path("progress")
	content, _ := os.ReadFile(path)
	if string(content) != "15" {
		t.Errorf("Expected latest content, got %q", string(content))
	}

	entries, _ := os.ReadDir(s.Dir())
	if len(entries) != 1 {
		t.Errorf("Expected no temp files left behind, got %d entries", len(entries))
	}
}

func TestWrite_RenderError(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())

	_, err := s.Write("report.html", func(w io.Writer) error {
		return fmt.Errorf("template failed")
	})
	if err == nil {
		t.Fatal("Expected error")
	}
	if _, statErr := os.Stat(filepath.Join(s.Dir(), "report.html")); !os.IsNotExist(statErr) {
		t.Error("Expected no file after a render error")
	}
}

func TestPath_Validation(t *testing.T) {
	t.Parallel()
	s := NewStore(t.TempDir())

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{"simple", "report.json", false},
		{"nested", "a/b/c.csv", false},
		{"empty", "", true},
		{"absolute", "/etc/passwd", true},
		{"traversal", "../outside", true},
		{"hidden traversal", "a/../../b", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Path(tt.path)
			if (err != nil) != tt.wantErr {
				t.Errorf("Path(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
		})
	}
}
