package workflow

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func rewriteEventLog(t *testing.T, projectDir string, events []Event) {
	t.Helper()
	var buf []byte
	for _, e := range events {
		line, err := json.Marshal(e)
		if err != nil {
			t.Fatalf("marshal event: %v", err)
		}
		buf = append(buf, line...)
		buf = append(buf, '\n')
	}
	if err := os.WriteFile(filepath.Join(projectDir, "events.ndjson"), buf, 0o644); err != nil {
		t.Fatalf("rewrite event log: %v", err)
	}
}

func writeFile(t *testing.T, path, content string) error {
	t.Helper()
	return os.WriteFile(path, []byte(content), 0o644)
}

func setModTime(path string, mtime time.Time) error {
	return os.Chtimes(path, mtime, mtime)
}
