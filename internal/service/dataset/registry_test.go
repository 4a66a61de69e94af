package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

func writeRegistryFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "datasets.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write registry file: %v", err)
	}
	return path
}

// ========== 注册表加载测试 ==========

func TestLoadRegistry(t *testing.T) {
	path := writeRegistryFile(t, `
datasets:
  - name: creditcard-fraud
    description: credit card fraud detection
    source: http
    identifier: https://example.com/creditcard.zip
    targetColumn: Class
  - name: german-credit
    description: german credit risk
    source: http
    identifier: https://example.com/german.csv
    targetColumn: Risk
    positiveLabel: bad
`)

	r, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry() error = %v", err)
	}

	entry, ok := r.Get("creditcard-fraud")
	if !ok {
		t.Fatal("creditcard-fraud not found")
	}
	if entry.TargetColumn != "Class" {
		t.Errorf("TargetColumn = %q, want Class", entry.TargetColumn)
	}

	entries := r.List()
	if len(entries) != 2 {
		t.Fatalf("List() len = %d, want 2", len(entries))
	}
	// 保持登记顺序
	if entries[0].Name != "creditcard-fraud" || entries[1].Name != "german-credit" {
		t.Errorf("List() order = %s, %s", entries[0].Name, entries[1].Name)
	}
	if entries[1].PositiveLabel != "bad" {
		t.Errorf("PositiveLabel = %q, want bad", entries[1].PositiveLabel)
	}
}

func TestLoadRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing name", "datasets:\n  - source: http\n    identifier: x\n"},
		{"duplicate name", "datasets:\n  - name: a\n  - name: a\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeRegistryFile(t, tt.content)
			if _, err := LoadRegistry(path); err == nil {
				t.Error("LoadRegistry() expected error, got nil")
			}
		})
	}
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	if _, err := LoadRegistry("/nonexistent/datasets.yaml"); err == nil {
		t.Error("LoadRegistry() expected error for missing file")
	}
}
