package completions

import (
	"os"
	"path/filepath"
	"testing"
)

func TestContainsSentinelMissingFile(t *testing.T) {
	dir := t.TempDir()
	exists, err := containsSentinel(filepath.Join(dir, "nope"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if exists {
		t.Errorf("expected false for missing file")
	}
}

func TestAppendLineThenContainsSentinel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "rc")

	if err := appendLine(path, "eval foo  # "+Sentinel); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	exists, err := containsSentinel(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !exists {
		t.Errorf("expected sentinel to be found after append")
	}
}

func TestInferShellMissingEnv(t *testing.T) {
	t.Setenv("SHELL", "")
	if _, err := inferShell(); err == nil {
		t.Errorf("expected error when SHELL is unset")
	}
}

func TestInferShellFromEnv(t *testing.T) {
	t.Setenv("SHELL", "/usr/bin/zsh")
	got, err := inferShell()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "zsh" {
		t.Errorf("got %q, want zsh", got)
	}
}

func TestInstallUnsupportedShell(t *testing.T) {
	if _, _, err := Install("powershell"); err == nil {
		t.Errorf("expected error for unsupported shell")
	}
}

func TestInstallIdempotent(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	installed, shellName, err := Install("bash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !installed || shellName != "bash" {
		t.Fatalf("expected first install to report installed=true, got %v/%s", installed, shellName)
	}

	installed, _, err = Install("bash")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if installed {
		t.Errorf("expected second install to be a no-op")
	}

	data, err := os.ReadFile(filepath.Join(home, ".bashrc"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n := countOccurrences(string(data), Sentinel); n != 1 {
		t.Errorf("expected exactly 1 sentinel line, got %d", n)
	}
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
			i += len(substr) - 1
		}
	}
	return count
}
