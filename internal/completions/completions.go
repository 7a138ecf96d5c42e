// Package completions installs a one-line shell-completion hook into a
// user's rc file, scanning for a sentinel comment so repeated installs are
// idempotent.
//
// Grounded on the original Python install_completions.py's
// scan-for-sentinel-then-append idiom: read the rc file looking for the
// sentinel substring, and append the shell's eval line only if absent.
package completions

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/ryancswallace/jobman/internal/ierrors"
	"github.com/ryancswallace/jobman/internal/jobmanerr"
)

// Sentinel marks a line this package wrote, so a second install is a no-op.
const Sentinel = "managed by jobman install-completions"

// shell describes one supported shell's rc path and completion hook line.
type shell struct {
	name       string
	configPath string
	script     string
}

func supportedShells() map[string]shell {
	home, _ := os.UserHomeDir()
	return map[string]shell{
		"bash": {
			name:       "bash",
			configPath: filepath.Join(home, ".bashrc"),
			script:     `eval "$(_JOBMAN_COMPLETE=bash_source jobman)"  # ` + Sentinel,
		},
		"zsh": {
			name:       "zsh",
			configPath: filepath.Join(home, ".zshrc"),
			script:     `eval "$(_JOBMAN_COMPLETE=zsh_source jobman)"  # ` + Sentinel,
		},
		"fish": {
			name:       "fish",
			configPath: filepath.Join(home, ".config", "fish", "completions", "jobman.fish"),
			script:     `_JOBMAN_COMPLETE=fish_source jobman | source  # ` + Sentinel,
		},
	}
}

// Install ensures shell completions are installed for shellName, inferring
// it from $SHELL when shellName is empty. It returns whether it needed to
// append anything (false if already installed) and the shell's display name.
func Install(shellName string) (installed bool, resolvedShell string, err error) {
	if shellName == "" {
		shellName, err = inferShell()
		if err != nil {
			return false, "", err
		}
	}

	sh, ok := supportedShells()[shellName]
	if !ok {
		return false, "", jobmanerr.New(jobmanerr.Unavailable, "completions are not supported for "+shellName+" shell")
	}

	exists, err := containsSentinel(sh.configPath)
	if err != nil {
		return false, "", jobmanerr.Wrap(jobmanerr.OS, err, "read "+sh.configPath)
	}
	if exists {
		return false, sh.name, nil
	}

	if err := appendLine(sh.configPath, sh.script); err != nil {
		return false, "", jobmanerr.Wrap(jobmanerr.OS, err, "write "+sh.configPath)
	}
	return true, sh.name, nil
}

func inferShell() (string, error) {
	shellVar := os.Getenv("SHELL")
	if shellVar == "" {
		return "", jobmanerr.New(jobmanerr.NotFound, "can't infer parent shell; specify the shell explicitly")
	}
	return filepath.Base(shellVar), nil
}

// containsSentinel reports whether path already contains Sentinel. A
// missing file counts as not-yet-installed rather than an error.
func containsSentinel(path string) (bool, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, ierrors.Wrap(err, "read rc file")
	}
	return strings.Contains(string(data), Sentinel), nil
}

// appendLine creates path's parent directories if needed and appends line
// followed by a newline.
func appendLine(path, line string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return ierrors.Wrap(err, "make rc directory")
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return ierrors.Wrap(err, "open rc file")
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return ierrors.Wrap(err, "append rc file")
	}
	return nil
}
