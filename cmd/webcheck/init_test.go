package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"testing"

	"github.com/nao1215/webcheck/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "init" {
			t.Errorf("expected use 'init', got %q", cmd.Use)
		}
	})

	t.Run("has output flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("output")
		if flag == nil {
			t.Fatal("expected output flag")
		}
		if flag.Shorthand != "o" {
			t.Errorf("expected shorthand 'o', got %q", flag.Shorthand)
		}
		if flag.DefValue != config.DefaultConfigFile {
			t.Errorf("expected default %q, got %q", config.DefaultConfigFile, flag.DefValue)
		}
	})

	t.Run("has force flag", func(t *testing.T) {
		t.Parallel()
		flag := cmd.Flags().Lookup("force")
		if flag == nil {
			t.Fatal("expected force flag")
		}
		if flag.Shorthand != "f" {
			t.Errorf("expected shorthand 'f', got %q", flag.Shorthand)
		}
	})
}

// runInit executes the init command with args and returns its output.
func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates config file", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)

		out, err := runInit(t, "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, "Created configuration file") {
			t.Errorf("unexpected output %q", out)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if !strings.Contains(string(content), "reports:") {
			t.Error("expected config to contain 'reports:'")
		}
	})

	t.Run("fails if file exists without force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		_, err := runInit(t, "-o", outputPath)
		if err == nil {
			t.Fatal("expected error when file exists")
		}
		if !strings.Contains(err.Error(), "already exists") {
			t.Errorf("expected 'already exists' error, got %v", err)
		}
	})

	t.Run("overwrites file with force flag", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to create test file: %v", err)
		}

		if _, err := runInit(t, "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(content) == "existing" {
			t.Error("expected file to be overwritten")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "subdir", "nested", config.DefaultConfigFile)

		if _, err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(outputPath); err != nil {
			t.Errorf("expected config file in nested directory: %v", err)
		}
	})

	t.Run("file has correct permissions", func(t *testing.T) {
		t.Parallel()
		if runtime.GOOS == "windows" {
			t.Skip("skipping permission test on Windows")
		}

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if _, err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		info, err := os.Stat(outputPath)
		if err != nil {
			t.Fatalf("failed to stat file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("expected permissions 0600, got %o", perm)
		}
	})
}

// TestConfigTemplate checks that the template loads and keeps the defaults.
func TestConfigTemplate(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(path, configTemplate, 0600); err != nil {
		t.Fatalf("failed to write template: %v", err)
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}

	cfg := config.NewConfig()
	file.Apply(cfg)
	defaults := config.NewConfig()

	if cfg.RedirectDepth != defaults.RedirectDepth {
		t.Errorf("redirect depth %d, want %d", cfg.RedirectDepth, defaults.RedirectDepth)
	}
	if cfg.Timeout != defaults.Timeout {
		t.Errorf("timeout %s, want %s", cfg.Timeout, defaults.Timeout)
	}
	if cfg.OldAge != defaults.OldAge || cfg.NewAge != defaults.NewAge {
		t.Errorf("ages %s/%s, want %s/%s", cfg.OldAge, cfg.NewAge, defaults.OldAge, defaults.NewAge)
	}
	if strings.Join(cfg.Plugins, ",") != strings.Join(defaults.Plugins, ",") {
		t.Errorf("plugins %v, want %v", cfg.Plugins, defaults.Plugins)
	}
	if len(cfg.YankedURLs) != 1 || cfg.YankedURLs[0] != "^mailto:" {
		t.Errorf("unexpected yanked URLs %v", cfg.YankedURLs)
	}
}

// commentedExample matches the commented-out example lines of the template:
// a lower-case key or an indented value, but not the prose around them.
var commentedExample = regexp.MustCompile(`^# ([a-z_]+:|  )`)

// TestConfigTemplate_Examples checks that the commented-out examples still
// load and validate once uncommented.
func TestConfigTemplate_Examples(t *testing.T) {
	t.Parallel()

	var examples []string
	for _, line := range strings.Split(string(configTemplate), "\n") {
		if commentedExample.MatchString(line) {
			examples = append(examples, strings.TrimPrefix(line, "# "))
		}
	}
	if len(examples) == 0 {
		t.Fatal("template has no commented examples")
	}

	path := filepath.Join(t.TempDir(), config.DefaultConfigFile)
	if err := os.WriteFile(path, []byte(strings.Join(examples, "\n")+"\n"), 0600); err != nil {
		t.Fatalf("failed to write examples: %v", err)
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		t.Fatalf("examples do not load: %v\n%s", err, strings.Join(examples, "\n"))
	}

	cfg := config.NewConfig()
	file.Apply(cfg)
	cfg.OutputDir = t.TempDir()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("examples do not validate: %v", err)
	}

	if len(cfg.BaseURLs) != 1 || cfg.BaseURLs[0] != "https://example.com/" {
		t.Errorf("unexpected base URLs %v", cfg.BaseURLs)
	}
	if len(cfg.ExcludedURLs) != 1 || cfg.ExcludedURLs[0] != `^https?://example\.com/archive/` {
		t.Errorf("unexpected excluded URLs %v", cfg.ExcludedURLs)
	}
	if cfg.Proxies["ftp"] != "socks5://localhost:1080" {
		t.Errorf("unexpected proxies %v", cfg.Proxies)
	}
	if cfg.Headers["Authorization"] != "Bearer <token>" {
		t.Errorf("unexpected headers %v", cfg.Headers)
	}
	if !strings.HasPrefix(cfg.UserAgent, "webcheck/") {
		t.Errorf("unexpected user agent %q", cfg.UserAgent)
	}
}
