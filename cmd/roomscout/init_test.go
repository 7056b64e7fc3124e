package main

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/nao1215/roomscout/internal/config"
)

// TestNewInitCmd tests the init command creation.
func TestNewInitCmd(t *testing.T) {
	t.Parallel()

	cmd := NewInitCmd()

	if cmd.Use != "init" {
		t.Errorf("expected use 'init', got %q", cmd.Use)
	}

	flag := cmd.Flags().Lookup("output")
	if flag == nil {
		t.Fatal("expected output flag")
	}
	if flag.Shorthand != "o" || flag.DefValue != config.DefaultConfigFile {
		t.Errorf("unexpected output flag %q/%q", flag.Shorthand, flag.DefValue)
	}

	flag = cmd.Flags().Lookup("force")
	if flag == nil {
		t.Fatal("expected force flag")
	}
	if flag.Shorthand != "f" || flag.DefValue != "false" {
		t.Errorf("unexpected force flag %q/%q", flag.Shorthand, flag.DefValue)
	}
}

func runInit(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	cmd := NewInitCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

// TestRunInitCmd tests the init command execution.
func TestRunInitCmd(t *testing.T) {
	t.Parallel()

	t.Run("creates a file that loads as the defaults", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		out, err := runInit(t, "-o", outputPath)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(out, outputPath) {
			t.Errorf("expected the path in the output, got %q", out)
		}

		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		for _, key := range []string{"search:", "marketplace:", "extract:", "timing:", "rotation:"} {
			if !strings.Contains(string(content), key) {
				t.Errorf("expected the template to mention %q", key)
			}
		}

		rules, err := config.LoadConfigFile(outputPath)
		if err != nil {
			t.Fatalf("template does not load: %v", err)
		}
		if !reflect.DeepEqual(*rules, config.DefaultRules()) {
			t.Error("expected the commented template to load as the defaults")
		}
	})

	t.Run("refuses to overwrite without force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		_, err := runInit(t, "-o", outputPath)
		if err == nil || !strings.Contains(err.Error(), "already exists") {
			t.Fatalf("expected an already exists error, got %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(content) != "existing" {
			t.Error("expected the file to be untouched")
		}
	})

	t.Run("overwrites with force", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), config.DefaultConfigFile)
		if err := os.WriteFile(outputPath, []byte("existing"), 0600); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}

		if _, err := runInit(t, "-o", outputPath, "-f"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		content, err := os.ReadFile(outputPath)
		if err != nil {
			t.Fatalf("failed to read file: %v", err)
		}
		if string(content) == "existing" {
			t.Error("expected the file to be replaced")
		}
	})

	t.Run("creates parent directories", func(t *testing.T) {
		t.Parallel()

		outputPath := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
		if _, err := runInit(t, "-o", outputPath); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, err := os.Stat(outputPath); err != nil {
			t.Errorf("expected the file to exist: %v", err)
		}
	})
}
