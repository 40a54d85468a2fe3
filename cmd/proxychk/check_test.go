package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/August26/proxychk/internal/config"
	"github.com/August26/proxychk/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewCheckCmd(t *testing.T) {
	t.Parallel()

	cmd := NewCheckCmd()
	if cmd.Use != "check [endpoint...]" {
		t.Errorf("unexpected use %q", cmd.Use)
	}

	flags := []struct {
		name      string
		shorthand string
		def       string
	}{
		{"list", "l", ""},
		{"requester", "r", defaultRequester},
		{"format", "f", config.DefaultFormat},
		{"output", "o", ""},
		{"concurrency", "n", "20"},
		{"batch-size", "b", "10"},
		{"timeout", "t", "18s"},
		{"socket-timeout", "", "8s"},
		{"api-url", "", config.DefaultValidationURL},
		{"api-key", "", ""},
		{"config", "c", ""},
	}
	for _, f := range flags {
		t.Run(f.name, func(t *testing.T) {
			t.Parallel()
			flag := cmd.Flags().Lookup(f.name)
			if flag == nil {
				t.Fatalf("expected %s flag", f.name)
			}
			if flag.Shorthand != f.shorthand {
				t.Errorf("shorthand = %q, want %q", flag.Shorthand, f.shorthand)
			}
			if flag.DefValue != f.def {
				t.Errorf("default = %q, want %q", flag.DefValue, f.def)
			}
		})
	}
}

func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("file values apply", func(t *testing.T) {
		t.Parallel()
		cmd := NewCheckCmd()
		path := writeConfig(t, "concurrency: 7\nformat: yaml\nvalidation:\n  key: from-file\n")
		if err := cmd.Flags().Parse([]string{"--config", path}); err != nil {
			t.Fatalf("parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Concurrency != 7 || cfg.Format != "yaml" || cfg.Validation.Key != "from-file" {
			t.Errorf("file values not applied: %+v", cfg)
		}
		if cfg.BatchSize != config.DefaultBatchSize {
			t.Errorf("expected default batch size, got %d", cfg.BatchSize)
		}
	})

	t.Run("flags override file", func(t *testing.T) {
		t.Parallel()
		cmd := NewCheckCmd()
		path := writeConfig(t, "concurrency: 7\nformat: yaml\n")
		err := cmd.Flags().Parse([]string{
			"--config", path,
			"--concurrency", "3",
			"--batch-size", "4",
			"--timeout", "5s",
			"--socket-timeout", "2s",
			"--format", "csv",
			"--api-url", "",
			"--api-key", "k",
		})
		if err != nil {
			t.Fatalf("parse flags: %v", err)
		}

		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if cfg.Concurrency != 3 || cfg.BatchSize != 4 {
			t.Errorf("sizes not overridden: %+v", cfg)
		}
		if cfg.RequestTimeout != 5*time.Second || cfg.SocketTimeout != 2*time.Second {
			t.Errorf("timeouts not overridden: %v %v", cfg.RequestTimeout, cfg.SocketTimeout)
		}
		if cfg.Format != "csv" {
			t.Errorf("format = %q, want csv", cfg.Format)
		}
		if cfg.Validation.URL != "" || cfg.Validation.Key != "k" {
			t.Errorf("validation not overridden: %+v", cfg.Validation)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		cmd := NewCheckCmd()
		missing := filepath.Join(t.TempDir(), "nope.yaml")
		if err := cmd.Flags().Parse([]string{"--config", missing}); err != nil {
			t.Fatalf("parse flags: %v", err)
		}
		if _, err := buildConfig(cmd); err == nil {
			t.Error("expected error for a missing explicit config file")
		}
	})
}

func TestCollectInputs(t *testing.T) {
	t.Parallel()

	t.Run("args then list", func(t *testing.T) {
		t.Parallel()
		list := filepath.Join(t.TempDir(), "proxies.txt")
		content := "# office\n198.51.100.1:8080\n\n198.51.100.2:1080:bob:pw\n"
		if err := os.WriteFile(list, []byte(content), 0o600); err != nil {
			t.Fatalf("write list: %v", err)
		}

		cmd := NewCheckCmd()
		if err := cmd.Flags().Parse([]string{"--list", list}); err != nil {
			t.Fatalf("parse flags: %v", err)
		}

		got, err := collectInputs(cmd, []string{"203.0.113.5:3128"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		want := []string{"203.0.113.5:3128", "198.51.100.1:8080", "198.51.100.2:1080:bob:pw"}
		if strings.Join(got, ",") != strings.Join(want, ",") {
			t.Errorf("inputs = %v, want %v", got, want)
		}
	})

	t.Run("nothing given", func(t *testing.T) {
		t.Parallel()
		_, err := collectInputs(NewCheckCmd(), nil)
		if !errors.Is(err, errNoInputs) {
			t.Errorf("expected errNoInputs, got %v", err)
		}
	})

	t.Run("unreadable list", func(t *testing.T) {
		t.Parallel()
		cmd := NewCheckCmd()
		if err := cmd.Flags().Parse([]string{"--list", filepath.Join(t.TempDir(), "missing.txt")}); err != nil {
			t.Fatalf("parse flags: %v", err)
		}
		if _, err := collectInputs(cmd, nil); err == nil {
			t.Error("expected error for a missing list file")
		}
	})
}

func TestFileFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path   string
		format string
		want   string
	}{
		{"out.json", "text", "json"},
		{"out.CSV", "table", "csv"},
		{"out.yml", "text", "yaml"},
		{"out.md", "text", "markdown"},
		{"out.txt", "text", "text"},
		{"out", "table", "json"},
		{"out.json", "csv", "csv"},
	}
	for _, tt := range tests {
		if got := fileFormat(tt.path, tt.format); got != tt.want {
			t.Errorf("fileFormat(%q, %q) = %q, want %q", tt.path, tt.format, got, tt.want)
		}
	}
}

// Malformed inputs never reach the network, so these runs are offline.
func offlineConfig(format string) *config.Config {
	cfg := config.NewConfig()
	cfg.Validation.URL = ""
	cfg.Format = format
	return cfg
}

func TestRunCheckWritesToStdout(t *testing.T) {
	t.Parallel()

	var out bytes.Buffer
	err := runCheck(context.Background(), offlineConfig("json"), discardLogger(), checkRun{
		inputs:    []string{"not-a-proxy", "203.0.113.5:70000"},
		requester: "tester",
		out:       &out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var doc struct {
		Results []struct {
			Proxy string          `json:"proxy"`
			Kind  model.EntryKind `json:"kind"`
			Error string          `json:"error"`
		} `json:"results"`
		Summary model.BatchStats `json:"summary"`
	}
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out.String())
	}
	if len(doc.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(doc.Results))
	}
	if doc.Results[0].Kind != model.KindFormat || doc.Results[1].Kind != model.KindRange {
		t.Errorf("kinds = %s, %s", doc.Results[0].Kind, doc.Results[1].Kind)
	}
	if doc.Summary.TotalProxies != 2 || doc.Summary.AliveProxies != 0 {
		t.Errorf("unexpected summary %+v", doc.Summary)
	}
}

func TestRunCheckWritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.csv")
	var out bytes.Buffer
	err := runCheck(context.Background(), offlineConfig("text"), discardLogger(), checkRun{
		inputs:     []string{"bad"},
		requester:  "tester",
		outputPath: path,
		out:        &out,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Errorf("expected header and one row, got %d lines", len(lines))
	}
	if !strings.Contains(out.String(), "Summary:") {
		t.Errorf("expected the summary on stdout, got %q", out.String())
	}
}

func TestRunCheckInvalidConfig(t *testing.T) {
	t.Parallel()

	cfg := offlineConfig("json")
	cfg.Concurrency = 0
	err := runCheck(context.Background(), cfg, discardLogger(), checkRun{
		inputs: []string{"bad"},
		out:    io.Discard,
	})
	if !errors.Is(err, config.ErrInvalidConcurrency) {
		t.Errorf("expected ErrInvalidConcurrency, got %v", err)
	}
}
