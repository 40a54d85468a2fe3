package output

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/August26/proxychk/internal/checker"
	"github.com/August26/proxychk/internal/model"
	"github.com/August26/proxychk/internal/report"
)

func sampleEntries() []model.BatchEntry {
	var results [4]model.ProtocolResult
	for i, p := range model.AllProtocols {
		results[i] = model.ProtocolResult{Protocol: p, StatusText: "Failed", Source: model.SourceFallback}
	}
	results[0] = model.ProtocolResult{
		Protocol:   model.ProtocolHTTP,
		Working:    true,
		StatusText: "Working (0.42s)",
		DetectedIP: "198.51.100.9",
		Anonymity:  model.AnonymityElite,
		Source:     model.SourceFallback,
	}

	ep := model.NewEndpoint("203.0.113.5", 3128, &model.Credentials{User: "bob", Password: "hunter2"})
	r := report.Build(ep, model.SocketResult{Connected: true, Elapsed: 120 * time.Millisecond, Family: "tcp4"},
		results, "alice", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))

	return []model.BatchEntry{
		{Input: "203.0.113.5:3128:bob:hunter2", Kind: model.KindOK, Report: r},
		{
			Input: "192.0.2.1:80",
			Kind:  model.KindUnreachable,
			Err:   &checker.UnreachableError{Endpoint: "192.0.2.1:80", Code: 111},
		},
		{
			Input: "192.0.2.2:80:u:secret",
			Kind:  model.KindTimeout,
			Err:   fmt.Errorf("%w 192.0.2.2:80:u:***", checker.ErrBatchTimeout),
		},
		{Input: "nonsense", Kind: model.KindFormat, Err: errors.New("invalid proxy format \"nonsense\"")},
	}
}

func sampleStats() model.BatchStats {
	return model.BatchStats{
		TotalProxies:      4,
		UniqueProxies:     4,
		AliveProxies:      1,
		Errors:            map[model.EntryKind]int{model.KindUnreachable: 1, model.KindTimeout: 1, model.KindFormat: 1},
		WorkingByProtocol: map[model.Protocol]int{model.ProtocolHTTP: 1},
		SuccessRatePct:    25,
	}
}

func TestFormatEntryWorking(t *testing.T) {
	t.Parallel()

	msg := FormatEntry(sampleEntries()[0])

	for _, want := range []string{
		"Proxy 203.0.113.5:3128:bob:*** is working! (HTTP)",
		"Connection time: 0.120 seconds",
		"HTTP: Working (0.42s)",
		"  Anonymity: Elite",
		"  Detected IP: 198.51.100.9",
		"SOCKS5: Failed",
		"Checked by: @alice",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("message missing %q:\n%s", want, msg)
		}
	}
	if strings.Contains(msg, "hunter2") {
		t.Error("message leaks the proxy password")
	}
}

func TestFormatEntryErrors(t *testing.T) {
	t.Parallel()

	entries := sampleEntries()
	tests := []struct {
		entry model.BatchEntry
		want  string
	}{
		{entries[1], "Proxy 192.0.2.1:80 is not responding. Connection error (code: 111)"},
		{entries[2], "Timeout checking proxy 192.0.2.2:80:u:***"},
		{entries[3], "Invalid proxy format \"nonsense\""},
	}
	for _, tt := range tests {
		if got := FormatEntry(tt.entry); got != tt.want {
			t.Errorf("got %q, want %q", got, tt.want)
		}
	}
}

func TestFormatEntryIsStable(t *testing.T) {
	t.Parallel()

	e := sampleEntries()[0]
	if FormatEntry(e) != FormatEntry(e) {
		t.Error("formatting the same entry twice gave different output")
	}
}

func TestPrintResultsTable(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintResultsTable(&buf, sampleEntries())
	out := buf.String()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d lines:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "PROXY") {
		t.Errorf("unexpected header %q", lines[0])
	}
	if strings.Contains(out, "hunter2") || strings.Contains(out, "secret") {
		t.Error("table leaks a password")
	}
	if !strings.Contains(lines[1], "198.51.100.9") || !strings.Contains(lines[1], "Elite") {
		t.Errorf("working row lacks enrichment: %q", lines[1])
	}
}

func TestPrintSummary(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	PrintSummary(&buf, sampleStats())
	out := buf.String()

	for _, want := range []string{"Total proxies:            4", "Working proxies:          1", "Errors (timeout):", "Success rate:             25.0%"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, "json", sampleEntries(), sampleStats()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Error("json leaks the proxy password")
	}

	var doc struct {
		Results []struct {
			Proxy  string `json:"proxy"`
			Kind   string `json:"kind"`
			Error  string `json:"error"`
			Report *struct {
				Proxy            string   `json:"proxy"`
				Working          bool     `json:"working"`
				WorkingProtocols []string `json:"working_protocols"`
			} `json:"report"`
		} `json:"results"`
		Summary struct {
			TotalProxies int `json:"total_proxies"`
		} `json:"summary"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Results) != 4 || doc.Summary.TotalProxies != 4 {
		t.Fatalf("unexpected document: %+v", doc)
	}
	first := doc.Results[0]
	if first.Report == nil || !first.Report.Working || first.Report.Proxy != "203.0.113.5:3128:bob:***" {
		t.Errorf("unexpected first result: %+v", first)
	}
	if doc.Results[1].Kind != "unreachable" || doc.Results[1].Error == "" {
		t.Errorf("unexpected second result: %+v", doc.Results[1])
	}
}

func TestWriteYAML(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, "yaml", sampleEntries(), sampleStats()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v", err)
	}
	results, ok := doc["results"].([]any)
	if !ok || len(results) != 4 {
		t.Fatalf("unexpected results: %v", doc["results"])
	}
	if strings.Contains(buf.String(), "hunter2") {
		t.Error("yaml leaks the proxy password")
	}
}

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, "csv", sampleEntries(), sampleStats()); err != nil {
		t.Fatalf("Write: %v", err)
	}

	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 5 {
		t.Fatalf("expected 5 rows, got %d", len(rows))
	}
	if rows[1][0] != "203.0.113.5:3128:bob:***" || rows[1][2] != "true" || rows[1][3] != "HTTP" {
		t.Errorf("unexpected working row: %v", rows[1])
	}
	if rows[2][1] != "unreachable" || rows[2][12] == "" {
		t.Errorf("unexpected error row: %v", rows[2])
	}
	if rows[3][0] != "192.0.2.2:80:u:***" {
		t.Errorf("timeout row proxy = %q", rows[3][0])
	}
}

func TestWriteMarkdown(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, "markdown", sampleEntries(), sampleStats()); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"# Proxy Check Report", "## Summary", "## Results", "203.0.113.5:3128:bob:***"} {
		if !strings.Contains(out, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(out, "hunter2") {
		t.Error("markdown leaks the proxy password")
	}
}

func TestWriteUnsupportedFormat(t *testing.T) {
	t.Parallel()

	if err := Write(&bytes.Buffer{}, "xml", nil, model.BatchStats{}); err == nil {
		t.Error("expected an error for an unsupported format")
	}
}

func TestWriteFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "results.json")
	if err := WriteFile(path, "json", sampleEntries(), sampleStats()); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if !json.Valid(data) {
		t.Error("file does not contain valid JSON")
	}
}
