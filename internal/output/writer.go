// Package output renders batch results for terminals and files.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/August26/proxychk/internal/model"
)

// PrintResultsTable prints a human-readable table of per-proxy results.
func PrintResultsTable(w io.Writer, entries []model.BatchEntry) {
	tw := tabwriter.NewWriter(w, 2, 4, 2, ' ', 0)

	// header
	fmt.Fprintln(tw, "PROXY\tWORKING\tCONNECT(ms)\tHTTP\tHTTPS\tSOCKS4\tSOCKS5\tANONYMITY\tIP\tSTATUS")

	for _, e := range entries {
		if e.Report == nil {
			fmt.Fprintf(tw, "%s\tno\t-\t-\t-\t-\t-\t-\t-\t%s\n", DisplayInput(e), e.Kind)
			continue
		}
		r := e.Report
		anon, ip := enrichment(r)

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.Endpoint.Redacted(),
			boolToYN(r.OverallWorking),
			connectMs(r),
			boolToYN(r.Protocols[0].Working),
			boolToYN(r.Protocols[1].Working),
			boolToYN(r.Protocols[2].Working),
			boolToYN(r.Protocols[3].Working),
			dashIfEmpty(string(anon)),
			dashIfEmpty(ip),
			e.Kind,
		)
	}

	tw.Flush()
}

// PrintSummary prints the aggregated batch stats.
func PrintSummary(w io.Writer, stats model.BatchStats) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Summary:")
	fmt.Fprintf(w, "  Total proxies:            %d\n", stats.TotalProxies)
	fmt.Fprintf(w, "  Unique proxies:           %d\n", stats.UniqueProxies)
	fmt.Fprintf(w, "  Working proxies:          %d\n", stats.AliveProxies)
	for _, p := range model.AllProtocols {
		fmt.Fprintf(w, "    %-24s%d\n", string(p)+":", stats.WorkingByProtocol[p])
	}
	for _, k := range errorKinds {
		if n := stats.Errors[k]; n > 0 {
			fmt.Fprintf(w, "  %-26s%d\n", "Errors ("+string(k)+"):", n)
		}
	}
	fmt.Fprintf(w, "  Avg connect time:         %.1f ms\n", stats.AvgConnectMs)
	fmt.Fprintf(w, "  Success rate:             %.1f%%\n", stats.SuccessRatePct)
	fmt.Fprintf(w, "  Batch time:               %.2f s\n", float64(stats.TotalProcessingTimeMs)/1000.0)
}

var errorKinds = []model.EntryKind{
	model.KindFormat,
	model.KindRange,
	model.KindUnreachable,
	model.KindTimeout,
	model.KindPipeline,
}

// PrintMessages prints the plain-text message of every entry, separated by
// blank lines.
func PrintMessages(w io.Writer, entries []model.BatchEntry) {
	for i, e := range entries {
		if i > 0 {
			fmt.Fprintln(w)
		}
		fmt.Fprintln(w, FormatEntry(e))
	}
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func boolToYN(b bool) string {
	if b {
		return "y"
	}
	return "n"
}

func connectMs(r *model.CheckReport) string {
	if r.Socket.Elapsed <= 0 {
		return "-"
	}
	return strconv.FormatInt(r.Socket.Elapsed.Milliseconds(), 10)
}

// enrichment returns the first anonymity level and detected IP reported by
// a working protocol.
func enrichment(r *model.CheckReport) (model.Anonymity, string) {
	var anon model.Anonymity
	var ip string
	for _, pr := range r.Protocols {
		if !pr.Working {
			continue
		}
		if anon == model.AnonymityUnknown {
			anon = pr.Anonymity
		}
		if ip == "" {
			ip = pr.DetectedIP
		}
	}
	return anon, ip
}

// WriteFile writes all entries + summary stats to a file in the given format.
func WriteFile(path string, format string, entries []model.BatchEntry, stats model.BatchStats) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return Write(f, format, entries, stats)
}

// Write renders entries and stats to w. text and table are the terminal
// formats; json, yaml, csv and markdown are meant for files.
func Write(w io.Writer, format string, entries []model.BatchEntry, stats model.BatchStats) error {
	switch format {
	case "text":
		PrintMessages(w, entries)
		PrintSummary(w, stats)
		return nil
	case "table":
		PrintResultsTable(w, entries)
		PrintSummary(w, stats)
		return nil
	case "json":
		return writeJSON(w, entries, stats)
	case "yaml":
		return writeYAML(w, entries, stats)
	case "csv":
		return writeCSV(w, entries)
	case "markdown":
		return writeMarkdown(w, entries, stats)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// entryRecord is the serialized form of a batch entry.
type entryRecord struct {
	Proxy  string             `json:"proxy" yaml:"proxy"`
	Kind   model.EntryKind    `json:"kind" yaml:"kind"`
	Error  string             `json:"error,omitempty" yaml:"error,omitempty"`
	Report *model.CheckReport `json:"report,omitempty" yaml:"report,omitempty"`
}

type document struct {
	Results []entryRecord    `json:"results" yaml:"results"`
	Summary model.BatchStats `json:"summary" yaml:"summary"`
}

func newDocument(entries []model.BatchEntry, stats model.BatchStats) document {
	records := make([]entryRecord, len(entries))
	for i, e := range entries {
		records[i] = entryRecord{Proxy: DisplayInput(e), Kind: e.Kind, Report: e.Report}
		if e.Err != nil {
			records[i].Error = formatError(e)
		}
	}
	return document{Results: records, Summary: stats}
}

// writeJSON writes an object with "results" and "summary".
func writeJSON(w io.Writer, entries []model.BatchEntry, stats model.BatchStats) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(newDocument(entries, stats))
}

func writeYAML(w io.Writer, entries []model.BatchEntry, stats model.BatchStats) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(newDocument(entries, stats)); err != nil {
		return err
	}
	return enc.Close()
}

// writeCSV writes one row per entry; the summary is not included.
func writeCSV(w io.Writer, entries []model.BatchEntry) error {
	cw := csv.NewWriter(w)

	// header
	header := []string{
		"proxy",
		"kind",
		"working",
		"working_protocols",
		"connect_ms",
		"http",
		"https",
		"socks4",
		"socks5",
		"source",
		"anonymity",
		"detected_ip",
		"error",
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, e := range entries {
		row := []string{DisplayInput(e), string(e.Kind), "false", "", "", "", "", "", "", "", "", "", ""}
		if r := e.Report; r != nil {
			anon, ip := enrichment(r)
			row[2] = strconv.FormatBool(r.OverallWorking)
			row[3] = joinProtocols(r.WorkingProtocols)
			if r.Socket.Elapsed > 0 {
				row[4] = strconv.FormatInt(r.Socket.Elapsed.Milliseconds(), 10)
			}
			for i, pr := range r.Protocols {
				row[5+i] = pr.StatusText
			}
			row[9] = string(r.Protocols[0].Source)
			row[10] = string(anon)
			row[11] = ip
		}
		if e.Err != nil {
			row[12] = formatError(e)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
