package output

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/August26/proxychk/internal/model"
)

// writeMarkdown renders a summary table, a per-proxy table and the details
// of every working proxy.
func writeMarkdown(w io.Writer, entries []model.BatchEntry, stats model.BatchStats) error {
	md := markdown.NewMarkdown(w)

	md.H1("Proxy Check Report")
	md.PlainText("")

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Value"},
		Rows: [][]string{
			{"Total proxies", strconv.Itoa(stats.TotalProxies)},
			{"Unique proxies", strconv.Itoa(stats.UniqueProxies)},
			{"Working proxies", strconv.Itoa(stats.AliveProxies)},
			{"Success rate", fmt.Sprintf("%.1f%%", stats.SuccessRatePct)},
			{"Avg connect time", fmt.Sprintf("%.1f ms", stats.AvgConnectMs)},
			{"Batch time", fmt.Sprintf("%.2f s", float64(stats.TotalProcessingTimeMs)/1000.0)},
		},
	})
	md.PlainText("")

	switch {
	case stats.TotalProxies == 0:
		md.Note("No proxies were checked.")
	case stats.AliveProxies == 0:
		md.Warningf("None of the %d checked proxies is working.", stats.TotalProxies)
	default:
		md.Tip(fmt.Sprintf("%d of %d proxies are working.", stats.AliveProxies, stats.TotalProxies))
	}
	md.PlainText("")

	md.H2("Results")
	md.PlainText("")
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = markdownRow(e)
	}
	md.Table(markdown.TableSet{
		Header: []string{"Proxy", "Working", "HTTP", "HTTPS", "SOCKS4", "SOCKS5", "Status"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, e := range entries {
		if !e.Working() {
			continue
		}
		md.Details(e.Report.Endpoint.Redacted(), FormatEntry(e))
	}

	md.HorizontalRule()
	return md.Build()
}

func markdownRow(e model.BatchEntry) []string {
	proxy := "`" + DisplayInput(e) + "`"
	if e.Report == nil {
		return []string{proxy, "no", "-", "-", "-", "-", formatError(e)}
	}
	r := e.Report
	row := []string{proxy, boolToYN(r.OverallWorking)}
	for _, pr := range r.Protocols {
		row = append(row, pr.StatusText)
	}
	return append(row, string(e.Kind))
}
