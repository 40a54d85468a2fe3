package output

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/August26/proxychk/internal/checker"
	"github.com/August26/proxychk/internal/model"
	"github.com/August26/proxychk/internal/parser"
)

const signatureRule = "──────────────────"

// FormatEntry renders one batch entry as the plain-text message shown to the
// requester. Passwords are never printed.
func FormatEntry(e model.BatchEntry) string {
	if e.Report == nil {
		return formatError(e)
	}
	r := e.Report
	proxy := r.Endpoint.Redacted()

	var b strings.Builder
	if r.OverallWorking {
		fmt.Fprintf(&b, "Proxy %s is working! (%s)\n", proxy, joinProtocols(r.WorkingProtocols))
	} else {
		fmt.Fprintf(&b, "Proxy %s is not working with any protocols\n", proxy)
	}
	b.WriteString("Proxy Check Results:\n")
	b.WriteString(proxy + "\n\n")
	fmt.Fprintf(&b, "Connection time: %.3f seconds\n\n", r.Socket.ElapsedSeconds())

	for _, pr := range r.Protocols {
		fmt.Fprintf(&b, "%s: %s\n", pr.Protocol, pr.StatusText)
		if pr.Working {
			if pr.Anonymity != model.AnonymityUnknown {
				fmt.Fprintf(&b, "  Anonymity: %s\n", pr.Anonymity)
			}
			if pr.DetectedIP != "" {
				fmt.Fprintf(&b, "  Detected IP: %s\n", pr.DetectedIP)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(signatureRule)
	if r.Requester != "" {
		fmt.Fprintf(&b, "\nChecked by: @%s", r.Requester)
	}
	return b.String()
}

func formatError(e model.BatchEntry) string {
	var ue *checker.UnreachableError
	switch {
	case errors.As(e.Err, &ue):
		return fmt.Sprintf("Proxy %s is not responding. Connection error (code: %d)", ue.Endpoint, ue.Code)
	case e.Err != nil:
		return capitalize(e.Err.Error())
	default:
		return fmt.Sprintf("Error checking proxy %s", DisplayInput(e))
	}
}

// DisplayInput is the entry's endpoint with any password masked.
func DisplayInput(e model.BatchEntry) string {
	if e.Report != nil {
		return e.Report.Endpoint.Redacted()
	}
	if ep, err := parser.ParseEndpoint(e.Input); err == nil {
		return ep.Redacted()
	}
	return strings.TrimSpace(e.Input)
}

func joinProtocols(ps []model.Protocol) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = string(p)
	}
	return strings.Join(names, ", ")
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
