package parser

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/August26/proxychk/internal/model"
)

const (
	minPort = 1
	maxPort = 65535
)

// LoadFromFile reads a proxy list file and returns its entries as raw strings.
// Empty lines and lines starting with '#' are ignored. Lines are not parsed
// here so that malformed ones surface as per-entry errors in the batch output.
func LoadFromFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input file: %w", err)
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan input file: %w", err)
	}
	return out, nil
}

// ParseEndpoint parses a single proxy string.
//
// Supported:
//
//	host:port
//	host:port:user:pass
//
// The host is accepted as-is; hostnames and IPs both pass through.
func ParseEndpoint(raw string) (model.Endpoint, error) {
	line := strings.TrimSpace(raw)
	col := strings.Split(line, ":")

	switch len(col) {
	case 2, 4:
	default:
		return model.Endpoint{}, &FormatError{Input: line, Fields: len(col)}
	}

	port, err := strconv.Atoi(col[1])
	if err != nil {
		return model.Endpoint{}, &PortError{Port: col[1]}
	}
	if port < minPort || port > maxPort {
		return model.Endpoint{}, &RangeError{Port: port}
	}

	var creds *model.Credentials
	if len(col) == 4 {
		creds = &model.Credentials{User: col[2], Password: col[3]}
	}
	return model.NewEndpoint(col[0], port, creds), nil
}
