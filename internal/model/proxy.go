package model

import (
	"net"
	"strconv"
	"time"
)

// Credentials are the optional user/password pair of a proxy endpoint.
type Credentials struct {
	User     string
	Password string
}

// Endpoint is a normalized proxy endpoint parsed from lines such as:
//
//	host:port
//	host:port:username:password
//
// Endpoints are values; fields are only set by NewEndpoint.
type Endpoint struct {
	host  string
	port  int
	creds *Credentials
}

// NewEndpoint builds an Endpoint. It does not validate anything, the
// parser package owns validation.
func NewEndpoint(host string, port int, creds *Credentials) Endpoint {
	if creds != nil {
		c := *creds
		creds = &c
	}
	return Endpoint{host: host, port: port, creds: creds}
}

func (e Endpoint) Host() string { return e.host }
func (e Endpoint) Port() int    { return e.port }

// Credentials returns a copy of the credentials and whether they are set.
func (e Endpoint) Credentials() (Credentials, bool) {
	if e.creds == nil {
		return Credentials{}, false
	}
	return *e.creds, true
}

// Address returns host:port suitable for net.Dial.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// String returns the normalized 2- or 4-field form.
func (e Endpoint) String() string {
	s := e.host + ":" + strconv.Itoa(e.port)
	if e.creds != nil {
		s += ":" + e.creds.User + ":" + e.creds.Password
	}
	return s
}

// Redacted is String with the password masked, for logs and reports.
func (e Endpoint) Redacted() string {
	s := e.host + ":" + strconv.Itoa(e.port)
	if e.creds != nil {
		s += ":" + e.creds.User + ":***"
	}
	return s
}

// Equal compares endpoints by their normalized form.
func (e Endpoint) Equal(o Endpoint) bool {
	return e.String() == o.String()
}

// MarshalText renders the redacted form so encoders never leak passwords.
func (e Endpoint) MarshalText() ([]byte, error) {
	return []byte(e.Redacted()), nil
}

// Protocol is a proxy protocol the checker can validate.
type Protocol string

const (
	ProtocolHTTP   Protocol = "HTTP"
	ProtocolHTTPS  Protocol = "HTTPS"
	ProtocolSOCKS4 Protocol = "SOCKS4"
	ProtocolSOCKS5 Protocol = "SOCKS5"
)

// AllProtocols is the fixed order of protocol results in a report.
var AllProtocols = [4]Protocol{ProtocolHTTP, ProtocolHTTPS, ProtocolSOCKS4, ProtocolSOCKS5}

// Anonymity is inferred from forwarding headers seen by the target.
// The zero value means it was not determined.
type Anonymity string

const (
	AnonymityUnknown     Anonymity = ""
	AnonymityElite       Anonymity = "Elite"
	AnonymityAnonymous   Anonymity = "Anonymous"
	AnonymityTransparent Anonymity = "Transparent"
)

// Level returns the conventional proxy anonymity level (1 = best), 0 if unknown.
func (a Anonymity) Level() int {
	switch a {
	case AnonymityElite:
		return 1
	case AnonymityAnonymous:
		return 2
	case AnonymityTransparent:
		return 3
	default:
		return 0
	}
}

// ResultSource tells which validation strategy produced a ProtocolResult.
type ResultSource string

const (
	SourceExternal ResultSource = "external"
	SourceFallback ResultSource = "fallback"
)

// ProtocolResult is the verdict for one protocol of one endpoint.
type ProtocolResult struct {
	Protocol   Protocol      `json:"protocol" yaml:"protocol"`
	Working    bool          `json:"working" yaml:"working"`
	StatusText string        `json:"status" yaml:"status"` // "Working", "Timeout", "HTTP 503", ...
	Elapsed    time.Duration `json:"-" yaml:"-"`
	DetectedIP string        `json:"detected_ip,omitempty" yaml:"detected_ip,omitempty"`
	Anonymity  Anonymity     `json:"anonymity,omitempty" yaml:"anonymity,omitempty"`
	Source     ResultSource  `json:"source" yaml:"source"`
	Target     string        `json:"target,omitempty" yaml:"target,omitempty"` // fallback candidate URL
}

// ElapsedSeconds is Elapsed as float seconds.
func (r ProtocolResult) ElapsedSeconds() float64 { return r.Elapsed.Seconds() }

// SocketResult is the outcome of the raw TCP reachability probe.
type SocketResult struct {
	Connected bool          `json:"connected" yaml:"connected"`
	Elapsed   time.Duration `json:"-" yaml:"-"`
	ErrorCode int           `json:"error_code,omitempty" yaml:"error_code,omitempty"` // errno of the last attempt, 0 on success
	Family    string        `json:"family,omitempty" yaml:"family,omitempty"`         // tcp4 or tcp6
}

// ElapsedSeconds is Elapsed as float seconds.
func (r SocketResult) ElapsedSeconds() float64 { return r.Elapsed.Seconds() }

// CheckReport is the final result for a single endpoint. Build it with
// report.Build so WorkingProtocols and OverallWorking stay derived.
type CheckReport struct {
	Endpoint         Endpoint          `json:"proxy" yaml:"proxy"`
	Socket           SocketResult      `json:"socket" yaml:"socket"`
	Protocols        [4]ProtocolResult `json:"protocols" yaml:"protocols"`
	WorkingProtocols []Protocol        `json:"working_protocols" yaml:"working_protocols"`
	OverallWorking   bool              `json:"working" yaml:"working"`
	Requester        string            `json:"requester,omitempty" yaml:"requester,omitempty"`
	CheckedAt        time.Time         `json:"checked_at" yaml:"checked_at"`
}

// Result returns the result for p.
func (r *CheckReport) Result(p Protocol) (ProtocolResult, bool) {
	for _, pr := range r.Protocols {
		if pr.Protocol == p {
			return pr, true
		}
	}
	return ProtocolResult{}, false
}

// EntryKind classifies a batch entry.
type EntryKind string

const (
	KindOK          EntryKind = "ok"
	KindFormat      EntryKind = "format"
	KindRange       EntryKind = "range"
	KindUnreachable EntryKind = "unreachable"
	KindTimeout     EntryKind = "timeout"
	KindPipeline    EntryKind = "pipeline"
)

// BatchEntry is one element of a batch result. Exactly one of Report and
// Err is set; index i of a batch result matches index i of the input.
type BatchEntry struct {
	Input  string
	Kind   EntryKind
	Report *CheckReport
	Err    error
}

// Working reports whether the entry carries a working proxy.
func (e BatchEntry) Working() bool {
	return e.Report != nil && e.Report.OverallWorking
}

// BatchStats aggregates summary analytics for an entire run.
type BatchStats struct {
	TotalProxies          int               `json:"total_proxies" yaml:"total_proxies"`
	UniqueProxies         int               `json:"unique_proxies" yaml:"unique_proxies"`
	AliveProxies          int               `json:"alive_proxies" yaml:"alive_proxies"`
	Errors                map[EntryKind]int `json:"errors,omitempty" yaml:"errors,omitempty"`
	WorkingByProtocol     map[Protocol]int  `json:"working_by_protocol" yaml:"working_by_protocol"`
	AvgConnectMs          float64           `json:"avg_connect_ms" yaml:"avg_connect_ms"`
	TotalProcessingTimeMs int64             `json:"total_processing_time_ms" yaml:"total_processing_time_ms"`
	SuccessRatePct        float64           `json:"success_rate_pct" yaml:"success_rate_pct"`
}
