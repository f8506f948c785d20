package types

import (
	"fmt"
	"strings"
)

// Source identifies a supported review platform
type Source string

const (
	SourceG2         Source = "g2"
	SourceCapterra   Source = "capterra"
	SourceTrustpilot Source = "trustpilot"
)

// Sources lists every supported platform in CLI order
var Sources = []Source{SourceG2, SourceCapterra, SourceTrustpilot}

// DisplayName returns the platform name as written into records
func (s Source) DisplayName() string {
	switch s {
	case SourceG2:
		return "G2"
	case SourceCapterra:
		return "Capterra"
	case SourceTrustpilot:
		return "Trustpilot"
	}
	return string(s)
}

// ParseSource validates a caller-supplied source name
func ParseSource(name string) (Source, error) {
	candidate := Source(strings.ToLower(strings.TrimSpace(name)))
	for _, s := range Sources {
		if s == candidate {
			return s, nil
		}
	}
	return "", &InputError{Field: "source", Msg: fmt.Sprintf("unsupported source %q, choose g2, capterra or trustpilot", name)}
}

// ReviewRecord represents one extracted review
type ReviewRecord struct {
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Date         Date     `json:"date"`
	ReviewerName string   `json:"reviewer_name"`
	Rating       *float64 `json:"rating"`
	Source       string   `json:"source"`

	*TrustpilotDetails
}

// TrustpilotDetails holds the fields only Trustpilot cards carry
type TrustpilotDetails struct {
	Country              string `json:"country"`
	ReviewerTotalReviews string `json:"reviewer_total_reviews"`
	ExperienceDate       string `json:"experience_date"`
	IsUnprompted         bool   `json:"is_unprompted"`
}

// Request describes one scrape run
type Request struct {
	Company string
	Source  Source
	Range   DateRange
	Proxies []ProxyEndpoint
}

// NewRequest validates raw caller input before any network activity
func NewRequest(company, start, end, source string, proxies []ProxyEndpoint) (Request, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return Request{}, &InputError{Field: "company", Msg: "company is required"}
	}
	src, err := ParseSource(source)
	if err != nil {
		return Request{}, err
	}
	dr, err := NewDateRange(start, end)
	if err != nil {
		return Request{}, err
	}
	return Request{Company: company, Source: src, Range: dr, Proxies: proxies}, nil
}

// ProxyEndpoint is a scheme://host:port proxy address
type ProxyEndpoint string

// NormalizeProxy trims an endpoint and defaults the scheme to http
func NormalizeProxy(raw string) ProxyEndpoint {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	return ProxyEndpoint(raw)
}

// StopReason explains why pagination ended
type StopReason string

const (
	StopNonOKStatus    StopReason = "non_ok_status"
	StopBlocked        StopReason = "blocked"
	StopEmptyPage      StopReason = "empty_page"
	StopPageLimit      StopReason = "page_limit"
	StopTransportError StopReason = "transport_error"
)

// RunResult is what one scrape run produced
type RunResult struct {
	Company    string         `json:"company"`
	Source     Source         `json:"source"`
	Records    []ReviewRecord `json:"records"`
	Pages      int            `json:"pages"`
	StopReason StopReason     `json:"stop_reason"`
	StopPage   int            `json:"stop_page"`
	Skips      map[string]int `json:"skips,omitempty"`
	OutputPath string         `json:"output_path,omitempty"`
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}
