// Package safety validates target URLs before the engine accepts them.
// The policy check is pure and fast; the reachability probe does network
// I/O under its own timeout. Only explicit policy matches mark a URL
// unsafe — a failed probe degrades to an "unverifiable" pass, it is never
// conflated with an unsafe verdict.
package safety

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"shortlink/pkg/logging"
)

// Verdict is the outcome of a safety check.
type Verdict struct {
	Safe   bool   `json:"safe"`
	Reason string `json:"reason"`
}

// Checker is the pluggable pre-check invoked before a URL is accepted.
type Checker interface {
	Check(ctx context.Context, rawURL string) Verdict
}

var suspiciousSchemes = regexp.MustCompile(`(?i)(javascript|data|vbscript|file|ftp|mailto|tel|sms):`)

// Doubled .com domains are a common phishing shape, e.g. paypal.com.evil.com.
var phishingIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)paypal.*\.com.*\.com`),
	regexp.MustCompile(`(?i)google.*\.com.*\.com`),
	regexp.MustCompile(`(?i)facebook.*\.com.*\.com`),
	regexp.MustCompile(`(?i)amazon.*\.com.*\.com`),
	regexp.MustCompile(`(?i)bank.*\.com.*\.com`),
}

// PolicyChecker applies syntactic and heuristic rules. No I/O.
type PolicyChecker struct{}

func (PolicyChecker) Check(_ context.Context, rawURL string) Verdict {
	parsed, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return Verdict{Safe: false, Reason: "Invalid URL format"}
	}

	if suspiciousSchemes.MatchString(rawURL) {
		return Verdict{Safe: false, Reason: "Potentially unsafe URL scheme detected"}
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return Verdict{Safe: false, Reason: "Only http and https URLs are allowed"}
	}

	for _, pattern := range phishingIndicators {
		if pattern.MatchString(rawURL) {
			return Verdict{Safe: false, Reason: "Potential phishing URL detected"}
		}
	}

	// SSRF prevention: never shorten links into private address space.
	host := parsed.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		if ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return Verdict{Safe: false, Reason: "Private, loopback, or link-local addresses not allowed"}
		}
		if ip.IsMulticast() || ip.IsUnspecified() {
			return Verdict{Safe: false, Reason: "Multicast or unspecified address not allowed"}
		}
	} else {
		hostLower := strings.ToLower(host)
		if strings.Contains(hostLower, "localhost") || hostLower == "0.0.0.0" {
			return Verdict{Safe: false, Reason: "Localhost or zero address not allowed"}
		}
	}

	return Verdict{Safe: true, Reason: "URL appears safe"}
}

// ReachabilityChecker probes the target with a HEAD request. The probe is
// bounded by the client timeout and must not block create/update beyond it.
type ReachabilityChecker struct {
	client *http.Client
	logger *logging.Logger
}

const probeTimeout = 5 * time.Second

func NewReachabilityChecker(logger *logging.Logger) *ReachabilityChecker {
	return &ReachabilityChecker{
		client: &http.Client{Timeout: probeTimeout},
		logger: logger,
	}
}

func (c *ReachabilityChecker) Check(ctx context.Context, rawURL string) Verdict {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, nil)
	if err != nil {
		return Verdict{Safe: false, Reason: "Invalid URL format"}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		// A transport failure or timeout is not evidence the URL is
		// malicious; pass it through with an unverifiable label.
		c.logger.Debug(ctx, "reachability probe failed", "err", err)
		return Verdict{Safe: true, Reason: "URL could not be verified"}
	}
	resp.Body.Close()

	if resp.StatusCode >= 400 {
		return Verdict{Safe: false, Reason: "URL is not accessible"}
	}

	return Verdict{Safe: true, Reason: "URL appears safe"}
}

type multiChecker struct {
	checkers []Checker
}

// Compose chains checkers; the first unsafe verdict wins. When every
// checker passes, the last verdict is returned so labels like
// "URL could not be verified" survive composition.
func Compose(checkers ...Checker) Checker {
	return &multiChecker{checkers: checkers}
}

func (m *multiChecker) Check(ctx context.Context, rawURL string) Verdict {
	verdict := Verdict{Safe: true, Reason: "URL appears safe"}
	for _, c := range m.checkers {
		verdict = c.Check(ctx, rawURL)
		if !verdict.Safe {
			return verdict
		}
	}
	return verdict
}
