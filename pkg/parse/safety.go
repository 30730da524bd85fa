package parse

import (
	"net/netip"
	"net/url"
	"strconv"
	"strings"
)

// Allowed URL schemes for crawl targets
var allowedSchemes = map[string]bool{
	"http":  true,
	"https": true,
}

// Host literals that always resolve to the local machine
var blockedHosts = map[string]bool{
	"localhost": true,
	"127.0.0.1": true,
	"0.0.0.0":   true,
	"::1":       true,
}

// Ports that never serve crawlable content (SSH, SMTP, DNS, SMB, IMAPS, POP3S, ...)
var blockedPorts = map[int]bool{
	22:  true,
	23:  true,
	25:  true,
	53:  true,
	135: true,
	139: true,
	445: true,
	993: true,
	995: true,
}

// ValidateCrawlURL reports whether rawURL is an acceptable crawl target.
// Any parse failure is treated as invalid (fail closed).
//
// This is a best-effort SSRF guard: it checks the literal host string, not the
// address the connection will actually reach after DNS resolution, so a
// DNS-rebinding attacker can bypass it. Callers needing stronger guarantees
// must re-validate the resolved IP at connection time.
func ValidateCrawlURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	if !allowedSchemes[parsed.Scheme] {
		return false
	}

	// Hostnames are case-insensitive; match the blocklist in lowercase.
	hostname := strings.ToLower(parsed.Hostname())
	if hostname == "" || blockedHosts[hostname] {
		return false
	}

	// IP literals inside private/loopback/link-local ranges
	if addr, err := netip.ParseAddr(hostname); err == nil {
		if addr.IsPrivate() || addr.IsLoopback() || addr.IsLinkLocalUnicast() || addr.IsUnspecified() {
			return false
		}
	}

	if portStr := parsed.Port(); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || blockedPorts[port] {
			return false
		}
	}

	return true
}
