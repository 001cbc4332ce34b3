// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

// Package httperrors turns transport failures against a Salesforce instance
// into user-facing explanations.
package httperrors

import (
	stderrors "errors"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"

	"bulkctl/cli/internal/errors"

	"github.com/pterm/pterm"
)

// Category is the family of a network failure.
type Category int

const (
	Generic Category = iota
	Timeout
	DNS
	ConnectionRefused
	TLS
	Server
)

// Classify inspects err for the usual network failure causes.
func Classify(err error) Category {
	switch {
	case err == nil:
		return Generic
	case isServerError(err):
		return Server
	case isTimeoutError(err):
		return Timeout
	case isDNSError(err):
		return DNS
	case isConnectionRefusedError(err):
		return ConnectionRefused
	case isSSLError(err):
		return TLS
	}
	return Generic
}

// FormatNetworkError prints an explanation of err and returns it unchanged.
// context reads like "creating the job"; target is the URL that was called.
func FormatNetworkError(err error, context, target string) error {
	if err == nil {
		return nil
	}
	pterm.Print(Describe(err, context, target))
	return err
}

// Describe renders the explanation FormatNetworkError prints.
func Describe(err error, context, target string) string {
	host := ExtractHostFromURL(target)
	var b strings.Builder
	line := func(s string) { b.WriteString(s + "\n") }

	switch Classify(err) {
	case Timeout:
		line(fmt.Sprintf("⏱️  Connection timeout while %s", context))
		line("")
		line(host + " took too long to respond. This could mean:")
		line("  • Slow internet connection")
		line("  • The org is under heavy load")
		line("  • http.timeout in the config is too low for this payload")
	case DNS:
		line(fmt.Sprintf("🌐 Cannot resolve %s while %s", host, context))
		line("")
		line("Please check:")
		line("  • The instance URL (run 'bulkctl whoami')")
		line("  • DNS settings and corporate VPN")
	case ConnectionRefused:
		line(fmt.Sprintf("🚫 Connection refused while %s", context))
		line("")
		line(host + " is not accepting connections.")
		line("  • Check the instance URL and any proxy in between")
	case TLS:
		line(fmt.Sprintf("🔒 Secure connection failed while %s", context))
		line("")
		line("Cannot establish a secure HTTPS connection. Try:")
		line("  • Check your system date and time")
		line("  • Verify network proxy settings")
	case Server:
		line(fmt.Sprintf("⚠️  Server error while %s", context))
		line("")
		line("Salesforce reported an internal error. Check https://status.salesforce.com")
		line("and try again in a few minutes.")
	default:
		line(fmt.Sprintf("❌ Cannot reach %s while %s", host, context))
		line("")
		line("Please check your internet connection and firewall settings.")
	}
	line("")
	return b.String()
}

func isTimeoutError(err error) bool {
	if errors.Is(err, errors.Cancelled) {
		var e *errors.E
		if stderrors.As(err, &e) && e.Err != nil && strings.Contains(e.Err.Error(), "deadline") {
			return true
		}
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "timeout") || strings.Contains(s, "deadline exceeded")
}

func isDNSError(err error) bool {
	var dnsErr *net.DNSError
	return stderrors.As(err, &dnsErr)
}

func isConnectionRefusedError(err error) bool {
	if stderrors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "connection refused")
}

func isSSLError(err error) bool {
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "tls") ||
		strings.Contains(s, "x509") ||
		strings.Contains(s, "certificate") ||
		strings.Contains(s, "handshake")
}

func isServerError(err error) bool {
	e, ok := errors.As(err)
	return ok && e.StatusCode >= 500
}

// ExtractHostFromURL extracts the hostname from a URL for error messages.
func ExtractHostFromURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil || u.Host == "" {
		return "the server"
	}
	return u.Host
}
