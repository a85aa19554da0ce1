package security

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"strings"
	"syscall"
)

// privateIPRanges contains CIDR ranges for private/internal networks
var privateIPRanges = []string{
	"127.0.0.0/8",    // IPv4 loopback
	"10.0.0.0/8",     // RFC1918 private
	"172.16.0.0/12",  // RFC1918 private
	"192.168.0.0/16", // RFC1918 private
	"169.254.0.0/16", // Link-local
	"100.64.0.0/10",  // Carrier-grade NAT
	"::1/128",        // IPv6 loopback
	"fc00::/7",       // IPv6 unique local
	"fe80::/10",      // IPv6 link-local
	"0.0.0.0/8",      // "This" network
}

// blockedHostnames contains hostnames that should never be fetched
var blockedHostnames = []string{
	"localhost",
	"localhost.localdomain",
	"ip6-localhost",
	"ip6-loopback",
	"metadata.google.internal",
	"kubernetes.default.svc",
	"kubernetes.default",
}

var parsedCIDRs []*net.IPNet

func init() {
	for _, cidr := range privateIPRanges {
		_, network, err := net.ParseCIDR(cidr)
		if err == nil {
			parsedCIDRs = append(parsedCIDRs, network)
		}
	}
}

// IsPrivateIP checks if an IP address is in a private/internal range
func IsPrivateIP(ip net.IP) bool {
	if ip == nil {
		return true
	}

	for _, network := range parsedCIDRs {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// IsBlockedHostname checks if a hostname or any parent domain is in the blocklist
func IsBlockedHostname(hostname string) bool {
	hostname = strings.ToLower(strings.TrimSuffix(hostname, "."))

	for _, blocked := range blockedHostnames {
		if hostname == blocked || strings.HasSuffix(hostname, "."+blocked) {
			return true
		}
	}
	return false
}

// URLGuard rejects outbound URLs that point at internal resources.
// Link previews fetch arbitrary user-supplied URLs, so every fetch goes through it.
type URLGuard struct {
	// AllowPrivate disables the address checks. Only tests set it.
	AllowPrivate bool
	// Resolver resolves hostnames; net.DefaultResolver when nil
	Resolver *net.Resolver
}

// Check validates scheme and host, then resolves the host and rejects private addresses
func (g *URLGuard) Check(ctx context.Context, rawURL string) error {
	parsedURL, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return fmt.Errorf("only http and https schemes are allowed")
	}

	hostname := parsedURL.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}

	if g.AllowPrivate {
		return nil
	}

	if IsBlockedHostname(hostname) {
		return fmt.Errorf("access to internal hostname '%s' is not allowed", hostname)
	}

	if ip := net.ParseIP(hostname); ip != nil {
		if IsPrivateIP(ip) {
			return fmt.Errorf("access to private IP address '%s' is not allowed", hostname)
		}
		return nil
	}

	resolver := g.Resolver
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	addrs, err := resolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		// The fetch itself will fail if the host is unreachable
		return nil
	}

	for _, addr := range addrs {
		if IsPrivateIP(addr.IP) {
			return fmt.Errorf("hostname '%s' resolves to private IP address '%s'", hostname, addr.IP.String())
		}
	}

	return nil
}

// DialControl is a net.Dialer Control hook. It checks the resolved address
// being dialed, after Check has passed.
func (g *URLGuard) DialControl(network, address string, _ syscall.RawConn) error {
	if g.AllowPrivate {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("invalid dial address '%s': %w", address, err)
	}
	ip := net.ParseIP(host)
	if IsPrivateIP(ip) {
		return fmt.Errorf("connection to private IP address '%s' is not allowed", host)
	}
	return nil
}
