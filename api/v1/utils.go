package v1

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"net/netip"
	"strings"

	"log/slog"

	"github.com/gofiber/fiber/v2"
)

// Private and loopback ranges per RFC 1918, RFC 4193 and RFC 4291.
var privateIPBlocks = func() []*net.IPNet {
	var blocks []*net.IPNet
	for _, cidr := range []string{
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		"fc00::/7",
		"fe80::/10",
		"::1/128",
		"127.0.0.0/8",
	} {
		_, block, _ := net.ParseCIDR(cidr)
		blocks = append(blocks, block)
	}
	return blocks
}()

// getClientIP resolves the visitor's public IP, walking the usual
// reverse-proxy headers before falling back to the connection address.
func getClientIP(c *fiber.Ctx) string {
	if ip := selectPreferredIP(strings.Split(c.Get("X-Forwarded-For"), ",")); ip != "" {
		return ip
	}

	for _, header := range []string{
		"X-Real-IP",
		"CF-Connecting-IP",
		"True-Client-IP",
		"X-Client-IP",
	} {
		if value := c.Get(header); value != "" {
			if ip := selectPreferredIP([]string{value}); ip != "" {
				return ip
			}
		}
	}

	if forwarded := c.Get("Forwarded"); forwarded != "" {
		if ip := selectPreferredIP(parseForwardedHeader(forwarded)); ip != "" {
			return ip
		}
	}

	remoteAddr := c.Context().RemoteAddr().String()
	if remoteAddr != "" {
		host, _, err := net.SplitHostPort(remoteAddr)
		if err != nil {
			host = remoteAddr
		}
		if parsed := net.ParseIP(host); parsed != nil && !isPrivateIP(parsed) {
			return host
		}
	}

	if ip := c.IP(); ip != "" && ip != "0.0.0.0" && ip != "::" {
		if parsed := net.ParseIP(strings.TrimSpace(ip)); parsed != nil && !isPrivateIP(parsed) {
			return ip
		}
	}

	slog.Default().Info("Fallback to loopback IP for request",
		slog.String("path", c.Path()),
		slog.Any("headers", c.GetReqHeaders()))
	return "127.0.0.1"
}

func isPrivateIP(ip net.IP) bool {
	if ip == nil {
		return false
	}

	for _, block := range privateIPBlocks {
		candidate := ip

		switch len(block.IP) {
		case net.IPv4len:
			if ip4 := ip.To4(); ip4 != nil {
				candidate = ip4
			} else {
				continue
			}
		case net.IPv6len:
			candidate = ip.To16()
			if candidate == nil {
				continue
			}
		}

		if block.Contains(candidate) {
			return true
		}
	}
	return false
}

// selectPreferredIP returns the first public IPv4 candidate, or the
// first public IPv6 when no IPv4 is present.
func selectPreferredIP(values []string) string {
	var ipv6Fallback string

	for _, raw := range values {
		clean, parsed := normalizeIP(raw)
		if parsed == nil || isPrivateIP(parsed) {
			continue
		}

		if parsed.To4() != nil {
			return clean
		}

		if ipv6Fallback == "" {
			ipv6Fallback = clean
		}
	}

	return ipv6Fallback
}

// normalizeIP cleans a candidate address: quotes, ports, brackets,
// zone identifiers and IPv4-mapped IPv6 forms.
func normalizeIP(raw string) (string, net.IP) {
	clean := strings.TrimSpace(raw)
	clean = strings.Trim(clean, "\"")
	if clean == "" {
		return "", nil
	}

	if percent := strings.Index(clean, "%"); percent != -1 {
		clean = clean[:percent]
	}

	// addr:port, both IPv4:port and [IPv6]:port
	if addrPort, err := netip.ParseAddrPort(clean); err == nil {
		addr := addrPort.Addr()
		if addr.Is4In6() {
			addr = addr.Unmap()
		}
		ipStr := addr.String()
		return ipStr, net.ParseIP(ipStr)
	}

	trimmed := clean
	if strings.HasPrefix(trimmed, "[") && strings.HasSuffix(trimmed, "]") {
		trimmed = strings.TrimPrefix(trimmed, "[")
		trimmed = strings.TrimSuffix(trimmed, "]")
	}

	if addr, err := netip.ParseAddr(trimmed); err == nil {
		if addr.Is4In6() {
			addr = addr.Unmap()
		}
		ipStr := addr.String()
		return ipStr, net.ParseIP(ipStr)
	}

	if host, _, err := net.SplitHostPort(clean); err == nil {
		return normalizeIP(host)
	}

	return "", nil
}

func parseForwardedHeader(header string) []string {
	var candidates []string

	for _, entry := range strings.Split(header, ",") {
		for _, part := range strings.Split(entry, ";") {
			part = strings.TrimSpace(part)
			if strings.HasPrefix(strings.ToLower(part), "for=") {
				candidates = append(candidates, strings.TrimPrefix(part, "for="))
			}
		}
	}

	return candidates
}

// generateETag creates a strong ETag from content using SHA-256
func generateETag(content []byte) string {
	hash := sha256.Sum256(content)
	return `"` + hex.EncodeToString(hash[:]) + `"` // Quoted for strong ETag
}
