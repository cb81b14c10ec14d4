package util

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"unicode/utf8"
)

const previewRunes = 10

// RedactPasteContent keeps a short head and tail of a paste for log lines.
func RedactPasteContent(content string) string {
	n := utf8.RuneCountInString(content)
	if n == 0 {
		return ""
	}
	if n <= 2*previewRunes {
		return "[REDACTED]"
	}
	r := []rune(content)
	return string(r[:previewRunes]) + "...[REDACTED]..." + string(r[n-previewRunes:])
}

// RedactIP zeroes the host part of an address: the last octet for IPv4,
// everything after the /32 prefix for IPv6. Unparseable input is hashed.
func RedactIP(ip string) string {
	host, _, err := net.SplitHostPort(ip)
	if err == nil {
		ip = host
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		hash := sha256.Sum256([]byte(ip))
		return "hash:" + hex.EncodeToString(hash[:8])
	}
	if ipv4 := parsed.To4(); ipv4 != nil {
		ipv4[3] = 0
		return ipv4.String()
	}
	ipv6 := parsed.To16()
	for i := 4; i < 16; i++ {
		ipv6[i] = 0
	}
	return ipv6.String()
}
