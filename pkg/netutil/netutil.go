// pkg/netutil/netutil.go
// Package netutil provides helpers for classifying scan target identifiers.
package netutil

import (
	"net"
	"strings"
)

// IsIPAddress reports whether the given identifier is an IP address or a
// CIDR-notated subnet (IPv4 or IPv6). Targets that fail this check are
// treated as hostnames; there is no separate stored discriminator.
func IsIPAddress(identifier string) bool {
	if strings.Contains(identifier, "/") {
		_, _, err := net.ParseCIDR(identifier)
		return err == nil
	}
	return net.ParseIP(identifier) != nil
}

// IPVersion returns "4" or "6" for a valid IP address and "" for anything
// else (including subnets and hostnames).
func IPVersion(identifier string) string {
	ip := net.ParseIP(identifier)
	if ip == nil {
		return ""
	}
	if ip.To4() != nil {
		return "4"
	}
	return "6"
}
