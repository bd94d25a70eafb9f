package net

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// LinkScheme prefixes share links; the app opens them as a client.
const LinkScheme = "pixelboard://"

// ShareLink returns the link for a server at host:port.
func ShareLink(host string, port int) string {
	return LinkScheme + net.JoinHostPort(host, strconv.Itoa(port))
}

// IsLink reports whether s looks like a share link.
func IsLink(s string) bool {
	return strings.HasPrefix(s, LinkScheme)
}

// ParseLink turns a share link into the server's HTTP base URL.
func ParseLink(link string) (string, error) {
	if !IsLink(link) {
		return "", fmt.Errorf("not a %s link: %q", LinkScheme, link)
	}
	addr := strings.TrimSuffix(strings.TrimPrefix(link, LinkScheme), "/")
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "", fmt.Errorf("parse link %q: %w", link, err)
	}
	if host == "" {
		return "", fmt.Errorf("parse link %q: missing host", link)
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return "", fmt.Errorf("parse link %q: bad port %q", link, port)
	}
	return "http://" + net.JoinHostPort(host, port), nil
}

// PortOf extracts the port from a listen address such as ":8888".
func PortOf(addr string) (int, error) {
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("listen address %q: %w", addr, err)
	}
	n, err := strconv.Atoi(port)
	if err != nil {
		return 0, fmt.Errorf("listen address %q: bad port", addr)
	}
	return n, nil
}
