// Package net holds the LAN helpers: the address put into share links and
// mDNS discovery of running servers.
package net

import (
	"log/slog"
	"net"
)

// probeAddr is only used to pick a route; UDP dial sends nothing.
const probeAddr = "8.8.8.8:80"

// OutgoingIP returns the local address other machines on the LAN should use
// to reach this host.
func OutgoingIP() string {
	conn, err := net.Dial("udp", probeAddr)
	if err != nil {
		// No default route, e.g. an offline LAN.
		return interfaceIP(net.InterfaceAddrs)
	}
	defer conn.Close()

	if addr, ok := conn.LocalAddr().(*net.UDPAddr); ok && !addr.IP.IsUnspecified() {
		return addr.IP.String()
	}
	return interfaceIP(net.InterfaceAddrs)
}

// interfaceIP returns the first non-loopback IPv4 address, or 127.0.0.1.
func interfaceIP(addrs func() ([]net.Addr, error)) string {
	list, err := addrs()
	if err != nil {
		slog.Warn("list interface addresses", "error", err)
		return loopback
	}
	for _, a := range list {
		ipnet, ok := a.(*net.IPNet)
		if !ok || ipnet.IP.IsLoopback() || ipnet.IP.IsLinkLocalUnicast() {
			continue
		}
		if v4 := ipnet.IP.To4(); v4 != nil {
			return v4.String()
		}
	}
	slog.Warn("no LAN address found, share link will only work locally")
	return loopback
}

const loopback = "127.0.0.1"
