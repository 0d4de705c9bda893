// Package netutil resolves the address this node advertises on the LAN.
package netutil

import (
	"net"
)

// probeAddr is only used to pick a route; no packet is ever sent to it.
const probeAddr = "8.8.8.8:80"

const loopback = "127.0.0.1"

// LocalIP returns the IPv4 address of the interface that routes toward
// the wider network. Opening a UDP socket selects the route without
// transmitting anything. Falls back to loopback when the host has no
// usable route.
func LocalIP() string {
	conn, err := net.Dial("udp4", probeAddr)
	if err != nil {
		return loopback
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil {
		return loopback
	}

	ip := addr.IP.To4()
	if ip == nil {
		return loopback
	}

	return ip.String()
}
