package web

import (
	"fmt"
	"net"
)

// OutboundIP returns the address this machine would use to reach the
// internet, or loopback when there is no route. No packet is sent.
func OutboundIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String()
}

// JoinURL is the address printed and QR encoded for phones on the same network.
func JoinURL(port int) string {
	return fmt.Sprintf("http://%s:%d", OutboundIP(), port)
}
