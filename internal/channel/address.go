package channel

import (
	"net"
	"strings"

	"codeberg.org/mutker/ffdash/internal/errors"
)

// DefaultPort is the desktop server's default listening port.
const DefaultPort = "8000"

// NormalizeAddress turns user input such as "192.168.1.110",
// "http://pc.local:8000/" or "ws://pc:9000" into host:port.
func NormalizeAddress(raw string) (string, error) {
	addr := strings.TrimSpace(raw)
	for _, prefix := range []string{"http://", "https://", "ws://", "wss://"} {
		if strings.HasPrefix(strings.ToLower(addr), prefix) {
			addr = addr[len(prefix):]
			break
		}
	}
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		addr = addr[:i]
	}

	if addr == "" {
		return "", errors.New().WithData(errors.ErrInvalidAddress, raw)
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		// No port given.
		host, port = strings.Trim(addr, "[]"), DefaultPort
	}
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", errors.New().WithData(errors.ErrInvalidAddress, raw)
	}

	return net.JoinHostPort(host, port), nil
}
