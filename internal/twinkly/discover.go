package twinkly

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

const DiscoveryPort = 5555

var discoverMsg = []byte("\x01discover")

// Device is a discovery answer.
type Device struct {
	IP   net.IP
	Name string
}

// ParseReply decodes a discovery answer: the IPv4 address in reversed byte
// order, "OK", then the NUL-terminated device name.
func ParseReply(b []byte) (Device, error) {
	if len(b) < 6 || string(b[4:6]) != "OK" {
		return Device{}, errors.New("twinkly: malformed discovery reply")
	}
	ip := net.IPv4(b[3], b[2], b[1], b[0])
	name := b[6:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return Device{IP: ip, Name: string(name)}, nil
}

// Discover broadcasts a discovery request and collects answers until timeout.
func Discover(ctx context.Context, timeout time.Duration) ([]Device, error) {
	return DiscoverAt(ctx, fmt.Sprintf("255.255.255.255:%d", DiscoveryPort), timeout)
}

// DiscoverAt sends the discovery request to target instead of broadcasting.
func DiscoverAt(ctx context.Context, target string, timeout time.Duration) ([]Device, error) {
	dst, err := net.ResolveUDPAddr("udp4", target)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenPacket("udp4", ":0")
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, err
	}
	if _, err := conn.WriteTo(discoverMsg, dst); err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}

	seen := map[string]bool{}
	var out []Device
	buf := make([]byte, 512)
	for {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return out, nil
			}
			return out, err
		}
		d, err := ParseReply(buf[:n])
		if err != nil {
			continue
		}
		if seen[d.IP.String()] {
			continue
		}
		seen[d.IP.String()] = true
		out = append(out, d)
	}
}
