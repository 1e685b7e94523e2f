package twinkly

import (
	"errors"
	"fmt"
	"net"
)

// FragmentSize is the maximum number of frame bytes per realtime packet.
const FragmentSize = 900

const rtVersion = 0x03

// Packets splits frame into realtime protocol v3 packets:
// 0x03, token (8 bytes), 0x00 0x00, fragment index, then up to 900 bytes.
func Packets(token, frame []byte) [][]byte {
	var out [][]byte
	for i, off := 0, 0; off < len(frame); i, off = i+1, off+FragmentSize {
		end := off + FragmentSize
		if end > len(frame) {
			end = len(frame)
		}
		p := make([]byte, 0, 1+len(token)+3+end-off)
		p = append(p, rtVersion)
		p = append(p, token...)
		p = append(p, 0x00, 0x00, byte(i))
		p = append(p, frame[off:end]...)
		out = append(out, p)
	}
	return out
}

// Write sends one realtime frame. The device must be in realtime mode.
func (c *Client) Write(rgb []byte) error {
	if len(rgb)%3 != 0 {
		return errors.New("twinkly: invalid RGB stream length")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tokenRaw == nil {
		return ErrUnauthorized
	}
	if c.udp == nil {
		conn, err := net.Dial("udp", c.rtAddr)
		if err != nil {
			return fmt.Errorf("realtime dial: %w", err)
		}
		c.udp = conn
	}
	for _, p := range Packets(c.tokenRaw, rgb) {
		if _, err := c.udp.Write(p); err != nil {
			_ = c.udp.Close()
			c.udp = nil
			return fmt.Errorf("realtime write: %w", err)
		}
	}
	return nil
}
