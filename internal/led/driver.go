package led

// Driver abstracts an LED output sink.
type Driver interface {
	// Write pushes an RGB frame in native LED order. len(rgb) must be 3*N.
	Write(rgb []byte) error
	// Close releases resources.
	Close() error
}

// Frame is 3 bytes (R,G,B) per LED in the device's native order.
type Frame []byte

// LEDs is the number of LEDs the frame addresses.
func (f Frame) LEDs() int { return len(f) / 3 }

// Black returns an all-off frame for n LEDs.
func Black(n int) Frame { return make(Frame, 3*n) }
