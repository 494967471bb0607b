package magick

import "time"

type Option func(m *Magick)

func WithBinary(binary string) Option {
	return func(m *Magick) {
		if binary != "" {
			m.binary = binary
		}
	}
}

// WithArgs sets the operator arguments placed between the input and output paths.
func WithArgs(args ...string) Option {
	return func(m *Magick) {
		m.args = args
	}
}

func WithTimeout(d time.Duration) Option {
	return func(m *Magick) {
		if d > 0 {
			m.timeout = d
		}
	}
}
