package unswirl

import (
	"image/color"
	"runtime"

	"unswirl/pkg/scan"
)

type Option func(i *Inverter)

// WithWorkers caps the number of coordinates probed at once.
func WithWorkers(n int) Option {
	return func(i *Inverter) {
		if n > 0 {
			i.workers = n
		}
	}
}

func WithOrder(o scan.Order) Option {
	return func(i *Inverter) {
		if o != nil {
			i.order = o
		}
	}
}

// WithSnapshotRows persists the output after every n completed rows. Zero
// keeps only the final save.
func WithSnapshotRows(n int) Option {
	return func(i *Inverter) {
		if n >= 0 {
			i.snapshotRows = n
		}
	}
}

// WithUnresolved sets the color written where a coordinate failed.
func WithUnresolved(c color.NRGBA) Option {
	return func(i *Inverter) {
		i.unresolved = c
	}
}

func WithProgress(show bool) Option {
	return func(i *Inverter) {
		i.progress = show
	}
}

func defaultWorkers() int {
	return runtime.NumCPU()
}
