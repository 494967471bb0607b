package unswirl

import (
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Failure is a destination coordinate that got the unresolved color.
type Failure struct {
	At  image.Point
	Err error
}

type Result struct {
	Image     *image.NRGBA
	Failures  []Failure
	Processed int
	Total     int
}

func (r *Result) Complete() bool {
	return r.Processed == r.Total
}

func (r *Result) Resolved() int {
	return r.Processed - len(r.Failures)
}

func (r *Result) Unresolved() []image.Point {
	return lo.Map(r.Failures, func(f Failure, _ int) image.Point {
		return f.At
	})
}

// Summary lists at most max unresolved coordinates.
func (r *Result) Summary(max int) string {
	if len(r.Failures) == 0 {
		return fmt.Sprintf("%d/%d pixels resolved", r.Resolved(), r.Total)
	}

	pts := r.Unresolved()
	more := ""
	if max >= 0 && len(pts) > max {
		more = fmt.Sprintf(" (+%d more)", len(pts)-max)
		pts = pts[:max]
	}

	return fmt.Sprintf("%d/%d pixels resolved, %d unresolved: %s%s",
		r.Resolved(), r.Total, len(r.Failures),
		strings.Join(lo.Map(pts, func(pt image.Point, _ int) string { return pt.String() }), " "),
		more,
	)
}

func sortFailures(fs []Failure) {
	sort.Slice(fs, func(a, b int) bool {
		if fs[a].At.Y != fs[b].At.Y {
			return fs[a].At.Y < fs[b].At.Y
		}
		return fs[a].At.X < fs[b].At.X
	})
}
