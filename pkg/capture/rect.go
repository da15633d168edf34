package capture

// Rect is a pixel rectangle in the captured frame's coordinate space,
// origin top-left.
type Rect struct {
	X, Y, W, H int
}

func (r Rect) right() int  { return r.X + r.W }
func (r Rect) bottom() int { return r.Y + r.H }

func (r Rect) empty() bool { return r.W <= 0 || r.H <= 0 }

// intersect returns the overlapping rectangle between r and o, and
// whether they overlap at all.
func (r Rect) intersect(o Rect) (Rect, bool) {
	x0 := max(r.X, o.X)
	y0 := max(r.Y, o.Y)
	x1 := min(r.right(), o.right())
	y1 := min(r.bottom(), o.bottom())
	if x1 <= x0 || y1 <= y0 {
		return Rect{}, false
	}
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}, true
}

// Subtract returns the pieces of r that remain after removing o, as up to
// four axis-aligned rectangles (top strip, bottom strip, left strip,
// right strip of the non-overlapping remainder).
func (r Rect) Subtract(o Rect) []Rect {
	overlap, ok := r.intersect(o)
	if !ok {
		return []Rect{r}
	}
	var out []Rect
	if overlap.Y > r.Y {
		out = append(out, Rect{X: r.X, Y: r.Y, W: r.W, H: overlap.Y - r.Y})
	}
	if overlap.bottom() < r.bottom() {
		out = append(out, Rect{X: r.X, Y: overlap.bottom(), W: r.W, H: r.bottom() - overlap.bottom()})
	}
	if overlap.X > r.X {
		out = append(out, Rect{X: r.X, Y: overlap.Y, W: overlap.X - r.X, H: overlap.H})
	}
	if overlap.right() < r.right() {
		out = append(out, Rect{X: overlap.right(), Y: overlap.Y, W: r.right() - overlap.right(), H: overlap.H})
	}
	return filterEmpty(out)
}

// subtractAll subtracts every rectangle in front, in order, from the
// starting set {r}, returning whatever pieces of r remain unobscured.
func subtractAll(r Rect, front []Rect) []Rect {
	current := []Rect{r}
	for _, f := range front {
		var next []Rect
		for _, c := range current {
			next = append(next, c.Subtract(f)...)
		}
		current = next
		if len(current) == 0 {
			break
		}
	}
	return current
}

func filterEmpty(rects []Rect) []Rect {
	out := rects[:0]
	for _, r := range rects {
		if !r.empty() {
			out = append(out, r)
		}
	}
	return out
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
