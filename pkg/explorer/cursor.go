package explorer

// Cursor is a position in a step sequence of fixed length. With no steps
// the position is -1 and every move is a no-op.
type Cursor struct {
	pos int
	n   int
}

// NewCursor returns a cursor at the first of n steps.
func NewCursor(n int) *Cursor {
	c := &Cursor{n: max(n, 0)}
	c.Reset()
	return c
}

// Reset moves to the first step.
func (c *Cursor) Reset() {
	if c.n == 0 {
		c.pos = -1
		return
	}
	c.pos = 0
}

// Position returns the current index, or -1 when there are no steps.
func (c *Cursor) Position() int { return c.pos }

// Len returns the length of the sequence.
func (c *Cursor) Len() int { return c.n }

// Valid reports whether the cursor points at a step.
func (c *Cursor) Valid() bool { return c.pos >= 0 }

// AtStart reports whether stepping backward is impossible.
func (c *Cursor) AtStart() bool { return c.pos <= 0 }

// AtEnd reports whether stepping forward is impossible.
func (c *Cursor) AtEnd() bool { return c.pos >= c.n-1 }

// StepForward advances one step, clamping at the last one.
func (c *Cursor) StepForward() bool {
	if c.AtEnd() {
		return false
	}
	c.pos++
	return true
}

// StepBackward moves back one step, clamping at the first one.
func (c *Cursor) StepBackward() bool {
	if c.AtStart() {
		return false
	}
	c.pos--
	return true
}

// Seek moves to index i. Out of range indices leave the cursor unchanged.
func (c *Cursor) Seek(i int) bool {
	if i < 0 || i >= c.n {
		return false
	}
	c.pos = i
	return true
}
