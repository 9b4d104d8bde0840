package console

import (
	"strings"
	"sync"
)

const (
	Width  = 80
	Height = 25

	tabStop = 4
)

// Console is a fixed text grid with a cursor, modelled on VGA text
// mode. Output scrolls up a line at a time once the cursor runs off
// the bottom.
type Console struct {
	mu sync.Mutex

	cells [Height][Width]byte
	row   int
	col   int
}

func New() *Console {
	c := &Console{}
	c.clear()

	return c
}

// clear must be called with mu held.
func (c *Console) clear() {
	for r := 0; r < Height; r++ {
		for col := 0; col < Width; col++ {
			c.cells[r][col] = ' '
		}
	}

	c.row = 0
	c.col = 0
}

func (c *Console) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clear()
}

// scroll must be called with mu held.
func (c *Console) scroll() {
	for r := 1; r < Height; r++ {
		c.cells[r-1] = c.cells[r]
	}

	for col := 0; col < Width; col++ {
		c.cells[Height-1][col] = ' '
	}

	c.row = Height - 1
}

// putChar must be called with mu held.
func (c *Console) putChar(ch byte) {
	switch ch {
	case '\n':
		c.col = 0
		c.row++
	case '\r':
		c.col = 0
	case '\b':
		if c.col > 0 {
			c.col--
			c.cells[c.row][c.col] = ' '
		}
	case '\t':
		c.col = (c.col + tabStop) &^ (tabStop - 1)
		if c.col >= Width {
			c.col = 0
			c.row++
		}
	default:
		if ch < 32 || ch > 126 {
			ch = '?'
		}

		c.cells[c.row][c.col] = ch
		c.col++

		if c.col >= Width {
			c.col = 0
			c.row++
		}
	}

	if c.row >= Height {
		c.scroll()
	}
}

func (c *Console) PutChar(ch byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.putChar(ch)
}

func (c *Console) WriteString(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := 0; i < len(s); i++ {
		c.putChar(s[i])
	}
}

// Write makes the console an io.Writer so subsystems can print to it
// directly.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ch := range p {
		c.putChar(ch)
	}

	return len(p), nil
}

func (c *Console) Cursor() (row, col int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.row, c.col
}

// Line returns row r with trailing blanks trimmed.
func (c *Console) Line(r int) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if r < 0 || r >= Height {
		return ""
	}

	return strings.TrimRight(string(c.cells[r][:]), " ")
}

// String renders the grid, one line per row, trailing blank lines
// trimmed.
func (c *Console) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	var b strings.Builder

	last := c.row
	for r := 0; r <= last && r < Height; r++ {
		b.WriteString(strings.TrimRight(string(c.cells[r][:]), " "))
		b.WriteByte('\n')
	}

	return b.String()
}
