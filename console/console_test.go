package console

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vektra/neko"
)

func TestConsole(t *testing.T) {
	n := neko.Modern(t)

	n.It("writes text at the cursor", func(t *testing.T) {
		c := New()

		c.WriteString("hello")

		require.Equal(t, "hello", c.Line(0))

		row, col := c.Cursor()
		require.Equal(t, 0, row)
		require.Equal(t, 5, col)
	})

	n.It("handles newline, carriage return and backspace", func(t *testing.T) {
		c := New()

		c.WriteString("abc\ndef")
		require.Equal(t, "abc", c.Line(0))
		require.Equal(t, "def", c.Line(1))

		c.WriteString("\rxyz")
		require.Equal(t, "xyz", c.Line(1))

		c.WriteString("\b")
		require.Equal(t, "xy", c.Line(1))
	})

	n.It("wraps long lines at the right edge", func(t *testing.T) {
		c := New()

		for i := 0; i < Width+3; i++ {
			c.PutChar('x')
		}

		row, col := c.Cursor()
		require.Equal(t, 1, row)
		require.Equal(t, 3, col)
		require.Len(t, c.Line(0), Width)
	})

	n.It("scrolls up once the grid is full", func(t *testing.T) {
		c := New()

		for i := 0; i < Height+2; i++ {
			c.WriteString(fmt.Sprintf("line%d\n", i))
		}

		row, _ := c.Cursor()
		require.Equal(t, Height-1, row)

		// The oldest lines scrolled off the top.
		require.Equal(t, "line3", c.Line(0))
	})

	n.It("replaces unprintable bytes", func(t *testing.T) {
		c := New()

		c.Write([]byte{0x01, 'a'})
		require.Equal(t, "?a", c.Line(0))
	})

	n.It("clears back to an empty grid", func(t *testing.T) {
		c := New()

		c.WriteString("text")
		c.Clear()

		row, col := c.Cursor()
		require.Zero(t, row)
		require.Zero(t, col)
		require.Equal(t, "", c.Line(0))
	})

	n.Meow()
}
