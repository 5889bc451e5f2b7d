package llm

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

// chunkedReader splits a byte slice into reads of a fixed size, so a
// multi-byte rune can be forced to straddle two physical Read calls.
type chunkedReader struct {
	data []byte
	size int
	pos  int
}

func (c *chunkedReader) Read(p []byte) (int, error) {
	if c.pos >= len(c.data) {
		return 0, io.EOF
	}

	end := c.pos + c.size
	if end > len(c.data) {
		end = len(c.data)
	}

	n := copy(p, c.data[c.pos:end])
	c.pos += n

	return n, nil
}

func TestUTF8BoundaryReaderReassemblesSplitRune(t *testing.T) {
	text := "hello 世界 world" // contains a 3-byte CJK rune pair
	src := &chunkedReader{data: []byte(text), size: 1}

	r := newUTF8BoundaryReader(src)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, text, string(out))
}

func TestUTF8BoundaryReaderPassesThroughASCII(t *testing.T) {
	src := bytes.NewBufferString("data: plain line\n\n")

	r := newUTF8BoundaryReader(src)

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "data: plain line\n\n", string(out))
}

func TestSplitTrailingIncompleteRuneHoldsBackPartial(t *testing.T) {
	full := []byte("世") // 3-byte rune
	complete, rest := splitTrailingIncompleteRune(full[:2])

	require.Empty(t, complete)
	require.Equal(t, full[:2], rest)
}

func TestSplitTrailingIncompleteRunePassesInvalidByteThrough(t *testing.T) {
	data := []byte{0xFF}
	complete, rest := splitTrailingIncompleteRune(data)

	require.Equal(t, data, complete)
	require.Empty(t, rest)
}
