package llm

import (
	"bytes"
	"io"
	"unicode/utf8"
)

// utf8BoundaryReader wraps an upstream response body so every Read returns
// only complete UTF-8 runes, buffering a trailing partial multi-byte
// sequence across reads. Grounded on spec.md §9: "the systems-language
// implementation should own its decoder and buffer partial codepoints
// across reads" - the platform the source ran against could split a
// multi-byte character across two physical chunks.
type utf8BoundaryReader struct {
	src     io.Reader
	ready   bytes.Buffer
	pending []byte
	raw     [4096]byte
}

func newUTF8BoundaryReader(src io.Reader) *utf8BoundaryReader {
	return &utf8BoundaryReader{src: src}
}

func (r *utf8BoundaryReader) Read(p []byte) (int, error) {
	for r.ready.Len() == 0 {
		n, err := r.src.Read(r.raw[:])
		if n > 0 {
			data := append(r.pending, r.raw[:n]...)
			complete, rest := splitTrailingIncompleteRune(data)
			r.pending = rest
			r.ready.Write(complete)
		}

		if err != nil {
			if r.ready.Len() == 0 && len(r.pending) > 0 {
				r.ready.Write(r.pending)
				r.pending = nil
			}

			if r.ready.Len() > 0 {
				break
			}

			return 0, err
		}
	}

	return r.ready.Read(p)
}

// splitTrailingIncompleteRune returns (complete, rest) where rest is the
// shortest trailing byte run that might be the prefix of a multi-byte rune
// still awaiting more bytes. A genuinely invalid byte is left in complete
// and passed through unchanged rather than buffered forever.
func splitTrailingIncompleteRune(data []byte) ([]byte, []byte) {
	limit := 4
	if limit > len(data) {
		limit = len(data)
	}

	for i := 1; i <= limit; i++ {
		b := data[len(data)-i]
		if !utf8.RuneStart(b) {
			continue
		}

		r, size := utf8.DecodeRune(data[len(data)-i:])
		if r == utf8.RuneError && size <= 1 {
			return data, nil
		}

		if size == i {
			return data, nil
		}

		return data[:len(data)-i], data[len(data)-i:]
	}

	return data, nil
}
