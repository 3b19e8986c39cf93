package logfilter

import (
	"bufio"
	"bytes"
	"errors"
	"io"
)

// DefaultMaxLineBytes — предел длины строки, удерживаемой в памяти.
// Остаток более длинной строки отбрасывается, сама строка учитывается.
const DefaultMaxLineBytes = 1 << 20

// lineReader читает строки без символа перевода строки.
// Буфер строки переиспользуется между вызовами.
type lineReader struct {
	br  *bufio.Reader
	buf []byte
	max int
}

func newLineReader(r io.Reader, maxLine int) *lineReader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &lineReader{
		br:  bufio.NewReaderSize(r, 64*1024),
		max: maxLine,
	}
}

// next возвращает очередную строку. Срез действителен до следующего вызова.
// В конце потока возвращает io.EOF.
func (lr *lineReader) next() ([]byte, error) {
	lr.buf = lr.buf[:0]
	read := false

	for {
		chunk, err := lr.br.ReadSlice('\n')
		if len(chunk) > 0 {
			read = true
			if room := lr.max - len(lr.buf); room > 0 {
				if len(chunk) > room {
					lr.buf = append(lr.buf, chunk[:room]...)
				} else {
					lr.buf = append(lr.buf, chunk...)
				}
			}
		}

		switch {
		case err == nil:
			return trimEOL(lr.buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if !read {
				return nil, io.EOF
			}
			return trimEOL(lr.buf), nil
		default:
			return nil, err
		}
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte("\n"))
	return bytes.TrimSuffix(line, []byte("\r"))
}
