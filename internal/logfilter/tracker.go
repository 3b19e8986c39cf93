package logfilter

import (
	"bytes"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// RangeTracker — io.Writer, который по ходу записи файла считает строки
// и собирает диапазон меток времени. Используется при загрузке вместе
// с хэшированием, чтобы TimeRange вычислялся за тот же единственный проход.
type RangeTracker struct {
	partial []byte
	max     int
	lines   int64
	span    model.TimeRange
	hasSpan bool
	open    bool // есть незавершённая строка
}

// NewRangeTracker создаёт трекер с пределом длины строки maxLine.
func NewRangeTracker(maxLine int) *RangeTracker {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &RangeTracker{max: maxLine}
}

// Write реализует io.Writer. Никогда не возвращает ошибку.
func (t *RangeTracker) Write(p []byte) (int, error) {
	n := len(p)
	for len(p) > 0 {
		i := bytes.IndexByte(p, '\n')
		if i < 0 {
			t.appendPartial(p)
			t.open = true
			break
		}
		t.appendPartial(p[:i])
		t.flush()
		p = p[i+1:]
	}
	return n, nil
}

// Finish учитывает последнюю строку без перевода строки.
func (t *RangeTracker) Finish() {
	if t.open {
		t.flush()
	}
}

// Lines возвращает число строк.
func (t *RangeTracker) Lines() int64 {
	return t.lines
}

// TimeRange возвращает диапазон меток или nil, если меток не было.
func (t *RangeTracker) TimeRange() *model.TimeRange {
	if !t.hasSpan {
		return nil
	}
	r := t.span
	return &r
}

func (t *RangeTracker) appendPartial(p []byte) {
	if room := t.max - len(t.partial); room > 0 {
		if len(p) > room {
			p = p[:room]
		}
		t.partial = append(t.partial, p...)
	}
}

func (t *RangeTracker) flush() {
	t.lines++
	if ts := ExtractTimestamp(t.partial); ts != nil {
		t.span.Observe(*ts)
		t.hasSpan = true
	}
	t.partial = t.partial[:0]
	t.open = false
}
