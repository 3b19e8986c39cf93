package logfilter

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// Options — параметры одного прохода Scan.
type Options struct {
	// MaxResults — сколько совпавших строк копировать в результат.
	// Total считается по всему файлу независимо от предела.
	MaxResults int
	// MaxLineBytes — предел длины строки в памяти (0 — DefaultMaxLineBytes)
	MaxLineBytes int
	// NoTimestamps — содержимое заведомо не содержит ни одной метки
	// времени (известно из TimeRange, вычисленного при загрузке).
	// Тогда заданная граница по дате отвергает все строки.
	NoTimestamps bool
}

// Line — совпавшая строка с номером в исходном файле (с 1).
type Line struct {
	Number  int64  `json:"line_number"`
	Content string `json:"content"`
}

// Result — итог прохода по файлу.
type Result struct {
	// Lines — первые MaxResults совпавших строк в порядке файла
	Lines []Line
	// Total — число строк, прошедших все предикаты, по всему файлу
	Total int64
	// TimeSpan — min/max меток по всем строкам файла (nil — меток нет)
	TimeSpan *model.TimeRange
	// Truncated — Total > MaxResults
	Truncated bool
	// MaxResults — применённый предел
	MaxResults int
	// Scanned — число прочитанных строк
	Scanned int64
}

// Scan выполняет один проход по r и применяет spec к каждой строке.
//
// Отмена ctx проверяется на границе каждой строки; отменённый проход
// возвращает model.ErrCancelled без частичного результата.
func Scan(ctx context.Context, r io.Reader, spec Spec, opts Options) (*Result, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxResults < 0 {
		return nil, fmt.Errorf("%w: max_results не может быть отрицательным", model.ErrInvalidFilterSpec)
	}

	m := newMatcher(spec, opts.NoTimestamps)
	lr := newLineReader(r, opts.MaxLineBytes)
	done := ctx.Done()

	res := &Result{
		Lines:      make([]Line, 0, min(opts.MaxResults, 1024)),
		MaxResults: opts.MaxResults,
	}
	var span model.TimeRange
	hasSpan := false

	for {
		select {
		case <-done:
			return nil, fmt.Errorf("%w: %v", model.ErrCancelled, ctx.Err())
		default:
		}

		raw, err := lr.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: чтение строки %d: %v", model.ErrIO, res.Scanned+1, err)
		}
		res.Scanned++

		line := bytes.ToValidUTF8(raw, []byte("\uFFFD"))
		ts := ExtractTimestamp(line)
		if ts != nil {
			span.Observe(*ts)
			hasSpan = true
		}

		if !m.matchDate(ts) || !m.matchContent(line) {
			continue
		}

		res.Total++
		if len(res.Lines) < opts.MaxResults {
			res.Lines = append(res.Lines, Line{Number: res.Scanned, Content: string(line)})
		}
	}

	if hasSpan {
		res.TimeSpan = &span
	}
	res.Truncated = res.Total > int64(opts.MaxResults)
	return res, nil
}
