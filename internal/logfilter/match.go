package logfilter

import (
	"bytes"
	"time"
)

// matcher — скомпилированный Spec для построчной проверки.
type matcher struct {
	start, end *time.Time
	include    [][]byte
	exclude    [][]byte
	or         bool
	fold       bool
	// rejectUntimed — строки без метки не проходят границу по дате.
	// Включается только когда содержимое заведомо не содержит меток.
	rejectUntimed bool
}

func newMatcher(spec Spec, noTimestamps bool) *matcher {
	m := &matcher{
		start:         spec.StartDate,
		end:           spec.EndDate,
		or:            spec.Logic == LogicOr,
		fold:          !spec.CaseSensitive,
		rejectUntimed: noTimestamps && spec.HasDateBound(),
	}
	m.include = compileTerms(spec.Include, m.fold)
	m.exclude = compileTerms(spec.Exclude, m.fold)
	return m
}

func compileTerms(terms []string, fold bool) [][]byte {
	out := make([][]byte, 0, len(terms))
	for _, t := range terms {
		b := []byte(t)
		if fold {
			b = bytes.ToLower(b)
		}
		out = append(out, b)
	}
	return out
}

// matchDate — предикат по дате. Строка без метки от него освобождена.
func (m *matcher) matchDate(ts *time.Time) bool {
	if m.start == nil && m.end == nil {
		return true
	}
	if ts == nil {
		return !m.rejectUntimed
	}
	if m.start != nil && ts.Before(*m.start) {
		return false
	}
	if m.end != nil && ts.After(*m.end) {
		return false
	}
	return true
}

// matchContent — предикат по подстрокам.
//
// AND: каждое include присутствует и каждое exclude отсутствует.
// OR: истинно хотя бы одно из «include найдено» / «exclude не найдено».
// Без условий строка проходит.
func (m *matcher) matchContent(line []byte) bool {
	if len(m.include) == 0 && len(m.exclude) == 0 {
		return true
	}
	if m.fold {
		line = bytes.ToLower(line)
	}

	if m.or {
		for _, term := range m.include {
			if bytes.Contains(line, term) {
				return true
			}
		}
		for _, term := range m.exclude {
			if !bytes.Contains(line, term) {
				return true
			}
		}
		return false
	}

	for _, term := range m.include {
		if !bytes.Contains(line, term) {
			return false
		}
	}
	for _, term := range m.exclude {
		if bytes.Contains(line, term) {
			return false
		}
	}
	return true
}
