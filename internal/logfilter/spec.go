package logfilter

import (
	"fmt"
	"strings"
	"time"

	"github.com/bigkaa/goartstore/log-viewer/internal/domain/model"
)

// Logic — способ объединения include/exclude условий.
// Ограничение по дате всегда объединяется через AND.
type Logic string

const (
	// LogicAnd — все include присутствуют И все exclude отсутствуют
	LogicAnd Logic = "AND"
	// LogicOr — хотя бы одно include присутствует ИЛИ хотя бы одно exclude отсутствует
	LogicOr Logic = "OR"
)

// Spec — проверенная спецификация фильтра одного запроса.
type Spec struct {
	// StartDate, EndDate — включительные границы (nil — граница не задана)
	StartDate *time.Time
	EndDate   *time.Time
	// Include, Exclude — подстроки в исходном порядке, без пустых
	Include []string
	Exclude []string
	// Logic — AND или OR
	Logic Logic
	// CaseSensitive — учитывать регистр при поиске подстрок
	CaseSensitive bool
}

// Params — сырые параметры фильтра в том виде, в каком их присылает клиент.
type Params struct {
	StartDate     string   `json:"start_date"`
	EndDate       string   `json:"end_date"`
	Include       []string `json:"include"`
	Exclude       []string `json:"exclude"`
	Logic         string   `json:"logic"`
	CaseSensitive *bool    `json:"case_sensitive"`
}

// dateLayouts — допустимые форматы границ. Часовой пояс, если указан,
// отбрасывается: сравнение идёт по wall clock, как и у меток в логах.
var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NewSpec проверяет сырые параметры и строит Spec.
// Ошибки оборачивают model.ErrInvalidFilterSpec.
func NewSpec(p Params) (Spec, error) {
	spec := Spec{
		Logic:         LogicAnd,
		CaseSensitive: true,
		Include:       nonEmpty(p.Include),
		Exclude:       nonEmpty(p.Exclude),
	}

	if p.CaseSensitive != nil {
		spec.CaseSensitive = *p.CaseSensitive
	}

	switch strings.ToUpper(strings.TrimSpace(p.Logic)) {
	case "", string(LogicAnd):
		spec.Logic = LogicAnd
	case string(LogicOr):
		spec.Logic = LogicOr
	default:
		return Spec{}, fmt.Errorf("%w: logic должен быть AND или OR, получено %q", model.ErrInvalidFilterSpec, p.Logic)
	}

	var err error
	if spec.StartDate, err = parseBound(p.StartDate); err != nil {
		return Spec{}, fmt.Errorf("%w: start_date: %v", model.ErrInvalidFilterSpec, err)
	}
	if spec.EndDate, err = parseBound(p.EndDate); err != nil {
		return Spec{}, fmt.Errorf("%w: end_date: %v", model.ErrInvalidFilterSpec, err)
	}

	if err := spec.Validate(); err != nil {
		return Spec{}, err
	}
	return spec, nil
}

// Validate проверяет согласованность Spec.
func (s Spec) Validate() error {
	if s.Logic != LogicAnd && s.Logic != LogicOr {
		return fmt.Errorf("%w: неизвестная логика %q", model.ErrInvalidFilterSpec, s.Logic)
	}
	if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		return fmt.Errorf("%w: end_date (%s) раньше start_date (%s)",
			model.ErrInvalidFilterSpec,
			s.EndDate.Format(timestampLayout), s.StartDate.Format(timestampLayout))
	}
	return nil
}

// HasDateBound сообщает, задана ли хотя бы одна граница по дате.
func (s Spec) HasDateBound() bool {
	return s.StartDate != nil || s.EndDate != nil
}

// Key возвращает каноническое строковое представление Spec
// для ключей кэша и singleflight.
func (s Spec) Key() string {
	var b strings.Builder
	b.WriteString(string(s.Logic))
	fmt.Fprintf(&b, "|cs=%t", s.CaseSensitive)
	if s.StartDate != nil {
		b.WriteString("|from=" + s.StartDate.Format(time.RFC3339Nano))
	}
	if s.EndDate != nil {
		b.WriteString("|to=" + s.EndDate.Format(time.RFC3339Nano))
	}
	for _, term := range s.Include {
		fmt.Fprintf(&b, "|+%d:%s", len(term), term)
	}
	for _, term := range s.Exclude {
		fmt.Fprintf(&b, "|-%d:%s", len(term), term)
	}
	return b.String()
}

// parseBound разбирает границу даты. Пустая строка — граница не задана.
func parseBound(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		naive := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
		return &naive, nil
	}
	return nil, fmt.Errorf("неизвестный формат даты %q", raw)
}

func nonEmpty(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}
