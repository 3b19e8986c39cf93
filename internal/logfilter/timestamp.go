// Пакет logfilter — потоковый построчный фильтр лог-файлов.
//
// Файл читается один раз, строка за строкой; в памяти одновременно
// находится не больше одной строки (ограниченной MaxLineBytes) и
// не больше MaxResults совпавших строк результата.
package logfilter

import (
	"bytes"
	"regexp"
	"time"
)

// timestampPattern — метка вида [2025-11-19 08:03:22] в любом месте строки.
// Побеждает первое структурное совпадение.
var timestampPattern = regexp.MustCompile(`\[(\d{4}-\d{2}-\d{2})\s+(\d{2}:\d{2}:\d{2})\]`)

const timestampLayout = "2006-01-02 15:04:05"

// ExtractTimestamp извлекает метку времени из строки лога.
// Возвращает nil, если метки нет или первое совпадение не является
// реальной датой (например, месяц 13) — такая строка считается строкой
// без времени.
func ExtractTimestamp(line []byte) *time.Time {
	// Быстрый путь: без '[' совпадения быть не может
	if bytes.IndexByte(line, '[') < 0 {
		return nil
	}

	m := timestampPattern.FindSubmatch(line)
	if m == nil {
		return nil
	}

	ts, err := time.ParseInLocation(timestampLayout, string(m[1])+" "+string(m[2]), time.UTC)
	if err != nil {
		return nil
	}
	return &ts
}
