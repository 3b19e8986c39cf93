package model

import "errors"

// Классифицированные ошибки ядра. Оборачиваются через fmt.Errorf("...: %w")
// и распознаются вызывающим кодом через errors.Is.
var (
	// ErrNotFound — запись не существует или принадлежит другой сессии.
	ErrNotFound = errors.New("не найдено")
	// ErrIO — ошибка чтения или записи на диск.
	ErrIO = errors.New("ошибка ввода-вывода")
	// ErrInvalidFilterSpec — некорректные параметры фильтра.
	ErrInvalidFilterSpec = errors.New("некорректные параметры фильтра")
	// ErrCancelled — клиент отменил операцию (разрыв соединения).
	ErrCancelled = errors.New("операция отменена")
	// ErrStorageFull — превышена максимальная ёмкость хранилища.
	ErrStorageFull = errors.New("хранилище заполнено")
	// ErrTooLarge — файл превышает допустимый размер.
	ErrTooLarge = errors.New("файл слишком большой")
	// ErrBadExtension — допускаются только файлы .log.
	ErrBadExtension = errors.New("недопустимое расширение файла")
)
