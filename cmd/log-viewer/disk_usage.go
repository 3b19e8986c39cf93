// disk_usage.go — ёмкость файловой системы директории данных для /api/v1/info.
package main

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// getDiskUsage возвращает total, used, available в байтах для файловой
// системы, на которой лежит path. available — место, доступное
// непривилегированному процессу (Bavail).
func getDiskUsage(path string) (total, used, available int64, err error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return 0, 0, 0, fmt.Errorf("ошибка statfs %s: %w", path, err)
	}

	bsize := int64(st.Bsize) //nolint:unconvert // тип Bsize зависит от платформы
	total = int64(st.Blocks) * bsize
	available = int64(st.Bavail) * bsize
	used = total - int64(st.Bfree)*bsize

	return total, used, available, nil
}
