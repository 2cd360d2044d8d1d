package store

import (
	"os"
	"sync"
	"time"
)

// watchRecords — последнее увиденное время модификации файлов (path → mtime).
//
// Файл считается изменённым, если его mtime отличается от записи
// или записи нет. Запись обновляется в момент начала загрузки,
// а не после её успеха: битый файл не перечитывается, пока его не изменят.
type watchRecords struct {
	mu      sync.Mutex
	records map[string]time.Time
}

func newWatchRecords() *watchRecords {
	return &watchRecords{records: make(map[string]time.Time)}
}

// changed сообщает, изменился ли файл с момента последней записи.
// Ошибка stat считается изменением: загрузка покажет реальную причину.
func (w *watchRecords) changed(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	seen, ok := w.records[path]
	return !ok || !seen.Equal(info.ModTime())
}

// record сохраняет текущее mtime файла.
func (w *watchRecords) record(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.records[path] = info.ModTime()
	w.mu.Unlock()

	return nil
}

// forget удаляет запись о файле.
func (w *watchRecords) forget(path string) {
	w.mu.Lock()
	delete(w.records, path)
	w.mu.Unlock()
}
