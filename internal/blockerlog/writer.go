package blockerlog

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/nightshift-sh/nightshift/internal/blocker"
	"github.com/nightshift-sh/nightshift/pkg/config"
	"github.com/nightshift-sh/nightshift/pkg/logger"
)

const (
	// logFilePermissions is the permission mode for the blocker log.
	logFilePermissions = 0o600

	// logDirPermissions is the permission mode for the log directory.
	logDirPermissions = 0o700

	// backupTimestampFormat names rotated files: filesystem-safe, derived
	// from ISO-8601, sorts chronologically.
	backupTimestampFormat = "20060102-150405"
)

// Writer appends rendered blocker records to the configured log file.
// Appends for the same destination path are serialized so near-simultaneous
// blockers never interleave mid-record, even across sessions sharing one
// destination.
type Writer struct {
	mu        sync.Mutex
	pathLocks map[string]*sync.Mutex

	config      *config.DivertConfig
	projectRoot string
	templates   *TemplateStore
	logger      logger.Logger

	// now is injectable for tests.
	now func() time.Time
}

// WriterOption configures the Writer.
type WriterOption func(*Writer)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) WriterOption {
	return func(w *Writer) {
		if log != nil {
			w.logger = log
		}
	}
}

// WithTimeFunc sets a custom time function for testing.
func WithTimeFunc(fn func() time.Time) WriterOption {
	return func(w *Writer) {
		if fn != nil {
			w.now = fn
		}
	}
}

// WithTemplateStore sets a shared template store.
func WithTemplateStore(store *TemplateStore) WriterOption {
	return func(w *Writer) {
		if store != nil {
			w.templates = store
		}
	}
}

// NewWriter creates a Writer rooted at projectRoot.
func NewWriter(cfg *config.DivertConfig, projectRoot string, opts ...WriterOption) *Writer {
	w := &Writer{
		pathLocks:   make(map[string]*sync.Mutex),
		config:      cfg,
		projectRoot: projectRoot,
		logger:      logger.NewNoOpLogger(),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	if w.templates == nil {
		w.templates = NewTemplateStore(w.logger)
	}

	return w
}

// Append renders and appends one blocker record. It returns (true, nil) on
// success and (false, nil) on ordinary I/O failure, which is logged and
// left for the caller to retry; the agent-facing flow must never see an
// internal I/O failure. Only a path-security violation returns an error.
func (w *Writer) Append(b *blocker.Blocker) (bool, error) {
	path, err := w.resolvePath()
	if err != nil {
		return false, err
	}

	lock := w.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	rendered := Render(w.templates.Load(w.projectRoot, w.config.GetTemplateFile()), b)

	count, countErr := countRecords(path)
	if countErr != nil {
		w.logger.Error("failed to count blocker records",
			"path", path,
			"error", countErr.Error(),
		)
		// Degrade to a plain append; rotation will catch up next time.
		count = 0
	}

	if count >= w.config.GetMaxRecordsPerFile() {
		if rotateErr := w.rotateLocked(path); rotateErr != nil {
			w.logger.Error("failed to rotate blocker log",
				"path", path,
				"error", rotateErr.Error(),
			)
		}
	}

	if writeErr := appendRecord(path, rendered); writeErr != nil {
		w.logger.Error("failed to append blocker record",
			"path", path,
			"blocker", b.ID,
			"error", writeErr.Error(),
		)

		return false, nil
	}

	w.logger.Info("blocker recorded",
		"blocker", b.ID,
		"category", b.Category.String(),
		"path", path,
	)

	return true, nil
}

// Count returns the number of records currently in the log file.
func (w *Writer) Count() (int, error) {
	path, err := w.resolvePath()
	if err != nil {
		return 0, err
	}

	lock := w.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	return countRecords(path)
}

// Path returns the resolved destination path.
func (w *Writer) Path() (string, error) {
	return w.resolvePath()
}

// Stats describes the current blocker log for the CLI.
type Stats struct {
	// Path is the resolved log location.
	Path string

	// Records is the record count in the live file.
	Records int

	// SizeBytes is the live file size.
	SizeBytes int64

	// Backups is the number of rotated backup files.
	Backups int

	// ModTime is the live file's last modification time.
	ModTime time.Time
}

// Stat reports blocker log statistics. A missing file yields zero stats.
func (w *Writer) Stat() (*Stats, error) {
	path, err := w.resolvePath()
	if err != nil {
		return nil, err
	}

	lock := w.lockFor(path)
	lock.Lock()
	defer lock.Unlock()

	stats := &Stats{Path: path}

	info, statErr := os.Stat(path)
	if statErr != nil {
		if os.IsNotExist(statErr) {
			return stats, nil
		}

		return nil, errors.Wrap(statErr, "checking blocker log")
	}

	stats.SizeBytes = info.Size()
	stats.ModTime = info.ModTime()

	records, countErr := countRecords(path)
	if countErr != nil {
		return nil, countErr
	}

	stats.Records = records
	stats.Backups = countBackups(path)

	return stats, nil
}

// resolvePath validates the configured destination against the project root.
func (w *Writer) resolvePath() (string, error) {
	return ResolveWithinRoot(w.config.GetBlockersFile(), w.projectRoot)
}

// lockFor returns the serialization mutex for a destination path.
func (w *Writer) lockFor(path string) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()

	lock, ok := w.pathLocks[path]
	if !ok {
		lock = &sync.Mutex{}
		w.pathLocks[path] = lock
	}

	return lock
}

// rotateLocked renames the current file to a timestamp-suffixed backup.
// A missing file means nothing to rotate, not an error.
// Must be called with the path lock held.
func (w *Writer) rotateLocked(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}

		return errors.Wrap(err, "checking blocker log for rotation")
	}

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	backupPath := base + "." + w.now().Format(backupTimestampFormat) + ext

	if err := os.Rename(path, backupPath); err != nil {
		return errors.Wrap(err, "rotating blocker log")
	}

	w.logger.Info("rotated blocker log",
		"from", path,
		"to", backupPath,
	)

	return nil
}

// appendRecord creates parent directories as needed and appends the
// rendered record in a single write.
func appendRecord(path, rendered string) error {
	if err := os.MkdirAll(filepath.Dir(path), logDirPermissions); err != nil {
		return errors.Wrap(err, "creating blocker log directory")
	}

	//nolint:gosec // G304: path was validated against the project root
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, logFilePermissions)
	if err != nil {
		return errors.Wrap(err, "opening blocker log")
	}

	_, writeErr := file.WriteString(rendered)

	if closeErr := file.Close(); writeErr == nil {
		writeErr = closeErr
	}

	return errors.Wrap(writeErr, "writing blocker record")
}

// countRecords scans the file for line-anchored record markers. A missing
// file counts as zero records.
func countRecords(path string) (int, error) {
	//nolint:gosec // G304: path was validated against the project root
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}

		return 0, errors.Wrap(err, "opening blocker log for counting")
	}

	defer func() {
		_ = file.Close()
	}()

	count := 0
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		if strings.HasPrefix(scanner.Text(), RecordMarkerPrefix) {
			count++
		}
	}

	if scanErr := scanner.Err(); scanErr != nil {
		return 0, errors.Wrap(scanErr, "scanning blocker log")
	}

	return count, nil
}

// countBackups counts rotated files matching base.<timestamp><ext>.
func countBackups(path string) int {
	dir := filepath.Dir(path)
	ext := filepath.Ext(path)
	base := filepath.Base(strings.TrimSuffix(path, ext))

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}

	count := 0

	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasPrefix(name, base+".") || !strings.HasSuffix(name, ext) {
			continue
		}

		middle := strings.TrimPrefix(name, base+".")
		middle = strings.TrimSuffix(middle, ext)

		if len(middle) == len(backupTimestampFormat) && middle[8] == '-' {
			count++
		}
	}

	return count
}
