// Package datalog records telemetry rows to CSV files.
package datalog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/pkg/errors"
)

// FileNameLayout names a log file after the time it was opened.
const FileNameLayout = "log-Jan-02-2006-15-04.csv"

// ErrClosed is returned when appending to a closed Logger.
var ErrClosed = errors.New("data log closed")

// Logger writes rows to a CSV file, flushing after every row.
type Logger struct {
	path string

	lock sync.Mutex
	file *os.File
	w    *csv.Writer
}

// Open creates a log file under dir and writes header as the first row.
func Open(dir string, header []string) (*Logger, error) {
	return OpenAt(dir, time.Now(), header)
}

// OpenAt is Open with the file named after t.
func OpenAt(dir string, t time.Time, header []string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create data log dir")
	}
	path := filepath.Join(dir, t.Format(FileNameLayout))
	glog.Infof("preparing data logging file at %s", path)
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create data log")
	}
	l := &Logger{path: path, file: f, w: csv.NewWriter(f)}
	if err := l.Append(header); err != nil {
		f.Close()
		return nil, err
	}
	return l, nil
}

// Path returns the file path.
func (l *Logger) Path() string {
	return l.path
}

// Append writes one row.
func (l *Logger) Append(row []string) error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.w == nil {
		return ErrClosed
	}
	if err := l.w.Write(row); err != nil {
		return errors.Wrap(err, "write data log")
	}
	l.w.Flush()
	return errors.Wrap(l.w.Error(), "write data log")
}

// Close flushes and closes the file. It's safe to call more than once.
func (l *Logger) Close() error {
	l.lock.Lock()
	defer l.lock.Unlock()
	if l.w == nil {
		return nil
	}
	glog.V(1).Infof("closing data log %s", l.path)
	l.w.Flush()
	err := l.w.Error()
	if cerr := l.file.Close(); err == nil {
		err = cerr
	}
	l.w, l.file = nil, nil
	return err
}
