package scheduler

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/amirphl/campaign-hub/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const defaultLogFile = "data/scheduler.log"

// newFileLogger writes to stdout and a size-rotated file. The returned closer
// releases the file; it is a no-op when only stdout could be used.
func newFileLogger(path, prefix string, rot config.LogRotation) (*log.Logger, io.Closer) {
	if path == "" {
		path = defaultLogFile
	}
	flags := log.LstdFlags | log.Lmicroseconds | log.LUTC
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		l := log.New(os.Stdout, prefix, flags)
		l.Printf("failed to create log directory for %s, logging to stdout only: %v", path, err)
		return l, nopCloser{}
	}
	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    orInt(rot.MaxSize, 50),
		MaxBackups: orInt(rot.MaxBackups, 5),
		MaxAge:     orInt(rot.MaxAge, 30),
		Compress:   rot.Compress,
	}
	return log.New(io.MultiWriter(os.Stdout, rotator), prefix, flags), rotator
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
