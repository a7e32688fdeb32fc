// Package logging provides widesky-ingest's structured logger: zap
// writing UTF-8, timestamped lines to a size-rotating file at
// <dir>/widesky.log (5 MiB per file, 3 backups), rotated by
// lumberjack. The file I/O runs on a dedicated goroutine fed by a
// buffered channel so logging calls on the hot path never block on
// disk.
package logging

import (
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileMegabytes = 5
	backupCount      = 3
	logFileName      = "widesky.log"

	asyncBufferSize = 4096
)

// asyncWriter decouples callers from file I/O: Write copies the
// message onto a channel and returns immediately; a single goroutine
// drains the channel onto the underlying lumberjack.Logger, which
// owns the rotate-at-size/keep-N-backups mechanics.
type asyncWriter struct {
	ch   chan []byte
	done chan struct{}
}

func newAsyncWriter(rf *lumberjack.Logger) *asyncWriter {
	w := &asyncWriter{
		ch:   make(chan []byte, asyncBufferSize),
		done: make(chan struct{}),
	}
	go func() {
		defer close(w.done)
		for p := range w.ch {
			_, _ = rf.Write(p)
		}
		_ = rf.Close()
	}()
	return w
}

// Write implements io.Writer/zapcore.WriteSyncer. It copies p because
// zap may reuse its buffer after Write returns.
func (w *asyncWriter) Write(p []byte) (int, error) {
	cp := make([]byte, len(p))
	copy(cp, p)
	select {
	case w.ch <- cp:
	default:
		// Buffer full: drop rather than block the hot path. This is the
		// same acceptable-loss posture the pipeline takes with batch
		// flush failures — logging is diagnostic, never load-bearing.
	}
	return len(p), nil
}

func (w *asyncWriter) Sync() error { return nil }

func (w *asyncWriter) stop() {
	close(w.ch)
	<-w.done
}

// Logger wraps a *zap.Logger together with the async file writer it
// owns, so callers can flush and stop it on shutdown.
type Logger struct {
	*zap.Logger
	async *asyncWriter
}

// New creates a Logger writing to <dir>/widesky.log.
func New(dir string) (*Logger, error) {
	rf := &lumberjack.Logger{
		Filename:   filepath.Join(dir, logFileName),
		MaxSize:    maxFileMegabytes,
		MaxBackups: backupCount,
	}
	async := newAsyncWriter(rf)

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewJSONEncoder(encoderCfg)

	core := zapcore.NewCore(encoder, async, zap.NewAtomicLevelAt(zapcore.InfoLevel))
	zl := zap.New(core)

	return &Logger{Logger: zl, async: async}, nil
}

// Close flushes and stops the background writer. Call once during
// lifecycle shutdown, after all workers have stopped logging.
func (l *Logger) Close() error {
	_ = l.Logger.Sync()
	l.async.stop()
	return nil
}
