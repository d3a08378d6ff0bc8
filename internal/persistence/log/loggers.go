package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	stdlog "log"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"

	"yogiworld.io/internal/sim/world"
)

// JSONLZstdWriter appends JSON lines to hourly zstd-compressed files.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// WriteAt appends v to the file for the hour containing t.
func (w *JSONLZstdWriter) WriteAt(t time.Time, v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := t.UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	return w.w.WriteByte('\n')
}

// Flush pushes buffered lines out as a complete zstd block.
func (w *JSONLZstdWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return nil
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	return w.enc.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 32*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// Mirror receives every entry after it has been written, e.g. the sqlite
// index. It must not block.
type Mirror interface {
	WriteEntry(entry world.JournalEntry) error
}

const journalQueue = 4096

// Journal is the on-disk audit trail of joins, leaves, rewards and chat.
// WriteEntry only enqueues; a single goroutine owns the file.
type Journal struct {
	w      *JSONLZstdWriter
	mirror Mirror
	logger *stdlog.Logger

	ch chan world.JournalEntry
	wg sync.WaitGroup

	mu      sync.RWMutex
	closed  bool
	dropped atomic.Uint64
}

func NewJournal(dataDir string) *Journal {
	return newJournal(NewJSONLZstdWriter(JournalDir(dataDir), "journal"))
}

func newJournal(w *JSONLZstdWriter) *Journal {
	j := &Journal{
		w:      w,
		logger: stdlog.New(io.Discard, "", 0),
		ch:     make(chan world.JournalEntry, journalQueue),
	}
	j.wg.Add(1)
	go j.loop()
	return j
}

// JournalDir is where NewJournal writes its files.
func JournalDir(dataDir string) string { return filepath.Join(dataDir, "journal") }

// SetMirror and SetLogger must be called before the first WriteEntry.
func (j *Journal) SetMirror(m Mirror)         { j.mirror = m }
func (j *Journal) SetLogger(l *stdlog.Logger) { j.logger = l }
func (j *Journal) Dropped() uint64            { return j.dropped.Load() }

// WriteEntry enqueues e without blocking. Entries are dropped and counted
// when the writer falls behind.
func (j *Journal) WriteEntry(e world.JournalEntry) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil
	}
	select {
	case j.ch <- e:
	default:
		j.dropped.Add(1)
	}
	return nil
}

func (j *Journal) loop() {
	defer j.wg.Done()
	for e := range j.ch {
		at := e.Time
		if at.IsZero() {
			at = j.w.now()
		}
		if err := j.w.WriteAt(at, e); err != nil {
			j.logger.Printf("journal write: %v", err)
		}
		if j.mirror != nil {
			_ = j.mirror.WriteEntry(e)
		}
		// Flush once the queue is drained so a crash loses little.
		if len(j.ch) == 0 {
			if err := j.w.Flush(); err != nil {
				j.logger.Printf("journal flush: %v", err)
			}
		}
	}
}

// Close drains queued entries and closes the current file.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return nil
	}
	j.closed = true
	close(j.ch)
	j.mu.Unlock()
	j.wg.Wait()
	return j.w.Close()
}
