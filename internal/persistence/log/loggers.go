package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// JSONLZstdWriter appends JSON lines to hourly zstd files named
// <prefix>-YYYY-MM-DD-HH.jsonl.zst under baseDir.
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
	return &JSONLZstdWriter{baseDir: baseDir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hour := w.now().UTC().Format("2006-01-02-15"); hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.w.Write(append(b, '\n')); err != nil {
		return err
	}
	if err := w.w.Flush(); err != nil {
		return err
	}
	// a frame per record keeps the file readable while it is still open
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
	w.f, w.enc, w.curHour = f, enc, hour
	w.w = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.w != nil {
		_ = w.w.Flush()
		w.w = nil
	}
	if w.enc != nil {
		err = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	return err
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

const maxRejectBody = 64 << 10

// RejectedOverlay is one overlay payload that failed validation.
type RejectedOverlay struct {
	ID        string `json:"id"`
	At        string `json:"at"`
	Source    string `json:"source"`
	Reason    string `json:"reason"`
	Size      int    `json:"size"`
	Truncated bool   `json:"truncated,omitempty"`
	Body      string `json:"body"`
}

// RejectLog records rejected overlay payloads so bad upstream data can be
// inspected after the fact.
type RejectLog struct {
	w   *JSONLZstdWriter
	err func(error)
}

// NewRejectLog writes under dir/rejected. onErr, if set, receives write
// failures; Reject itself never fails.
func NewRejectLog(dir string, onErr func(error)) *RejectLog {
	return &RejectLog{w: NewJSONLZstdWriter(filepath.Join(dir, "rejected"), "overlay"), err: onErr}
}

func (l *RejectLog) Reject(source, reason string, body []byte) {
	rec := RejectedOverlay{
		ID:     uuid.NewString(),
		At:     l.w.now().UTC().Format(time.RFC3339Nano),
		Source: source,
		Reason: reason,
		Size:   len(body),
	}
	if len(body) > maxRejectBody {
		body = body[:maxRejectBody]
		rec.Truncated = true
	}
	rec.Body = string(body)
	if err := l.w.Write(rec); err != nil && l.err != nil {
		l.err(err)
	}
}

func (l *RejectLog) Close() error { return l.w.Close() }

// RejectFiles lists the reject log files under dir, oldest first.
func RejectFiles(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "rejected", "overlay-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadRejected decodes every record in one reject log file.
func ReadRejected(path string) ([]RejectedOverlay, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []RejectedOverlay
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for sc.Scan() {
		var r RejectedOverlay
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return out, fmt.Errorf("%s: %w", path, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
