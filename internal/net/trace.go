package net

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// Trace directions.
const (
	TraceIn  byte = 'I'
	TraceOut byte = 'O'
)

// TraceRecord is one captured plaintext payload.
type TraceRecord struct {
	Dir     byte
	At      time.Time
	Payload []byte
}

// Tracer writes a zstd-compressed capture of one connection's plaintext
// payloads. Record layout: [dir u8][unix nanos i64 LE][len u32 LE][payload].
// A nil *Tracer is valid and records nothing.
type Tracer struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
}

// NewTracer creates dir/conn-<id>-<unix>.trace.zst.
func NewTracer(dir string, connID uint64) (*Tracer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	name := fmt.Sprintf("conn-%d-%d.trace.zst", connID, time.Now().Unix())
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Tracer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 32*1024)}, nil
}

// Record appends one payload. Errors are swallowed; tracing is best effort.
func (t *Tracer) Record(dir byte, payload []byte) {
	if t == nil {
		return
	}
	var hdr [13]byte
	hdr[0] = dir
	binary.LittleEndian.PutUint64(hdr[1:9], uint64(time.Now().UnixNano()))
	binary.LittleEndian.PutUint32(hdr[9:13], uint32(len(payload)))

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return
	}
	_, _ = t.w.Write(hdr[:])
	_, _ = t.w.Write(payload)
}

// Close flushes and closes the capture file.
func (t *Tracer) Close() error {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.w == nil {
		return nil
	}
	var errs []error
	errs = append(errs, t.w.Flush(), t.enc.Close(), t.f.Close())
	t.w, t.enc, t.f = nil, nil, nil
	return errors.Join(errs...)
}

// ReadTrace decodes a capture written by Tracer.
func ReadTrace(r io.Reader) ([]TraceRecord, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	br := bufio.NewReader(dec)
	var out []TraceRecord
	for {
		var hdr [13]byte
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("trace header: %w", err)
		}
		n := binary.LittleEndian.Uint32(hdr[9:13])
		payload := make([]byte, n)
		if _, err := io.ReadFull(br, payload); err != nil {
			return out, fmt.Errorf("trace payload: %w", err)
		}
		out = append(out, TraceRecord{
			Dir:     hdr[0],
			At:      time.Unix(0, int64(binary.LittleEndian.Uint64(hdr[1:9]))),
			Payload: payload,
		})
	}
}
