package packet

import (
	"encoding/binary"

	"github.com/otgo/server/internal/geo"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

const (
	// MaxMessageSize is the largest frame the client accepts.
	MaxMessageSize = 24590
	// MaxPayload leaves room for the frame length, checksum, inner length and XTEA padding.
	MaxPayload = MaxMessageSize - 16
	// MaxStringLength is the longest string WriteS will emit.
	MaxStringLength = 8192
)

// Writer builds a server packet. All multi-byte writes are little-endian.
// Writes that would exceed MaxPayload are dropped and recorded in Dropped.
type Writer struct {
	buf     []byte
	dropped bool
}

func NewWriter() *Writer {
	return &Writer{buf: make([]byte, 0, 64)}
}

func NewWriterWithOpcode(opcode byte) *Writer {
	w := NewWriter()
	w.WriteC(opcode)
	return w
}

func (w *Writer) canAdd(n int) bool {
	if len(w.buf)+n > MaxPayload {
		w.dropped = true
		return false
	}
	return true
}

// WriteC writes 1 byte.
func (w *Writer) WriteC(v byte) {
	if w.canAdd(1) {
		w.buf = append(w.buf, v)
	}
}

// WriteH writes 2 bytes little-endian.
func (w *Writer) WriteH(v uint16) {
	if w.canAdd(2) {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, v)
	}
}

// WriteD writes 4 bytes little-endian.
func (w *Writer) WriteD(v uint32) {
	if w.canAdd(4) {
		w.buf = binary.LittleEndian.AppendUint32(w.buf, v)
	}
}

// WriteS writes a u16 length-prefixed string, converting UTF-8 to ISO-8859-1.
// Runes outside Latin-1 are replaced.
func (w *Writer) WriteS(s string) {
	raw := []byte(s)
	if !isASCII(raw) {
		if encoded, err := encoding.ReplaceUnsupported(charmap.ISO8859_1.NewEncoder()).Bytes(raw); err == nil {
			raw = encoded
		}
	}
	if len(raw) > MaxStringLength || !w.canAdd(len(raw)+2) {
		w.dropped = true
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, uint16(len(raw)))
	w.buf = append(w.buf, raw...)
}

// WritePosition writes (u16 x, u16 y, u8 z).
func (w *Writer) WritePosition(p geo.Position) {
	if w.canAdd(5) {
		w.buf = binary.LittleEndian.AppendUint16(w.buf, p.X)
		w.buf = binary.LittleEndian.AppendUint16(w.buf, p.Y)
		w.buf = append(w.buf, p.Z)
	}
}

// WriteItem writes an item descriptor: client id plus the optional extra byte.
func (w *Writer) WriteItem(d ItemDescriptor) {
	n := 2
	if d.Extra != ExtraNone {
		n++
	}
	if !w.canAdd(n) {
		return
	}
	w.buf = binary.LittleEndian.AppendUint16(w.buf, d.ClientID)
	if d.Extra != ExtraNone {
		w.buf = append(w.buf, d.Value)
	}
}

// WriteBytes writes raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	if w.canAdd(len(b)) {
		w.buf = append(w.buf, b...)
	}
}

// Append copies another packet into w. It reports false, writing nothing,
// when the packet does not fit.
func (w *Writer) Append(o *Writer) bool {
	if len(w.buf)+len(o.buf) > MaxPayload {
		return false
	}
	w.buf = append(w.buf, o.buf...)
	return true
}

// Bytes returns the packet content.
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len returns the current length.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Free returns how many more bytes fit.
func (w *Writer) Free() int {
	return MaxPayload - len(w.buf)
}

// Dropped reports whether any write was discarded for lack of space.
func (w *Writer) Dropped() bool {
	return w.dropped
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= 0x80 {
			return false
		}
	}
	return true
}
