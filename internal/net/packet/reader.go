package packet

import (
	"encoding/binary"

	"github.com/otgo/server/internal/geo"
	"golang.org/x/text/encoding/charmap"
)

// Reader reads protocol fields from a decrypted payload. Reads past the end of
// the declared payload mark the reader as overrun and return zero values; the
// session checks Overrun once after the whole packet has been handled.
type Reader struct {
	data    []byte
	off     int
	overrun bool
}

func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

func (r *Reader) canRead(n int) bool {
	if n < 0 || r.off+n > len(r.data) {
		r.overrun = true
		return false
	}
	return true
}

// ReadC reads 1 unsigned byte.
func (r *Reader) ReadC() byte {
	if !r.canRead(1) {
		return 0
	}
	v := r.data[r.off]
	r.off++
	return v
}

// ReadH reads 2 bytes as little-endian uint16.
func (r *Reader) ReadH() uint16 {
	if !r.canRead(2) {
		return 0
	}
	v := binary.LittleEndian.Uint16(r.data[r.off:])
	r.off += 2
	return v
}

// ReadD reads 4 bytes as little-endian uint32.
func (r *Reader) ReadD() uint32 {
	if !r.canRead(4) {
		return 0
	}
	v := binary.LittleEndian.Uint32(r.data[r.off:])
	r.off += 4
	return v
}

// ReadS reads a u16 length-prefixed ISO-8859-1 string and returns UTF-8.
func (r *Reader) ReadS() string {
	n := int(r.ReadH())
	if !r.canRead(n) {
		return ""
	}
	raw := r.data[r.off : r.off+n]
	r.off += n
	return latin1ToUTF8(raw)
}

// ReadPosition reads (u16 x, u16 y, u8 z).
func (r *Reader) ReadPosition() geo.Position {
	if !r.canRead(5) {
		return geo.Position{}
	}
	return geo.Position{X: r.ReadH(), Y: r.ReadH(), Z: r.ReadC()}
}

// ReadItem reads an item descriptor. traits resolves whether the client id
// carries the extra byte.
func (r *Reader) ReadItem(traits func(clientID uint16) ItemTraits) ItemDescriptor {
	d := ItemDescriptor{ClientID: r.ReadH()}
	d.Extra = traits(d.ClientID).Extra()
	if d.Extra != ExtraNone {
		d.Value = r.ReadC()
	}
	return d
}

// ReadBytes reads n raw bytes. A short read returns nil.
func (r *Reader) ReadBytes(n int) []byte {
	if !r.canRead(n) {
		return nil
	}
	b := make([]byte, n)
	copy(b, r.data[r.off:r.off+n])
	r.off += n
	return b
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) {
	if r.canRead(n) {
		r.off += n
	}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Overrun reports whether any read went past the end of the payload.
func (r *Reader) Overrun() bool {
	return r.overrun
}

func latin1ToUTF8(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	allASCII := true
	for _, b := range raw {
		if b >= 0x80 {
			allASCII = false
			break
		}
	}
	if allASCII {
		return string(raw)
	}
	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}
