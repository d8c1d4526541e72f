package net

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/adler32"
	"io"

	"github.com/otgo/server/internal/net/packet"
)

var (
	ErrFrameTooLarge = errors.New("frame too large")
	ErrBadChecksum   = errors.New("frame checksum mismatch")
	ErrBadLength     = errors.New("invalid inner message length")
)

const checksumSize = 4

// ReadFrame reads one frame from r.
// Wire format: [2 bytes LE: size of checksum+body][4 bytes LE: adler32(body)][body].
// Returns the body without header and checksum.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [2]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	size := int(binary.LittleEndian.Uint16(header[:]))
	if size <= checksumSize {
		return nil, fmt.Errorf("invalid frame length: %d", size)
	}
	if size > packet.MaxMessageSize {
		return nil, fmt.Errorf("%w: %d", ErrFrameTooLarge, size)
	}

	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read frame body (%d bytes): %w", size, err)
	}
	body := buf[checksumSize:]
	if binary.LittleEndian.Uint32(buf[:checksumSize]) != adler32.Checksum(body) {
		return nil, ErrBadChecksum
	}
	return body, nil
}

// WriteFrame writes one frame to w with a single Write call, so message
// oriented transports carry exactly one frame per message.
func WriteFrame(w io.Writer, body []byte) error {
	size := len(body) + checksumSize
	if size > packet.MaxMessageSize {
		return fmt.Errorf("%w: %d", ErrFrameTooLarge, size)
	}
	buf := make([]byte, 2+size)
	binary.LittleEndian.PutUint16(buf[0:2], uint16(size))
	binary.LittleEndian.PutUint32(buf[2:6], adler32.Checksum(body))
	copy(buf[6:], body)

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// sealPayload prefixes the payload with its u16 length and, when a cipher is
// set, pads to the XTEA block size and encrypts in place.
func sealPayload(c *Cipher, payload []byte) []byte {
	n := 2 + len(payload)
	if c != nil && n%BlockSize != 0 {
		n += BlockSize - n%BlockSize
	}
	body := make([]byte, n)
	binary.LittleEndian.PutUint16(body[0:2], uint16(len(payload)))
	copy(body[2:], payload)
	for i := 2 + len(payload); i < n; i++ {
		body[i] = 0x33
	}
	if c != nil {
		c.Encrypt(body)
	}
	return body
}

// openPayload reverses sealPayload.
func openPayload(c *Cipher, body []byte) ([]byte, error) {
	if c != nil {
		if len(body)%BlockSize != 0 {
			return nil, fmt.Errorf("%w: body %d not a multiple of %d", ErrBadLength, len(body), BlockSize)
		}
		c.Decrypt(body)
	}
	if len(body) < 2 {
		return nil, ErrBadLength
	}
	n := int(binary.LittleEndian.Uint16(body[0:2]))
	if 2+n > len(body) {
		return nil, fmt.Errorf("%w: declared %d, have %d", ErrBadLength, n, len(body)-2)
	}
	return body[2 : 2+n], nil
}
