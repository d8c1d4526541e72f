package net

import (
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/xtea"
)

// BlockSize is the XTEA block size in bytes.
const BlockSize = xtea.BlockSize

// Cipher is the per-connection XTEA cipher keyed during the handshake. The
// client packs each 32-bit half-block little-endian, while x/crypto/xtea reads
// big-endian, so every word is byte-swapped around the block call.
// XTEA carries no state between blocks, so one Cipher serves both directions
// and may be used by the reader and writer goroutines concurrently.
type Cipher struct {
	block *xtea.Cipher
}

// NewCipher creates a cipher from the four key words sent by the client.
func NewCipher(key [4]uint32) (*Cipher, error) {
	var k [16]byte
	for i, word := range key {
		binary.BigEndian.PutUint32(k[i*4:], word)
	}
	block, err := xtea.NewCipher(k[:])
	if err != nil {
		return nil, fmt.Errorf("xtea: %w", err)
	}
	return &Cipher{block: block}, nil
}

// Encrypt encrypts data in place. len(data) must be a multiple of BlockSize.
func (c *Cipher) Encrypt(data []byte) {
	var tmp [BlockSize]byte
	for i := 0; i+BlockSize <= len(data); i += BlockSize {
		swapWords(tmp[:], data[i:i+BlockSize])
		c.block.Encrypt(tmp[:], tmp[:])
		swapWords(data[i:i+BlockSize], tmp[:])
	}
}

// Decrypt decrypts data in place. len(data) must be a multiple of BlockSize.
func (c *Cipher) Decrypt(data []byte) {
	var tmp [BlockSize]byte
	for i := 0; i+BlockSize <= len(data); i += BlockSize {
		swapWords(tmp[:], data[i:i+BlockSize])
		c.block.Decrypt(tmp[:], tmp[:])
		swapWords(data[i:i+BlockSize], tmp[:])
	}
}

// swapWords reverses the byte order of both 32-bit words of an 8-byte block.
func swapWords(dst, src []byte) {
	dst[0], dst[1], dst[2], dst[3] = src[3], src[2], src[1], src[0]
	dst[4], dst[5], dst[6], dst[7] = src[7], src[6], src[5], src[4]
}
