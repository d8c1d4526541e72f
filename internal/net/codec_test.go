package net

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/pixil98/go-testutil"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	body := []byte{0x0A, 0x01, 0x02, 0x03}
	if err := WriteFrame(&buf, body); err != nil {
		t.Fatalf("write: %v", err)
	}
	testutil.AssertEqual(t, "frame length", buf.Len(), 2+4+len(body))
	testutil.AssertEqual(t, "size field", binary.LittleEndian.Uint16(buf.Bytes()[0:2]), uint16(4+len(body)))

	got, err := ReadFrame(&buf)
	testutil.AssertEqual(t, "err", err, nil)
	testutil.AssertEqual(t, "body", string(got), string(body))
}

func TestFrameChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteFrame(&buf, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw := buf.Bytes()
	raw[len(raw)-1] ^= 0xFF

	_, err := ReadFrame(bytes.NewReader(raw))
	testutil.AssertEqual(t, "checksum error", errors.Is(err, ErrBadChecksum), true)
}

func TestFrameTooLarge(t *testing.T) {
	err := WriteFrame(&bytes.Buffer{}, make([]byte, 30000))
	testutil.AssertEqual(t, "write too large", errors.Is(err, ErrFrameTooLarge), true)

	raw := []byte{0xFF, 0xFF, 0, 0, 0, 0}
	_, err = ReadFrame(bytes.NewReader(raw))
	testutil.AssertEqual(t, "read too large", errors.Is(err, ErrFrameTooLarge), true)
}

// referenceEncrypt is XTEA over little-endian words, as the client does it.
func referenceEncrypt(block []byte, k [4]uint32) {
	for i := 0; i+8 <= len(block); i += 8 {
		v0 := binary.LittleEndian.Uint32(block[i:])
		v1 := binary.LittleEndian.Uint32(block[i+4:])
		var sum uint32
		for r := 0; r < 32; r++ {
			v0 += (((v1 << 4) ^ (v1 >> 5)) + v1) ^ (sum + k[sum&3])
			sum += 0x9E3779B9
			v1 += (((v0 << 4) ^ (v0 >> 5)) + v0) ^ (sum + k[(sum>>11)&3])
		}
		binary.LittleEndian.PutUint32(block[i:], v0)
		binary.LittleEndian.PutUint32(block[i+4:], v1)
	}
}

func TestCipherMatchesClientWordOrder(t *testing.T) {
	key := [4]uint32{0x01234567, 0x89ABCDEF, 0xFEDCBA98, 0x76543210}
	c, err := NewCipher(key)
	testutil.AssertEqual(t, "err", err, nil)

	plain := []byte("sixteen byte msg")
	want := append([]byte(nil), plain...)
	referenceEncrypt(want, key)

	got := append([]byte(nil), plain...)
	c.Encrypt(got)
	testutil.AssertEqual(t, "ciphertext", string(got), string(want))

	c.Decrypt(got)
	testutil.AssertEqual(t, "plaintext", string(got), string(plain))
}

func TestSealOpen(t *testing.T) {
	c, _ := NewCipher([4]uint32{1, 2, 3, 4})
	payload := []byte{0x64, 0x10, 0x20, 0x30, 0x40}

	body := sealPayload(c, payload)
	testutil.AssertEqual(t, "padded", len(body)%BlockSize, 0)
	got, err := openPayload(c, body)
	testutil.AssertEqual(t, "err", err, nil)
	testutil.AssertEqual(t, "payload", string(got), string(payload))

	plain := sealPayload(nil, payload)
	testutil.AssertEqual(t, "plain length", len(plain), 2+len(payload))
	got, err = openPayload(nil, plain)
	testutil.AssertEqual(t, "err", err, nil)
	testutil.AssertEqual(t, "plain payload", string(got), string(payload))
}

func TestOpenRejectsBadLength(t *testing.T) {
	c, _ := NewCipher([4]uint32{1, 2, 3, 4})
	_, err := openPayload(c, make([]byte, 7))
	testutil.AssertErrorContains(t, err, "not a multiple")

	_, err = openPayload(nil, []byte{0xFF, 0x00, 0x01})
	testutil.AssertEqual(t, "declared too long", errors.Is(err, ErrBadLength), true)
}

func TestRSABlockRoundTrip(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	block := make([]byte, key.Size())
	block[1] = 0x42
	binary.LittleEndian.PutUint32(block[2:], 0xCAFEBABE)

	enc, err := EncryptRSABlock(&key.PublicKey, block)
	testutil.AssertEqual(t, "encrypt err", err, nil)
	dec, err := DecryptRSABlock(key, enc)
	testutil.AssertEqual(t, "decrypt err", err, nil)
	testutil.AssertEqual(t, "block", string(dec), string(block))

	_, err = DecryptRSABlock(key, block[:10])
	testutil.AssertErrorContains(t, err, "want 128")
}
