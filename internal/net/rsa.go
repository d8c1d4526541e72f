package net

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
)

// LoadRSAKey reads a PEM encoded private key (PKCS#1 or PKCS#8).
func LoadRSAKey(path string) (*rsa.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rsa key %s: %w", path, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("rsa key %s: no PEM block", path)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		key.Precompute()
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse rsa key %s: %w", path, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("rsa key %s: not an RSA key", path)
	}
	key.Precompute()
	return key, nil
}

// DecryptRSABlock applies the raw (unpadded) RSA private operation m = c^d mod n
// to one modulus-sized block, as the client encrypts without padding.
// The result is left-padded to the modulus size.
func DecryptRSABlock(key *rsa.PrivateKey, block []byte) ([]byte, error) {
	size := key.Size()
	if len(block) != size {
		return nil, fmt.Errorf("rsa block is %d bytes, want %d", len(block), size)
	}
	c := new(big.Int).SetBytes(block)
	if c.Cmp(key.N) >= 0 {
		return nil, errors.New("rsa block out of range")
	}
	m := new(big.Int).Exp(c, key.D, key.N)
	out := make([]byte, size)
	m.FillBytes(out)
	return out, nil
}

// EncryptRSABlock is the public counterpart used by clients and tests.
func EncryptRSABlock(pub *rsa.PublicKey, block []byte) ([]byte, error) {
	size := pub.Size()
	if len(block) != size {
		return nil, fmt.Errorf("rsa block is %d bytes, want %d", len(block), size)
	}
	m := new(big.Int).SetBytes(block)
	if m.Cmp(pub.N) >= 0 {
		return nil, errors.New("rsa block out of range")
	}
	c := new(big.Int).Exp(m, big.NewInt(int64(pub.E)), pub.N)
	out := make([]byte, size)
	c.FillBytes(out)
	return out, nil
}
