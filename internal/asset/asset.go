package asset

import (
	"bytes"
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"history-recorder/internal/record"
)

// ErrUnavailable marks any failure to produce an asset's plaintext:
// network, auth, checksum or decryption.
var ErrUnavailable = errors.New("asset unavailable")

// Source downloads the raw (possibly encrypted) bytes of an asset.
type Source interface {
	Download(ctx context.Context, key, token string) ([]byte, error)
}

// Fetcher resolves an asset reference into plaintext bytes.
type Fetcher interface {
	Fetch(ctx context.Context, a record.Asset) ([]byte, error)
}

// Resolver verifies and decrypts what its Source downloads.
type Resolver struct {
	source Source
}

func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

func (r *Resolver) Fetch(ctx context.Context, a record.Asset) ([]byte, error) {
	if a.Key == "" {
		return nil, fmt.Errorf("%w: empty asset key", ErrUnavailable)
	}
	data, err := r.source.Download(ctx, a.Key, a.Token)
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: download %s: %v", ErrUnavailable, a.Key, err)
	}
	if len(a.Checksum) > 0 {
		sum := sha256.Sum256(data)
		if !bytes.Equal(sum[:], a.Checksum) {
			return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrUnavailable, a.Key)
		}
	}
	if len(a.DecryptionKey) == 0 {
		return data, nil
	}
	plain, err := Decrypt(a.DecryptionKey, data)
	if err != nil {
		return nil, fmt.Errorf("%w: decrypt %s: %v", ErrUnavailable, a.Key, err)
	}
	return plain, nil
}

// Decrypt reverses Encrypt: AES-256-CBC with the IV prepended and PKCS#7 padding.
func Decrypt(key, data []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(data) < 2*aes.BlockSize || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a positive multiple of the block size", len(data))
	}
	iv, ciphertext := data[:aes.BlockSize], data[aes.BlockSize:]
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, ciphertext)

	pad := int(plain[len(plain)-1])
	if pad == 0 || pad > aes.BlockSize || pad > len(plain) {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range plain[len(plain)-pad:] {
		if int(b) != pad {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return plain[:len(plain)-pad], nil
}

// Encrypt produces the payload format Decrypt expects, with a random IV.
func Encrypt(key, plain []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	pad := aes.BlockSize - len(plain)%aes.BlockSize
	padded := append(append([]byte{}, plain...), bytes.Repeat([]byte{byte(pad)}, pad)...)

	out := make([]byte, aes.BlockSize+len(padded))
	if _, err := io.ReadFull(rand.Reader, out[:aes.BlockSize]); err != nil {
		return nil, fmt.Errorf("generate iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, out[:aes.BlockSize]).CryptBlocks(out[aes.BlockSize:], padded)
	return out, nil
}
