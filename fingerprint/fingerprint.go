package fingerprint

import (
	"context"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/nguyengg/xchm/util"
)

// Algorithm names the hash function used to fingerprint an archive.
type Algorithm string

const (
	// SHA256 is the default algorithm.
	SHA256 Algorithm = "sha256"
	// SHA1 is available for bookshelves created with it.
	SHA1 Algorithm = "sha1"
	// MD5 produces the same directory names as chmsee bookshelves.
	MD5 Algorithm = "md5"
)

// ParseAlgorithm parses the case-insensitive name of an algorithm.
//
// Empty string returns SHA256.
func ParseAlgorithm(v string) (Algorithm, error) {
	switch a := Algorithm(strings.ToLower(strings.TrimSpace(v))); a {
	case "":
		return SHA256, nil
	case SHA256, SHA1, MD5:
		return a, nil
	default:
		return "", fmt.Errorf("unknown fingerprint algorithm %q", v)
	}
}

// NamedHash is a hash.Hash with the name of its algorithm.
//
// The zero value is ready for use with SHA256 as the algorithm.
type NamedHash struct {
	hash.Hash

	// Name is the algorithm of the hash.
	Name Algorithm
}

// New returns a new NamedHash for the given algorithm.
func New(alg Algorithm) (*NamedHash, error) {
	switch alg {
	case SHA256, "":
		return &NamedHash{Hash: sha256.New(), Name: SHA256}, nil
	case SHA1:
		return &NamedHash{Hash: sha1.New(), Name: SHA1}, nil
	case MD5:
		return &NamedHash{Hash: md5.New(), Name: MD5}, nil
	default:
		return nil, fmt.Errorf("unknown fingerprint algorithm %q", alg)
	}
}

// Write implements io.Writer, lazily using sha256 if no hash.Hash was given.
func (h *NamedHash) Write(p []byte) (int, error) {
	if h.Hash == nil {
		h.Hash, h.Name = sha256.New(), SHA256
	}

	return h.Hash.Write(p)
}

// SumToString appends the current hash to b and returns it as a lowercase hex string.
//
// Unlike a subresource integrity string, the algorithm name is not prefixed so that the result can be used as a
// directory name as-is.
func (h *NamedHash) SumToString(b []byte) string {
	if h.Hash == nil {
		h.Hash, h.Name = sha256.New(), SHA256
	}

	return hex.EncodeToString(h.Sum(b))
}

// Reader returns the fingerprint of everything read from src.
func Reader(ctx context.Context, src io.Reader, alg Algorithm) (string, error) {
	h, err := New(alg)
	if err != nil {
		return "", err
	}

	if _, err = util.CopyBufferWithContext(ctx, h, src, nil); err != nil {
		return "", err
	}

	return h.SumToString(nil), nil
}

// File returns the fingerprint of the named file.
//
// The result is a pure function of the file's bytes.
func File(ctx context.Context, name string, alg Algorithm) (string, error) {
	f, err := os.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close()

	v, err := Reader(ctx, f, alg)
	if err != nil {
		return "", fmt.Errorf(`read file "%s" error: %w`, name, err)
	}

	return v, nil
}
