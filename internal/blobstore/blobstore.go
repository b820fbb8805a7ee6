// Package blobstore keeps generated media on the local filesystem under a
// single root and hands out opaque blob:// references to it.
package blobstore

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"brandkit/internal/services"
)

// RefScheme prefixes every reference returned by the store.
const RefScheme = "blob://"

// Object describes a stored blob.
type Object struct {
	Ref       string
	Key       string
	SizeBytes int64
	SHA256    string
}

// Store writes and reads blobs below Root.
type Store struct {
	root string
}

// New creates the root directory when missing.
func New(root string) (*Store, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, services.Wrap(services.ErrConfiguration, "blobstore", "open", "blob root is empty", nil)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve blob root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &Store{root: abs}, nil
}

// Root returns the absolute blob directory.
func (s *Store) Root() string { return s.root }

// Ref formats a key as a blob reference.
func Ref(key string) string { return RefScheme + key }

// KeyFromRef strips the scheme and validates the key.
func KeyFromRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, RefScheme) {
		return "", services.Wrap(services.ErrValidation, "blobstore", "parse ref", fmt.Sprintf("not a blob reference: %q", ref), nil)
	}
	key := strings.TrimPrefix(ref, RefScheme)
	if err := validateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

func validateKey(key string) error {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return services.Wrap(services.ErrValidation, "blobstore", "validate key", fmt.Sprintf("invalid blob key %q", key), nil)
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return services.Wrap(services.ErrValidation, "blobstore", "validate key", fmt.Sprintf("invalid blob key %q", key), nil)
		}
	}
	return nil
}

func (s *Store) pathFor(key string) (string, error) {
	if err := validateKey(key); err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}

// Put streams r into key. The write lands in a temp file in the same
// directory and is renamed into place, so readers never see partial data.
func (s *Store) Put(key string, r io.Reader) (Object, error) {
	target, err := s.pathFor(key)
	if err != nil {
		return Object{}, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return Object{}, fmt.Errorf("create blob dir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return Object{}, fmt.Errorf("create temp blob: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if err != nil {
		_ = tmp.Close()
		return Object{}, fmt.Errorf("write blob %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("close blob %s: %w", key, err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		return Object{}, fmt.Errorf("commit blob %s: %w", key, err)
	}
	return Object{Ref: Ref(key), Key: key, SizeBytes: written, SHA256: hex.EncodeToString(hasher.Sum(nil))}, nil
}

// PutBytes stores data under key.
func (s *Store) PutBytes(key string, data []byte) (Object, error) {
	return s.Put(key, bytes.NewReader(data))
}

// PutFile moves an existing file into the store, hashing it on the way.
func (s *Store) PutFile(key, path string) (Object, error) {
	f, err := os.Open(path)
	if err != nil {
		return Object{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return s.Put(key, f)
}

// Path resolves a reference to its on-disk location, for tools like ffmpeg
// that take file arguments.
func (s *Store) Path(ref string) (string, error) {
	key, err := KeyFromRef(ref)
	if err != nil {
		return "", err
	}
	return s.pathFor(key)
}

// Open returns a reader for ref. A missing blob is NotFound.
func (s *Store) Open(ref string) (*os.File, error) {
	path, err := s.Path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, services.Wrap(services.ErrNotFound, "blobstore", "open", "blob not found", err)
	}
	return f, err
}

// ReadAll loads the full blob.
func (s *Store) ReadAll(ref string) ([]byte, error) {
	f, err := s.Open(ref)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// Exists reports whether ref is present.
func (s *Store) Exists(ref string) bool {
	path, err := s.Path(ref)
	if err != nil {
		return false
	}
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// Delete removes ref. Missing blobs are not an error.
func (s *Store) Delete(ref string) error {
	path, err := s.Path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}

// DeletePrefix removes every blob below a key prefix directory.
func (s *Store) DeletePrefix(prefix string) error {
	path, err := s.pathFor(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return err
	}
	return os.RemoveAll(path)
}
