// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package permutation

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/mitchellh/go-homedir"
)

// keySize is the on-disk size of one key.
const keySize = 4

// ErrStoreClosed is returned when recording into a closed store.
var ErrStoreClosed = errors.New("permutation: store is closed")

// Store is an append-only record of permutation keys seen by previous
// runs. Each novel key is written as a little-endian uint32 as soon as it
// is recorded, so a crash loses at most the key being written.
//
// Store is safe for concurrent use.
type Store struct {
	mu   sync.Mutex
	f    *os.File
	seen map[Key]struct{}
	keys []Key
}

// OpenStore opens or creates the key file at path. A leading "~" is
// expanded to the user's home directory. Keys already in the file are
// loaded; a truncated trailing record is ignored.
func OpenStore(path string) (*Store, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("permutation: expand %q: %w", path, err)
	}
	if dir := filepath.Dir(p); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("permutation: create dir: %w", err)
		}
	}
	f, err := os.OpenFile(p, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("permutation: open store: %w", err)
	}
	s := &Store{f: f, seen: make(map[Key]struct{})}
	if err := s.load(); err != nil {
		_ = f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	data, err := io.ReadAll(s.f)
	if err != nil {
		return fmt.Errorf("permutation: read store: %w", err)
	}
	whole := len(data) / keySize * keySize
	for off := 0; off < whole; off += keySize {
		k := Key(binary.LittleEndian.Uint32(data[off:]))
		if _, ok := s.seen[k]; ok {
			continue
		}
		s.seen[k] = struct{}{}
		s.keys = append(s.keys, k)
	}
	// Drop a partial record so appends stay aligned.
	if whole != len(data) {
		if err := s.f.Truncate(int64(whole)); err != nil {
			return fmt.Errorf("permutation: truncate store: %w", err)
		}
	}
	if _, err := s.f.Seek(int64(whole), io.SeekStart); err != nil {
		return fmt.Errorf("permutation: seek store: %w", err)
	}
	return nil
}

// Keys returns the recorded keys in first-seen order.
func (s *Store) Keys() []Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.keys)
}

// Len returns the number of distinct recorded keys.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys)
}

// Record appends k if it has not been seen before and reports whether it
// was novel.
func (s *Store) Record(k Key) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return false, ErrStoreClosed
	}
	if _, ok := s.seen[k]; ok {
		return false, nil
	}
	var buf [keySize]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(k))
	if _, err := s.f.Write(buf[:]); err != nil {
		return false, fmt.Errorf("permutation: append key: %w", err)
	}
	s.seen[k] = struct{}{}
	s.keys = append(s.keys, k)
	return true, nil
}

// Close closes the underlying file. Close is safe to call multiple times.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
