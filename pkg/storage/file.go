package storage

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// fileEntry keeps text values readable and base64-encodes binary ones.
type fileEntry struct {
	Value  string `yaml:"value,omitempty"`
	Binary string `yaml:"binary,omitempty"`
}

type fileDocument struct {
	Version int                  `yaml:"version"`
	Entries map[string]fileEntry `yaml:"entries"`
}

const fileVersion = 1

// File is a Storage kept in a YAML document. Every write rewrites the document
// through a temporary file and a rename.
type File struct {
	mu    sync.Mutex
	path  string
	data  map[string][]byte
	used  int
	quota int
}

// OpenFile loads path, or starts empty when it does not exist yet.
func OpenFile(path string, quota int) (*File, error) {
	if path == "" {
		return nil, errors.New("file storage needs a path")
	}
	f := &File{path: path, data: make(map[string][]byte), quota: quota}

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc fileDocument
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for key, e := range doc.Entries {
		value := []byte(e.Value)
		if e.Binary != "" {
			value, err = base64.StdEncoding.DecodeString(e.Binary)
			if err != nil {
				return nil, fmt.Errorf("parse %s: key %q: %w", path, key, err)
			}
		}
		f.data[key] = value
		f.used += entrySize(key, value)
	}
	return f, nil
}

func (f *File) Path() string { return f.path }

func (f *File) Get(key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (f *File) Set(key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, had := f.data[key]
	oldSize := 0
	if had {
		oldSize = entrySize(key, old)
	}
	newSize := entrySize(key, value)
	if err := checkQuota(f.quota, f.used, oldSize, newSize); err != nil {
		return err
	}

	f.data[key] = append([]byte(nil), value...)
	if err := f.flush(); err != nil {
		if had {
			f.data[key] = old
		} else {
			delete(f.data, key)
		}
		return err
	}
	f.used += newSize - oldSize
	return nil
}

func (f *File) Remove(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old, ok := f.data[key]
	if !ok {
		return nil
	}
	delete(f.data, key)
	if err := f.flush(); err != nil {
		f.data[key] = old
		return err
	}
	f.used -= entrySize(key, old)
	return nil
}

func (f *File) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	old := f.data
	f.data = make(map[string][]byte)
	if err := f.flush(); err != nil {
		f.data = old
		return err
	}
	f.used = 0
	return nil
}

func (f *File) Close() error { return nil }

// flush writes the document. The caller holds f.mu.
func (f *File) flush() error {
	keys := make([]string, 0, len(f.data))
	for k := range f.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	doc := fileDocument{Version: fileVersion, Entries: make(map[string]fileEntry, len(keys))}
	for _, k := range keys {
		v := f.data[k]
		if utf8.Valid(v) {
			doc.Entries[k] = fileEntry{Value: string(v)}
		} else {
			doc.Entries[k] = fileEntry{Binary: base64.StdEncoding.EncodeToString(v)}
		}
	}

	out, err := yaml.Marshal(&doc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", f.path, err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(f.path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(out); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}
	return nil
}
