package store

import (
	"encoding/json"
	"path/filepath"
	"sync"
)

const storeFile = "store.enc"

// FileKV keeps the whole key-value map sealed in one encrypted file.
// Every mutation re-reads, updates and atomically rewrites it; the data
// volume here is a handful of small JSON values.
type FileKV struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

var _ KV = (*FileKV)(nil)

func NewFileKV(dir, passphrase string) *FileKV {
	return &FileKV{path: filepath.Join(dir, storeFile), passphrase: passphrase}
}

func (s *FileKV) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := m[key]
	return v, ok, nil
}

func (s *FileKV) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	m[key] = value
	return s.save(m)
}

func (s *FileKV) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := m[key]; !ok {
		return nil
	}
	delete(m, key)
	return s.save(m)
}

func (s *FileKV) load() (map[string]string, error) {
	sealed, err := readFile(s.path)
	if err != nil {
		return nil, err
	}
	if sealed == nil {
		return make(map[string]string), nil
	}
	raw, err := decrypt(s.passphrase, sealed)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *FileKV) save(m map[string]string) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	N, r, p := scryptParamsDefault()
	sealed, err := encrypt(s.passphrase, raw, N, r, p)
	if err != nil {
		return err
	}
	return writeFile(s.path, sealed, 0o600)
}
