package oidcidp

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

const tokenFileName = "identity.json"

// StoredToken is what survives a process restart.
type StoredToken struct {
	Subject      string `json:"subject"`
	Email        string `json:"email"`
	RefreshToken string `json:"refreshToken"`
}

// TokenStore persists the refresh token between runs. Load returns nil, nil
// when nothing is stored.
type TokenStore interface {
	Load() (*StoredToken, error)
	Save(token StoredToken) error
	Delete() error
}

var _ TokenStore = (*FileStore)(nil)

// FileStore keeps the token in <folder>/identity.json, readable only by the
// current user.
type FileStore struct {
	path string
}

func NewFileStore(folder string) *FileStore {
	return &FileStore{path: filepath.Join(folder, tokenFileName)}
}

func (s *FileStore) Load() (*StoredToken, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[FileStore.Load] ReadFile")
	}

	var token StoredToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, errors.Wrap(err, "[FileStore.Load] json.Unmarshal")
	}
	if token.RefreshToken == "" {
		return nil, nil
	}
	return &token, nil
}

func (s *FileStore) Save(token StoredToken) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return errors.Wrap(err, "[FileStore.Save] MkdirAll")
	}
	data, err := json.Marshal(token)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] json.Marshal")
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return errors.Wrap(err, "[FileStore.Save] WriteFile")
	}
	return errors.Wrap(os.Rename(tmp, s.path), "[FileStore.Save] Rename")
}

func (s *FileStore) Delete() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "[FileStore.Delete] Remove")
	}
	return nil
}
