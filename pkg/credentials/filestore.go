package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/fluxionhq/fluxion/pkg/flowerr"
)

// FileStore serves sealed credentials from a JSON file keyed by credential
// id, then user id. The "*" user entry is a wildcard shared by all users.
// The file holds ciphertext only; decryption happens in the resolver.
type FileStore struct {
	path string

	mu     sync.Mutex
	loaded map[string]map[string]string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Get(_ context.Context, credentialID, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.loaded == nil {
		raw, err := os.ReadFile(s.path)
		if err != nil {
			return "", fmt.Errorf("failed to read credential store: %w", err)
		}

		if err := json.Unmarshal(raw, &s.loaded); err != nil {
			return "", flowerr.NonRetriable(fmt.Errorf("credential store is not valid JSON: %w", err))
		}
	}

	users, ok := s.loaded[credentialID]
	if !ok {
		return "", flowerr.Configuration("credential %s not found", credentialID)
	}

	if sealed, ok := users[userID]; ok && sealed != "" {
		return sealed, nil
	}

	if sealed, ok := users["*"]; ok && sealed != "" {
		return sealed, nil
	}

	return "", flowerr.Configuration("credential %s not available for user", credentialID)
}
