package blob

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var unsafeKeyChars = regexp.MustCompile(`[^a-zA-Z0-9._-]`)

// FSStore keeps blobs on the local filesystem under a single directory,
// served by the HTTP router at baseURL.
type FSStore struct {
	dir     string
	baseURL string
}

func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("error creating uploads directory: %v", err)
	}
	return &FSStore{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (s *FSStore) Put(key string, contentType string, data []byte) (string, error) {
	key = SanitizeKey(key)
	if key == "" {
		return "", fmt.Errorf("empty blob key")
	}

	if err := os.WriteFile(filepath.Join(s.dir, key), data, 0o644); err != nil {
		return "", fmt.Errorf("error writing blob: %v", err)
	}

	return s.baseURL + "/" + key, nil
}

// Dir returns the backing directory, for the router's file server.
func (s *FSStore) Dir() string {
	return s.dir
}

// SanitizeKey strips path separators and anything else unsafe in a URL path
// segment, matching how upload names are normalized before storage.
func SanitizeKey(key string) string {
	key = filepath.Base(key)
	return unsafeKeyChars.ReplaceAllString(key, "_")
}
