package service

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/noah-isme/acadportal-api/pkg/storage"
)

// SubmissionStore adapts local file storage to the BlobStore contract used
// by the assessment submission flow.
type SubmissionStore struct {
	files   *storage.LocalStorage
	baseURL string
}

// NewSubmissionStore constructs a SubmissionStore rooted at baseURL.
func NewSubmissionStore(files *storage.LocalStorage, baseURL string) *SubmissionStore {
	return &SubmissionStore{files: files, baseURL: strings.TrimRight(baseURL, "/")}
}

// Store persists the submission bytes and returns the public URL.
func (s *SubmissionStore) Store(_ context.Context, data []byte, name string) (string, error) {
	rel, err := s.files.Save(path.Join("submissions", name), data)
	if err != nil {
		return "", fmt.Errorf("store submission: %w", err)
	}
	return s.baseURL + "/" + rel, nil
}
