package detailstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	operationsFile = "operations.json"
	resultsFile    = "results.json"
	errorFile      = "error.json"
)

// FSStore writes detail documents to an on-disk directory.
//
// Directory layout:
//
//	<root>/<execution_id>/operations.json
//	<root>/<execution_id>/results.json
//	<root>/<execution_id>/error.json
type FSStore struct {
	root string
}

var _ Store = (*FSStore)(nil)

func NewFSStore(root string) *FSStore {
	return &FSStore{root: strings.TrimSpace(root)}
}

func (s *FSStore) RootDir() string {
	return s.root
}

func (s *FSStore) dir(id string) string {
	return filepath.Join(s.root, id)
}

func (s *FSStore) WriteOperations(_ context.Context, id string, ops []Entry) error {
	return s.writeJSON(id, operationsFile, ops)
}

func (s *FSStore) WriteResults(_ context.Context, id string, results []ResultEntry) error {
	return s.writeJSON(id, resultsFile, results)
}

func (s *FSStore) WriteError(_ context.Context, id string, message string) error {
	return s.writeJSON(id, errorFile, errorDoc{Error: message})
}

type errorDoc struct {
	Error string `json:"error"`
}

func (s *FSStore) writeJSON(id, name string, v any) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("execution id is required")
	}
	if strings.TrimSpace(s.root) == "" {
		return fmt.Errorf("detail store root dir is empty")
	}

	dir := s.dir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create details dir: %w", err)
	}

	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal details: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(dir, name+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp details file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp details file: %w", err)
	}
	if err := os.Rename(tmpName, filepath.Join(dir, name)); err != nil {
		return fmt.Errorf("rename details file: %w", err)
	}
	return nil
}

func (s *FSStore) Get(_ context.Context, id string) (*Document, error) {
	dir := s.dir(id)
	if _, err := os.Stat(dir); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat details dir: %w", err)
	}

	var doc Document
	if err := readJSON(filepath.Join(dir, operationsFile), &doc.Operations); err != nil {
		return nil, err
	}
	if err := readJSON(filepath.Join(dir, resultsFile), &doc.Results); err != nil {
		return nil, err
	}
	var failure errorDoc
	if err := readJSON(filepath.Join(dir, errorFile), &failure); err != nil {
		return nil, err
	}
	doc.Error = failure.Error
	return &doc, nil
}

// readJSON decodes the file into v; a missing file leaves v untouched.
func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read details file: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func (s *FSStore) Delete(_ context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("execution id is required")
	}
	if err := os.RemoveAll(s.dir(id)); err != nil {
		return fmt.Errorf("remove details dir: %w", err)
	}
	return nil
}
