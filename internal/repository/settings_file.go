package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"
)

type fileSettingsRepo struct {
	mu   sync.Mutex
	path string
}

// NewFileSettingsRepository stores every record as a top-level key of one
// YAML document. Writes go to a temp file that is renamed over the original.
func NewFileSettingsRepository(path string) SettingsRepository {
	return &fileSettingsRepo{path: path}
}

func (r *fileSettingsRepo) Load(_ context.Context, name string, dest interface{}) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return false, err
	}
	node, ok := doc[name]
	if !ok {
		return false, nil
	}
	if err := node.Decode(dest); err != nil {
		return false, fmt.Errorf("decode settings %q: %w", name, err)
	}
	return true, nil
}

func (r *fileSettingsRepo) Save(_ context.Context, name string, value interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return err
	}
	var node yaml.Node
	if err := node.Encode(value); err != nil {
		return fmt.Errorf("encode settings %q: %w", name, err)
	}
	doc[name] = node
	return r.write(doc)
}

func (r *fileSettingsRepo) Delete(_ context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.read()
	if err != nil {
		return err
	}
	if _, ok := doc[name]; !ok {
		return nil
	}
	delete(doc, name)
	return r.write(doc)
}

func (r *fileSettingsRepo) read() (map[string]yaml.Node, error) {
	doc := make(map[string]yaml.Node)
	data, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse settings file: %w", err)
	}
	if doc == nil {
		doc = make(map[string]yaml.Node)
	}
	return doc, nil
}

func (r *fileSettingsRepo) write(doc map[string]yaml.Node) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode settings file: %w", err)
	}

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir settings dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".settings-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write settings file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync settings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close settings file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return fmt.Errorf("chmod settings file: %w", err)
	}
	if err := os.Rename(tmpName, r.path); err != nil {
		return fmt.Errorf("replace settings file: %w", err)
	}
	return nil
}
