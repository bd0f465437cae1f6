package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalStorage keeps every artifact in one flat directory under its
// generated filename. There is no per-user or per-project nesting.
type LocalStorage struct {
	basePath string
}

func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, os.ModePerm); err != nil {
		return nil, err
	}
	return &LocalStorage{basePath: basePath}, nil
}

func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

func (ls *LocalStorage) pathFor(name string) string {
	return filepath.Join(ls.basePath, filepath.Base(name))
}

func (ls *LocalStorage) Save(name string, data io.Reader) (int64, error) {
	file, err := os.Create(ls.pathFor(name))
	if err != nil {
		return 0, err
	}
	defer file.Close()

	return io.Copy(file, data)
}

func (ls *LocalStorage) Open(name string) (io.ReadCloser, error) {
	file, err := os.Open(ls.pathFor(name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file %s not found: %w", name, err)
		}
		return nil, err
	}

	return file, nil
}

func (ls *LocalStorage) Exists(name string) bool {
	_, err := os.Stat(ls.pathFor(name))
	return err == nil
}

func (ls *LocalStorage) Delete(name string) error {
	err := os.Remove(ls.pathFor(name))
	if os.IsNotExist(err) {
		return nil
	}

	return err
}
