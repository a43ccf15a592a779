// Package modelstore находит веса моделей на диске и при необходимости
// скачивает их по адресу из конфигурации.
package modelstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"lungmask/internal/ctxlog"
	"lungmask/internal/domain/entity"
	"lungmask/internal/domain/port"
)

// Source откуда брать веса модели.
type Source struct {
	Path   string // готовый файл
	URL    string // адрес для скачивания
	SHA256 string // ожидаемый хэш скачанного файла
}

// HTTPClient интерфейс HTTP-клиента. *http.Client ему соответствует.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Store каталог весов моделей.
type Store struct {
	dir     string
	sources map[entity.ModelName]Source
	client  HTTPClient
	mu      sync.Mutex
}

// New создаёт каталог весов. client может быть nil.
func New(dir string, sources map[entity.ModelName]Source, client HTTPClient) *Store {
	if client == nil {
		client = http.DefaultClient
	}
	if sources == nil {
		sources = make(map[entity.ModelName]Source)
	}
	return &Store{dir: dir, sources: sources, client: client}
}

// DefaultDir возвращает каталог весов по умолчанию:
// $XDG_DATA_HOME/lungmask/models или ~/.local/share/lungmask/models.
func DefaultDir() (string, error) {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "lungmask", "models"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "share", "lungmask", "models"), nil
}

// Dir возвращает каталог весов.
func (s *Store) Dir() string { return s.dir }

// Locate возвращает путь к весам модели, скачивая их при отсутствии.
func (s *Store) Locate(ctx context.Context, model entity.ModelName) (string, error) {
	src := s.sources[model]
	if src.Path != "" {
		if err := fileExists(src.Path); err != nil {
			return "", fmt.Errorf("%w: %s: %v", entity.ErrModelUnavailable, model, err)
		}
		return src.Path, nil
	}

	path := filepath.Join(s.dir, string(model)+".onnx")

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := fileExists(path); err == nil {
		return path, nil
	}
	if src.URL == "" {
		return "", fmt.Errorf("%w: %s: place the ONNX export at %s or configure a download URL", entity.ErrModelUnavailable, model, path)
	}

	ctxlog.FromContext(ctx).Info("download model", "model", model, "url", src.URL)
	if err := s.download(ctx, src, path); err != nil {
		return "", fmt.Errorf("%w: %s: %w", entity.ErrModelUnavailable, model, err)
	}
	return path, nil
}

// download скачивает файл во временный и переименовывает после проверки хэша.
func (s *Store) download(ctx context.Context, src Source, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src.URL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: status %d", src.URL, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".download-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), resp.Body); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if want := strings.ToLower(strings.TrimSpace(src.SHA256)); want != "" {
		if got := hex.EncodeToString(h.Sum(nil)); got != want {
			return fmt.Errorf("%w: expected %s, got %s", entity.ErrHashMismatch, want, got)
		}
	}
	return os.Rename(tmp.Name(), path)
}

func fileExists(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%s does not exist", path)
		}
		return err
	}
	if fi.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	return nil
}

var _ port.ModelLocator = (*Store)(nil)
