package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/hilthontt/roomdrop/internal/domain"
)

// LocalStorage keeps objects as plain files under basePath. Links point at the
// server's own /files/ route.
type LocalStorage struct {
	basePath string
	baseURL  string
}

func NewLocalStorage(basePath, baseURL string) (*LocalStorage, error) {
	if basePath == "" {
		basePath = "./uploads"
	}

	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create uploads directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
	}, nil
}

func (s *LocalStorage) BasePath() string {
	return s.basePath
}

func (s *LocalStorage) fullPath(key string) (string, error) {
	cleaned := path.Clean("/" + key)
	if cleaned == "/" || cleaned != "/"+key {
		return "", fmt.Errorf("%w: object key %q", domain.ErrInvalidInput, key)
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}

func (s *LocalStorage) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (domain.StoredObject, error) {
	if size > domain.MaxFileSize {
		return domain.StoredObject{}, domain.ErrFileTooLarge
	}

	dst, err := s.fullPath(key)
	if err != nil {
		return domain.StoredObject{}, err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return domain.StoredObject{}, fmt.Errorf("failed to create room directory: %w", err)
	}

	// Write to a sibling temp file so a half-written upload is never listed.
	tmp := filepath.Join(filepath.Dir(dst), ".tmp-"+uuid.NewString())
	f, err := os.Create(tmp)
	if err != nil {
		return domain.StoredObject{}, fmt.Errorf("failed to create destination file: %w", err)
	}

	written, copyErr := io.Copy(f, &ctxReader{ctx: ctx, r: io.LimitReader(r, domain.MaxFileSize+1)})
	closeErr := f.Close()

	switch {
	case copyErr != nil:
		_ = os.Remove(tmp)
		return domain.StoredObject{}, fmt.Errorf("failed to save file: %w", copyErr)
	case closeErr != nil:
		_ = os.Remove(tmp)
		return domain.StoredObject{}, fmt.Errorf("failed to save file: %w", closeErr)
	case written > domain.MaxFileSize:
		_ = os.Remove(tmp)
		return domain.StoredObject{}, domain.ErrFileTooLarge
	}

	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return domain.StoredObject{}, fmt.Errorf("failed to save file: %w", err)
	}

	info, err := os.Stat(dst)
	if err != nil {
		return domain.StoredObject{}, err
	}

	return s.describe(key, info), nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]domain.StoredObject, error) {
	// Walk from the deepest directory the prefix fully names.
	root := s.basePath
	if dir := path.Dir(prefix + "x"); dir != "." && dir != "/" {
		root = filepath.Join(s.basePath, filepath.FromSlash(dir))
	}

	var objects []domain.StoredObject
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".tmp-") {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(s.basePath, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		objects = append(objects, s.describe(key, info))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}

	return objects, nil
}

func (s *LocalStorage) Remove(ctx context.Context, key string) error {
	fullPath, err := s.fullPath(key)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	// Drop the room directory once it is empty; failure just means it isn't.
	_ = os.Remove(filepath.Dir(fullPath))
	return nil
}

func (s *LocalStorage) PresignPut(ctx context.Context, key string) (string, error) {
	return "", domain.ErrPresignUnsupported
}

func (s *LocalStorage) describe(key string, info fs.FileInfo) domain.StoredObject {
	link := s.baseURL + "/files/" + escapeKey(key)
	return domain.StoredObject{
		Key:          key,
		Size:         info.Size(),
		LastModified: info.ModTime(),
		URL:          link,
		DownloadURL:  link + "?download=1",
	}
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return strings.Join(segments, "/")
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
