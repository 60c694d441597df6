package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	"cog-cli/internal/model"
)

const DefaultBlobMaxBytes int64 = 50 * 1024 * 1024 // 50MB

func (s *Store) blobsDir() string {
	return filepath.Join(s.Dir, "blobs")
}

// PutBlob stores data content-addressed and returns its storage reference
// ("blobs/<aa>/<sha256>.<ext>").
func (s *Store) PutBlob(data []byte, ext string) (string, error) {
	if len(data) == 0 {
		return "", errors.New("blob is empty")
	}
	if int64(len(data)) > DefaultBlobMaxBytes {
		return "", fmt.Errorf("blob exceeds %d bytes", DefaultBlobMaxBytes)
	}
	ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
	if ext == "" {
		ext = "bin"
	}
	sum := sha256.Sum256(data)
	name := hex.EncodeToString(sum[:]) + "." + ext
	ref := filepath.ToSlash(filepath.Join("blobs", name[:2], name))
	path := s.BlobPath(ref)
	if _, err := os.Stat(path); err == nil {
		return ref, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", err
	}
	if err := atomicWriteFile(filepath.Dir(path), name+".*.tmp", path, data, 0o644); err != nil {
		return "", err
	}
	return ref, nil
}

// BlobPath resolves a storage reference to a local file path.
func (s *Store) BlobPath(ref string) string {
	return filepath.Join(s.Dir, filepath.FromSlash(strings.TrimSpace(ref)))
}

func (s *Store) ReadBlob(ref string) ([]byte, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.Contains(ref, "..") {
		return nil, fmt.Errorf("invalid storage reference: %q", ref)
	}
	return os.ReadFile(s.BlobPath(ref))
}

// ImportImage copies an image file into the blob store and records it in the series.
func (s *Store) ImportImage(ctx context.Context, seriesID, srcPath, prompt string) (model.Image, error) {
	if _, err := s.GetSeries(ctx, seriesID); err != nil {
		return model.Image{}, err
	}
	data, err := os.ReadFile(filepath.Clean(srcPath))
	if err != nil {
		return model.Image{}, err
	}
	return s.AddImageBytes(ctx, model.Image{SeriesID: seriesID, Prompt: prompt, Source: model.SourceUploaded}, data)
}

// AddImageBytes decodes the dimensions of data, stores it as a blob and inserts im.
func (s *Store) AddImageBytes(ctx context.Context, im model.Image, data []byte) (model.Image, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return model.Image{}, fmt.Errorf("decode image: %w", err)
	}
	ref, err := s.PutBlob(data, format)
	if err != nil {
		return model.Image{}, err
	}
	im.StoragePath = ref
	im.Width = cfg.Width
	im.Height = cfg.Height
	return s.InsertImage(ctx, im)
}
