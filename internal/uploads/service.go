// Package uploads stores images shared in the chat and returns their public URL.
package uploads

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/MarcoPoloResearchLab/chatroom/internal/ids"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

var (
	// ErrUnsupportedType indicates the file extension or content is not an allowed image.
	ErrUnsupportedType = errors.New("uploads: unsupported file type")
	// ErrTooLarge indicates the file exceeds the configured size limit.
	ErrTooLarge = errors.New("uploads: file too large")

	errMissingDirectory = errors.New("uploads: directory is required")
)

const defaultMaxBytes = 16 * 1024 * 1024

var allowedExtensions = map[string]struct{}{
	".png":  {},
	".jpg":  {},
	".jpeg": {},
	".gif":  {},
}

type ServiceConfig struct {
	Directory  string
	URLPrefix  string
	MaxBytes   int64
	IDProvider ids.Provider
	Logger     *zap.Logger
}

// Service writes uploaded images to a directory served as static content.
type Service struct {
	directory  string
	urlPrefix  string
	maxBytes   int64
	idProvider ids.Provider
	logger     *zap.Logger
}

func NewService(cfg ServiceConfig) (*Service, error) {
	if strings.TrimSpace(cfg.Directory) == "" {
		return nil, errMissingDirectory
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, fmt.Errorf("uploads: create directory: %w", err)
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBytes
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = ids.NewUUIDProvider()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		directory:  cfg.Directory,
		urlPrefix:  cfg.URLPrefix,
		maxBytes:   maxBytes,
		idProvider: idProvider,
		logger:     logger,
	}, nil
}

// Save validates and stores the image, returning its URL. The client file name only
// contributes its extension.
func (s *Service) Save(filename string, content io.Reader) (string, error) {
	extension := strings.ToLower(filepath.Ext(filename))
	if _, ok := allowedExtensions[extension]; !ok {
		return "", fmt.Errorf("%w: extension %q", ErrUnsupportedType, extension)
	}

	data, err := io.ReadAll(io.LimitReader(content, s.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("uploads: read content: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrTooLarge
	}

	detected := mimetype.Detect(data)
	if !strings.HasPrefix(detected.String(), "image/") {
		return "", fmt.Errorf("%w: content %s", ErrUnsupportedType, detected.String())
	}

	id, err := s.idProvider.NewID()
	if err != nil {
		return "", fmt.Errorf("uploads: generate id: %w", err)
	}
	storedName := id + extension
	if err := os.WriteFile(filepath.Join(s.directory, storedName), data, 0o644); err != nil {
		s.logger.Error("upload write failed", zap.String("file", storedName), zap.Error(err))
		return "", fmt.Errorf("uploads: write file: %w", err)
	}

	s.logger.Info("upload stored",
		zap.String("file", storedName),
		zap.String("content_type", detected.String()),
		zap.Int("bytes", len(data)))
	return path.Join(s.urlPrefix, storedName), nil
}

