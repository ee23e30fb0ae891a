package attachment_service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrFileTooLarge        = errors.New("file exceeds the size limit")
	ErrCompressionFailed   = errors.New("video compression failed")
	ErrFileUnreadable      = errors.New("file could not be read")
	ErrInvalidLocation     = errors.New("location is not a finite coordinate")
	ErrLocationUnavailable = errors.New("location unavailable")
	ErrNothingToSend       = errors.New("no attachments selected")
)

// UserError is a failure meant for an alert. Err keeps the sentinel for
// errors.Is.
type UserError struct {
	Title   string
	Message string
	Err     error
}

func (e *UserError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Message)
}

func (e *UserError) Unwrap() error {
	return e.Err
}

// PendingAttachment is one user-selected file awaiting send.
type PendingAttachment struct {
	LocalURI    string `json:"localUri"`
	DisplayName string `json:"displayName"`
	MimeType    string `json:"mimeType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

// Path returns LocalURI as a file system path.
func (a PendingAttachment) Path() string {
	return strings.TrimPrefix(a.LocalURI, "file://")
}

// Name returns the display name, falling back to the file's base name.
func (a PendingAttachment) Name() string {
	if a.DisplayName != "" {
		return a.DisplayName
	}
	return filepath.Base(a.Path())
}

// FileSystem is the file access the pipeline needs.
type FileSystem interface {
	Stat(path string) (int64, error)
	ReadFile(path string) ([]byte, error)
	Remove(path string) error
}

// OSFileSystem reads the local disk.
type OSFileSystem struct{}

func (OSFileSystem) Stat(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.IsDir() {
		return 0, fmt.Errorf("%s is a directory", path)
	}
	return info.Size(), nil
}

func (OSFileSystem) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func (OSFileSystem) Remove(path string) error {
	return os.Remove(path)
}

// VideoCompressor re-encodes a video and returns the path of the smaller copy.
type VideoCompressor interface {
	Compress(ctx context.Context, attachment PendingAttachment) (string, error)
}

// Location is one device position fix.
type Location struct {
	Latitude  float64
	Longitude float64
	Timestamp time.Time
}

// LocationOptions bounds a single position query.
type LocationOptions struct {
	Timeout time.Duration // whole query
	MaxAge  time.Duration // oldest acceptable cached fix
}

// Locator reads the device position once.
type Locator interface {
	CurrentLocation(ctx context.Context, options LocationOptions) (Location, error)
}

// FrameSender is the outbound half of the connection manager.
type FrameSender interface {
	SendJSON(frame interface{}) error
}
