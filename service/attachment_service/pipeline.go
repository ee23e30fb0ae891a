package attachment_service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"math"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"chat-sync-client/models"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/sync/errgroup"
)

const (
	MB = 1 << 20

	DefaultVideoTarget = 5 * MB
	DefaultMaxFileSize = 28 * MB

	DefaultLocationTimeout = 15 * time.Second
	DefaultLocationMaxAge  = 10 * time.Second

	encodeConcurrency = 4
)

// Config attachment limits
type Config struct {
	VideoTargetBytes int64           `yaml:"video_target_bytes" json:"video_target_bytes"`
	MaxFileBytes     int64           `yaml:"max_file_bytes" json:"max_file_bytes"`
	Location         LocationOptions `yaml:"-" json:"-"`
}

func DefaultConfig() *Config {
	return &Config{
		VideoTargetBytes: DefaultVideoTarget,
		MaxFileBytes:     DefaultMaxFileSize,
		Location: LocationOptions{
			Timeout: DefaultLocationTimeout,
			MaxAge:  DefaultLocationMaxAge,
		},
	}
}

// Pipeline turns selected files and device location into outbound
// send_message frames.
type Pipeline struct {
	config     *Config
	fs         FileSystem
	compressor VideoCompressor
	locator    Locator
}

// NewPipeline creates a pipeline. A nil fs reads the local disk; without a
// compressor every oversized video fails.
func NewPipeline(config *Config, fs FileSystem, compressor VideoCompressor, locator Locator) *Pipeline {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.VideoTargetBytes <= 0 {
		config.VideoTargetBytes = defaults.VideoTargetBytes
	}
	if config.MaxFileBytes <= 0 {
		config.MaxFileBytes = defaults.MaxFileBytes
	}
	if config.Location.Timeout <= 0 {
		config.Location.Timeout = defaults.Location.Timeout
	}
	if config.Location.MaxAge <= 0 {
		config.Location.MaxAge = defaults.Location.MaxAge
	}
	if fs == nil {
		fs = OSFileSystem{}
	}

	return &Pipeline{
		config:     config,
		fs:         fs,
		compressor: compressor,
		locator:    locator,
	}
}

// preparedFile is a gated file ready to be read. temp marks a compressor
// output the pipeline owns.
type preparedFile struct {
	path     string
	name     string
	mimeType string
	temp     bool
}

// SendAttachments prepares every item and sends them as one frame. Any
// failure aborts the whole batch before anything is sent.
func (p *Pipeline) SendAttachments(ctx context.Context, sender FrameSender, key models.ConversationKey, content string, parentID models.ID, items []PendingAttachment) error {
	files, attachments, err := p.Prepare(ctx, items)
	if err != nil {
		return err
	}

	frame := models.NewFileFrame(key, content, parentID, files, attachments)
	if err := sender.SendJSON(frame); err != nil {
		return err
	}
	log.Printf("📤 Sent %d attachments to %s", len(files), key)
	return nil
}

// Prepare compresses, gates and encodes items, returning the data URIs and
// their metadata in input order. Compressed copies are removed before it
// returns.
func (p *Pipeline) Prepare(ctx context.Context, items []PendingAttachment) ([]string, []models.Attachment, error) {
	if len(items) == 0 {
		return nil, nil, &UserError{Title: "Nothing to send", Message: "Select a file first.", Err: ErrNothingToSend}
	}

	prepared := make([]preparedFile, len(items))
	defer func() {
		for _, file := range prepared {
			if file.temp {
				p.removeTemp(file.path)
			}
		}
	}()
	for i, item := range items {
		file, err := p.gate(ctx, item)
		if err != nil {
			log.Printf("❌ Attachment %s rejected: %v", item.Name(), err)
			return nil, nil, err
		}
		prepared[i] = file
	}

	files := make([]string, len(prepared))
	attachments := make([]models.Attachment, len(prepared))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(encodeConcurrency)
	for i := range prepared {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			uri, mimeType, err := p.encode(prepared[i])
			if err != nil {
				return err
			}
			files[i] = uri
			attachments[i] = models.Attachment{
				FileName: prepared[i].name,
				FileType: mimeType,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("❌ Attachment batch aborted: %v", err)
		return nil, nil, err
	}
	return files, attachments, nil
}

// gate runs the compression and size checks for one item without reading it.
// The size on disk is authoritative; the picker's SizeBytes is only logged
// when it disagrees.
func (p *Pipeline) gate(ctx context.Context, item PendingAttachment) (preparedFile, error) {
	file := preparedFile{
		path:     item.Path(),
		name:     item.Name(),
		mimeType: item.MimeType,
	}

	size, err := p.fs.Stat(file.path)
	if err != nil {
		return preparedFile{}, &UserError{
			Title:   "File unavailable",
			Message: fmt.Sprintf("%s could not be opened.", file.name),
			Err:     fmt.Errorf("%w: %v", ErrFileUnreadable, err),
		}
	}
	if item.SizeBytes > 0 && item.SizeBytes != size {
		log.Printf("⚠️ %s reported %d bytes, %d on disk", file.name, item.SizeBytes, size)
	}

	if isVideo(item) && size > p.config.VideoTargetBytes {
		compressed, compressedSize, err := p.compress(ctx, item)
		if err != nil {
			return preparedFile{}, &UserError{
				Title:   "Video too large",
				Message: fmt.Sprintf("%s could not be compressed for sending.", file.name),
				Err:     err,
			}
		}
		log.Printf("🎞️ Compressed %s: %d -> %d bytes", file.name, size, compressedSize)
		file.temp = compressed != item.Path()
		file.path = compressed
		size = compressedSize
	}

	if size > p.config.MaxFileBytes {
		if file.temp {
			p.removeTemp(file.path)
		}
		return preparedFile{}, &UserError{
			Title:   "File too large",
			Message: fmt.Sprintf("%s is larger than %d MB.", file.name, p.config.MaxFileBytes/MB),
			Err:     ErrFileTooLarge,
		}
	}
	return file, nil
}

// compress runs the compressor and checks that its output exists on disk.
func (p *Pipeline) compress(ctx context.Context, item PendingAttachment) (string, int64, error) {
	if p.compressor == nil {
		return "", 0, fmt.Errorf("%w: no compressor configured", ErrCompressionFailed)
	}

	path, err := p.compressor.Compress(ctx, item)
	if err != nil {
		return "", 0, fmt.Errorf("%w: %v", ErrCompressionFailed, err)
	}
	path = strings.TrimPrefix(path, "file://")
	if path == "" {
		return "", 0, fmt.Errorf("%w: compressor returned no file", ErrCompressionFailed)
	}

	size, err := p.fs.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("%w: compressed file missing: %v", ErrCompressionFailed, err)
	}
	if size <= 0 {
		if path != item.Path() {
			p.removeTemp(path)
		}
		return "", 0, fmt.Errorf("%w: compressed file is empty", ErrCompressionFailed)
	}
	return path, size, nil
}

func (p *Pipeline) removeTemp(path string) {
	if err := p.fs.Remove(path); err != nil {
		log.Printf("⚠️ Failed to remove compressed file %s: %v", path, err)
	}
}

func (p *Pipeline) encode(file preparedFile) (string, string, error) {
	data, err := p.fs.ReadFile(file.path)
	if err != nil {
		return "", "", &UserError{
			Title:   "File unavailable",
			Message: fmt.Sprintf("%s could not be read.", file.name),
			Err:     fmt.Errorf("%w: %v", ErrFileUnreadable, err),
		}
	}
	if int64(len(data)) > p.config.MaxFileBytes {
		return "", "", &UserError{
			Title:   "File too large",
			Message: fmt.Sprintf("%s is larger than %d MB.", file.name, p.config.MaxFileBytes/MB),
			Err:     ErrFileTooLarge,
		}
	}

	mimeType := file.mimeType
	if mimeType == "" {
		mimeType = mimetype.Detect(data).String()
	}
	return DataURI(mimeType, data), baseMimeType(mimeType), nil
}

// DataURI renders data as a base64 data URI.
func DataURI(mimeType string, data []byte) string {
	return "data:" + baseMimeType(mimeType) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func baseMimeType(mimeType string) string {
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	mimeType = strings.TrimSpace(mimeType)
	if mimeType == "" {
		return "application/octet-stream"
	}
	return mimeType
}

func isVideo(item PendingAttachment) bool {
	if item.MimeType != "" {
		return strings.HasPrefix(item.MimeType, "video/")
	}
	return strings.HasPrefix(mime.TypeByExtension(strings.ToLower(filepath.Ext(item.Path()))), "video/")
}

// ShareLocation reads the device position once and sends it as a location
// message.
func (p *Pipeline) ShareLocation(ctx context.Context, sender FrameSender, key models.ConversationKey, content string, parentID models.ID) error {
	loc, err := p.CurrentLocation(ctx)
	if err != nil {
		return err
	}

	frame := models.NewLocationFrame(key, content, parentID, loc.Latitude, loc.Longitude)
	if err := sender.SendJSON(frame); err != nil {
		return err
	}
	log.Printf("📤 Shared location with %s", key)
	return nil
}

// CurrentLocation queries the locator with the configured timeout and
// validates the fix.
func (p *Pipeline) CurrentLocation(ctx context.Context) (Location, error) {
	if p.locator == nil {
		return Location{}, &UserError{Title: "Location unavailable", Message: "Location services are not available.", Err: ErrLocationUnavailable}
	}

	qctx, cancel := context.WithTimeout(ctx, p.config.Location.Timeout)
	defer cancel()

	loc, err := p.locator.CurrentLocation(qctx, p.config.Location)
	if err != nil {
		msg := "Your location could not be determined."
		if errors.Is(err, context.DeadlineExceeded) {
			msg = "Timed out while determining your location."
		}
		log.Printf("❌ Location query failed: %v", err)
		return Location{}, &UserError{Title: "Location unavailable", Message: msg, Err: fmt.Errorf("%w: %v", ErrLocationUnavailable, err)}
	}
	if !finite(loc.Latitude) || !finite(loc.Longitude) {
		log.Printf("❌ Locator returned invalid coordinates: %v, %v", loc.Latitude, loc.Longitude)
		return Location{}, &UserError{Title: "Location unavailable", Message: "Your location could not be determined.", Err: ErrInvalidLocation}
	}
	return loc, nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
