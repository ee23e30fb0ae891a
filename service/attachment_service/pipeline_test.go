package attachment_service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"

	"chat-sync-client/models"
)

type fakeFS struct {
	mu      sync.Mutex
	files   map[string][]byte
	sizes   map[string]int64 // overrides len(files[path]) for Stat
	reads   []string
	removed []string
}

func newFakeFS() *fakeFS {
	return &fakeFS{files: map[string][]byte{}, sizes: map[string]int64{}}
}

func (f *fakeFS) add(path string, data []byte) {
	f.files[path] = data
}

func (f *fakeFS) Stat(path string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if size, ok := f.sizes[path]; ok {
		return size, nil
	}
	data, ok := f.files[path]
	if !ok {
		return 0, fmt.Errorf("%s: no such file", path)
	}
	return int64(len(data)), nil
}

func (f *fakeFS) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads = append(f.reads, path)
	data, ok := f.files[path]
	if !ok {
		return nil, fmt.Errorf("%s: no such file", path)
	}
	return data, nil
}

func (f *fakeFS) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	delete(f.files, path)
	delete(f.sizes, path)
	return nil
}

func (f *fakeFS) removedPaths() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.removed...)
}

func (f *fakeFS) readCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reads)
}

type fakeCompressor struct {
	calls  int
	output string
	err    error
}

func (c *fakeCompressor) Compress(ctx context.Context, a PendingAttachment) (string, error) {
	c.calls++
	return c.output, c.err
}

type fakeSender struct {
	frames []interface{}
	err    error
}

func (s *fakeSender) SendJSON(frame interface{}) error {
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}

type fakeLocator struct {
	loc     Location
	err     error
	options LocationOptions
}

func (l *fakeLocator) CurrentLocation(ctx context.Context, options LocationOptions) (Location, error) {
	l.options = options
	return l.loc, l.err
}

var group3 = models.NewConversationKey(models.KindGroup, "3")

func TestOversizedFileNeverReadOrSent(t *testing.T) {
	fs := newFakeFS()
	fs.add("/tmp/big.pdf", []byte("pdf"))
	fs.sizes["/tmp/big.pdf"] = 28*MB + 1
	sender := &fakeSender{}
	p := NewPipeline(nil, fs, nil, nil)

	err := p.SendAttachments(context.Background(), sender, group3, "", "", []PendingAttachment{
		{LocalURI: "file:///tmp/big.pdf", MimeType: "application/pdf", SizeBytes: 28*MB + 1},
	})

	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("SendAttachments() error = %v, want ErrFileTooLarge", err)
	}
	var userErr *UserError
	if !errors.As(err, &userErr) || userErr.Title == "" {
		t.Errorf("error is not a user-visible alert: %v", err)
	}
	if fs.readCount() != 0 {
		t.Errorf("file read %d times before rejection", fs.readCount())
	}
	if len(sender.frames) != 0 {
		t.Errorf("sender called %d times", len(sender.frames))
	}
}

func TestSmallVideoSkipsCompression(t *testing.T) {
	fs := newFakeFS()
	fs.add("/v/small.mp4", []byte("tiny video"))
	fs.sizes["/v/small.mp4"] = 5 * MB
	compressor := &fakeCompressor{}
	sender := &fakeSender{}
	p := NewPipeline(nil, fs, compressor, nil)

	err := p.SendAttachments(context.Background(), sender, group3, "clip", "", []PendingAttachment{
		{LocalURI: "/v/small.mp4", MimeType: "video/mp4", SizeBytes: 5 * MB},
	})
	if err != nil {
		t.Fatalf("SendAttachments() failed: %v", err)
	}
	if compressor.calls != 0 {
		t.Errorf("compressor called %d times for a 5 MB video", compressor.calls)
	}
	if len(sender.frames) != 1 {
		t.Fatalf("sent %d frames, want 1", len(sender.frames))
	}
}

func TestLargeVideoUsesCompressedFile(t *testing.T) {
	fs := newFakeFS()
	fs.add("/v/raw.mp4", []byte("raw"))
	fs.sizes["/v/raw.mp4"] = 5*MB + 1
	fs.add("/cache/out.mp4", []byte("compressed"))
	compressor := &fakeCompressor{output: "file:///cache/out.mp4"}
	sender := &fakeSender{}
	p := NewPipeline(nil, fs, compressor, nil)

	err := p.SendAttachments(context.Background(), sender, group3, "", "", []PendingAttachment{
		{LocalURI: "/v/raw.mp4", DisplayName: "holiday.mp4", MimeType: "video/mp4", SizeBytes: 5*MB + 1},
	})
	if err != nil {
		t.Fatalf("SendAttachments() failed: %v", err)
	}
	if compressor.calls != 1 {
		t.Fatalf("compressor called %d times, want 1", compressor.calls)
	}

	frame := sender.frames[0].(*models.SendMessageFrame)
	want := "data:video/mp4;base64," + base64.StdEncoding.EncodeToString([]byte("compressed"))
	if len(frame.Files) != 1 || frame.Files[0] != want {
		t.Errorf("files = %v, want compressed payload", frame.Files)
	}
	if frame.Attachments[0].FileName != "holiday.mp4" || frame.Attachments[0].FileURL != nil {
		t.Errorf("attachment = %+v", frame.Attachments[0])
	}
	if frame.MessageType != models.MessageTypeFile {
		t.Errorf("message_type = %q", frame.MessageType)
	}
	if got := fs.removedPaths(); len(got) != 1 || got[0] != "/cache/out.mp4" {
		t.Errorf("removed = %v, want the compressed copy only", got)
	}
}

func TestCompressionFailureIsFailClosed(t *testing.T) {
	cases := map[string]*fakeCompressor{
		"compressor error":  {err: errors.New("codec crashed")},
		"missing artifact":  {output: "/cache/gone.mp4"},
		"empty output path": {output: ""},
	}
	for name, compressor := range cases {
		t.Run(name, func(t *testing.T) {
			fs := newFakeFS()
			fs.add("/v/raw.mp4", []byte("raw"))
			fs.sizes["/v/raw.mp4"] = 6 * MB
			sender := &fakeSender{}
			p := NewPipeline(nil, fs, compressor, nil)

			err := p.SendAttachments(context.Background(), sender, group3, "", "", []PendingAttachment{
				{LocalURI: "/v/raw.mp4", MimeType: "video/mp4", SizeBytes: 6 * MB},
			})
			if !errors.Is(err, ErrCompressionFailed) {
				t.Fatalf("error = %v, want ErrCompressionFailed", err)
			}
			if fs.readCount() != 0 || len(sender.frames) != 0 {
				t.Errorf("uncompressed video touched: reads=%d sends=%d", fs.readCount(), len(sender.frames))
			}
		})
	}
}

func TestCompressedVideoStillTooLarge(t *testing.T) {
	fs := newFakeFS()
	fs.add("/v/raw.mp4", []byte("raw"))
	fs.sizes["/v/raw.mp4"] = 40 * MB
	fs.add("/cache/out.mp4", []byte("x"))
	fs.sizes["/cache/out.mp4"] = 30 * MB
	p := NewPipeline(nil, fs, &fakeCompressor{output: "/cache/out.mp4"}, nil)

	_, _, err := p.Prepare(context.Background(), []PendingAttachment{
		{LocalURI: "/v/raw.mp4", MimeType: "video/mp4", SizeBytes: 40 * MB},
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("error = %v, want ErrFileTooLarge", err)
	}
	if got := fs.removedPaths(); len(got) != 1 || got[0] != "/cache/out.mp4" {
		t.Errorf("removed = %v, want the rejected compressed copy", got)
	}
}

func TestGateUsesSizeOnDisk(t *testing.T) {
	fs := newFakeFS()
	fs.add("/tmp/big.zip", []byte("zip"))
	fs.sizes["/tmp/big.zip"] = 29 * MB
	sender := &fakeSender{}
	p := NewPipeline(nil, fs, nil, nil)

	err := p.SendAttachments(context.Background(), sender, group3, "", "", []PendingAttachment{
		{LocalURI: "/tmp/big.zip", MimeType: "application/zip", SizeBytes: 1024},
	})
	if !errors.Is(err, ErrFileTooLarge) {
		t.Fatalf("error = %v, want ErrFileTooLarge despite the reported size", err)
	}
	if fs.readCount() != 0 || len(sender.frames) != 0 {
		t.Errorf("oversized file touched: reads=%d sends=%d", fs.readCount(), len(sender.frames))
	}
}

func TestUnderreportedVideoIsCompressed(t *testing.T) {
	fs := newFakeFS()
	fs.add("/v/raw.mp4", []byte("raw"))
	fs.sizes["/v/raw.mp4"] = 20 * MB
	fs.add("/cache/out.mp4", []byte("compressed"))
	compressor := &fakeCompressor{output: "/cache/out.mp4"}
	p := NewPipeline(nil, fs, compressor, nil)

	if _, _, err := p.Prepare(context.Background(), []PendingAttachment{
		{LocalURI: "/v/raw.mp4", MimeType: "video/mp4", SizeBytes: MB},
	}); err != nil {
		t.Fatalf("Prepare() failed: %v", err)
	}
	if compressor.calls != 1 {
		t.Errorf("compressor called %d times, want 1", compressor.calls)
	}
}

func TestCompressedCopyRemovedWhenBatchFails(t *testing.T) {
	fs := newFakeFS()
	fs.add("/v/raw.mp4", []byte("raw"))
	fs.sizes["/v/raw.mp4"] = 10 * MB
	fs.add("/cache/out.mp4", []byte("compressed"))
	p := NewPipeline(nil, fs, &fakeCompressor{output: "/cache/out.mp4"}, nil)

	_, _, err := p.Prepare(context.Background(), []PendingAttachment{
		{LocalURI: "/v/raw.mp4", MimeType: "video/mp4"},
		{LocalURI: "/missing.txt", MimeType: "text/plain"},
	})
	if !errors.Is(err, ErrFileUnreadable) {
		t.Fatalf("error = %v, want ErrFileUnreadable", err)
	}
	if got := fs.removedPaths(); len(got) != 1 || got[0] != "/cache/out.mp4" {
		t.Errorf("removed = %v, want the compressed copy", got)
	}
	if _, err := fs.Stat("/v/raw.mp4"); err != nil {
		t.Errorf("original video removed: %v", err)
	}
}

func TestBatchIsAllOrNothing(t *testing.T) {
	fs := newFakeFS()
	fs.add("/a.txt", []byte("a"))
	sender := &fakeSender{}
	p := NewPipeline(nil, fs, nil, nil)

	err := p.SendAttachments(context.Background(), sender, group3, "", "", []PendingAttachment{
		{LocalURI: "/a.txt", MimeType: "text/plain", SizeBytes: 1},
		{LocalURI: "/missing.txt", MimeType: "text/plain", SizeBytes: 1},
	})
	if !errors.Is(err, ErrFileUnreadable) {
		t.Fatalf("error = %v, want ErrFileUnreadable", err)
	}
	if len(sender.frames) != 0 {
		t.Errorf("partial batch sent")
	}
}

func TestBatchKeepsOrderAndSniffsMime(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\x0dIHDR")
	fs := newFakeFS()
	fs.add("/p/one.png", png)
	fs.add("/p/two.txt", []byte("hello"))
	sender := &fakeSender{}
	p := NewPipeline(nil, fs, nil, nil)

	err := p.SendAttachments(context.Background(), sender, group3, "", "9", []PendingAttachment{
		{LocalURI: "/p/one.png"},
		{LocalURI: "/p/two.txt", MimeType: "text/plain"},
	})
	if err != nil {
		t.Fatalf("SendAttachments() failed: %v", err)
	}

	frame := sender.frames[0].(*models.SendMessageFrame)
	if frame.Attachments[0].FileName != "one.png" || frame.Attachments[0].FileType != "image/png" {
		t.Errorf("first attachment = %+v", frame.Attachments[0])
	}
	if !strings.HasPrefix(frame.Files[0], "data:image/png;base64,") {
		t.Errorf("first file = %.40s", frame.Files[0])
	}
	if frame.Files[1] != "data:text/plain;base64,aGVsbG8=" {
		t.Errorf("second file = %q", frame.Files[1])
	}
	if frame.ParentID != "9" {
		t.Errorf("parent_id = %q", frame.ParentID)
	}
}

func TestEmptyBatch(t *testing.T) {
	p := NewPipeline(nil, newFakeFS(), nil, nil)
	if err := p.SendAttachments(context.Background(), &fakeSender{}, group3, "", "", nil); !errors.Is(err, ErrNothingToSend) {
		t.Errorf("error = %v, want ErrNothingToSend", err)
	}
}

func TestShareLocation(t *testing.T) {
	locator := &fakeLocator{loc: Location{Latitude: 52.52, Longitude: 13.405}}
	sender := &fakeSender{}
	p := NewPipeline(nil, nil, nil, locator)

	if err := p.ShareLocation(context.Background(), sender, models.NewConversationKey(models.KindPersonal, "7"), "", ""); err != nil {
		t.Fatalf("ShareLocation() failed: %v", err)
	}
	if locator.options.Timeout != DefaultLocationTimeout || locator.options.MaxAge != DefaultLocationMaxAge {
		t.Errorf("options = %+v", locator.options)
	}

	frame := sender.frames[0].(*models.SendMessageFrame)
	if frame.MessageType != models.MessageTypeLocation || *frame.Latitude != 52.52 || *frame.Longitude != 13.405 {
		t.Errorf("frame = %+v", frame)
	}
	if frame.ReceiverID != "7" || !frame.GroupID.IsZero() {
		t.Errorf("route = group %q receiver %q", frame.GroupID, frame.ReceiverID)
	}
}

func TestShareLocationRejectsBadFix(t *testing.T) {
	cases := map[string]*fakeLocator{
		"nan latitude":  {loc: Location{Latitude: math.NaN(), Longitude: 1}},
		"inf longitude": {loc: Location{Latitude: 1, Longitude: math.Inf(1)}},
	}
	for name, locator := range cases {
		t.Run(name, func(t *testing.T) {
			sender := &fakeSender{}
			p := NewPipeline(nil, nil, nil, locator)
			err := p.ShareLocation(context.Background(), sender, group3, "", "")
			if !errors.Is(err, ErrInvalidLocation) {
				t.Fatalf("error = %v, want ErrInvalidLocation", err)
			}
			if len(sender.frames) != 0 {
				t.Error("invalid location sent")
			}
		})
	}
}

func TestShareLocationTimeout(t *testing.T) {
	p := NewPipeline(nil, nil, nil, &fakeLocator{err: context.DeadlineExceeded})
	err := p.ShareLocation(context.Background(), &fakeSender{}, group3, "", "")
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("error = %v, want ErrLocationUnavailable", err)
	}
	var userErr *UserError
	if !errors.As(err, &userErr) || !strings.Contains(userErr.Message, "Timed out") {
		t.Errorf("alert = %+v", userErr)
	}
}

func TestSendErrorPassesThrough(t *testing.T) {
	fs := newFakeFS()
	fs.add("/a.txt", []byte("a"))
	sentinel := errors.New("transport not ready")
	p := NewPipeline(nil, fs, nil, nil)

	err := p.SendAttachments(context.Background(), &fakeSender{err: sentinel}, group3, "", "", []PendingAttachment{
		{LocalURI: "/a.txt", MimeType: "text/plain", SizeBytes: 1},
	})
	if !errors.Is(err, sentinel) {
		t.Errorf("error = %v, want transport error", err)
	}
}
