package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/markdave123-py/coursemate/internal/core"
	objectclient "github.com/markdave123-py/coursemate/internal/core/object-client"
	"github.com/markdave123-py/coursemate/internal/logger"
)

// DriveDownloadURL is the export endpoint Drive share links resolve to.
const DriveDownloadURL = "https://drive.google.com/uc"

type Options struct {
	Client   *http.Client
	MaxBytes int64
	RPS      float64
	// S3 serves s3:// references; nil rejects them.
	S3 objectclient.ObjectClient
	// AllowLocal enables file:// and bare path references. The HTTP API
	// leaves it off so callers cannot read the server's disk.
	AllowLocal bool
	DriveURL   string
}

// Fetcher resolves an external reference into raw bytes.
type Fetcher struct {
	client     *http.Client
	maxBytes   int64
	limiter    *rate.Limiter
	s3         objectclient.ObjectClient
	allowLocal bool
	driveURL   string
	log        *slog.Logger
}

var _ core.Fetcher = (*Fetcher)(nil)

func New(opts Options, log *slog.Logger) *Fetcher {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	limit := rate.Inf
	if opts.RPS > 0 {
		limit = rate.Limit(opts.RPS)
	}
	driveURL := opts.DriveURL
	if driveURL == "" {
		driveURL = DriveDownloadURL
	}
	return &Fetcher{
		client:     client,
		maxBytes:   opts.MaxBytes,
		limiter:    rate.NewLimiter(limit, 1),
		s3:         opts.S3,
		allowLocal: opts.AllowLocal,
		driveURL:   driveURL,
		log:        logger.OrDiscard(log).With("component", "fetcher"),
	}
}

// Fetch picks a backend from the reference shape. Every failure is a
// FetchError pipeline failure.
func (f *Fetcher) Fetch(ctx context.Context, ref string) (core.RawDocument, error) {
	ref = strings.TrimSpace(ref)
	doc, err := f.fetch(ctx, ref)
	if err != nil {
		return core.RawDocument{}, core.Fail(core.StateFetching, fmt.Errorf("fetch %q: %w", ref, err))
	}
	doc.Ref = ref
	f.log.Debug("fetched", "ref", ref, "bytes", len(doc.Data), "filename", doc.Filename, "content_type", doc.ContentType)
	return doc, nil
}

func (f *Fetcher) fetch(ctx context.Context, ref string) (core.RawDocument, error) {
	if ref == "" {
		return core.RawDocument{}, fmt.Errorf("%w: empty reference", core.ErrUnsupportedReference)
	}
	if id, ok := DriveFileID(ref); ok {
		return f.fetchDrive(ctx, id)
	}

	u, err := url.Parse(ref)
	if err == nil {
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return f.fetchHTTP(ctx, ref)
		case "s3":
			return f.fetchS3(ctx, u.Host, strings.TrimPrefix(u.Path, "/"))
		case "file":
			return f.fetchLocal(u.Path)
		case "":
			return f.fetchLocal(ref)
		}
	}
	if f.allowLocal && filepath.IsAbs(ref) {
		return f.fetchLocal(ref)
	}
	return core.RawDocument{}, fmt.Errorf("%w: %s", core.ErrUnsupportedReference, ref)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, rawURL string) (core.RawDocument, error) {
	resp, body, err := f.get(ctx, f.client, rawURL)
	if err != nil {
		return core.RawDocument{}, err
	}
	return f.document(resp, body)
}

func (f *Fetcher) fetchS3(ctx context.Context, bucket, key string) (core.RawDocument, error) {
	if f.s3 == nil {
		return core.RawDocument{}, fmt.Errorf("%w: s3 is not configured", core.ErrUnsupportedReference)
	}
	if bucket == "" || key == "" {
		return core.RawDocument{}, fmt.Errorf("%w: s3 reference needs bucket and key", core.ErrUnsupportedReference)
	}
	if err := f.limiter.Wait(ctx); err != nil {
		return core.RawDocument{}, err
	}
	data, contentType, err := f.s3.GetFile(ctx, bucket, key, f.maxBytes)
	if err != nil {
		return core.RawDocument{}, err
	}
	if len(data) == 0 {
		return core.RawDocument{}, errors.New("s3 object is empty")
	}
	return core.RawDocument{
		Data:        data,
		Filename:    path.Base(key),
		ContentType: contentType,
		SourceID:    "s3_" + bucket + "_" + key,
	}, nil
}

func (f *Fetcher) fetchLocal(p string) (core.RawDocument, error) {
	if !f.allowLocal {
		return core.RawDocument{}, fmt.Errorf("%w: local files are not accepted here", core.ErrUnsupportedReference)
	}
	info, err := os.Stat(p)
	if err != nil {
		return core.RawDocument{}, err
	}
	if info.IsDir() {
		return core.RawDocument{}, fmt.Errorf("%s is a directory", p)
	}
	if f.maxBytes > 0 && info.Size() > f.maxBytes {
		return core.RawDocument{}, fmt.Errorf("file is %d bytes, limit is %d", info.Size(), f.maxBytes)
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return core.RawDocument{}, err
	}
	if len(data) == 0 {
		return core.RawDocument{}, errors.New("file is empty")
	}
	return core.RawDocument{Data: data, Filename: filepath.Base(p)}, nil
}

// get performs one rate-limited GET and reads the body within the size cap.
func (f *Fetcher) get(ctx context.Context, client *http.Client, rawURL string) (*http.Response, []byte, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}

	reader := io.Reader(resp.Body)
	if f.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, f.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("read body: %w", err)
	}
	if f.maxBytes > 0 && int64(len(body)) > f.maxBytes {
		return nil, nil, fmt.Errorf("body exceeds %d bytes", f.maxBytes)
	}
	return resp, body, nil
}

func (f *Fetcher) document(resp *http.Response, body []byte) (core.RawDocument, error) {
	if len(body) == 0 {
		return core.RawDocument{}, errors.New("empty body")
	}
	return core.RawDocument{
		Data:        body,
		Filename:    responseFilename(resp),
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

func responseFilename(resp *http.Response) string {
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			return path.Base(params["filename"])
		}
	}
	if resp.Request != nil && resp.Request.URL != nil {
		if base := path.Base(resp.Request.URL.Path); strings.Contains(base, ".") {
			return base
		}
	}
	return ""
}
