package transcoder

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/pkg/errors"

	"github.com/amankumarsingh77/transcodebot/internal/models"
)

// Fetcher resolves a job source to a local file inside the workspace,
// enforcing the maximum input size before anything is handed to ffmpeg.
type Fetcher struct {
	maxInputBytes int64
	httpClient    *http.Client
	s3Client      *s3.Client
}

func NewFetcher(maxInputBytes int64, s3Client *s3.Client) *Fetcher {
	return &Fetcher{
		maxInputBytes: maxInputBytes,
		httpClient:    &http.Client{},
		s3Client:      s3Client,
	}
}

// Fetch returns a local path for the source. Remote sources are downloaded
// into dir; local sources are size-checked in place.
func (f *Fetcher) Fetch(ctx context.Context, src models.Source, dir string) (string, error) {
	switch src.Kind {
	case models.SourceLocal:
		info, err := os.Stat(src.Path)
		if err != nil {
			return "", errors.Wrap(err, "stat local source")
		}
		if info.Size() > f.maxInputBytes {
			return "", errors.Wrapf(ErrInputTooLarge, "local source is %d bytes", info.Size())
		}
		return src.Path, nil
	case models.SourceHTTP:
		return f.fetchHTTP(ctx, src.URL, dir)
	case models.SourceS3:
		return f.fetchS3(ctx, src.Bucket, src.Key, dir)
	}
	return "", errors.Errorf("unknown source kind %q", src.Kind)
}

func (f *Fetcher) fetchHTTP(ctx context.Context, url, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "fetch source")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Errorf("fetch source: unexpected status %d", resp.StatusCode)
	}
	if resp.ContentLength > f.maxInputBytes {
		return "", errors.Wrapf(ErrInputTooLarge, "source is %d bytes", resp.ContentLength)
	}

	return f.writeLimited(resp.Body, dir)
}

func (f *Fetcher) fetchS3(ctx context.Context, bucket, key, dir string) (string, error) {
	if f.s3Client == nil {
		return "", errors.New("s3 source but no s3 client configured")
	}
	out, err := f.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", errors.Wrap(err, "get object from s3")
	}
	defer out.Body.Close()

	if out.ContentLength != nil && *out.ContentLength > f.maxInputBytes {
		return "", errors.Wrapf(ErrInputTooLarge, "object is %d bytes", *out.ContentLength)
	}

	return f.writeLimited(out.Body, dir)
}

// writeLimited copies the body into dir/input, failing with ErrInputTooLarge
// once one byte more than the cap has been read. This backstops servers that
// omit or lie about the content length.
func (f *Fetcher) writeLimited(body io.Reader, dir string) (string, error) {
	localPath := filepath.Join(dir, "input")
	dst, err := os.Create(localPath)
	if err != nil {
		return "", errors.Wrap(err, "create local file")
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(body, f.maxInputBytes+1))
	if err != nil {
		os.Remove(localPath)
		return "", errors.Wrap(err, "write local file")
	}
	if n > f.maxInputBytes {
		os.Remove(localPath)
		return "", errors.Wrapf(ErrInputTooLarge, "source exceeds %d bytes", f.maxInputBytes)
	}
	return localPath, nil
}
