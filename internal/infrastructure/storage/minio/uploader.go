// Package minio pushes organized archives to S3-compatible object storage.
package minio

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/kirillkom/semester-scan/internal/core/domain"
)

type Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Prefix    string
	URLExpiry time.Duration
}

type Uploader struct {
	cfg    Config
	client *minio.Client
}

// New connects and makes sure the bucket exists.
func New(ctx context.Context, cfg Config) (*Uploader, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.URLExpiry <= 0 {
		cfg.URLExpiry = 24 * time.Hour
	}
	cli, err := newClient(cfg, "")
	if err != nil {
		return nil, err
	}

	exists, err := cli.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := cli.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &Uploader{cfg: cfg, client: cli}, nil
}

func newClient(cfg Config, sessionToken string) (*minio.Client, error) {
	cli, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, sessionToken),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return cli, nil
}

// Upload stores the archive and returns a presigned download URL. A non-empty
// token is sent as the session token of temporary credentials.
func (u *Uploader) Upload(ctx context.Context, name string, body io.Reader, size int64, token string) (domain.UploadReceipt, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.ContainsAny(name, `/\`) {
		return domain.UploadReceipt{}, domain.WrapError(domain.ErrInvalidInput, "upload archive", fmt.Errorf("bad object name %q", name))
	}

	cli := u.client
	if token = strings.TrimSpace(token); token != "" {
		var err error
		if cli, err = newClient(u.cfg, token); err != nil {
			return domain.UploadReceipt{}, err
		}
	}

	key := path.Join(u.cfg.Prefix, name)
	if _, err := cli.PutObject(ctx, u.cfg.Bucket, key, body, size, minio.PutObjectOptions{
		ContentType:        "application/zip",
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", name),
	}); err != nil {
		return domain.UploadReceipt{}, wrapUploadError(err)
	}

	link, err := cli.PresignedGetObject(ctx, u.cfg.Bucket, key, u.cfg.URLExpiry, url.Values{})
	if err != nil {
		return domain.UploadReceipt{}, fmt.Errorf("presign %s: %w", key, err)
	}
	return domain.UploadReceipt{Key: key, URL: link.String()}, nil
}

func wrapUploadError(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.StatusCode {
	case 401, 403:
		return domain.WrapError(domain.ErrUnauthorized, "upload archive", err)
	case 500, 502, 503, 504:
		return domain.WrapError(domain.ErrTemporary, "upload archive", err)
	}
	return fmt.Errorf("upload archive: %w", err)
}
