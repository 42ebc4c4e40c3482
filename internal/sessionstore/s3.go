package sessionstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/homecloud/thinqd/internal/config"
	"github.com/homecloud/thinqd/thinq"
)

// S3Store mirrors the session record to object storage so a rebuilt host
// can pick up its tokens without re-running the browser login.
type S3Store struct {
	client *minio.Client
	bucket string
	key    string
}

func NewS3Store(cfg *config.S3Config) (*S3Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("missing s3 config")
	}

	accessKey, err := readSecretFile(cfg.AccessKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read s3 access key: %w", err)
	}
	secretKey, err := readSecretFile(cfg.SecretKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read s3 secret key: %w", err)
	}

	host, secure, err := parseEndpoint(cfg.Endpoint)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(host, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init s3 client: %w", err)
	}

	return &S3Store{
		client: client,
		bucket: cfg.Bucket,
		key:    path.Join(cfg.Prefix, "session.json"),
	}, nil
}

func (s *S3Store) Load(ctx context.Context) (thinq.Session, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.key, minio.GetObjectOptions{})
	if err != nil {
		return thinq.Session{}, s.wrapError(err)
	}
	defer obj.Close()

	if _, err := obj.Stat(); err != nil {
		return thinq.Session{}, s.wrapError(err)
	}
	data, err := io.ReadAll(obj)
	if err != nil {
		return thinq.Session{}, fmt.Errorf("read session object: %w", err)
	}
	return decode(data)
}

func (s *S3Store) Save(ctx context.Context, session thinq.Session) error {
	data, err := encode(session)
	if err != nil {
		return err
	}
	reader := bytes.NewReader(data)
	_, err = s.client.PutObject(ctx, s.bucket, s.key, reader, int64(reader.Len()), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return s.wrapError(err)
	}
	return nil
}

func (s *S3Store) wrapError(err error) error {
	resp := minio.ToErrorResponse(err)
	if resp.Code == "NoSuchKey" {
		return ErrNotFound
	}
	return err
}

func parseEndpoint(raw string) (string, bool, error) {
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		u, err := url.Parse(raw)
		if err != nil {
			return "", false, fmt.Errorf("parse endpoint: %w", err)
		}
		if u.Host == "" {
			return "", false, fmt.Errorf("invalid endpoint: %q", raw)
		}
		return u.Host, u.Scheme == "https", nil
	}
	return raw, true, nil
}

func readSecretFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
