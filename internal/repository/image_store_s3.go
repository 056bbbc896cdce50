package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type S3ImageStoreConfig struct {
	Bucket string
	Prefix string
	// PublicURL is prepended to object keys to build the returned reference.
	PublicURL string
}

type S3ImageStore struct {
	client *s3.Client
	cfg    S3ImageStoreConfig
}

func NewS3ImageStore(client *s3.Client, cfg S3ImageStoreConfig) *S3ImageStore {
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &S3ImageStore{client: client, cfg: cfg}
}

func (s *S3ImageStore) Save(ctx context.Context, scope string, body io.Reader) (string, error) {
	body, ext, err := sniffImage(body)
	if err != nil {
		return "", err
	}
	// Buffer so the SDK can sign and retry a seekable payload.
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	contentType, _ := ImageContentType(ext)
	key := s.objectKey(scope, uuid.NewString()+"."+ext)

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}
	return s.cfg.PublicURL + "/" + key, nil
}

func (s *S3ImageStore) Delete(ctx context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.cfg.PublicURL+"/") {
		return nil
	}
	key := strings.TrimPrefix(ref, s.cfg.PublicURL+"/")
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	return err
}

func (s *S3ImageStore) objectKey(scope, name string) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{s.cfg.Prefix, strings.Trim(scope, "/"), name} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "/")
}
