// Package docstore holds fund documents in S3-compatible object storage,
// encrypted at rest with a passphrase-derived key.
package docstore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Config struct {
	Bucket     string
	Region     string
	Endpoint   string
	AccessKey  string
	SecretKey  string
	Passphrase string
}

// Store uploads and retrieves encrypted document blobs. A nil client means
// object storage is not configured; calls return an explicit error so
// handlers can surface it rather than panic.
type Store struct {
	cfg    Config
	client *s3.Client
}

func New(cfg Config) *Store {
	st := &Store{cfg: cfg}
	if cfg.Bucket != "" && cfg.AccessKey != "" && cfg.SecretKey != "" {
		st.client = newS3Client(cfg)
	}
	return st
}

func newS3Client(cfg Config) *s3.Client {
	opts := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: true,
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
	}
	return s3.New(opts)
}

// Configured reports whether object storage is usable.
func (s *Store) Configured() bool { return s.client != nil }

// Put encrypts and uploads a document body, returning the object key.
// Keys are namespaced per organization so a tenant can be purged wholesale.
func (s *Store) Put(ctx context.Context, orgID int64, fileName string, body []byte) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("document storage not configured")
	}

	sealed, err := encrypt(body, s.cfg.Passphrase)
	if err != nil {
		return "", fmt.Errorf("encrypt document: %w", err)
	}

	key := fmt.Sprintf("orgs/%d/docs/%s/%s", orgID, uuid.New().String(), fileName)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(sealed),
		ContentLength: aws.Int64(int64(len(sealed))),
	})
	if err != nil {
		return "", fmt.Errorf("upload document: %w", err)
	}
	return key, nil
}

// Get downloads and decrypts a document body.
func (s *Store) Get(ctx context.Context, objectKey string) ([]byte, error) {
	if s.client == nil {
		return nil, fmt.Errorf("document storage not configured")
	}

	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return nil, fmt.Errorf("download document: %w", err)
	}
	defer result.Body.Close()

	sealed, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("read document body: %w", err)
	}
	return decrypt(sealed, s.cfg.Passphrase)
}

// Delete removes the object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, objectKey string) error {
	if s.client == nil {
		return fmt.Errorf("document storage not configured")
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}
