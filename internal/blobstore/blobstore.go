// Package blobstore implements transcript archive and media persistence
// over an S3-compatible (R2) bucket: gzipped transcript archives under
// agents/{agentId}/sessions/{sessionId}.jsonl.gz (or -part{N} for partials),
// media under media/{sessionKey}/{uuid}.{ext}, and the HTTP media-serving
// contract (404 missing, 410 expired).
//
// Uses the same AWS SDK v2 client construction (static credentials, custom
// endpoint/path-style for R2 compatibility) across both object families.
package blobstore

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"

	"github.com/ruizzmauri/gsv-sub000/internal/session"
	"github.com/ruizzmauri/gsv-sub000/pkg/models"
)

// Config configures the R2-compatible bucket connection.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
}

// Store implements the transcript archive and media object layout over an
// S3-compatible bucket.
type Store struct {
	client *s3.Client
	bucket string
}

// New connects an S3-compatible client per cfg.
func New(ctx context.Context, cfg Config) (*Store, error) {
	bucket := strings.TrimSpace(cfg.Bucket)
	if bucket == "" {
		return nil, fmt.Errorf("blobstore: bucket is required")
	}
	region := strings.TrimSpace(cfg.Region)
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.UsePathStyle {
			o.UsePathStyle = true
		}
	})
	return &Store{client: client, bucket: bucket}, nil
}

// ArchiveKey returns the transcript archive object key; part 0 means the
// full (non-partial) archive.
func ArchiveKey(agentID, sessionID string, part int) string {
	if part <= 0 {
		return fmt.Sprintf("agents/%s/sessions/%s.jsonl.gz", agentID, sessionID)
	}
	return fmt.Sprintf("agents/%s/sessions/%s-part%d.jsonl.gz", agentID, sessionID, part)
}

// MediaKey returns a fresh media object key under sessionKey's namespace.
func MediaKey(sessionKey, ext string) string {
	return fmt.Sprintf("media/%s/%s.%s", sessionKey, uuid.NewString(), strings.TrimPrefix(ext, "."))
}

// Archive serializes messages as newline-delimited JSON, gzips them, and
// PUTs the archive with custom metadata recording counts and token totals
//. It satisfies session.Archiver.
func (s *Store) Archive(ctx context.Context, agentID, sessionID string, part int, messages []models.Message, tokens session.ArchiveTokens) (string, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	enc := json.NewEncoder(gz)
	for _, m := range messages {
		if err := enc.Encode(m); err != nil {
			return "", fmt.Errorf("encode message: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("close gzip writer: %w", err)
	}

	key := ArchiveKey(agentID, sessionID, part)
	meta := map[string]string{
		"sessionId":    sessionID,
		"agentId":      agentID,
		"messageCount": strconv.Itoa(len(messages)),
		"archivedAt":   time.Now().UTC().Format(time.RFC3339),
		"inputTokens":  strconv.FormatInt(tokens.InputTokens, 10),
		"outputTokens": strconv.FormatInt(tokens.OutputTokens, 10),
		"totalTokens":  strconv.FormatInt(tokens.InputTokens+tokens.OutputTokens, 10),
	}
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/gzip"),
		Metadata:    meta,
	})
	if err != nil {
		return "", fmt.Errorf("put archive %s: %w", key, err)
	}
	return key, nil
}

// ReadArchive decompresses and decodes a transcript archive back into its
// original message array.
func (s *Store) ReadArchive(ctx context.Context, key string) ([]models.Message, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		return nil, fmt.Errorf("get archive %s: %w", key, err)
	}
	defer out.Body.Close()

	gz, err := gzip.NewReader(out.Body)
	if err != nil {
		return nil, fmt.Errorf("open gzip reader: %w", err)
	}
	defer gz.Close()

	var messages []models.Message
	dec := json.NewDecoder(gz)
	for {
		var m models.Message
		if err := dec.Decode(&m); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("decode message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, nil
}

// PutMedia stores a decoded media attachment and returns its object key.
func (s *Store) PutMedia(ctx context.Context, sessionKey, ext, mimeType string, data []byte) (string, error) {
	key := MediaKey(sessionKey, ext)
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        bytes.NewReader(data),
		ContentType: aws.String(mimeType),
	})
	if err != nil {
		return "", fmt.Errorf("put media %s: %w", key, err)
	}
	return key, nil
}

// MediaObject is what GetMedia returns: the body plus what the HTTP media
// handler needs to set Content-Type and honor expiry.
type MediaObject struct {
	Body        io.ReadCloser
	ContentType string
	ExpiresAt   time.Time // zero means no expiry
}

// ErrNotFound indicates the requested object does not exist.
var ErrNotFound = fmt.Errorf("blobstore: not found")

// GetMedia fetches a media object by key for the /media/{uuid}.{ext}
// handler: 404 if missing is signaled via ErrNotFound, 410 past
// expiry is signaled via the caller checking MediaObject.ExpiresAt.
func (s *Store) GetMedia(ctx context.Context, key string) (*MediaObject, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: &key})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get media %s: %w", key, err)
	}
	obj := &MediaObject{Body: out.Body}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	if raw, ok := out.Metadata["expiresat"]; ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			obj.ExpiresAt = parsed
		}
	}
	return obj, nil
}
