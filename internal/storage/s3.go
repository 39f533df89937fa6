// Package storage uploads message attachments to S3 and resolves public URLs
// for them. No resumable uploads, no retries; a failed upload aborts the send.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3manager"
	"github.com/google/uuid"

	"github.com/sohbat-app/chat-service/internal/config"
)

// Attachment describes an uploaded blob for embedding in a message.
type Attachment struct {
	URL  string `json:"url"`
	Key  string `json:"key"`
	Name string `json:"name"`
	Size int64  `json:"size"`
}

type S3Client struct {
	uploader  *s3manager.Uploader
	s3        *s3.S3
	bucket    string
	publicURL string
}

func NewS3Client(cfg config.StorageConfig) (*S3Client, error) {
	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.Region),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	publicURL := cfg.PublicURL
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", cfg.Bucket, cfg.Region)
	}

	return &S3Client{
		uploader:  s3manager.NewUploader(sess),
		s3:        s3.New(sess),
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
	}, nil
}

// Upload stores the blob under a fresh collision-resistant key and returns
// the attachment metadata. Keys are never reused, so nothing is overwritten.
func (c *S3Client) Upload(ctx context.Context, userID, filename string, size int64, body io.Reader) (*Attachment, error) {
	key := buildKey(userID, filename, time.Now())

	_, err := c.uploader.UploadWithContext(ctx, &s3manager.UploadInput{
		Bucket:       aws.String(c.bucket),
		Key:          aws.String(key),
		Body:         body,
		CacheControl: aws.String("max-age=3600"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &Attachment{
		URL:  c.PublicURL(key),
		Key:  key,
		Name: filename,
		Size: size,
	}, nil
}

// PublicURL resolves a previously uploaded key.
func (c *S3Client) PublicURL(key string) string {
	return c.publicURL + "/" + key
}

// Delete removes an object by key.
func (c *S3Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete from S3: %w", err)
	}
	return nil
}

// buildKey derives "{userID}/{unixMillis}-{suffix}{ext}" so concurrent
// uploads by the same user cannot collide and the extension survives.
func buildKey(userID, filename string, now time.Time) string {
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
	ext := strings.ToLower(path.Ext(filename))
	return fmt.Sprintf("%s/%d-%s%s", userID, now.UnixMilli(), suffix, ext)
}
