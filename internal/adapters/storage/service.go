// Package storage keeps chat attachments in S3-compatible object storage so
// the classifier can read them after the gateway's own copy has expired.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned when a media reference does not resolve.
var ErrObjectNotFound = errors.New("media object not found")

// Object is a fetched attachment.
type Object struct {
	Key         string
	ContentType string
	Data        []byte
}

// MediaStore defines the object storage operations the conversation flow uses.
type MediaStore interface {
	// UploadMedia stores an attachment under folder and returns its key, which
	// becomes the message unit's media reference.
	UploadMedia(ctx context.Context, folder, fileName, contentType string, reader io.Reader, size int64) (string, error)

	// Fetch loads an attachment by key.
	Fetch(ctx context.Context, key string) (Object, error)

	// ValidateContentType checks if the content type is accepted as evidence.
	ValidateContentType(contentType string) error

	// ValidateFileSize checks if the file size is within limits.
	ValidateFileSize(sizeBytes int64) error
}
