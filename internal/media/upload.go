package media

import (
	"context"
	"fmt"
	"io"

	"github.com/huddlehq/huddle/internal/apiclient"
)

// DefaultMaxUploadBytes caps a single upload at 300 MiB.
const DefaultMaxUploadBytes = 300 << 20

// allowedContentTypes is the client-side allow list. The backend enforces
// the same list; checking here avoids burning a presign on a file that can
// never complete.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/heic":      {},
	"image/heif":      {},
	"video/mp4":       {},
	"video/quicktime": {},
}

// UploadRequest describes one file to upload.
type UploadRequest struct {
	Filename    string
	ContentType string
	SizeBytes   int64
	Body        io.Reader
	AlbumName   string
}

// ObjectPutter uploads raw bytes to a presigned URL. *apiclient.Client
// satisfies it.
type ObjectPutter interface {
	PutObject(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error
}

// Uploader runs the two-phase upload: presign, raw PUT with the negotiated
// content type, then complete.
type Uploader struct {
	api      API
	objects  ObjectPutter
	maxBytes int64
}

func NewUploader(api API, objects ObjectPutter, maxBytes int64) *Uploader {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &Uploader{api: api, objects: objects, maxBytes: maxBytes}
}

// ValidateUpload rejects unsupported content types and oversized files
// before any network traffic.
func (u *Uploader) ValidateUpload(req UploadRequest) error {
	if req.Filename == "" {
		return &apiclient.ValidationError{Message: "Filename is required"}
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		return &apiclient.ValidationError{
			Message: fmt.Sprintf("Unsupported file type %q", req.ContentType),
		}
	}
	if req.SizeBytes <= 0 {
		return &apiclient.ValidationError{Message: "File is empty"}
	}
	if req.SizeBytes > u.maxBytes {
		return &apiclient.ValidationError{
			Message: fmt.Sprintf("File exceeds the %d MiB limit", u.maxBytes>>20),
		}
	}
	return nil
}

// Upload performs the full two-phase upload and returns the new media id.
// The PUT uses exactly the content type the presign negotiated; if the
// backend pinned a different one in required_headers, that wins.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if err := u.ValidateUpload(req); err != nil {
		return "", err
	}

	presigned, err := u.api.PresignUpload(ctx, apiclient.PresignUploadInput{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
	})
	if err != nil {
		return "", fmt.Errorf("negotiating upload: %w", err)
	}

	contentType := req.ContentType
	if ct, ok := presigned.RequiredHeaders["Content-Type"]; ok && ct != "" {
		contentType = ct
	}

	if err := u.objects.PutObject(ctx, presigned.UploadURL, contentType, req.Body, req.SizeBytes); err != nil {
		return "", fmt.Errorf("uploading object: %w", err)
	}

	err = u.api.CompleteUpload(ctx, apiclient.CompleteUploadInput{
		MediaID:     presigned.MediaID,
		ObjectKey:   presigned.ObjectKey,
		Filename:    req.Filename,
		ContentType: contentType,
		SizeBytes:   req.SizeBytes,
		AlbumName:   req.AlbumName,
	})
	if err != nil {
		return "", fmt.Errorf("registering upload: %w", err)
	}
	return presigned.MediaID, nil
}
