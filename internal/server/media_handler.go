package server

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/huddlehq/huddle/internal/audit"
	"github.com/huddlehq/huddle/internal/blob"
	"github.com/huddlehq/huddle/internal/metrics"
	"github.com/huddlehq/huddle/internal/store"
)

// allowedContentTypes mirrors the client-side allow list; the server is the
// one that actually enforces it.
var allowedContentTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"image/heic":      {},
	"image/heif":      {},
	"video/mp4":       {},
	"video/quicktime": {},
}

// mediaHandler serves listing, presigning, completion, and deletion.
type mediaHandler struct {
	media    MediaStore
	blobs    ObjectDeleter
	signer   *blob.Presigner
	auditor  AuditRecorder
	metrics  *metrics.Metrics
	maxBytes int64
}

type mediaItemPayload struct {
	MediaID     string `json:"media_id"`
	TeamID      string `json:"team_id"`
	ObjectKey   string `json:"object_key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	CreatedAt   int64  `json:"created_at"`
	AlbumName   string `json:"album_name,omitempty"`
	OwnerUserID string `json:"uploader_user_id,omitempty"`
	ThumbKey    string `json:"thumb_key,omitempty"`
	ThumbURL    string `json:"thumb_url,omitempty"`
}

// List returns one page of the open team's media, newest first. Thumbnail
// URLs are presigned inline; full-size URLs are minted one at a time via
// the download-url endpoint.
func (h *mediaHandler) List(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.Team == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No team session")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		fmt.Sscanf(v, "%d", &limit)
	}
	items, next, err := h.media.ListByTeam(r.Context(), sess.Team.ID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_cursor", "Listing cursor is not valid")
		return
	}

	payload := make([]mediaItemPayload, 0, len(items))
	for _, m := range items {
		item := mediaItemPayload{
			MediaID:     m.ID,
			TeamID:      m.TeamID,
			ObjectKey:   m.ObjectKey,
			Filename:    m.Filename,
			ContentType: m.ContentType,
			SizeBytes:   m.SizeBytes,
			CreatedAt:   m.CreatedAt.Unix(),
			AlbumName:   m.AlbumName,
			OwnerUserID: m.OwnerUserID,
			ThumbKey:    m.ThumbKey,
		}
		if m.ThumbKey != "" {
			item.ThumbURL = h.signer.SignGet(m.ThumbKey, "image/jpeg")
		}
		payload = append(payload, item)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":       payload,
		"next_cursor": next,
	})
}

type presignUploadRequest struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
}

// PresignUpload negotiates phase one of an upload: validate the metadata,
// mint a media id and a signed PUT URL bound to the content type.
func (h *mediaHandler) PresignUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.Team == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No team session")
		return
	}
	if !canUpload(sess) {
		writeError(w, http.StatusForbidden, "forbidden", "Your role cannot upload")
		return
	}

	var req presignUploadRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if req.Filename == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Filename is required")
		return
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		writeError(w, http.StatusBadRequest, "unsupported_type",
			fmt.Sprintf("Unsupported file type %q", req.ContentType))
		return
	}
	if req.SizeBytes <= 0 || (h.maxBytes > 0 && req.SizeBytes > h.maxBytes) {
		writeError(w, http.StatusRequestEntityTooLarge, "too_large", "File size is out of range")
		return
	}

	mediaID := uuid.NewString()
	objectKey := fmt.Sprintf("teams/%s/%s", sess.Team.ID, mediaID)
	uploadURL := h.signer.SignPut(objectKey, req.ContentType)

	h.metrics.IncPresign("upload")
	writeJSON(w, http.StatusOK, map[string]any{
		"media_id":   mediaID,
		"object_key": objectKey,
		"upload_url": uploadURL,
		"expires_in": h.signer.TTLSeconds(),
		"required_headers": map[string]string{
			"Content-Type": req.ContentType,
		},
	})
}

type completeUploadRequest struct {
	MediaID     string `json:"media_id"`
	ObjectKey   string `json:"object_key"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	SizeBytes   int64  `json:"size_bytes"`
	AlbumName   string `json:"album_name"`
}

// CompleteUpload registers the uploaded object as a media asset owned by
// the caller.
func (h *mediaHandler) CompleteUpload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.Team == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No team session")
		return
	}
	if !canUpload(sess) {
		writeError(w, http.StatusForbidden, "forbidden", "Your role cannot upload")
		return
	}

	var req completeUploadRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "Invalid request body")
		return
	}
	if req.MediaID == "" || req.ObjectKey == "" || req.Filename == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "Media id, object key, and filename are required")
		return
	}
	expectedKey := fmt.Sprintf("teams/%s/%s", sess.Team.ID, req.MediaID)
	if req.ObjectKey != expectedKey {
		writeError(w, http.StatusBadRequest, "bad_request", "Object key does not match the negotiated upload")
		return
	}

	m, err := h.media.Create(r.Context(), store.Media{
		ID:          req.MediaID,
		TeamID:      sess.Team.ID,
		ObjectKey:   req.ObjectKey,
		Filename:    req.Filename,
		ContentType: req.ContentType,
		SizeBytes:   req.SizeBytes,
		AlbumName:   req.AlbumName,
		OwnerUserID: sess.ActorID(),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "Could not register upload")
		return
	}

	h.metrics.MediaUploadsTotal.Inc()
	h.metrics.MediaBytesStored.Add(float64(req.SizeBytes))
	h.auditor.Record(audit.Event{
		Actor: sess.ActorID(), Action: "media.upload", TeamID: sess.Team.ID,
		Target: m.ID, Details: req.Filename,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"media_id":   m.ID,
		"created_at": m.CreatedAt.Unix(),
	})
}

// PresignDownload mints a short-lived signed GET URL for one asset.
func (h *mediaHandler) PresignDownload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.Team == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No team session")
		return
	}
	mediaID := r.URL.Query().Get("media_id")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "media_id is required")
		return
	}

	m, err := h.media.GetByID(r.Context(), mediaID)
	if err != nil || m.TeamID != sess.Team.ID {
		writeError(w, http.StatusNotFound, "not_found", "Media not found")
		return
	}

	h.metrics.IncPresign("download")
	writeJSON(w, http.StatusOK, map[string]any{
		"download_url": h.signer.SignGet(m.ObjectKey, m.ContentType),
		"expires_in":   h.signer.TTLSeconds(),
	})
}

// Delete removes an asset, its stored objects, and its row. Admins and
// coaches delete anything; everyone else only what they own, and items
// with no recorded owner stay.
func (h *mediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil || sess.Team == nil {
		writeError(w, http.StatusUnauthorized, "missing_token", "No team session")
		return
	}
	mediaID := r.URL.Query().Get("media_id")
	if mediaID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "media_id is required")
		return
	}

	m, err := h.media.GetByID(r.Context(), mediaID)
	if err != nil || m.TeamID != sess.Team.ID {
		writeError(w, http.StatusNotFound, "not_found", "Media not found")
		return
	}
	if !canDelete(sess, m) {
		writeError(w, http.StatusForbidden, "forbidden", "You cannot delete this item")
		return
	}

	if err := h.media.Delete(r.Context(), mediaID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "internal", "Could not delete media")
		return
	}
	// Best effort: the row is gone, orphaned blobs only waste disk.
	_ = h.blobs.Delete(m.ObjectKey)
	if m.ThumbKey != "" && m.ThumbKey != m.ObjectKey {
		_ = h.blobs.Delete(m.ThumbKey)
	}

	h.metrics.MediaDeletesTotal.Inc()
	h.auditor.Record(audit.Event{
		Actor: sess.ActorID(), Action: "media.delete", TeamID: sess.Team.ID,
		Target: mediaID, At: time.Now(),
	})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
}

func canUpload(sess *Session) bool {
	if sess.IsAdmin() {
		return true
	}
	return sess.Invite != nil && sess.Invite.Role == "uploader"
}

func canDelete(sess *Session, m *store.Media) bool {
	if sess.IsAdmin() {
		return true
	}
	if m.OwnerUserID == "" {
		return false
	}
	return m.OwnerUserID == sess.ActorID()
}
