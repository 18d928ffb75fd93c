package blob

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// Handler serves the presigned PUT/GET endpoints the blob URLs point at.
// It trusts nothing but the signature: method, key, content type, and
// expiry all have to match what the presigner minted.
type Handler struct {
	store  *Store
	signer *Presigner
	logger *slog.Logger
}

func NewHandler(store *Store, signer *Presigner, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{store: store, signer: signer, logger: logger}
}

// Routes mounts the handler on a chi router. The whole remaining path is
// the object key.
func (h *Handler) Routes(r chi.Router) {
	r.Put("/*", h.handlePut)
	r.Get("/*", h.handleGet)
}

func (h *Handler) handlePut(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	exp, sig, signedCT, ok := signedParams(r)
	if !ok {
		h.reject(w, http.StatusForbidden, "signature_required", "Missing signature parameters")
		return
	}

	// The PUT body's declared type must be exactly the negotiated one.
	// A mismatched header invalidates the signature rather than being
	// silently accepted.
	contentType := r.Header.Get("Content-Type")
	if contentType != signedCT {
		h.reject(w, http.StatusForbidden, "signature_mismatch", "Content type does not match signature")
		return
	}
	if err := h.signer.Verify(http.MethodPut, key, contentType, exp, sig); err != nil {
		h.rejectSignature(w, err)
		return
	}

	n, err := h.store.Put(key, r.Body)
	if err != nil {
		if errors.Is(err, ErrTooLarge) {
			h.reject(w, http.StatusRequestEntityTooLarge, "too_large", "Object exceeds the size limit")
			return
		}
		h.logger.Error("blob put failed", "key", key, "error", err)
		h.reject(w, http.StatusInternalServerError, "storage_error", "Could not store object")
		return
	}

	h.logger.Info("blob stored", "key", key, "bytes", n, "content_type", contentType)
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{"key": key, "size_bytes": n})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "*")
	exp, sig, signedCT, ok := signedParams(r)
	if !ok {
		h.reject(w, http.StatusForbidden, "signature_required", "Missing signature parameters")
		return
	}
	if err := h.signer.Verify(http.MethodGet, key, signedCT, exp, sig); err != nil {
		h.rejectSignature(w, err)
		return
	}

	obj, size, err := h.store.Open(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			h.reject(w, http.StatusNotFound, "not_found", "Object not found")
			return
		}
		h.logger.Error("blob open failed", "key", key, "error", err)
		h.reject(w, http.StatusInternalServerError, "storage_error", "Could not read object")
		return
	}
	defer obj.Close()

	if signedCT != "" {
		w.Header().Set("Content-Type", signedCT)
	}
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.Header().Set("Cache-Control", "private, max-age=60")
	if _, err := io.Copy(w, obj); err != nil {
		h.logger.Warn("blob stream interrupted", "key", key, "error", err)
	}
}

func (h *Handler) rejectSignature(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrExpired):
		h.reject(w, http.StatusForbidden, "url_expired", "Signed URL has expired")
	default:
		h.reject(w, http.StatusForbidden, "signature_mismatch", "Signature is not valid")
	}
}

func (h *Handler) reject(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{"code": code, "message": message},
	})
}

func signedParams(r *http.Request) (exp int64, sig, contentType string, ok bool) {
	q := r.URL.Query()
	sig = q.Get("sig")
	contentType = q.Get("ct")
	expStr := q.Get("exp")
	if sig == "" || expStr == "" {
		return 0, "", "", false
	}
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return 0, "", "", false
	}
	return exp, sig, contentType, true
}
