package blob

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Signature errors map to 403 at the HTTP layer.
var (
	ErrExpired      = errors.New("signed url expired")
	ErrBadSignature = errors.New("signature mismatch")
)

// Presigner mints and verifies HMAC-signed blob URLs. The signature covers
// method, key, content type, and expiry, so a PUT URL cannot be replayed
// with a different payload type and neither URL outlives its window.
type Presigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time
}

// NewPresigner builds a presigner. baseURL is the public prefix the blob
// handler is mounted on, e.g. http://localhost:8080/blob. A nil now uses
// the wall clock.
func NewPresigner(secret, baseURL string, ttl time.Duration, now func() time.Time) *Presigner {
	if now == nil {
		now = time.Now
	}
	for len(baseURL) > 0 && baseURL[len(baseURL)-1] == '/' {
		baseURL = baseURL[:len(baseURL)-1]
	}
	return &Presigner{secret: []byte(secret), baseURL: baseURL, ttl: ttl, now: now}
}

// TTLSeconds reports the expiry window the backend advertises as expires_in.
func (p *Presigner) TTLSeconds() int64 { return int64(p.ttl / time.Second) }

// SignPut mints an upload URL bound to the negotiated content type.
func (p *Presigner) SignPut(key, contentType string) string {
	return p.sign("PUT", key, contentType)
}

// SignGet mints a download URL. The content type rides along so the handler
// can serve the stored bytes with the right header.
func (p *Presigner) SignGet(key, contentType string) string {
	return p.sign("GET", key, contentType)
}

func (p *Presigner) sign(method, key, contentType string) string {
	exp := p.now().Add(p.ttl).Unix()
	q := url.Values{}
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("ct", contentType)
	q.Set("sig", p.signature(method, key, contentType, exp))
	return fmt.Sprintf("%s/%s?%s", p.baseURL, key, q.Encode())
}

// Verify checks a presented signature. contentType must be exactly what was
// signed; for PUT that is the request's Content-Type header.
func (p *Presigner) Verify(method, key, contentType string, exp int64, sig string) error {
	want := p.signature(method, key, contentType, exp)
	if !hmac.Equal([]byte(want), []byte(sig)) {
		return ErrBadSignature
	}
	if p.now().Unix() > exp {
		return ErrExpired
	}
	return nil
}

func (p *Presigner) signature(method, key, contentType string, exp int64) string {
	mac := hmac.New(sha256.New, p.secret)
	fmt.Fprintf(mac, "%s\n%s\n%s\n%d", method, key, contentType, exp)
	return hex.EncodeToString(mac.Sum(nil))
}
