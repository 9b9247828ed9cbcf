package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
)

const flashCookie = "materials_flash"

// flashSigner stores one-shot messages in an HMAC-signed cookie so they
// survive the redirect after a successful form post.
type flashSigner struct {
	key []byte
}

func newFlashSigner(secret string) *flashSigner {
	return &flashSigner{key: []byte(secret)}
}

func (f *flashSigner) sign(payload string) string {
	mac := hmac.New(sha256.New, f.key)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (f *flashSigner) encode(msg string) string {
	payload := base64.RawURLEncoding.EncodeToString([]byte(msg))
	return payload + "." + f.sign(payload)
}

func (f *flashSigner) decode(value string) (string, bool) {
	payload, sig, ok := strings.Cut(value, ".")
	if !ok || !hmac.Equal([]byte(sig), []byte(f.sign(payload))) {
		return "", false
	}
	msg, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return "", false
	}
	return string(msg), true
}

// Set queues msg for the next page view.
func (f *flashSigner) Set(w http.ResponseWriter, msg string) {
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    f.encode(msg),
		Path:     "/",
		MaxAge:   60,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// Pop returns and clears the pending message. Tampered cookies are dropped.
func (f *flashSigner) Pop(w http.ResponseWriter, r *http.Request) string {
	c, err := r.Cookie(flashCookie)
	if err != nil {
		return ""
	}
	http.SetCookie(w, &http.Cookie{
		Name:     flashCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	msg, ok := f.decode(c.Value)
	if !ok {
		return ""
	}
	return msg
}
