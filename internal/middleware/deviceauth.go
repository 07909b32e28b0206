// Package middleware provides HTTP middlewares for device identification and logging.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/atinyakov/CovertKeeper/internal/device"
)

type ctxKey string

const deviceKey ctxKey = "device"

const (
	// HeaderDeviceID carries an identifier the client already derived.
	HeaderDeviceID = "X-Device-ID"
	// HeaderFingerprint carries a canvas fingerprint for server-side derivation.
	HeaderFingerprint = "X-Device-Fingerprint"
	// HeaderScreenSize carries the screen size as "<width>x<height>".
	HeaderScreenSize = "X-Screen-Size"
)

// DeviceAuth resolves the calling device's identifier and stores it in the
// request context.
//
// A verified client certificate is authoritative: its Common Name is the
// device identifier and any X-Device-ID header is ignored. Without one, a
// client-derived X-Device-ID header is used, then a browser fingerprint
// (X-Device-Fingerprint, User-Agent and X-Screen-Size) hashed the same way
// the client would. Requests carrying none of them are rejected with 401.
func DeviceAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := DeviceIDFromRequest(r)
		if id == "" {
			http.Error(w, "device identifier required", http.StatusUnauthorized)
			return
		}
		ctx := context.WithValue(r.Context(), deviceKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// DeviceIDFromRequest returns the device identifier carried by r, or "".
func DeviceIDFromRequest(r *http.Request) string {
	if r.TLS != nil && len(r.TLS.VerifiedChains) > 0 && len(r.TLS.PeerCertificates) > 0 {
		if cn := r.TLS.PeerCertificates[0].Subject.CommonName; cn != "" {
			return device.Sanitize(cn)
		}
	}

	if id := strings.TrimSpace(r.Header.Get(HeaderDeviceID)); id != "" {
		return device.Sanitize(id)
	}

	fp := r.Header.Get(HeaderFingerprint)
	if fp == "" {
		return ""
	}
	seed := device.BrowserSeed{CanvasFingerprint: fp, UserAgent: r.UserAgent()}
	if size := r.Header.Get(HeaderScreenSize); size != "" {
		// malformed sizes leave the dimensions at zero
		_, _ = fmt.Sscanf(size, "%dx%d", &seed.ScreenWidth, &seed.ScreenHeight)
	}
	s, err := seed.Seed(r.Context())
	if err != nil {
		return ""
	}
	return device.Derive(s)
}

// GetDeviceIDFromContext extracts the device identifier stored by DeviceAuth.
// Returns an empty string if not found.
func GetDeviceIDFromContext(ctx context.Context) string {
	val := ctx.Value(deviceKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// WithDeviceID returns a copy of ctx carrying id, as DeviceAuth would.
func WithDeviceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, deviceKey, id)
}
