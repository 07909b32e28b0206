// Package device derives and caches the pseudo-anonymous identifier that
// keys every piece of persisted state for the current installation.
package device

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrEmptySeed is returned by seed sources that collected nothing usable.
var ErrEmptySeed = errors.New("device: empty fingerprint seed")

// SeedSource builds the platform-specific fingerprint seed.
type SeedSource interface {
	Seed(ctx context.Context) (string, error)
}

// HostSeed fingerprints a native host from the application identifier,
// device name, device class and OS version.
type HostSeed struct {
	AppID string
	// Hostname, Class and OSVersion default to os.Hostname, runtime.GOARCH
	// and runtime.GOOS when nil.
	Hostname  func() (string, error)
	Class     func() string
	OSVersion func() string
}

// Seed implements SeedSource.
func (h HostSeed) Seed(_ context.Context) (string, error) {
	hostname := h.Hostname
	if hostname == nil {
		hostname = os.Hostname
	}
	name, err := hostname()
	if err != nil {
		return "", fmt.Errorf("hostname: %w", err)
	}
	if name == "" {
		name = "Unknown Device"
	}
	class := runtime.GOARCH
	if h.Class != nil {
		class = h.Class()
	}
	osVersion := runtime.GOOS
	if h.OSVersion != nil {
		osVersion = h.OSVersion()
	}
	if osVersion == "" {
		osVersion = "Unknown"
	}
	return fmt.Sprintf("%s-%s-%s-%s", h.AppID, name, class, osVersion), nil
}

// BrowserSeed fingerprints a browser-like host from a canvas rendering
// fingerprint, the user agent and the screen dimensions.
type BrowserSeed struct {
	CanvasFingerprint string
	UserAgent         string
	ScreenWidth       int
	ScreenHeight      int
}

// Seed implements SeedSource.
func (b BrowserSeed) Seed(_ context.Context) (string, error) {
	if b.CanvasFingerprint == "" && b.UserAgent == "" {
		return "", ErrEmptySeed
	}
	return fmt.Sprintf("%s%s%d%d", b.CanvasFingerprint, b.UserAgent, b.ScreenWidth, b.ScreenHeight), nil
}

// Hash returns the base64-encoded SHA-256 digest of seed.
func Hash(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// Sanitize replaces path delimiters so the identifier is safe as a storage key.
func Sanitize(id string) string {
	return strings.NewReplacer("/", "_", `\`, "_").Replace(id)
}

// Derive hashes and sanitizes seed in one step.
func Derive(seed string) string {
	return Sanitize(Hash(seed))
}

// Identity memoizes the device identifier for the process lifetime.
type Identity struct {
	source SeedSource
	logger *zap.Logger
	now    func() time.Time
	random func() string

	mu sync.Mutex
	id string
}

// NewIdentity creates an Identity over source.
func NewIdentity(source SeedSource, logger *zap.Logger) *Identity {
	return &Identity{
		source: source,
		logger: logger,
		now:    time.Now,
		random: uuid.NewString,
	}
}

// DeviceID returns the cached identifier, deriving it on first use.
// It never fails: if the seed cannot be collected, a time-and-random seed
// is hashed instead. That identifier is stable for the rest of the process
// but not across restarts.
func (i *Identity) DeviceID(ctx context.Context) string {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.id != "" {
		return i.id
	}

	seed, err := i.source.Seed(ctx)
	if err == nil && seed == "" {
		err = ErrEmptySeed
	}
	if err != nil {
		i.logger.Warn("device fingerprint unavailable, using random identity", zap.Error(err))
		seed = fmt.Sprintf("fallback-%d-%s", i.now().UnixMilli(), i.random())
	}

	i.id = Derive(seed)
	return i.id
}
