package ingest

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

const maxURLLength = 2048

var networkSchemes = map[string]bool{
	"rtsp":  true,
	"rtsps": true,
	"http":  true,
	"https": true,
}

// ValidateSourceURL checks that a source can be handed to ffmpeg:
//   - max length 2048 characters
//   - an absolute local path, a file:// URL, or an rtsp/rtsps/http/https URL
//   - network URLs must name a host
//   - no leading '-' so the value is never parsed as an ffmpeg option
func ValidateSourceURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("source URL is empty")
	}
	if len(raw) > maxURLLength {
		return fmt.Errorf("URL too long (%d chars, max %d)", len(raw), maxURLLength)
	}
	if strings.HasPrefix(raw, "-") {
		return fmt.Errorf("source URL must not start with '-'")
	}

	if filepath.IsAbs(raw) {
		return nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	switch {
	case u.Scheme == "file":
		if u.Path == "" {
			return fmt.Errorf("file URL has no path")
		}
		return nil
	case networkSchemes[u.Scheme]:
		if u.Hostname() == "" {
			return fmt.Errorf("URL has no hostname")
		}
		return nil
	case u.Scheme == "":
		return fmt.Errorf("relative path %q: use an absolute path or a URL", raw)
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// IsLocalFile reports whether the source refers to a file rather than a live stream.
func IsLocalFile(raw string) bool {
	return filepath.IsAbs(raw) || strings.HasPrefix(raw, "file:")
}
