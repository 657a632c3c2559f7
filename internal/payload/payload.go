// Package payload defines the value carried across the handoff channel and
// the codec that turns it into a custom-scheme address and back.
//
// Wire format:
//
//	<scheme>://share?url=<percent-encoded-uri>[&name=<percent-encoded-label>]
package payload

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/hpungsan/tubestreak/internal/errors"
)

// ShareHost is the marker that identifies a share address.
const ShareHost = "share"

// Query parameter names.
const (
	ParamURL  = "url"
	ParamName = "name"
)

// schemeRegex matches a lowercase scheme token (RFC 3986 scheme, no colon or slash).
var schemeRegex = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)

// Payload is one shared URL and its optional label.
type Payload struct {
	URL   string `json:"url"`
	Label string `json:"label,omitempty"`
}

// New builds a payload from a raw URL and label.
// The URL must parse as an absolute URI. The label is trimmed and dropped
// when it is empty or textually equal to the URL.
func New(rawURL, label string) (*Payload, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, errors.NewInvalidRequest("url is required")
	}
	if !IsAbsoluteURI(rawURL) {
		return nil, errors.NewInvalidRequest("url must be an absolute URI")
	}
	return &Payload{URL: rawURL, Label: CleanLabel(rawURL, label)}, nil
}

// CleanLabel trims label and suppresses it when it only echoes the URL.
// Some senders prefill the label field with the shared URL itself.
func CleanLabel(rawURL, label string) string {
	label = strings.TrimSpace(label)
	if label == rawURL {
		return ""
	}
	return label
}

// IsAbsoluteURI reports whether s parses as an absolute URI with an
// authority, an opaque part or a path. "https://x.y/z", "mailto:a@b" and
// "file:///tmp/a.mp4" qualify; "example.com" and "hello world" do not.
func IsAbsoluteURI(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() {
		return false
	}
	return u.Host != "" || u.Opaque != "" || u.Path != ""
}

// ValidateScheme checks that scheme is a lowercase token usable in an address.
func ValidateScheme(scheme string) error {
	if !schemeRegex.MatchString(scheme) {
		return errors.NewInvalidRequest("scheme must be a lowercase token without ':' or '/'")
	}
	return nil
}
