// Package share resolves the attachments handed to the extension into a
// single shared URL.
package share

import (
	"context"
	"net/url"
	"strings"

	"github.com/hpungsan/tubestreak/internal/payload"
)

// Kind is the resolved content type of one attachment.
type Kind int

const (
	Unsupported Kind = iota
	WebLink
	PlainText
)

// String returns the kind name used in logs and JSON output.
func (k Kind) String() string {
	switch k {
	case WebLink:
		return "web_link"
	case PlainText:
		return "plain_text"
	default:
		return "unsupported"
	}
}

// Type identifiers the OS may attach to shared content. Both platform UTIs
// and MIME types are accepted since senders differ in which they declare.
var (
	webLinkTypes = map[string]bool{
		"public.url":        true,
		"text/uri-list":     true,
		"text/x-uri":        true,
		"text/x-moz-url":    true,
		"application/x-url": true,
		"url":               true,
	}
	plainTextTypes = map[string]bool{
		"public.plain-text":      true,
		"public.text":            true,
		"public.utf8-plain-text": true,
		"text/plain":             true,
		"text":                   true,
	}
)

// Classify maps a type identifier to a Kind. Matching ignores case and any
// MIME parameters ("text/plain; charset=utf-8").
func Classify(typeID string) Kind {
	id := strings.ToLower(strings.TrimSpace(typeID))
	if i := strings.IndexByte(id, ';'); i >= 0 {
		id = strings.TrimSpace(id[:i])
	}
	if webLinkTypes[id] {
		return WebLink
	}
	if plainTextTypes[id] {
		return PlainText
	}
	return Unsupported
}

// Content is what an attachment loader returns: a URI value or a text value.
type Content struct {
	URL  *url.URL
	Text string
}

// Loader loads the content of one attachment.
type Loader func(ctx context.Context) (Content, error)

// Attachment is one candidate handed over by the OS share surface.
type Attachment struct {
	TypeID string
	Load   Loader
}

// Item is an attachment after its kind has been resolved and its content
// loaded. Exactly one of URL and Text is meaningful, selected by Kind.
type Item struct {
	Kind Kind
	URL  *url.URL
	Text string
}

// URLAttachment returns a web-link attachment holding u.
func URLAttachment(u *url.URL) Attachment {
	return Attachment{
		TypeID: "public.url",
		Load: func(context.Context) (Content, error) {
			return Content{URL: u}, nil
		},
	}
}

// TextAttachment returns a plain-text attachment holding s.
func TextAttachment(s string) Attachment {
	return Attachment{
		TypeID: "public.plain-text",
		Load: func(context.Context) (Content, error) {
			return Content{Text: s}, nil
		},
	}
}

// RawAttachment returns an attachment of the given type whose raw string
// value is interpreted according to that type: parsed as a URL for web
// links, kept as text otherwise.
func RawAttachment(typeID, value string) Attachment {
	return Attachment{
		TypeID: typeID,
		Load: func(context.Context) (Content, error) {
			if Classify(typeID) == WebLink {
				u, err := url.Parse(strings.TrimSpace(value))
				if err != nil {
					return Content{}, err
				}
				return Content{URL: u}, nil
			}
			return Content{Text: value}, nil
		},
	}
}

// ParseURI parses text as an absolute URI. Surrounding whitespace is ignored.
func ParseURI(text string) (*url.URL, bool) {
	text = strings.TrimSpace(text)
	if !payload.IsAbsoluteURI(text) {
		return nil, false
	}
	u, err := url.Parse(text)
	if err != nil {
		return nil, false
	}
	return u, true
}
