package share

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hpungsan/tubestreak/internal/errors"
	"github.com/hpungsan/tubestreak/internal/payload"
)

// Resolve classifies a and loads its content. Attachments of an unsupported
// type are returned as Unsupported items without calling their loader.
func Resolve(ctx context.Context, a Attachment) (Item, error) {
	kind := Classify(a.TypeID)
	if kind == Unsupported {
		return Item{Kind: Unsupported}, nil
	}
	if a.Load == nil {
		return Item{}, fmt.Errorf("attachment %q has no loader", a.TypeID)
	}

	c, err := a.Load(ctx)
	if err != nil {
		return Item{}, fmt.Errorf("load %q: %w", a.TypeID, err)
	}

	switch kind {
	case WebLink:
		if c.URL == nil && c.Text != "" {
			// Some senders hand the link over as a string even under a URL type.
			u, ok := ParseURI(c.Text)
			if !ok {
				return Item{}, fmt.Errorf("attachment %q: %q is not a URL", a.TypeID, c.Text)
			}
			c.URL = u
		}
		if c.URL == nil {
			return Item{}, fmt.Errorf("attachment %q is empty", a.TypeID)
		}
		return Item{Kind: WebLink, URL: c.URL}, nil
	default:
		text := c.Text
		if text == "" && c.URL != nil {
			text = c.URL.String()
		}
		return Item{Kind: PlainText, Text: text}, nil
	}
}

// URI returns the absolute URI carried by the item, if any. Plain text is
// returned as typed (trimmed) rather than re-serialized.
func (it Item) URI() (string, bool) {
	switch it.Kind {
	case WebLink:
		if it.URL == nil {
			return "", false
		}
		s := it.URL.String()
		return s, payload.IsAbsoluteURI(s)
	case PlainText:
		if _, ok := ParseURI(it.Text); !ok {
			return "", false
		}
		return strings.TrimSpace(it.Text), true
	default:
		return "", false
	}
}

// Negotiate picks the shared URL out of attachments and builds the payload.
//
// Web-link attachments are tried first, in the order given, then plain-text
// attachments whose text parses as an absolute URI. The first match wins.
// When nothing yields a URI the result is an UNSUPPORTED_CONTENT error and no
// payload is built. A label that merely repeats the URL is dropped.
func Negotiate(ctx context.Context, attachments []Attachment, label string) (*payload.Payload, error) {
	for _, tier := range []Kind{WebLink, PlainText} {
		for i, a := range attachments {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if Classify(a.TypeID) != tier {
				continue
			}

			item, err := Resolve(ctx, a)
			if err != nil {
				logrus.WithError(err).WithField("index", i).Debug("skipping attachment")
				continue
			}
			uri, ok := item.URI()
			if !ok {
				logrus.WithFields(logrus.Fields{
					"index": i,
					"kind":  item.Kind.String(),
				}).Debug("attachment does not contain a URL")
				continue
			}

			return payload.New(uri, label)
		}
	}
	return nil, errors.NewUnsupportedContent(len(attachments))
}
