package payload

import (
	"net/url"
	"strings"

	"github.com/hpungsan/tubestreak/internal/errors"
)

// Codec encodes payloads into share addresses for one scheme and decodes them back.
type Codec struct {
	Scheme string
}

// NewCodec returns a codec for scheme after validating it.
func NewCodec(scheme string) (*Codec, error) {
	if err := ValidateScheme(scheme); err != nil {
		return nil, err
	}
	return &Codec{Scheme: scheme}, nil
}

// Encode builds the share address for p.
// url and label are escaped independently before assembly so that reserved
// characters inside the URL ('&', '=', '?', '#') cannot split the query.
// The name parameter is omitted entirely when the label is empty.
func (c *Codec) Encode(p Payload) string {
	var b strings.Builder
	b.WriteString(c.Scheme)
	b.WriteString("://")
	b.WriteString(ShareHost)
	b.WriteString("?")
	b.WriteString(ParamURL)
	b.WriteString("=")
	b.WriteString(EscapeValue(p.URL))
	if p.Label != "" {
		b.WriteString("&")
		b.WriteString(ParamName)
		b.WriteString("=")
		b.WriteString(EscapeValue(p.Label))
	}
	return b.String()
}

// Parse decodes address into a payload, reporting why it is not a share
// address when it cannot.
func (c *Codec) Parse(address string) (*Payload, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, errors.NewMalformedAddress(address, "empty address")
	}

	u, err := url.Parse(address)
	if err != nil {
		return nil, errors.NewMalformedAddress(address, "unparseable address")
	}
	if c.Scheme != "" && !strings.EqualFold(u.Scheme, c.Scheme) {
		return nil, errors.NewMalformedAddress(address, "scheme mismatch")
	}
	if !hasShareMarker(u) {
		return nil, errors.NewMalformedAddress(address, "missing share marker")
	}

	// ParseQuery keeps every well-formed pair even when it reports an error
	// for another one.
	values, _ := url.ParseQuery(u.RawQuery)
	rawURL := values.Get(ParamURL)
	if rawURL == "" {
		return nil, errors.NewMalformedAddress(address, "missing url parameter")
	}
	if !IsAbsoluteURI(rawURL) {
		return nil, errors.NewMalformedAddress(address, "url parameter is not an absolute URI")
	}

	return &Payload{URL: rawURL, Label: values.Get(ParamName)}, nil
}

// Decode is Parse without the reason: it returns nil for any address that is
// not a share address, since such addresses may be unrelated deep links.
func (c *Codec) Decode(address string) *Payload {
	p, err := c.Parse(address)
	if err != nil {
		return nil
	}
	return p
}

// EscapeValue percent-encodes s for use as a query value. Only RFC 3986
// unreserved characters are left as-is; spaces become %20.
func EscapeValue(s string) string {
	// QueryEscape has already turned any literal '+' into %2B, so the only
	// '+' left stands for a space.
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// hasShareMarker accepts scheme://share, scheme://share/, scheme:///share
// and scheme:share.
func hasShareMarker(u *url.URL) bool {
	if u.Opaque != "" {
		return u.Opaque == ShareHost
	}
	if strings.EqualFold(u.Host, ShareHost) {
		return u.Path == "" || u.Path == "/"
	}
	return u.Host == "" && strings.Trim(u.Path, "/") == ShareHost
}
