// Package decode turns a fetched message into best-effort plain text.
package decode

import (
	"encoding/base64"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/sells-group/intake-cli/pkg/gmail"
)

// PlainText extracts the first text/plain part found by depth-first search
// through the message's part tree, falling back to the top-level body when
// no parts exist. Decoding failures return the original encoded text rather
// than an error; downstream parsing degrades gracefully on garbage input.
func PlainText(msg *gmail.Message) string {
	if msg == nil || msg.Payload == nil {
		return ""
	}
	if p := findPlain(msg.Payload); p != nil {
		return decodePart(p)
	}
	return decodePart(msg.Payload)
}

func findPlain(p *gmail.Part) *gmail.Part {
	if strings.HasPrefix(p.MimeType, "text/plain") && p.Body.Data != "" {
		return p
	}
	for _, child := range p.Parts {
		if found := findPlain(child); found != nil {
			return found
		}
	}
	return nil
}

// decodePart base64url-decodes a part's body and converts its charset to
// UTF-8. Any failure returns the raw data unchanged.
func decodePart(p *gmail.Part) string {
	raw := p.Body.Data
	if raw == "" {
		return ""
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return raw
	}

	return toUTF8(decoded, charsetOf(p))
}

// charsetOf reads the charset parameter from the part's Content-Type header.
func charsetOf(p *gmail.Part) string {
	ct := p.HeaderValue("Content-Type")
	if ct == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return params["charset"]
}

func toUTF8(data []byte, charset string) string {
	charset = strings.ToLower(strings.TrimSpace(charset))
	if charset == "" || charset == "utf-8" || charset == "us-ascii" {
		return string(data)
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return string(data)
	}
	converted, err := enc.NewDecoder().Bytes(data)
	if err != nil {
		return string(data)
	}
	return string(converted)
}
