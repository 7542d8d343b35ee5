package gmail

import "strings"

// MessageRef identifies a message returned by a list query.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// Message is a full message with its MIME part tree.
type Message struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Payload *Part  `json:"payload"`
}

// Part is one node of the MIME tree. Leaf parts carry base64url-encoded body
// data; multipart nodes carry children in Parts.
type Part struct {
	MimeType string   `json:"mimeType"`
	Filename string   `json:"filename"`
	Headers  []Header `json:"headers"`
	Body     Body     `json:"body"`
	Parts    []*Part  `json:"parts"`
}

// Header is a single RFC 2822 header on a part.
type Header struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Body holds a part's base64url-encoded content.
type Body struct {
	Data string `json:"data"`
	Size int    `json:"size"`
}

// HeaderValue returns the first header with the given name,
// case-insensitively, or "".
func (p *Part) HeaderValue(name string) string {
	for _, h := range p.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
