package decode

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/intake-cli/pkg/gmail"
)

func b64(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}

func TestPlainText_FlatBody(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.Part{
		MimeType: "text/plain",
		Body:     gmail.Body{Data: b64("#customerName: Acme")},
	}}
	assert.Equal(t, "#customerName: Acme", PlainText(msg))
}

func TestPlainText_MultipartPrefersFirstPlain(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.Part{
		MimeType: "multipart/alternative",
		Parts: []*gmail.Part{
			{MimeType: "text/html", Body: gmail.Body{Data: b64("<p>ignored</p>")}},
			{MimeType: "multipart/mixed", Parts: []*gmail.Part{
				{MimeType: "text/plain", Body: gmail.Body{Data: b64("nested plain")}},
			}},
			{MimeType: "text/plain", Body: gmail.Body{Data: b64("later plain")}},
		},
	}}
	assert.Equal(t, "nested plain", PlainText(msg))
}

func TestPlainText_FallbackToTopLevelBody(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.Part{
		MimeType: "text/html",
		Body:     gmail.Body{Data: b64("<b>only html</b>")},
	}}
	assert.Equal(t, "<b>only html</b>", PlainText(msg))
}

func TestPlainText_BadBase64ReturnsRaw(t *testing.T) {
	msg := &gmail.Message{Payload: &gmail.Part{
		MimeType: "text/plain",
		Body:     gmail.Body{Data: "!!!not-base64!!!"},
	}}
	assert.Equal(t, "!!!not-base64!!!", PlainText(msg))
}

func TestPlainText_PaddedBase64(t *testing.T) {
	padded := base64.URLEncoding.EncodeToString([]byte("padded body"))
	msg := &gmail.Message{Payload: &gmail.Part{
		MimeType: "text/plain",
		Body:     gmail.Body{Data: padded},
	}}
	assert.Equal(t, "padded body", PlainText(msg))
}

func TestPlainText_CharsetConversion(t *testing.T) {
	// "café" in ISO-8859-1: the é is a single 0xE9 byte.
	latin1 := []byte{'c', 'a', 'f', 0xE9}
	msg := &gmail.Message{Payload: &gmail.Part{
		MimeType: "text/plain",
		Headers: []gmail.Header{
			{Name: "Content-Type", Value: `text/plain; charset="ISO-8859-1"`},
		},
		Body: gmail.Body{Data: base64.RawURLEncoding.EncodeToString(latin1)},
	}}
	assert.Equal(t, "café", PlainText(msg))
}

func TestPlainText_NilMessage(t *testing.T) {
	assert.Equal(t, "", PlainText(nil))
	assert.Equal(t, "", PlainText(&gmail.Message{}))
}
