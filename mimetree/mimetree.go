// Package mimetree parses a raw RFC 822 message into an in-memory part tree
// and selects body text from it. The tree keeps sibling order and nests
// arbitrarily, so callers can walk multipart containers recursively.
package mimetree

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
)

// Part is one node of a parsed message: its headers, its decoded payload
// (empty for multipart containers) and its ordered children (empty for
// leaf parts).
type Part struct {
	Header   message.Header
	Body     []byte
	Children []*Part
}

// Parse decodes raw message bytes into a part tree. Transfer encodings and
// text charsets are decoded by go-message while reading; unknown charsets
// degrade to the raw bytes instead of failing the message.
func Parse(raw []byte) (*Part, error) {
	entity, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return nil, fmt.Errorf("parse message: %w", err)
	}
	return fromEntity(entity)
}

func fromEntity(entity *message.Entity) (*Part, error) {
	part := &Part{Header: entity.Header}

	mr := entity.MultipartReader()
	if mr == nil {
		body, err := io.ReadAll(entity.Body)
		if err != nil {
			// A truncated or badly encoded leaf keeps whatever decoded so far.
			part.Body = body
			return part, nil
		}
		part.Body = body
		return part, nil
	}

	for {
		child, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			// Malformed trailing parts do not invalidate what was already read.
			break
		}
		childPart, err := fromEntity(child)
		if err != nil {
			break
		}
		part.Children = append(part.Children, childPart)
	}

	return part, nil
}

// ContentType returns the part's Content-Type header value, lowercased.
func (p *Part) ContentType() string {
	return strings.ToLower(p.Header.Get("Content-Type"))
}

// ContentDisposition returns the part's Content-Disposition header value.
func (p *Part) ContentDisposition() string {
	return p.Header.Get("Content-Disposition")
}

// Body selects the body text of a message tree. A part without children is
// its own body. For a multipart, the first text/plain child wins outright;
// a text/html child is kept only while no body has been found; a nested
// multipart is walked recursively and its result accepted only if the body
// is still empty. Plain text is always preferred over HTML.
func Body(root *Part) string {
	if len(root.Children) == 0 {
		return string(root.Body)
	}

	var body string
	for _, child := range root.Children {
		contentType := child.ContentType()

		switch {
		case strings.HasPrefix(contentType, "text/plain"):
			return string(child.Body)
		case strings.HasPrefix(contentType, "text/html"):
			if body == "" {
				body = string(child.Body)
			}
		case strings.HasPrefix(contentType, "multipart/"):
			if nested := Body(child); nested != "" && body == "" {
				body = nested
			}
		}
	}

	return body
}

var (
	filenameParamRe = regexp.MustCompile(`(?i)filename[*]?=(?:"([^"]+)"|([^;\s]+))`)
	nameParamRe     = regexp.MustCompile(`(?i)\bname[*]?=(?:"([^"]+)"|([^;\s]+))`)
)

// Filename extracts an attachment filename from the part, checking the
// Content-Disposition header first and the Content-Type name parameter
// second. Quoted, unquoted and RFC 2231 extended forms are matched; MIME
// encoded words are decoded. Returns "" when no filename is present.
func Filename(p *Part) string {
	if disposition := p.Header.Get("Content-Disposition"); disposition != "" {
		if name := filenameFromHeader(disposition); name != "" {
			return DecodeWord(name)
		}
	}
	if contentType := p.Header.Get("Content-Type"); contentType != "" {
		if name := filenameFromHeader(contentType); name != "" {
			return DecodeWord(name)
		}
	}
	return ""
}

func filenameFromHeader(header string) string {
	if m := filenameParamRe.FindStringSubmatch(header); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	if m := nameParamRe.FindStringSubmatch(header); m != nil {
		if m[1] != "" {
			return m[1]
		}
		return m[2]
	}
	return ""
}

// DecodeWord decodes RFC 2047 encoded words (=?charset?e?...?=) to plain
// text, returning the input unchanged when it is not encoded or cannot be
// decoded.
func DecodeWord(s string) string {
	if !strings.Contains(s, "=?") {
		return s
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}
