package export

import (
	"crypto/md5"
	"encoding/hex"
	"regexp"
	"strings"
)

// HashPrefix returns the first n hex characters of the MD5 of s. It is used
// as a content fingerprint, never for security.
func HashPrefix(s string, n int) string {
	sum := md5.Sum([]byte(s))
	encoded := hex.EncodeToString(sum[:])
	if n > len(encoded) {
		n = len(encoded)
	}
	return encoded[:n]
}

const (
	shortNameMaxLen = 20
	shortNameEmpty  = "unknown"
)

var unsafeShortNameRe = regexp.MustCompile(`[^a-z0-9._\-]+`)

// ShortName derives an abbreviated, filesystem-safe name from an address
// header, preferring the local part of the first address found.
func ShortName(field string) string {
	name := ""
	if addresses := ExtractEmails(field); len(addresses) > 0 {
		name = addresses[0]
		if at := strings.IndexByte(name, '@'); at > 0 {
			name = name[:at]
		}
	} else {
		name = strings.ToLower(strings.TrimSpace(field))
	}

	name = unsafeShortNameRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, "._-")
	if name == "" {
		return shortNameEmpty
	}
	if len(name) > shortNameMaxLen {
		name = name[:shortNameMaxLen]
	}
	return name
}

var unsafeFilenameRe = regexp.MustCompile(`[\x00-\x1f/\\:*?"<>|]+`)

// SanitizeFilename strips characters unsafe for the host filesystem from an
// attachment filename.
func SanitizeFilename(name string) string {
	name = unsafeFilenameRe.ReplaceAllString(name, "_")
	name = strings.Trim(name, " .")
	if name == "" {
		return "attachment"
	}
	if len(name) > 100 {
		name = name[:100]
	}
	return name
}

var multiBlankRe = regexp.MustCompile(`\n{3,}`)

// NormalizeLineBreaks converts CRLF and lone CR line endings to LF and
// collapses runs of blank lines to a single blank line.
func NormalizeLineBreaks(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return multiBlankRe.ReplaceAllString(s, "\n\n")
}

// LimitQuoteDepth drops quoted lines nested deeper than maxDepth. A depth
// of 0 disables the limit.
func LimitQuoteDepth(body string, maxDepth int) string {
	if maxDepth <= 0 {
		return body
	}

	lines := strings.Split(body, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if quoteDepth(line) <= maxDepth {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

func quoteDepth(line string) int {
	depth := 0
	for _, r := range line {
		switch r {
		case '>':
			depth++
		case ' ', '\t':
			// quote markers may be separated by whitespace
		default:
			return depth
		}
	}
	return depth
}

const signatureImageMaxBytes = 50 * 1024

var imageExtRe = regexp.MustCompile(`(?i)\.(png|jpe?g|gif|bmp)$`)

// isSignatureImage reports whether an attachment looks like an email
// signature logo: a small image delivered inline (or with no disposition at
// all) with a recognized image content type or extension.
func isSignatureImage(filename, contentType string, size int, disposition string) bool {
	if size == 0 || size > signatureImageMaxBytes {
		return false
	}
	if strings.Contains(strings.ToLower(disposition), "attachment") {
		return false
	}

	contentType = strings.ToLower(contentType)
	isImage := strings.HasPrefix(contentType, "image/png") ||
		strings.HasPrefix(contentType, "image/jpeg") ||
		strings.HasPrefix(contentType, "image/jpg") ||
		strings.HasPrefix(contentType, "image/gif") ||
		strings.HasPrefix(contentType, "image/bmp")
	if !isImage && !imageExtRe.MatchString(filename) {
		return false
	}

	return true
}
