package imapx

import (
	"encoding/base64"
	"strings"
	"unicode/utf16"
)

// DecodeUTF7 converts a mailbox name from the modified UTF-7 encoding of
// RFC 3501 to plain UTF-8. "&" introduces a base64 section terminated by
// "-", with "," standing in for "/" in the alphabet; "&-" is a literal
// ampersand. Undecodable sections are kept verbatim so a broken server
// never makes a folder disappear.
func DecodeUTF7(name string) string {
	if !strings.ContainsRune(name, '&') {
		return name
	}

	var sb strings.Builder
	for i := 0; i < len(name); {
		c := name[i]
		if c != '&' {
			sb.WriteByte(c)
			i++
			continue
		}

		end := strings.IndexByte(name[i+1:], '-')
		if end < 0 {
			sb.WriteString(name[i:])
			break
		}

		chunk := name[i+1 : i+1+end]
		i += end + 2

		if chunk == "" {
			sb.WriteByte('&')
			continue
		}

		decoded, ok := decodeUTF7Chunk(chunk)
		if !ok {
			sb.WriteString("&" + chunk + "-")
			continue
		}
		sb.WriteString(decoded)
	}

	return sb.String()
}

func decodeUTF7Chunk(chunk string) (string, bool) {
	data, err := base64.RawStdEncoding.DecodeString(strings.ReplaceAll(chunk, ",", "/"))
	if err != nil || len(data)%2 != 0 {
		return "", false
	}

	units := make([]uint16, len(data)/2)
	for i := range units {
		units[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}

	return string(utf16.Decode(units)), true
}
