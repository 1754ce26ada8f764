package upload

import (
	"fmt"
	"net/url"
	"strings"
)

// sanitizeFilename strips the characters an attacker could use for header
// injection or path traversal from a client-supplied filename: CR/LF, path
// separators, quotes, backslashes and non-printable bytes.
func sanitizeFilename(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r == '\r' || r == '\n':
		case r == '/' || r == '\\':
		case r == '"':
		case r < 0x20 || r == 0x7f:
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// asciiFallback replaces every non-ASCII rune with an underscore so the
// plain filename parameter stays header-safe for legacy clients.
func asciiFallback(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if r > 0x7e {
			b.WriteByte('_')
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// contentDisposition builds the attachment disposition with both the ASCII
// filename parameter and the RFC 5987 filename* parameter.
func contentDisposition(originalFilename string) string {
	clean := sanitizeFilename(originalFilename)
	if clean == "" {
		clean = "download"
	}
	return fmt.Sprintf(`attachment; filename="%s"; filename*=UTF-8''%s`,
		asciiFallback(clean),
		url.PathEscape(clean),
	)
}

// objectKeyFilename normalizes the filename for use inside the object key:
// spaces become underscores, injection-prone characters are stripped.
func objectKeyFilename(name string) string {
	return strings.ReplaceAll(sanitizeFilename(name), " ", "_")
}
