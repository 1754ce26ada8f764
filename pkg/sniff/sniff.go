// Package sniff implements MIME type detection of data based on well-known
// "magic" number prefixes in the file, falling back to content inspection.
package sniff

import (
	"bytes"
	"net/http"
	"strings"
)

// SampleSize is the number of leading bytes inspected by the upload
// pipeline. Both the complete handler and the scan worker fetch exactly
// this many bytes via a range request.
const SampleSize = 16 * 1024

type prefixEntry struct {
	prefix []byte
	mtype  string
}

// usable source: http://www.garykessler.net/library/file_sigs.html
// mime types: http://www.iana.org/assignments/media-types/media-types.xhtml
var prefixTable = []prefixEntry{
	{[]byte("%PDF-"), "application/pdf"},
	{[]byte{137, 'P', 'N', 'G', '\r', '\n', 26, 10}, "image/png"},
	{[]byte("\xff\xd8\xff"), "image/jpeg"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
	{[]byte("PK\x03\x04"), "application/zip"},
	{[]byte{0x1F, 0x8B, 0x08}, "application/gzip"},
	{[]byte{0x37, 0x7A, 0xBC, 0xAF, 0x27, 0x1C}, "application/x-7z-compressed"},
	{[]byte("BZh"), "application/bzip2"},
	{[]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, "application/vnd.ms-word"},
	{[]byte{0x49, 0x49, 0x2A, 0}, "image/tiff"},
	{[]byte{0x4D, 0x4D, 0, 0x2A}, "image/tiff"},
	{[]byte("8BPS"), "image/vnd.adobe.photoshop"},
	{[]byte("fLaC\x00\x00\x00"), "audio/flac"},
	{[]byte{'I', 'D', '3'}, "audio/mpeg"},
	{[]byte{0x1A, 0x45, 0xDF, 0xA3}, "video/webm"},
	{[]byte("{rtf"), "text/rtf"},
}

// MIMEType returns the MIME type detected from the leading bytes of the
// sample. The prefix table is consulted first; anything it does not cover
// falls through to net/http content detection with parameters stripped.
// It returns the empty string for an empty sample.
func MIMEType(sample []byte) string {
	if len(sample) == 0 {
		return ""
	}
	for _, pte := range prefixTable {
		if len(sample) >= len(pte.prefix) && bytes.HasPrefix(sample, pte.prefix) {
			return pte.mtype
		}
	}
	return baseMIME(http.DetectContentType(sample))
}

// baseMIME strips MIME parameters ("; charset=utf-8") and normalizes case.
func baseMIME(mtype string) string {
	if i := strings.IndexByte(mtype, ';'); i >= 0 {
		mtype = mtype[:i]
	}
	return strings.ToLower(strings.TrimSpace(mtype))
}
