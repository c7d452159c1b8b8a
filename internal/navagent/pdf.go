package navagent

import (
	"bytes"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"
)

// EmbeddedPDFNotice is substituted for the distilled page text when a
// response carried an embedded PDF and the page itself produced no
// extractable text, e.g. because the browser rendered it in its
// built-in viewer with no surrounding DOM content.
const EmbeddedPDFNotice = "=== Embedded PDF Viewer Detected ===\n" +
	"This page is showing a PDF document inside the browser's built-in viewer.\n" +
	"The PDF file has been downloaded successfully.\n" +
	"You can safely close this tab."

// pdfMagic is the magic header every real PDF body starts with, used to
// reject responses that merely claim an "application/pdf" content-type.
var pdfMagic = []byte("%PDF")

// IsPDFResponse reports whether a network response should be treated as
// a downloadable PDF: its content-type is application/pdf, it is not
// marked as a non-inline attachment download the browser already
// handles on its own, and its body actually starts with the PDF magic
// header (content-type headers are not reliable on their own).
func IsPDFResponse(contentType, contentDisposition string, body []byte) bool {
	ctype := strings.ToLower(contentType)
	dispo := strings.ToLower(contentDisposition)
	if !strings.Contains(ctype, "application/pdf") {
		return false
	}
	if strings.Contains(dispo, "attachment") {
		return false
	}
	return bytes.HasPrefix(body, pdfMagic)
}

// DerivePDFFilename names a downloaded PDF from its source URL when the
// URL itself ends in ".pdf", falling back to a timestamped default
// otherwise. now is injected so callers can keep the function
// deterministic for tests.
func DerivePDFFilename(sourceURL string, now time.Time) string {
	if strings.HasSuffix(strings.ToLower(sourceURL), ".pdf") {
		if parsed, err := url.Parse(sourceURL); err == nil {
			if base := path.Base(parsed.Path); base != "" && base != "." && base != "/" {
				if decoded, err := url.QueryUnescape(base); err == nil {
					return decoded
				}
				return base
			}
		}
	}
	return fmt.Sprintf("downloaded_%s.pdf", now.Format("20060102_150405"))
}
