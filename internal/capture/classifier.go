package capture

import "strings"

// Content-type tokens that mark a response as a document payload. The
// retrieve endpoint has been observed serving all three.
var pdfContentTypes = []string{
	"application/pdf",
	"application/octet-stream",
	"application/force-download",
}

// LooksLikePDFURL reports whether a URL is PDF-shaped: it either ends with
// the .pdf extension or matches the GenTax retrieve-by-file-identifier
// pattern (/Retrieve/...?...file__=...). Matching is case-insensitive.
func LooksLikePDFURL(rawURL string) bool {
	u := strings.ToLower(rawURL)
	if strings.HasSuffix(u, ".pdf") {
		return true
	}
	return strings.Contains(u, "/retrieve/") && strings.Contains(u, "file__=")
}

// IsPDFResponse reports whether a response looks like a document, judged by
// its declared content type or by its URL. Either signal alone suffices.
func IsPDFResponse(contentType, rawURL string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range pdfContentTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}
	return LooksLikePDFURL(rawURL)
}
