package cleanhands

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
)

// Status is the compliance classification of a notice.
type Status string

const (
	// StatusCompliant means the taxpayer is in compliance and a current
	// Certificate of Clean Hands can be issued.
	StatusCompliant Status = "compliant"
	// StatusNoncompliant means the site reported the taxpayer out of
	// compliance; the retrievable document is a Notice of Non-Compliance.
	StatusNoncompliant Status = "noncompliant"
	// StatusUnknown means the result page could not be classified.
	StatusUnknown Status = "unknown"
)

// WorkflowResult is the outcome of one episode: compliance status, captured
// artifacts, and the URLs visited along the way. It is immutable once
// returned.
//
// PDFPath is empty when every capture avenue failed; that is a reported
// outcome, not an error — status classification and document capture are
// independent.
type WorkflowResult struct {
	Status         Status   `json:"status"`
	Message        string   `json:"message"`
	ScreenshotPath string   `json:"screenshot_path,omitempty"`
	PDFPath        string   `json:"pdf_path,omitempty"`
	URLs           []string `json:"urls"`
	Notice         string   `json:"notice"`
	Last4          string   `json:"last4"`
}

// JSON renders the result as a compact JSON document.
func (r *WorkflowResult) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// PDFCaptured reports whether the episode persisted a document.
func (r *WorkflowResult) PDFCaptured() bool {
	if r.PDFPath == "" {
		return false
	}
	_, err := os.Stat(r.PDFPath)
	return err == nil
}

// PDFBytes returns the raw content of the captured document.
func (r *WorkflowResult) PDFBytes() ([]byte, error) {
	if r.PDFPath == "" {
		return nil, fmt.Errorf("cleanhands: no PDF was captured")
	}
	data, err := os.ReadFile(r.PDFPath)
	if err != nil {
		return nil, fmt.Errorf("cleanhands: reading PDF: %w", err)
	}
	return data, nil
}

// PDFBase64 returns the captured document encoded as a standard base64
// string (RFC 4648). This is useful for embedding in JSON payloads for
// workflow-automation callers.
func (r *WorkflowResult) PDFBase64() (string, error) {
	data, err := r.PDFBytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
