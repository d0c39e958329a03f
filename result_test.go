package cleanhands_test

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	cleanhands "github.com/justmg/dc-clean-hands-docker-api"
)

func TestWorkflowResult_JSON(t *testing.T) {
	res := &cleanhands.WorkflowResult{
		Status:  cleanhands.StatusCompliant,
		Message: "ok",
		PDFPath: "artifacts/clean-hands-L0001-1.pdf",
		URLs:    []string{"https://mytax.dc.gov/_/"},
		Notice:  "L0001",
		Last4:   "1234",
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(res.JSON()), &decoded); err != nil {
		t.Fatalf("JSON() produced invalid JSON: %v", err)
	}
	if decoded["status"] != "compliant" {
		t.Errorf("status = %v, want compliant", decoded["status"])
	}
	if decoded["notice"] != "L0001" {
		t.Errorf("notice = %v, want L0001", decoded["notice"])
	}
	if _, ok := decoded["screenshot_path"]; ok {
		t.Error("empty screenshot_path should be omitted")
	}
}

func TestWorkflowResult_PDFCaptured(t *testing.T) {
	res := &cleanhands.WorkflowResult{}
	if res.PDFCaptured() {
		t.Error("PDFCaptured() = true with no path")
	}

	res.PDFPath = filepath.Join(t.TempDir(), "missing.pdf")
	if res.PDFCaptured() {
		t.Error("PDFCaptured() = true for nonexistent file")
	}

	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, []byte("%PDF-1.4 test"), 0o644); err != nil {
		t.Fatal(err)
	}
	res.PDFPath = path
	if !res.PDFCaptured() {
		t.Error("PDFCaptured() = false for existing file")
	}
}

func TestWorkflowResult_PDFBase64(t *testing.T) {
	content := []byte("%PDF-1.4\nfake body")
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatal(err)
	}

	res := &cleanhands.WorkflowResult{PDFPath: path}
	enc, err := res.PDFBase64()
	if err != nil {
		t.Fatalf("PDFBase64: %v", err)
	}
	dec, err := base64.StdEncoding.DecodeString(enc)
	if err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if string(dec) != string(content) {
		t.Errorf("round trip mismatch: got %q", dec)
	}

	res.PDFPath = ""
	if _, err := res.PDFBase64(); err == nil {
		t.Error("expected error with no PDF path")
	}
}
