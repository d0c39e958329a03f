package cleanhands

import (
	"errors"
	"testing"
)

func TestApplyCaptureVerdict(t *testing.T) {
	t.Run("verified document overrides status", func(t *testing.T) {
		res := &WorkflowResult{
			Status:  StatusUnknown,
			PDFPath: "artifacts/clean-hands-L0001-1.pdf",
		}
		applyCaptureVerdict(res, nil)
		if res.Status != StatusCompliant {
			t.Errorf("Status = %q, want compliant", res.Status)
		}
	})

	t.Run("invalid document keeps text-derived status", func(t *testing.T) {
		res := &WorkflowResult{
			Status:  StatusNoncompliant,
			Message: "Detected compliance status from page.",
			PDFPath: "artifacts/clean-hands-L0001-1.pdf",
		}
		applyCaptureVerdict(res, errors.New("not a valid PDF"))
		if res.Status != StatusNoncompliant {
			t.Errorf("Status = %q, an unverifiable artifact must not flip it", res.Status)
		}
	})

	t.Run("invalid document does not promote unknown", func(t *testing.T) {
		res := &WorkflowResult{Status: StatusUnknown, PDFPath: "x.pdf"}
		applyCaptureVerdict(res, errors.New("PDF has no pages"))
		if res.Status != StatusUnknown {
			t.Errorf("Status = %q, want unknown", res.Status)
		}
	})
}
