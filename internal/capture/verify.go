package capture

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// VerifyPDF checks that the captured artifact is a readable PDF with at
// least one page. The retrieve endpoint sometimes answers an expired request
// with an HTML error page under a document content type; this is how the
// episode tells the difference.
func VerifyPDF(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("capture: open artifact: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return fmt.Errorf("capture: not a valid PDF: %w", err)
	}
	if pdfCtx.PageCount == 0 {
		return fmt.Errorf("capture: PDF has no pages")
	}
	return nil
}
