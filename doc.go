// Package cleanhands automates retrieval of a DC "Certificate of Clean
// Hands" from mytax.dc.gov with a headless Chrome browser (Chrome DevTools
// Protocol).
//
// An [Agent] owns the browser process and runs one episode per call:
//
//	a, err := cleanhands.NewAgent(cleanhands.WithNoSandbox())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer a.Close()
//
//	res, err := a.Run(ctx, "L0012322733", "3283")
//
// An episode validates the notice number against the site, classifies the
// compliance status from the result page, and captures the certificate (or
// notice of non-compliance) PDF into the artifacts directory. The capture
// machinery tolerates every delivery mechanism the site has been observed
// to use (inline viewer, popup tab, forced attachment, streamed response)
// by racing a passive network interceptor against an ordered chain of
// active strategies; see the internal capture package.
//
// The returned [WorkflowResult] reports status, artifact paths, and the
// URLs visited:
//
//	res.Status      // StatusCompliant, StatusNoncompliant, StatusUnknown
//	res.PDFPath     // "" when no document could be captured (non-fatal)
//	res.PDFBase64() // for embedding in JSON payloads
//
// Chrome or Chromium must be available in PATH, or use [WithAutoDownload].
package cleanhands
