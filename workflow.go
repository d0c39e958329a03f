package cleanhands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/justmg/dc-clean-hands-docker-api/internal/capture"
)

// Selector candidates for the MyTax DC portal. The portal is generated
// markup, so each affordance is matched by text, most specific first.
var (
	startOverCandidates = []string{
		`//a[contains(., 'Click Here to Start Over')]`,
		`//*[contains(text(), 'Click Here to Start Over')]`,
	}
	validateCandidates = []string{
		`//a[contains(., 'Validate a Certificate of Clean Hands')]`,
		`//*[contains(text(), 'Validate a Certificate of Clean Hands')]`,
	}
	noticeFieldCandidates = []string{
		`//label[contains(translate(., 'NOTICE', 'notice'), 'notice')]/following::input[1]`,
		`//input[contains(translate(@placeholder, 'NOTICE', 'notice'), 'notice')]`,
		`(//input[@type='text' or not(@type)])[1]`,
	}
	last4FieldCandidates = []string{
		`//label[contains(translate(., 'LAST', 'last'), 'last 4') or contains(translate(., 'LAST FOUR', 'last four'), 'last four')]/following::input[1]`,
		`//input[contains(translate(@placeholder, 'LAST', 'last'), 'last 4')]`,
		`(//input[@type='text' or not(@type)])[2]`,
	}
	searchCandidates = []string{
		`//button[contains(., 'Search')]`,
		`//input[@type='submit'][contains(translate(@value, 'SEARCH', 'search'), 'search')]`,
	}
	requestCandidates = []string{
		`//a[contains(., 'request a Notice')]`,
		`//a[contains(., 'request a current')]`,
		`//a[contains(., 'Click here to request')]`,
		`//a[contains(., 'request')]`,
		`//a[contains(@href, 'equest')]`,
	}
	nextCandidates = []string{
		`//button[contains(., 'Next')]`,
		`//input[@type='submit'][contains(translate(@value, 'NEXT', 'next'), 'next')]`,
		`//button[contains(translate(@value, 'NEXT', 'next'), 'next')]`,
	}
	submitCandidates = []string{
		`//button[contains(., 'Submit')]`,
		`//input[@type='submit'][contains(translate(@value, 'SUBMIT', 'submit'), 'submit')]`,
		`//button[contains(translate(@value, 'SUBMIT', 'submit'), 'submit')]`,
		`//input[@type='submit']`,
	}
	viewCandidates = []string{
		`//button[contains(., 'View Certificate')]`,
		`//button[contains(., 'View Notice')]`,
		`//a[contains(., 'View Certificate')]`,
		`//a[contains(., 'View Notice')]`,
		`//*[contains(@onclick, 'view') or contains(@onclick, 'View')]`,
	}
)

// episode is one end-to-end run against the portal: a fresh sink, a fresh
// page list and a fresh artifact destination, driven over a single tab of
// the agent's shared browser.
type episode struct {
	cfg    agentConfig
	notice string
	last4  string

	ts          int64
	dest        string
	sink        *capture.Sink
	pages       *capture.PageList
	interceptor *capture.Interceptor
	logger      *zap.Logger

	urls []string
}

func newEpisode(cfg agentConfig, notice, last4 string) *episode {
	ts := time.Now().Unix()
	dest := filepath.Join(cfg.artifactsDir,
		fmt.Sprintf("%s-%s-%d.pdf", cfg.artifactPrefix, notice, ts))
	sink := capture.NewSink()
	pages := capture.NewPageList()
	logger := cfg.logger.Named("workflow")
	return &episode{
		cfg:         cfg,
		notice:      notice,
		last4:       last4,
		ts:          ts,
		dest:        dest,
		sink:        sink,
		pages:       pages,
		interceptor: capture.NewInterceptor(sink, dest, pages, cfg.logger),
		logger:      logger,
	}
}

func (ep *episode) close() {
	ep.pages.Close()
}

// run drives the full validation workflow over tabCtx and reports the
// outcome. Navigation and form failures are fatal; every capture failure
// degrades to a result without a document.
func (ep *episode) run(tabCtx context.Context) (*WorkflowResult, error) {
	res := &WorkflowResult{
		Status: StatusUnknown,
		Notice: ep.notice,
		Last4:  ep.last4,
	}

	if err := ep.interceptor.Attach(tabCtx); err != nil {
		return nil, fmt.Errorf("cleanhands: attaching interceptor: %w", err)
	}
	ep.pages.Add(tabCtx, nil)

	ep.logger.Info("navigating to portal", zap.String("url", ep.cfg.baseURL))
	navCtx, cancel := context.WithTimeout(tabCtx, capture.LongTimeout)
	err := chromedp.Run(navCtx, chromedp.Navigate(ep.cfg.baseURL))
	cancel()
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", ErrNavigation, ep.cfg.baseURL, err)
	}
	ep.recordURL(tabCtx)

	// The portal shows a "duplicated tab" security warning when it thinks
	// the session is stale. Clicking through it is optional.
	if maybeClick(tabCtx, startOverCandidates, capture.ShortTimeout) {
		ep.logger.Info("dismissed security warning")
		ep.settle(tabCtx, 2*time.Second)
	}
	ep.recordURL(tabCtx)

	res.ScreenshotPath = ep.screenshot(tabCtx, "landing")

	ep.logger.Info("opening validation page")
	if !maybeClick(tabCtx, validateCandidates, capture.NavTimeout) {
		return nil, fmt.Errorf("%w: validate link not found", ErrNavigation)
	}
	ep.settle(tabCtx, 2*time.Second)
	ep.recordURL(tabCtx)

	ep.logger.Info("submitting search",
		zap.String("notice", ep.notice), zap.String("last4", ep.last4))
	if err := fillFirst(tabCtx, noticeFieldCandidates, ep.notice, capture.ShortTimeout); err != nil {
		return nil, fmt.Errorf("%w: notice number field: %v", ErrNavigation, err)
	}
	if err := fillFirst(tabCtx, last4FieldCandidates, ep.last4, capture.ShortTimeout); err != nil {
		return nil, fmt.Errorf("%w: last-4 field: %v", ErrNavigation, err)
	}
	if !maybeClick(tabCtx, searchCandidates, capture.ShortTimeout) {
		return nil, fmt.Errorf("%w: search control not found", ErrNavigation)
	}

	// Results render asynchronously after the search posts back.
	ep.settle(tabCtx, 3*time.Second)

	var bodyText string
	textCtx, cancel := context.WithTimeout(tabCtx, capture.NavTimeout)
	if err := chromedp.Run(textCtx, chromedp.Text("body", &bodyText, chromedp.ByQuery)); err != nil {
		ep.logger.Debug("reading result text failed", zap.Error(err))
	}
	cancel()

	res.Status = DetectStatus(bodyText)
	if res.Status == StatusUnknown {
		res.Message = "Could not detect compliance status."
	} else {
		res.Message = "Detected compliance status from page."
	}
	ep.logger.Info("status detected", zap.String("status", string(res.Status)))

	if shot := ep.screenshot(tabCtx, "result"); shot != "" {
		res.ScreenshotPath = shot
	}

	// Request flow: the portal usually wants the document requested before
	// it will show a view affordance. Any part of this may be absent.
	ep.requestDocument(tabCtx)
	ep.recordURL(tabCtx)

	ep.captureDocument(tabCtx, res)

	if res.PDFPath != "" {
		verifyErr := capture.VerifyPDF(res.PDFPath)
		if verifyErr != nil {
			ep.logger.Warn("captured document failed validation",
				zap.String("path", res.PDFPath), zap.Error(verifyErr))
		}
		applyCaptureVerdict(res, verifyErr)
	}

	res.URLs = append([]string{}, ep.urls...)
	return res, nil
}

// applyCaptureVerdict folds the capture outcome into the result.
// Certificates are only issued to compliant taxpayers, so a verified
// document overrides a text-derived status. An artifact that failed
// validation (the retrieve endpoint answers expired requests with HTML
// error pages) proves nothing and leaves the text-derived status alone.
func applyCaptureVerdict(res *WorkflowResult, verifyErr error) {
	if verifyErr != nil {
		res.Message = "Document captured but failed validation; status from page text."
		return
	}
	res.Status = StatusCompliant
	res.Message = "Status confirmed: compliant (certificate downloaded)."
}

// requestDocument walks the request wizard: request link, Next, Submit.
// Every step is optional; the portal skips pages depending on the
// taxpayer's state.
func (ep *episode) requestDocument(tabCtx context.Context) {
	ep.settle(tabCtx, 2*time.Second)
	if !maybeClick(tabCtx, requestCandidates, capture.ShortTimeout) {
		ep.logger.Info("no request affordance on results page")
		return
	}
	ep.logger.Info("document request started")
	ep.settle(tabCtx, 2*time.Second)

	if maybeClick(tabCtx, nextCandidates, capture.ShortTimeout) {
		ep.settle(tabCtx, 2*time.Second)
	}
	if maybeClick(tabCtx, submitCandidates, capture.ShortTimeout) {
		ep.logger.Info("document request submitted")
		ep.settle(tabCtx, 2*time.Second)
	} else {
		ep.logger.Warn("submit control not found in request flow")
	}
}

// captureDocument runs the view-affordance strategy chain, then the
// harvest-and-recover fallbacks. The passive interceptor may win the race
// at any point; whatever path the sink reports is the answer.
func (ep *episode) captureDocument(tabCtx context.Context, res *WorkflowResult) {
	_, nodes, found := findFirst(tabCtx, viewCandidates, capture.ShortTimeout)
	if found {
		ep.logger.Info("view affordance located")
		path := capture.RunChain(tabCtx, ep.sink,
			capture.ViewStrategies(clickFuncFor(nodes[0]), ep.dest, ep.cfg.baseURL, ep.sink, ep.cfg.logger),
			ep.cfg.logger)
		if path != "" {
			res.PDFPath = path
			return
		}
	} else {
		ep.logger.Info("no view affordance found")
	}

	if path := capture.HarvestAndRecover(tabCtx, ep.pages, ep.urls, ep.dest,
		ep.cfg.baseURL, ep.sink, ep.cfg.logger); path != "" {
		res.PDFPath = path
		return
	}
	if ep.sink.Saved() {
		res.PDFPath = ep.sink.Path()
		return
	}
	ep.logger.Warn("document capture failed on every channel")
}

// settle waits for asynchronous page work, respecting tab cancellation.
func (ep *episode) settle(tabCtx context.Context, d time.Duration) {
	_ = chromedp.Run(tabCtx, chromedp.Sleep(d))
}

func (ep *episode) recordURL(tabCtx context.Context) {
	var u string
	ctx, cancel := context.WithTimeout(tabCtx, capture.ShortTimeout)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.Location(&u)); err != nil || u == "" {
		return
	}
	ep.urls = append(ep.urls, u)
}

// screenshot writes a full-page capture next to the PDF artifact. Failures
// are logged, never raised.
func (ep *episode) screenshot(tabCtx context.Context, label string) string {
	if !ep.cfg.screenshots {
		return ""
	}
	path := filepath.Join(ep.cfg.artifactsDir,
		fmt.Sprintf("%s-%s-%d-%s.png", ep.cfg.artifactPrefix, ep.notice, ep.ts, label))
	var buf []byte
	ctx, cancel := context.WithTimeout(tabCtx, capture.NavTimeout)
	defer cancel()
	if err := chromedp.Run(ctx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		ep.logger.Debug("screenshot failed", zap.String("label", label), zap.Error(err))
		return ""
	}
	if err := os.MkdirAll(ep.cfg.artifactsDir, 0o755); err != nil {
		ep.logger.Debug("screenshot dir", zap.Error(err))
		return ""
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		ep.logger.Debug("screenshot write failed", zap.Error(err))
		return ""
	}
	return path
}
