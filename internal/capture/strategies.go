package capture

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	cdpruntime "github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Operation timeouts. Short covers optional UI affordances that may simply
// not exist; Long covers document-producing waits, where the site has been
// observed to take minutes to render a certificate.
const (
	ShortTimeout = 10 * time.Second
	NavTimeout   = 60 * time.Second
	LongTimeout  = 300 * time.Second
)

// maxDocumentSize caps document reads so a misclassified streaming response
// cannot exhaust memory.
const maxDocumentSize = 50 << 20

// ClickFunc performs the "view document" interaction that sets a capture
// strategy in motion. It is supplied by the workflow driver, which knows
// which affordance to click.
type ClickFunc func(ctx context.Context) error

// Strategy is one entry in an ordered capture chain. Run returns the
// destination path on success and an error on failure; a timeout is an
// ordinary failure, not a reason to abort the chain.
type Strategy struct {
	Name    string
	Timeout time.Duration
	Run     func(ctx context.Context) (string, error)
}

// RunChain tries strategies in order until one succeeds or the sink reports
// that a concurrent channel already saved the document. Failures are logged
// and swallowed. Returns the saved path, or "" when every strategy failed.
func RunChain(ctx context.Context, sink *Sink, strategies []Strategy, logger *zap.Logger) string {
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, st := range strategies {
		if sink.Saved() {
			return sink.Path()
		}
		sctx := ctx
		cancel := context.CancelFunc(func() {})
		if st.Timeout > 0 {
			sctx, cancel = context.WithTimeout(ctx, st.Timeout)
		}
		path, err := st.Run(sctx)
		cancel()
		if err != nil {
			logger.Debug("capture strategy failed",
				zap.String("strategy", st.Name), zap.Error(err))
			continue
		}
		if path != "" {
			logger.Info("capture strategy succeeded",
				zap.String("strategy", st.Name), zap.String("path", path))
			return path
		}
	}
	// A racing channel may have saved while the last strategy was running.
	if sink.Saved() {
		return sink.Path()
	}
	return ""
}

// ViewStrategies returns the click-driven portion of the chain: native
// download, same-tab response, popup fetch. Each invocation of click happens
// with that strategy's waiter already armed. referer is sent on any direct
// GET a strategy falls back to.
func ViewStrategies(click ClickFunc, dest, referer string, sink *Sink, logger *zap.Logger) []Strategy {
	if logger == nil {
		logger = zap.NewNop()
	}
	return []Strategy{
		{
			Name:    "native-download",
			Timeout: LongTimeout,
			Run: func(ctx context.Context) (string, error) {
				return captureNativeDownload(ctx, click, dest, sink)
			},
		},
		{
			Name:    "same-tab-response",
			Timeout: LongTimeout,
			Run: func(ctx context.Context) (string, error) {
				return captureSameTabResponse(ctx, click, dest, sink)
			},
		},
		{
			Name:    "popup-fetch",
			Timeout: LongTimeout,
			Run: func(ctx context.Context) (string, error) {
				return capturePopupFetch(ctx, click, dest, referer, sink, logger)
			},
		},
	}
}

// URLStrategies returns the portion of the chain that works against a known
// document URL: cookie-carrying direct GET, forced anchor download, forced
// blob download. Used as the popup fallback and during forced recovery.
func URLStrategies(docURL, dest, referer string, sink *Sink) []Strategy {
	return []Strategy{
		{
			Name:    "context-request",
			Timeout: LongTimeout,
			Run: func(ctx context.Context) (string, error) {
				return captureContextRequest(ctx, docURL, dest, referer, sink)
			},
		},
		{
			Name:    "force-anchor",
			Timeout: LongTimeout,
			Run: func(ctx context.Context) (string, error) {
				return captureForcedAnchor(ctx, docURL, dest, sink)
			},
		},
		{
			Name:    "force-blob",
			Timeout: LongTimeout,
			Run: func(ctx context.Context) (string, error) {
				return captureForcedBlob(ctx, docURL, dest, sink)
			},
		},
	}
}

// captureNativeDownload arms the browser's download machinery, performs the
// click, and waits for the resulting download to complete.
func captureNativeDownload(ctx context.Context, click ClickFunc, dest string, sink *Sink) (string, error) {
	data, err := expectDownload(ctx, click)
	if err != nil {
		return "", err
	}
	return claim(sink, data, dest)
}

// captureSameTabResponse waits for a PDF-shaped response to arrive in the
// same tab as a result of the click and reads its body off the wire.
func captureSameTabResponse(ctx context.Context, click ClickFunc, dest string, sink *Sink) (string, error) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return "", fmt.Errorf("capture: no browser target")
	}
	exec := cdp.WithExecutor(ctx, c.Target)

	var pending sync.Map // network.RequestID -> struct{}
	bodyCh := make(chan []byte, 1)

	lctx, lcancel := context.WithCancel(ctx)
	defer lcancel()
	chromedp.ListenTarget(lctx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventResponseReceived:
			if IsPDFResponse(e.Response.MimeType, e.Response.URL) {
				pending.Store(e.RequestID, struct{}{})
			}
		case *network.EventLoadingFinished:
			if _, ok := pending.Load(e.RequestID); !ok {
				return
			}
			// Body reads are protocol calls; they must not run on the
			// event goroutine.
			go func(id network.RequestID) {
				body, err := network.GetResponseBody(id).Do(exec)
				if err != nil || len(body) == 0 {
					return
				}
				select {
				case bodyCh <- body:
				default:
				}
			}(e.RequestID)
		}
	})

	if err := chromedp.Run(ctx, network.Enable()); err != nil {
		return "", err
	}
	if err := click(ctx); err != nil {
		return "", err
	}

	select {
	case body := <-bodyCh:
		return claim(sink, body, dest)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// capturePopupFetch waits for the click to open a new tab. If the popup
// lands on a PDF-shaped URL the document is fetched with the context's own
// cookies; otherwise an in-page fetch of the popup's URL is attempted.
func capturePopupFetch(ctx context.Context, click ClickFunc, dest, referer string, sink *Sink, logger *zap.Logger) (string, error) {
	popupCh := chromedp.WaitNewTarget(ctx, func(info *target.Info) bool {
		return info.Type == "page" && info.OpenerID != ""
	})

	if err := click(ctx); err != nil {
		return "", err
	}

	var id target.ID
	select {
	case id = <-popupCh:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	popupCtx, cancel := chromedp.NewContext(ctx, chromedp.WithTargetID(id))
	defer cancel()

	// Give an embedded viewer a moment to settle before reading the URL.
	_ = chromedp.Run(popupCtx, chromedp.Sleep(2*time.Second))

	var popupURL string
	if err := chromedp.Run(popupCtx, chromedp.Location(&popupURL)); err != nil {
		return "", fmt.Errorf("capture: popup location: %w", err)
	}
	logger.Debug("popup opened", zap.String("url", popupURL))

	if LooksLikePDFURL(popupURL) {
		return captureContextRequest(popupCtx, popupURL, dest, referer, sink)
	}

	data, err := inPageFetch(popupCtx, popupURL)
	if err != nil {
		return "", err
	}
	return claim(sink, data, dest)
}

// captureContextRequest GETs the document directly, carrying the browsing
// context's cookies, bypassing page rendering entirely.
func captureContextRequest(ctx context.Context, docURL, dest, referer string, sink *Sink) (string, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return "", fmt.Errorf("capture: read cookies: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", fmt.Errorf("capture: build request: %w", err)
	}
	req.Header.Set("Accept", "application/pdf,application/octet-stream,*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	for _, c := range cookies {
		if cookieMatches(c, req.URL) {
			req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
		}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("capture: GET %s: %w", docURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("capture: GET %s: status %d", docURL, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentSize))
	if err != nil {
		return "", fmt.Errorf("capture: read body: %w", err)
	}
	if len(data) == 0 {
		return "", fmt.Errorf("capture: GET %s: empty body", docURL)
	}
	return claim(sink, data, dest)
}

// captureForcedAnchor injects a temporary download anchor for the URL and
// clicks it, capturing the resulting native download.
func captureForcedAnchor(ctx context.Context, docURL, dest string, sink *Sink) (string, error) {
	js := fmt.Sprintf(`(() => {
		const a = document.createElement('a');
		a.href = %q;
		a.download = 'document.pdf';
		document.body.appendChild(a);
		a.click();
		a.remove();
	})()`, docURL)

	data, err := expectDownload(ctx, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(js, nil))
	})
	if err != nil {
		return "", err
	}
	return claim(sink, data, dest)
}

// captureForcedBlob fetches the URL from page script with credentials,
// converts it to an object URL, and downloads through an injected anchor.
// The object URL is revoked once the click has been dispatched.
func captureForcedBlob(ctx context.Context, docURL, dest string, sink *Sink) (string, error) {
	js := fmt.Sprintf(`(async () => {
		const res = await fetch(%q, { credentials: 'include' });
		if (!res.ok) throw new Error('fetch failed ' + res.status);
		const blob = await res.blob();
		const link = document.createElement('a');
		link.href = URL.createObjectURL(blob);
		link.download = 'document.pdf';
		document.body.appendChild(link);
		link.click();
		setTimeout(() => {
			URL.revokeObjectURL(link.href);
			link.remove();
		}, 5000);
	})()`, docURL)

	data, err := expectDownload(ctx, func(ctx context.Context) error {
		return chromedp.Run(ctx, chromedp.Evaluate(js, nil,
			func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
				return p.WithAwaitPromise(true)
			}))
	})
	if err != nil {
		return "", err
	}
	return claim(sink, data, dest)
}

// expectDownload stages downloads into a temporary directory, runs trigger,
// and returns the bytes of the first download that completes.
func expectDownload(ctx context.Context, trigger func(ctx context.Context) error) ([]byte, error) {
	stage, err := os.MkdirTemp("", "cleanhands-dl-")
	if err != nil {
		return nil, fmt.Errorf("capture: staging dir: %w", err)
	}
	defer os.RemoveAll(stage)

	done := make(chan string, 1)
	lctx, lcancel := context.WithCancel(ctx)
	defer lcancel()
	chromedp.ListenBrowser(lctx, func(ev interface{}) {
		if p, ok := ev.(*browser.EventDownloadProgress); ok &&
			p.State == browser.DownloadProgressStateCompleted {
			select {
			case done <- p.GUID:
			default:
			}
		}
	})

	err = chromedp.Run(ctx, browser.
		SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
		WithDownloadPath(stage).
		WithEventsEnabled(true))
	if err != nil {
		return nil, fmt.Errorf("capture: set download behavior: %w", err)
	}

	if err := trigger(ctx); err != nil {
		return nil, err
	}

	select {
	case guid := <-done:
		data, err := os.ReadFile(filepath.Join(stage, guid))
		if err != nil {
			return nil, fmt.Errorf("capture: read download: %w", err)
		}
		return data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// inPageFetch evaluates a credentialed fetch of pageURL inside the page and
// returns the response bytes.
func inPageFetch(ctx context.Context, pageURL string) ([]byte, error) {
	js := fmt.Sprintf(`(async () => {
		const res = await fetch(%q, { credentials: 'include' });
		if (!res.ok) throw new Error('fetch failed ' + res.status);
		const buf = new Uint8Array(await res.arrayBuffer());
		let bin = '';
		const chunk = 0x8000;
		for (let i = 0; i < buf.length; i += chunk) {
			bin += String.fromCharCode.apply(null, buf.subarray(i, i + chunk));
		}
		return btoa(bin);
	})()`, pageURL)

	var encoded string
	err := chromedp.Run(ctx, chromedp.Evaluate(js, &encoded,
		func(p *cdpruntime.EvaluateParams) *cdpruntime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}))
	if err != nil {
		return nil, fmt.Errorf("capture: in-page fetch: %w", err)
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("capture: decode in-page fetch: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("capture: in-page fetch returned no data")
	}
	return data, nil
}

// claim records data through the sink. Losing the race to a concurrent
// channel is success from the chain's point of view: the document exists.
func claim(sink *Sink, data []byte, dest string) (string, error) {
	if sink.TrySave(data, dest) {
		return dest, nil
	}
	if sink.Saved() {
		return sink.Path(), nil
	}
	return "", fmt.Errorf("capture: write %s failed", dest)
}

// cookieMatches reports whether a browser cookie applies to the request URL,
// using suffix domain matching.
func cookieMatches(c *network.Cookie, u *url.URL) bool {
	domain := strings.TrimPrefix(c.Domain, ".")
	host := u.Hostname()
	return host == domain || strings.HasSuffix(host, "."+domain)
}
