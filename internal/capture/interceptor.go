package capture

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Interceptor passively captures PDF-shaped network exchanges. It pauses
// every response at the Fetch-domain interception point; when a response's
// URL classifies as document-shaped and the sink is still unsaved, it reads
// the body,
// persists it via the sink, and fulfills the original request with the same
// status, headers and body so the page's own rendering is undisturbed.
// Everything else is passed through untouched.
//
// The interceptor self-attaches to popups: a browser-level TargetCreated
// event with an opener spawns a child context, attaches the same handler,
// and registers the new tab in the shared PageList. Attachment is idempotent
// per target.
type Interceptor struct {
	sink   *Sink
	dest   string
	pages  *PageList
	logger *zap.Logger

	mu          sync.Mutex
	attached    map[target.ID]bool
	popupHooked bool
}

// NewInterceptor creates an interceptor that persists to dest through sink
// and records adopted tabs in pages.
func NewInterceptor(sink *Sink, dest string, pages *PageList, logger *zap.Logger) *Interceptor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Interceptor{
		sink:     sink,
		dest:     dest,
		pages:    pages,
		logger:   logger.Named("interceptor"),
		attached: make(map[target.ID]bool),
	}
}

// Attach enables response-stage interception on the tab behind ctx and
// hooks popup adoption. Re-attaching to the same target is a no-op.
func (ic *Interceptor) Attach(ctx context.Context) error {
	// Enabling the domains also forces the lazy chromedp target to
	// initialize, so FromContext is valid below.
	if err := chromedp.Run(ctx,
		network.Enable(),
		fetch.Enable().WithPatterns([]*fetch.RequestPattern{
			{URLPattern: "*", RequestStage: fetch.RequestStageResponse},
		}),
	); err != nil {
		return err
	}

	c := chromedp.FromContext(ctx)
	id := c.Target.TargetID

	ic.mu.Lock()
	if ic.attached[id] {
		ic.mu.Unlock()
		return nil
	}
	ic.attached[id] = true
	hookPopups := !ic.popupHooked
	ic.popupHooked = true
	ic.mu.Unlock()

	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if p, ok := ev.(*fetch.EventRequestPaused); ok {
			go ic.handlePaused(ctx, p)
		}
	})

	if hookPopups {
		chromedp.ListenBrowser(ctx, func(ev interface{}) {
			t, ok := ev.(*target.EventTargetCreated)
			if !ok {
				return
			}
			info := t.TargetInfo
			if info.Type != "page" || info.OpenerID == "" {
				return
			}
			go ic.adopt(ctx, info.TargetID, info.URL)
		})
	}

	ic.logger.Debug("attached", zap.String("target", string(id)))
	return nil
}

// adopt attaches interception to a popup and registers it for harvesting.
// Registration happens before the (blocking) attach so even a popup that
// closes immediately is known to the episode.
func (ic *Interceptor) adopt(parent context.Context, id target.ID, url string) {
	ic.mu.Lock()
	if ic.attached[id] {
		ic.mu.Unlock()
		return
	}
	ic.mu.Unlock()

	popupCtx, cancel := chromedp.NewContext(parent, chromedp.WithTargetID(id))
	ic.pages.Add(popupCtx, cancel)

	if err := ic.Attach(popupCtx); err != nil {
		ic.logger.Debug("popup attach failed", zap.String("url", url), zap.Error(err))
		return
	}
	ic.logger.Info("adopted popup", zap.String("url", url))
}

// handlePaused decides the fate of one paused response. On any error the
// request is released unmodified: a capture failure must never block the
// page from loading.
func (ic *Interceptor) handlePaused(ctx context.Context, ev *fetch.EventRequestPaused) {
	c := chromedp.FromContext(ctx)
	if c == nil || c.Target == nil {
		return
	}
	exec := cdp.WithExecutor(ctx, c.Target)

	url := ev.Request.URL
	if !ic.shouldCapture(url) {
		ic.release(exec, ev.RequestID)
		return
	}

	body, err := fetch.GetResponseBody(ev.RequestID).Do(exec)
	if err != nil || len(body) == 0 {
		ic.logger.Debug("body read failed", zap.String("url", url), zap.Error(err))
		ic.release(exec, ev.RequestID)
		return
	}

	if ic.sink.TrySave(body, ic.dest) {
		ic.logger.Info("saved document from network exchange",
			zap.String("url", url),
			zap.String("content_type", headerValue(ev.ResponseHeaders, "content-type")),
			zap.Int("bytes", len(body)))
	}

	// Hand the browser back the exact response it asked for, so an inline
	// viewer still renders.
	status := ev.ResponseStatusCode
	if status == 0 {
		status = 200
	}
	err = fetch.FulfillRequest(ev.RequestID, status).
		WithResponseHeaders(ev.ResponseHeaders).
		WithBody(base64.StdEncoding.EncodeToString(body)).
		Do(exec)
	if err != nil {
		ic.logger.Debug("fulfill failed", zap.String("url", url), zap.Error(err))
		ic.release(exec, ev.RequestID)
	}
}

// shouldCapture gates the passive path on URL shape alone. The site serves
// scripts, fonts and bundles as octet-stream, so trusting content types
// here would let the first mis-typed asset claim the sink and lock the real
// document out for the rest of the episode. Content-type matching belongs
// to the click-driven strategies, which only observe responses caused by
// the view click.
func (ic *Interceptor) shouldCapture(url string) bool {
	return !ic.sink.Saved() && LooksLikePDFURL(url)
}

// release lets a paused response continue unmodified.
func (ic *Interceptor) release(exec context.Context, id fetch.RequestID) {
	if err := fetch.ContinueResponse(id).Do(exec); err != nil {
		// The target may have detached mid-flight; nothing to do.
		ic.logger.Debug("continue failed", zap.Error(err))
	}
}

func headerValue(headers []*fetch.HeaderEntry, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}
