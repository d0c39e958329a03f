package cleanhands

import (
	"context"
	"fmt"
	"sync"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// Agent drives the Clean Hands workflow against mytax.dc.gov.
//
// An Agent manages a headless browser instance that is reused across
// multiple episodes for performance. It is safe for concurrent use:
// episodes run one at a time, each in its own tab with its own capture
// sink and artifact destination. Download routing and popup adoption are
// browser-wide in the DevTools protocol, so overlapping episodes could
// deliver one caller's document to another; concurrent [Agent.Run] calls
// therefore queue.
//
// Call [Agent.Close] when the Agent is no longer needed to release browser
// resources.
type Agent struct {
	cfg           agentConfig
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc

	mu     sync.Mutex
	closed bool

	// runMu serializes episodes. The browser's download behavior and
	// target-created events are global, not per tab.
	runMu sync.Mutex
}

// NewAgent creates an Agent with the given options.
//
// It starts a headless browser in the background. The caller must call
// [Agent.Close] when finished.
func NewAgent(opts ...Option) (*Agent, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}

	if cfg.chromePath == "" && cfg.autoDownload {
		path, err := resolveBrowser()
		if err != nil {
			return nil, err
		}
		cfg.chromePath = path
	}

	allocOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("no-first-run", true),
	)
	if cfg.headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	} else {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if cfg.chromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(cfg.chromePath))
	}
	if cfg.noSandbox {
		allocOpts = append(allocOpts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so errors surface at creation time.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("cleanhands: starting browser: %w", err)
	}

	return &Agent{
		cfg:           cfg,
		allocCtx:      allocCtx,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
	}, nil
}

// Close releases all resources held by the Agent, including the browser
// process. Close is idempotent.
func (a *Agent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true
	a.browserCancel()
	a.allocCancel()
	return nil
}

// Run executes one episode: validate notice/last4 against the site,
// classify the compliance status, and capture the resulting document.
//
// Only failures on the mandatory navigation and form path return an error
// (wrapping [ErrNavigation]); a capture failure is reported through an
// empty PDFPath on the result. Cancelling ctx abandons the episode.
func (a *Agent) Run(ctx context.Context, notice, last4 string) (*WorkflowResult, error) {
	if err := a.checkClosed(); err != nil {
		return nil, err
	}
	if notice == "" || last4 == "" {
		return nil, fmt.Errorf("cleanhands: notice and last4 are required")
	}

	a.runMu.Lock()
	defer a.runMu.Unlock()
	if err := a.checkClosed(); err != nil {
		return nil, err
	}

	tabCtx, tabCancel := chromedp.NewContext(a.browserCtx)
	defer tabCancel()

	// Tie the tab's lifetime to the caller's context.
	stop := context.AfterFunc(ctx, tabCancel)
	defer stop()

	ep := newEpisode(a.cfg, notice, last4)
	defer ep.close()

	res, err := ep.run(tabCtx)
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("cleanhands: episode abandoned: %w", ctx.Err())
	}
	return res, err
}

func (a *Agent) checkClosed() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	return nil
}

// Logger exposes the agent's configured logger, named for the caller.
// Used by the HTTP wrapper so all surfaces log through one tree.
func (a *Agent) Logger() *zap.Logger {
	return a.cfg.logger
}
