package cleanhands

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
)

// The site is a GenTax SPA with generated element ids, so nothing can be
// located by a single stable selector. Every affordance is described as an
// ordered list of XPath candidates, most specific first, and resolved by
// probing each in turn. Absence of a candidate is normal, not an error.

// findFirst probes candidates in order and returns the nodes of the first
// one present on the page. Each probe gets its own short deadline so a
// missing candidate costs little.
func findFirst(ctx context.Context, candidates []string, probeTimeout time.Duration) (string, []*cdp.Node, bool) {
	for _, sel := range candidates {
		pctx, cancel := context.WithTimeout(ctx, probeTimeout)
		var nodes []*cdp.Node
		err := chromedp.Run(pctx,
			chromedp.Nodes(sel, &nodes, chromedp.BySearch, chromedp.AtLeast(0)))
		cancel()
		if err == nil && len(nodes) > 0 {
			return sel, nodes, true
		}
	}
	return "", nil, false
}

// maybeClick clicks the first matching candidate if any is present.
// Returns false, without error, when nothing matched or the click failed.
func maybeClick(ctx context.Context, candidates []string, probeTimeout time.Duration) bool {
	_, nodes, ok := findFirst(ctx, candidates, probeTimeout)
	if !ok {
		return false
	}
	cctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	return chromedp.Run(cctx, chromedp.MouseClickNode(nodes[0])) == nil
}

// fillFirst types value into the first matching candidate. Unlike clicks,
// a fill target is mandatory for the workflow, so exhausting all candidates
// is an error.
func fillFirst(ctx context.Context, candidates []string, value string, probeTimeout time.Duration) error {
	sel, nodes, ok := findFirst(ctx, candidates, probeTimeout)
	if !ok {
		return fmt.Errorf("cleanhands: no candidate selector matched")
	}
	fctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := chromedp.Run(fctx,
		chromedp.MouseClickNode(nodes[0]),
		chromedp.SendKeys(sel, value, chromedp.BySearch),
	); err != nil {
		return fmt.Errorf("cleanhands: filling %q: %w", sel, err)
	}
	return nil
}

// clickFuncFor wraps a resolved affordance as a capture trigger: each
// strategy re-clicks the same node with its own deadline.
func clickFuncFor(node *cdp.Node) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		cctx, cancel := context.WithTimeout(ctx, 15*time.Second)
		defer cancel()
		return chromedp.Run(cctx, chromedp.MouseClickNode(node))
	}
}
