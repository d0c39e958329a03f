// Package capture persists a PDF served by an uncooperative site to disk
// exactly once, no matter how the site chooses to deliver it.
//
// The site may stream the document inline, render it in a popup viewer,
// force a download attachment, or serve it from an authenticated retrieve
// endpoint — and may pick a different mechanism on every session. The
// package therefore runs several overlapping capture channels against a
// single shared [Sink]:
//
//   - a passive [Interceptor] that watches every network exchange of the
//     browsing context (popups included) and grabs PDF-shaped response
//     bodies in flight, then fulfills the original request so the page
//     still renders;
//   - an ordered chain of active strategies ([ViewStrategies],
//     [URLStrategies]) run by [RunChain] after the "view document" click:
//     native download, same-tab response, popup fetch, cookie-carrying
//     direct GET, and forced anchor/blob downloads;
//   - a last-resort pass ([HarvestAndRecover]) that scans open tabs and the
//     navigation history for a PDF-shaped URL and retries against it.
//
// The Sink's check-and-set is the only synchronization point: whichever
// channel wins writes the file, every later arrival is a silent no-op.
package capture
