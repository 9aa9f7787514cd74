package engine

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

type chromedpDriver struct {
	opts        BrowserOptions
	log         *zap.Logger
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
}

func openChromedp(ctx context.Context, opts BrowserOptions, tr *Translator, log *zap.Logger) (Driver, error) {
	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.DebuggerURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(ctx, opts.DebuggerURL)
	} else {
		allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
		)
		if opts.Bin != "" {
			allocOpts = append(allocOpts, chromedp.ExecPath(opts.Bin))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(ctx, allocOpts...)
	}

	browserCtx, cancel := chromedp.NewContext(allocCtx)
	chromedp.ListenTarget(browserCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			tr.RequestWillBeSent(chromedpRequest(e))
		case *network.EventResponseReceived:
			if e.Response == nil {
				return
			}
			tr.ResponseReceived(string(e.RequestID), e.Response.URL, int(e.Response.Status), e.Response.MimeType)
		case *network.EventLoadingFinished:
			tr.LoadingFinished(string(e.RequestID))
		case *network.EventLoadingFailed:
			tr.LoadingFailed(string(e.RequestID), e.ErrorText, e.Canceled)
		case *page.EventFrameStoppedLoading:
			tr.FrameStoppedLoading(string(e.FrameID))
		}
	})

	if err := chromedp.Run(browserCtx, network.Enable()); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	log.Debug("browser ready", zap.Bool("remote", opts.DebuggerURL != ""))
	return &chromedpDriver{
		opts:        opts,
		log:         log,
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
	}, nil
}

func chromedpRequest(e *network.EventRequestWillBeSent) Request {
	r := Request{
		ID:       string(e.RequestID),
		Frame:    string(e.FrameID),
		Document: e.Type == network.ResourceTypeDocument,
	}
	if e.Request != nil {
		r.URL = e.Request.URL
	}
	if e.RedirectResponse != nil {
		r.RedirectFrom = e.RedirectResponse.URL
		r.RedirectStatus = int(e.RedirectResponse.Status)
	}
	return r
}

// Navigate runs the navigation on the browser context. chromedp waits for
// the load event; a load error is returned but the tracker has already
// seen the failure on the event channels.
func (d *chromedpDriver) Navigate(ctx context.Context, url string) error {
	runCtx, cancel := context.WithTimeout(d.ctx, d.opts.NavigationTimeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *chromedpDriver) Close() error {
	d.cancel()
	d.allocCancel()
	return nil
}
