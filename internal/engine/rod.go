package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
)

type rodDriver struct {
	opts     BrowserOptions
	log      *zap.Logger
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func openRod(ctx context.Context, opts BrowserOptions, tr *Translator, log *zap.Logger) (Driver, error) {
	d := &rodDriver{opts: opts, log: log}

	controlURL := opts.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch browser: %w", err)
		}
		d.launcher = l
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		d.kill()
		return nil, fmt.Errorf("connect to browser: %w", err)
	}
	d.browser = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		_ = d.Close()
		return nil, fmt.Errorf("create page: %w", err)
	}
	d.page = page

	listenCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	wait := page.Context(listenCtx).EachEvent(
		func(ev *proto.NetworkRequestWillBeSent) {
			tr.RequestWillBeSent(rodRequest(ev))
		},
		func(ev *proto.NetworkResponseReceived) {
			if ev.Response == nil {
				return
			}
			tr.ResponseReceived(string(ev.RequestID), ev.Response.URL, ev.Response.Status, ev.Response.MIMEType)
		},
		func(ev *proto.NetworkLoadingFinished) {
			tr.LoadingFinished(string(ev.RequestID))
		},
		func(ev *proto.NetworkLoadingFailed) {
			tr.LoadingFailed(string(ev.RequestID), ev.ErrorText, ev.Canceled)
		},
		func(ev *proto.PageFrameStoppedLoading) {
			tr.FrameStoppedLoading(string(ev.FrameID))
		},
	)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		wait()
	}()

	log.Debug("browser ready", zap.String("control_url", controlURL))
	return d, nil
}

func rodRequest(ev *proto.NetworkRequestWillBeSent) Request {
	r := Request{
		ID:       string(ev.RequestID),
		Frame:    string(ev.FrameID),
		Document: ev.Type == proto.NetworkResourceTypeDocument,
	}
	if ev.Request != nil {
		r.URL = ev.Request.URL
	}
	if ev.RedirectResponse != nil {
		r.RedirectFrom = ev.RedirectResponse.URL
		r.RedirectStatus = ev.RedirectResponse.Status
	}
	return r
}

func (d *rodDriver) Navigate(ctx context.Context, url string) error {
	if err := d.page.Context(ctx).Timeout(d.opts.NavigationTimeout).Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *rodDriver) Close() error {
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()

	var err error
	if d.page != nil {
		if cerr := d.page.Close(); cerr != nil {
			d.log.Debug("close page", zap.Error(cerr))
		}
	}
	if d.browser != nil {
		err = d.browser.Close()
	}
	d.kill()
	return err
}

func (d *rodDriver) kill() {
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher = nil
	}
}
