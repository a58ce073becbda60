package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Session is one exclusive browser session. Sessions are single-use: after a
// block or structural failure the browser fingerprint is burned, so the
// engine launches a fresh one per attempt. Close must be safe on every exit
// path, including cancellation.
type Session interface {
	Navigate(url string, timeout time.Duration) error
	VisibleText() (string, error)
	HTML() (string, error)
	CountMatches(selector string) (int, error)
	Fill(selector, value string) error
	Click(selector string, timeout time.Duration) error
	PressEnter(selector string) error
	Close()
}

// Launcher opens browser sessions. The context passed to Launch scopes the
// session's lifetime: cancelling it tears the browser down.
type Launcher interface {
	Launch(ctx context.Context) (Session, error)
}

// DefaultUserAgent is a realistic desktop agent string; headless defaults
// trip bot detection immediately.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

const defaultActionTimeout = 10 * time.Second

// ChromeLauncher launches headless Chrome sessions via chromedp.
type ChromeLauncher struct {
	UserAgent string
}

func NewChromeLauncher() *ChromeLauncher {
	return &ChromeLauncher{UserAgent: DefaultUserAgent}
}

func (l *ChromeLauncher) Launch(ctx context.Context) (Session, error) {
	ua := l.UserAgent
	if ua == "" {
		ua = DefaultUserAgent
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.UserAgent(ua),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.WindowSize(1366, 768),
	)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so launch failures surface here, not on the
	// first navigation.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &chromeSession{
		ctx:     browserCtx,
		cancels: []context.CancelFunc{browserCancel, allocCancel},
	}, nil
}

type chromeSession struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

func (s *chromeSession) run(timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (s *chromeSession) Navigate(url string, timeout time.Duration) error {
	return s.run(timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) VisibleText() (string, error) {
	var text string
	err := s.run(defaultActionTimeout, chromedp.Text("body", &text, chromedp.ByQuery))
	return text, err
}

func (s *chromeSession) HTML() (string, error) {
	var html string
	err := s.run(defaultActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (s *chromeSession) CountMatches(selector string) (int, error) {
	var nodes []*cdp.Node
	err := s.run(defaultActionTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)),
	)
	return len(nodes), err
}

func (s *chromeSession) Fill(selector, value string) error {
	return s.run(defaultActionTimeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
}

func (s *chromeSession) Click(selector string, timeout time.Duration) error {
	return s.run(timeout,
		chromedp.Click(selector, chromedp.ByQuery),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (s *chromeSession) PressEnter(selector string) error {
	return s.run(defaultActionTimeout,
		chromedp.SendKeys(selector, kb.Enter, chromedp.ByQuery),
	)
}

func (s *chromeSession) Close() {
	for _, cancel := range s.cancels {
		cancel()
	}
}
