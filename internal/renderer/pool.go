package renderer

import (
	"context"
	"errors"
	"sync"

	"github.com/go-rod/rod"
)

// ErrPoolClosed is returned when trying to acquire from a closed pool
var ErrPoolClosed = errors.New("tab pool is closed")

// TabPool hands out browser tabs. Tabs are opened lazily, up to maxTabs,
// and reused after Release.
type TabPool struct {
	browser *rod.Browser
	maxTabs int
	idle    chan *rod.Page
	slots   chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewTabPool creates a tab pool without opening any tab
func NewTabPool(browser *rod.Browser, maxTabs int) *TabPool {
	if maxTabs <= 0 {
		maxTabs = 1
	}
	return &TabPool{
		browser: browser,
		maxTabs: maxTabs,
		idle:    make(chan *rod.Page, maxTabs),
		slots:   make(chan struct{}, maxTabs),
	}
}

func (p *TabPool) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Acquire returns an idle tab, opens a new one while under maxTabs, or
// blocks until a tab is released or ctx ends.
func (p *TabPool) Acquire(ctx context.Context) (*rod.Page, error) {
	if p.isClosed() {
		return nil, ErrPoolClosed
	}

	select {
	case page := <-p.idle:
		return page, nil
	default:
	}

	select {
	case page := <-p.idle:
		return page, nil
	case p.slots <- struct{}{}:
		page, err := StealthPage(p.browser)
		if err != nil {
			<-p.slots
			return nil, err
		}
		return page, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release blanks the tab and returns it to the pool. Tabs released after
// Close are closed instead.
func (p *TabPool) Release(page *rod.Page) {
	if page == nil {
		return
	}
	if p.isClosed() {
		_ = page.Close()
		<-p.slots
		return
	}

	_ = page.Navigate("about:blank")

	select {
	case p.idle <- page:
	default:
		_ = page.Close()
		<-p.slots
	}
}

// Close closes every idle tab. Tabs still in use are closed on Release.
func (p *TabPool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	for {
		select {
		case page := <-p.idle:
			_ = page.Close()
			<-p.slots
		default:
			return nil
		}
	}
}
