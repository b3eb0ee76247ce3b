// Package orders implements the staff order screens: per-status order views
// kept fresh by a shared poller, status transitions and the order builder.
package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/appetiteclub/apt"

	"github.com/appetiteclub/cakeshop/pkg/cake"
	"github.com/appetiteclub/cakeshop/pkg/event"
	"github.com/appetiteclub/cakeshop/services/shop/internal/table"
)

const (
	DefaultPollInterval = 30 * time.Second
	DefaultViewTTL      = 2 * time.Minute

	subscriberBuffer = 4
)

// Source is where the feed reads orders from.
type Source interface {
	OrdersByStatus(ctx context.Context, token, status string) ([]cake.Order, error)
	OrdersByDeliveryDate(ctx context.Context, token, date, status string) ([]cake.Order, error)
}

// Key identifies a view: one status, optionally narrowed to a delivery date
// (YYYY-MM-DD).
type Key struct {
	Status string `json:"status"`
	Date   string `json:"date,omitempty"`
}

// Update is what subscribers receive after a view changed.
type Update struct {
	Key    Key          `json:"key"`
	Orders []cake.Order `json:"orders"`
}

type view struct {
	orders     []cake.Order
	fetched    bool
	fetchedKey uint64
	refreshKey uint64
	// gen moves on every removal; a fetch started under an older gen is
	// discarded.
	gen      uint64
	token    string
	lastRead time.Time
	subs     map[uint64]chan Update
}

func (v *view) stale() bool {
	return !v.fetched || v.fetchedKey != v.refreshKey
}

type FeedOptions struct {
	Interval time.Duration
	TTL      time.Duration
	// Origin tags published events so a replica ignores its own.
	Origin string
	Logger apt.Logger
}

// Feed owns every order view. A single poller refetches each subscribed
// view once per tick regardless of how many subscribers it has, and fans the
// result out without blocking. Unsubscribed views are only marked stale and
// refetch on their next read.
type Feed struct {
	src      Source
	interval time.Duration
	ttl      time.Duration
	origin   string
	logger   apt.Logger
	now      func() time.Time

	mu     sync.Mutex
	views  map[Key]*view
	nextID uint64

	cancel context.CancelFunc
	done   chan struct{}
}

func NewFeed(src Source, opts FeedOptions) *Feed {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultViewTTL
	}
	if opts.Logger == nil {
		opts.Logger = apt.NewNoopLogger()
	}
	return &Feed{
		src:      src,
		interval: opts.Interval,
		ttl:      opts.TTL,
		origin:   opts.Origin,
		logger:   opts.Logger,
		now:      time.Now,
		views:    make(map[Key]*view),
	}
}

func (f *Feed) viewFor(key Key) *view {
	v, ok := f.views[key]
	if !ok {
		v = &view{subs: make(map[uint64]chan Update)}
		f.views[key] = v
	}
	return v
}

// Read returns the orders of a view filtered and sorted by q, refetching
// first when the view is stale.
func (f *Feed) Read(ctx context.Context, token string, key Key, q table.Query) ([]cake.Order, error) {
	f.mu.Lock()
	v := f.viewFor(key)
	v.token = token
	v.lastRead = f.now()
	stale := v.stale()
	refreshKey := v.refreshKey
	gen := v.gen
	rows := append([]cake.Order(nil), v.orders...)
	f.mu.Unlock()

	if stale {
		fetched, err := f.fetch(ctx, token, key)
		if err != nil {
			return nil, err
		}
		if !f.store(key, fetched, refreshKey, gen) {
			// An order was removed while fetching; fetch again so it stays out.
			f.mu.Lock()
			if v, ok := f.views[key]; ok {
				gen = v.gen
			}
			f.mu.Unlock()
			if fetched, err = f.fetch(ctx, token, key); err != nil {
				return nil, err
			}
			f.store(key, fetched, refreshKey, gen)
		}
		rows = fetched
	}

	return table.Apply(rows, Columns, q)
}

func (f *Feed) fetch(ctx context.Context, token string, key Key) ([]cake.Order, error) {
	var (
		orders []cake.Order
		err    error
	)
	if key.Date == "" {
		orders, err = f.src.OrdersByStatus(ctx, token, key.Status)
	} else {
		orders, err = f.src.OrdersByDeliveryDate(ctx, token, key.Date, key.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s orders: %w", key.Status, err)
	}
	return orders, nil
}

// store saves a fetch result unless the view was evicted or an order was
// removed meanwhile; it reports whether the result was kept. A result fetched
// under an older refresh key is kept but leaves the view stale.
func (f *Feed) store(key Key, orders []cake.Order, refreshKey, gen uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.views[key]
	if !ok || v.gen != gen {
		return false
	}
	v.orders = orders
	v.fetched = true
	v.fetchedKey = refreshKey
	f.fanout(key, v)
	return true
}

// fanout must be called with f.mu held.
func (f *Feed) fanout(key Key, v *view) {
	if len(v.subs) == 0 {
		return
	}
	u := Update{Key: key, Orders: append([]cake.Order(nil), v.orders...)}
	for id, ch := range v.subs {
		select {
		case ch <- u:
		default:
			f.logger.Debug("subscriber busy, dropping update", "status", key.Status, "subscriber", id)
		}
	}
}

// Subscribe registers for updates of a view. The returned function must be
// called to unsubscribe; it closes the channel.
func (f *Feed) Subscribe(token string, key Key) (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	f.mu.Lock()
	v := f.viewFor(key)
	v.token = token
	f.nextID++
	id := f.nextID
	v.subs[id] = ch
	f.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			if v, ok := f.views[key]; ok {
				delete(v.subs, id)
				v.lastRead = f.now()
			}
			f.mu.Unlock()
			close(ch)
		})
	}
}

// Bump marks every view of status stale.
func (f *Feed) Bump(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, v := range f.views {
		if k.Status == status {
			v.refreshKey++
		}
	}
}

// Remove drops the order from every view holding it and returns the status
// it was listed under, if any.
func (f *Feed) Remove(id cake.ID) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var status string
	for k, v := range f.views {
		v.gen++
		for i, o := range v.orders {
			if o.ID == id {
				v.orders = append(v.orders[:i:i], v.orders[i+1:]...)
				status = k.Status
				f.fanout(k, v)
				break
			}
		}
	}
	return status
}

// Views reports how many views are held.
func (f *Feed) Views() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.views)
}

type pending struct {
	key        Key
	token      string
	refreshKey uint64
	gen        uint64
}

// Tick runs one poll round.
func (f *Feed) Tick(ctx context.Context) {
	now := f.now()

	f.mu.Lock()
	var due []pending
	for k, v := range f.views {
		if len(v.subs) == 0 {
			if now.Sub(v.lastRead) > f.ttl {
				delete(f.views, k)
				continue
			}
			v.refreshKey++
			continue
		}
		due = append(due, pending{key: k, token: v.token, refreshKey: v.refreshKey, gen: v.gen})
	}
	f.mu.Unlock()

	for _, p := range due {
		orders, err := f.fetch(ctx, p.token, p.key)
		if err != nil {
			f.logger.Error("cannot refresh order view", "status", p.key.Status, "date", p.key.Date, "error", err)
			continue
		}
		f.store(p.key, orders, p.refreshKey, p.gen)
	}
}

// Start launches the poller. It stops when ctx is cancelled or Stop is
// called.
func (f *Feed) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.done = make(chan struct{})

	go func() {
		defer close(f.done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				f.Tick(runCtx)
			}
		}
	}()

	f.logger.Info("order poller started", "interval", f.interval.String())
	return nil
}

func (f *Feed) Stop(ctx context.Context) error {
	if f.cancel == nil {
		return nil
	}
	f.cancel()
	select {
	case <-f.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// HandleEvent marks the views touched by another replica's order event
// stale.
func (f *Feed) HandleEvent(ctx context.Context, data []byte) error {
	var ev event.OrderEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		f.logger.Info("invalid order event", "error", err)
		return nil
	}
	if ev.Source != "" && ev.Source == f.origin {
		return nil
	}
	f.Bump(ev.Status)
	if ev.PreviousStatus != "" {
		f.Bump(ev.PreviousStatus)
	}
	return nil
}
