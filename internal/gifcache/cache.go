// Package gifcache keeps decoded GIFs keyed by URL so each asset is fetched
// and composited at most once per process.
package gifcache

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/claude/fitcourse/internal/gifdecode"
)

// Status is the lifecycle state of an Entry.
type Status int

const (
	Loading Status = iota
	Ready
	Failed
)

func (s Status) String() string {
	switch s {
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	default:
		return "loading"
	}
}

// Entry is one URL's decode result. Fields are written once by the decode
// goroutine before done is closed and never change afterwards.
type Entry struct {
	url       string
	requested time.Time
	done      chan struct{}

	frames    []gifdecode.Frame
	width     int
	height    int
	loopCount int
	bytes     int
	elapsed   time.Duration
	err       error
}

func newEntry(url string, now time.Time) *Entry {
	return &Entry{url: url, requested: now, done: make(chan struct{})}
}

// URL returns the key the entry was requested under.
func (e *Entry) URL() string { return e.url }

// Done is closed once the entry is Ready or Failed.
func (e *Entry) Done() <-chan struct{} { return e.done }

// Status reports the entry's current state.
func (e *Entry) Status() Status {
	select {
	case <-e.done:
		if e.err != nil {
			return Failed
		}
		return Ready
	default:
		return Loading
	}
}

// Wait blocks until the entry is done or ctx ends. It returns the decode
// error for a Failed entry.
func (e *Entry) Wait(ctx context.Context) error {
	select {
	case <-e.done:
		return e.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Frames returns the composited frames, or nil unless the entry is Ready.
func (e *Entry) Frames() []gifdecode.Frame {
	if e.Status() != Ready {
		return nil
	}
	return e.frames
}

// Size returns the logical canvas size, zero until Ready.
func (e *Entry) Size() (width, height int) {
	if e.Status() != Ready {
		return 0, 0
	}
	return e.width, e.height
}

// Err returns the failure for a Failed entry and nil otherwise.
func (e *Entry) Err() error {
	if e.Status() != Failed {
		return nil
	}
	return e.err
}

// Info is a point-in-time description of an entry.
type Info struct {
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	Frames    int       `json:"frames"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	LoopCount int       `json:"loop_count"`
	Bytes     int       `json:"bytes"`
	DecodeMs  int64     `json:"decode_ms"`
	Error     string    `json:"error,omitempty"`
	Requested time.Time `json:"requested"`
}

// Info describes the entry.
func (e *Entry) Info() Info {
	info := Info{
		URL:       e.url,
		Status:    e.Status().String(),
		Requested: e.requested,
	}
	switch e.Status() {
	case Ready:
		info.Frames = len(e.frames)
		info.Width, info.Height = e.width, e.height
		info.LoopCount = e.loopCount
		info.Bytes = e.bytes
		info.DecodeMs = e.elapsed.Milliseconds()
	case Failed:
		info.Error = e.err.Error()
	}
	return info
}

// Options tunes a Cache.
type Options struct {
	// MaxConcurrentDecodes bounds how many fetch+decode jobs run at once.
	MaxConcurrentDecodes int64
	// MaxEntries evicts the least recently requested finished entry once
	// exceeded. Zero means unbounded.
	MaxEntries int
	// FetchTimeout bounds a single fetch+decode job.
	FetchTimeout time.Duration
	// MinDelay is passed to the compositor.
	MinDelay time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxConcurrentDecodes <= 0 {
		o.MaxConcurrentDecodes = 2
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 30 * time.Second
	}
	if o.MinDelay <= 0 {
		o.MinDelay = gifdecode.MinDelay
	}
	return o
}

// Stats summarises cache activity.
type Stats struct {
	Entries   int   `json:"entries"`
	Loading   int   `json:"loading"`
	Ready     int   `json:"ready"`
	Failed    int   `json:"failed"`
	Requests  int64 `json:"requests"`
	Hits      int64 `json:"hits"`
	Decodes   int64 `json:"decodes"`
	Failures  int64 `json:"failures"`
	Evictions int64 `json:"evictions"`
}

// Cache is a process-wide, URL-keyed, single-flight decode cache.
type Cache struct {
	fetcher Fetcher
	opts    Options
	sem     *semaphore.Weighted
	log     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.Mutex
	entries  map[string]*Entry
	lastUsed map[string]time.Time
	// inflight holds the newest unfinished load per URL, including loads
	// whose entry was invalidated. A new load waits for it.
	inflight map[string]*Entry

	requests  atomic.Int64
	hits      atomic.Int64
	decodes   atomic.Int64
	failures  atomic.Int64
	evictions atomic.Int64
}

// New creates a Cache that loads bytes through fetcher.
func New(fetcher Fetcher, opts Options, log *slog.Logger) *Cache {
	opts = opts.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		fetcher:  fetcher,
		opts:     opts,
		sem:      semaphore.NewWeighted(opts.MaxConcurrentDecodes),
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
		entries:  make(map[string]*Entry),
		lastUsed: make(map[string]time.Time),
		inflight: make(map[string]*Entry),
	}
}

// Request returns the entry for url, starting a decode if none exists.
// Concurrent callers for the same URL share one entry and one decode. A
// Failed entry is returned as-is; only Invalidate clears it.
func (c *Cache) Request(url string) *Entry {
	c.requests.Add(1)
	now := time.Now()

	c.mu.Lock()
	if e, ok := c.entries[url]; ok {
		c.lastUsed[url] = now
		c.mu.Unlock()
		c.hits.Add(1)
		return e
	}

	e := newEntry(url, now)
	prev := c.inflight[url]
	c.inflight[url] = e
	c.entries[url] = e
	c.lastUsed[url] = now
	c.evictLocked()
	c.mu.Unlock()

	c.wg.Add(1)
	go c.load(e, prev)

	return e
}

// Get returns the entry for url without starting a decode.
func (c *Cache) Get(url string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	return e, ok
}

// Invalidate drops url so the next Request decodes it again. Holders of the
// old entry keep it. If the old entry is still loading, the next decode
// starts only after it finishes. It reports whether an entry was removed.
func (c *Cache) Invalidate(url string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[url]; !ok {
		return false
	}
	delete(c.entries, url)
	delete(c.lastUsed, url)
	c.log.Info("gif cache entry invalidated", "url", url)
	return true
}

// Stats returns counters and a status breakdown.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	s := Stats{Entries: len(c.entries)}
	for _, e := range c.entries {
		switch e.Status() {
		case Loading:
			s.Loading++
		case Ready:
			s.Ready++
		case Failed:
			s.Failed++
		}
	}
	c.mu.Unlock()

	s.Requests = c.requests.Load()
	s.Hits = c.hits.Load()
	s.Decodes = c.decodes.Load()
	s.Failures = c.failures.Load()
	s.Evictions = c.evictions.Load()
	return s
}

// List describes every entry, most recently requested first.
func (c *Cache) List() []Info {
	c.mu.Lock()
	infos := make([]Info, 0, len(c.entries))
	used := make(map[string]time.Time, len(c.entries))
	for url, e := range c.entries {
		infos = append(infos, e.Info())
		used[url] = c.lastUsed[url]
	}
	c.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool {
		return used[infos[i].URL].After(used[infos[j].URL])
	})
	return infos
}

// Close aborts in-flight decodes and waits for their goroutines. Entries
// still loading finish as Failed.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *Cache) load(e *Entry, prev *Entry) {
	defer c.wg.Done()
	defer close(e.done)
	defer c.clearInflight(e)

	start := time.Now()
	log := c.log.With("url", e.url)

	if prev != nil {
		select {
		case <-prev.done:
		case <-c.ctx.Done():
			e.err = c.ctx.Err()
			c.failures.Add(1)
			return
		}
	}

	if err := c.sem.Acquire(c.ctx, 1); err != nil {
		e.err = err
		c.failures.Add(1)
		return
	}
	defer c.sem.Release(1)

	ctx, cancel := context.WithTimeout(c.ctx, c.opts.FetchTimeout)
	defer cancel()

	c.decodes.Add(1)

	data, err := c.fetcher.Fetch(ctx, e.url)
	if err != nil {
		e.err = err
		c.failures.Add(1)
		log.Warn("gif fetch failed", "error", err)
		return
	}

	img, frames, err := gifdecode.DecodeFrames(ctx, data, gifdecode.Options{MinDelay: c.opts.MinDelay})
	if err != nil {
		e.err = err
		c.failures.Add(1)
		log.Warn("gif decode failed", "error", err)
		return
	}

	e.frames = frames
	e.width, e.height = img.Width, img.Height
	e.loopCount = img.LoopCount
	e.bytes = len(data)
	e.elapsed = time.Since(start)

	log.Info("gif decoded",
		"frames", len(frames),
		"width", img.Width,
		"height", img.Height,
		"bytes", len(data),
		"duration", e.elapsed,
	)
}

func (c *Cache) clearInflight(e *Entry) {
	c.mu.Lock()
	if c.inflight[e.url] == e {
		delete(c.inflight, e.url)
	}
	c.mu.Unlock()
}

// evictLocked drops the least recently requested finished entries until the
// cache is within MaxEntries. Loading entries are never evicted.
func (c *Cache) evictLocked() {
	if c.opts.MaxEntries <= 0 {
		return
	}
	for len(c.entries) > c.opts.MaxEntries {
		var victim string
		var oldest time.Time
		for url, e := range c.entries {
			if e.Status() == Loading {
				continue
			}
			if t := c.lastUsed[url]; victim == "" || t.Before(oldest) {
				victim, oldest = url, t
			}
		}
		if victim == "" {
			return
		}
		delete(c.entries, victim)
		delete(c.lastUsed, victim)
		c.evictions.Add(1)
	}
}
