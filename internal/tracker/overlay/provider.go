package overlay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

var ErrUnavailable = errors.New("overlay unavailable")

type Status string

const (
	StatusFresh       Status = "fresh"
	StatusCached      Status = "cached"
	StatusStale       Status = "stale"
	StatusUnavailable Status = "unavailable"
	StatusDisabled    Status = "disabled"
)

// Provenance is attached to every response built from overlay-corrected data.
type Provenance struct {
	Status    Status    `json:"status"`
	Version   string    `json:"version,omitempty"`
	Generated string    `json:"generated,omitempty"`
	Hash      string    `json:"hash,omitempty"`
	FetchedAt time.Time `json:"fetched_at,omitempty"`
	Error     string    `json:"error,omitempty"`
}

type Result struct {
	Doc        *Document
	Provenance Provenance
}

// Rejecter records overlay payloads that were fetched but not accepted.
type Rejecter interface {
	Reject(source, reason string, body []byte)
}

const (
	DefaultTimeout = 5 * time.Second
	maxBodyBytes   = 32 << 20
)

type ProviderConfig struct {
	URL     string
	Timeout time.Duration
	Client  *http.Client
	Cache   *Cache
	Logger  *log.Logger
	Rejects Rejecter
}

// Provider fetches the overlay document, validates it, and serves the last
// good copy when a refresh fails.
type Provider struct {
	url     string
	timeout time.Duration
	client  *http.Client
	cache   *Cache
	log     *log.Logger
	rejects Rejecter

	sf         singleflight.Group
	refreshing atomic.Bool
}

func NewProvider(cfg ProviderConfig) *Provider {
	p := &Provider{
		url:     strings.TrimSpace(cfg.URL),
		timeout: cfg.Timeout,
		client:  cfg.Client,
		cache:   cfg.Cache,
		log:     cfg.Logger,
		rejects: cfg.Rejects,
	}
	if p.timeout <= 0 {
		p.timeout = DefaultTimeout
	}
	if p.client == nil {
		p.client = &http.Client{}
	}
	if p.cache == nil {
		p.cache = NewCache(DefaultTTL)
	}
	if p.log == nil {
		p.log = log.New(io.Discard, "", 0)
	}
	return p
}

func (p *Provider) Cache() *Cache { return p.cache }

// Get returns the current overlay. A fresh cached copy is served directly.
// When a refresh is already running and a previous copy exists, that copy is
// served as stale instead of waiting. A failed refresh falls back to the previous copy
// with StatusStale; without one it returns ErrUnavailable.
func (p *Provider) Get(ctx context.Context) (Result, error) {
	if p.url == "" {
		return Result{Provenance: Provenance{Status: StatusDisabled}}, nil
	}
	prev, hasPrev := p.cache.load()
	if hasPrev && prev.Fresh {
		return resultFrom(prev, StatusCached, ""), nil
	}
	if hasPrev && p.refreshing.Load() {
		return resultFrom(prev, StatusStale, "refresh in progress"), nil
	}

	ch := p.sf.DoChan("overlay", func() (any, error) {
		p.refreshing.Store(true)
		defer p.refreshing.Store(false)
		return p.refresh()
	})

	select {
	case r := <-ch:
		if r.Err != nil {
			if cur, ok := p.cache.load(); ok {
				return resultFrom(cur, StatusStale, r.Err.Error()), nil
			}
			return Result{Provenance: Provenance{Status: StatusUnavailable, Error: r.Err.Error()}},
				fmt.Errorf("%w: %v", ErrUnavailable, r.Err)
		}
		return resultFrom(r.Val.(cached), StatusFresh, ""), nil
	case <-ctx.Done():
		if hasPrev {
			return resultFrom(prev, StatusStale, ctx.Err().Error()), nil
		}
		return Result{Provenance: Provenance{Status: StatusUnavailable, Error: ctx.Err().Error()}},
			fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
	}
}

// Invalidate forces the next Get to refetch.
func (p *Provider) Invalidate() { p.cache.Invalidate() }

func (p *Provider) refresh() (cached, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err != nil {
		return cached{}, err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := p.client.Do(req)
	if err != nil {
		p.log.Printf("overlay fetch %s: %v", p.url, err)
		return cached{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		p.log.Printf("overlay read %s: %v", p.url, err)
		return cached{}, err
	}
	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("overlay status %d", resp.StatusCode)
		p.reject(err.Error(), body)
		return cached{}, err
	}
	doc, hash, err := ParseDocument(body)
	if err != nil {
		p.reject(err.Error(), body)
		return cached{}, err
	}
	at := p.cache.store(doc, hash)
	p.log.Printf("overlay loaded version=%s hash=%.12s", doc.Meta.Version, hash)
	return cached{Doc: doc, Hash: hash, FetchedAt: at, Fresh: true}, nil
}

func (p *Provider) reject(reason string, body []byte) {
	p.log.Printf("overlay rejected %s: %s", p.url, reason)
	if p.rejects != nil {
		p.rejects.Reject(p.url, reason, body)
	}
}

func resultFrom(c cached, status Status, errMsg string) Result {
	return Result{
		Doc: c.Doc,
		Provenance: Provenance{
			Status:    status,
			Version:   c.Doc.Meta.Version,
			Generated: c.Doc.Meta.Generated,
			Hash:      c.Hash,
			FetchedAt: c.FetchedAt,
			Error:     errMsg,
		},
	}
}
