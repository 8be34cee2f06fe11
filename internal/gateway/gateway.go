package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sync/singleflight"

	"github.com/five82/reeltrack/internal/api"
)

// Doer sends a descriptor through the request scheduler.
type Doer interface {
	Do(ctx context.Context, desc api.Descriptor) (json.RawMessage, error)
}

// Cache is the subset of cache.TTLCache the gateway needs.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Clear()
}

// TTLs holds the cache lifetime of each operation.
type TTLs struct {
	Search time.Duration
	Item   time.Duration
	List   time.Duration
	Stats  time.Duration
	Sync   time.Duration
}

// DefaultTTLs returns the lifetimes used when configuration leaves them unset.
func DefaultTTLs() TTLs {
	return TTLs{
		Search: 10 * time.Minute,
		Item:   time.Hour,
		List:   5 * time.Minute,
		Stats:  15 * time.Minute,
		Sync:   2 * time.Minute,
	}
}

// Options configure a Gateway.
type Options struct {
	Scheduler Doer
	Cache     Cache
	TTLs      TTLs
	Logger    hclog.Logger

	// DedupeInflight collapses concurrent fetches of the same cache key into
	// one network call. Off by default.
	DedupeInflight bool
}

// Gateway is the public lookup surface. Every operation validates its
// inputs, serves from cache when possible and otherwise fetches through the
// scheduler.
type Gateway struct {
	sched  Doer
	cache  Cache
	ttls   TTLs
	dedupe bool
	logger hclog.Logger
	sf     singleflight.Group
}

// New builds a Gateway.
func New(opts Options) (*Gateway, error) {
	if opts.Scheduler == nil {
		return nil, fmt.Errorf("gateway requires a scheduler")
	}
	if opts.Cache == nil {
		return nil, fmt.Errorf("gateway requires a cache")
	}
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Gateway{
		sched:  opts.Scheduler,
		cache:  opts.Cache,
		ttls:   opts.TTLs,
		dedupe: opts.DedupeInflight,
		logger: logger,
	}, nil
}

// Operation names, also used as cache key prefixes.
const (
	OpSearch    = "search"
	OpItem      = "item"
	OpUserList  = "user_list"
	OpUserStats = "user_stats"
	OpSyncItems = "sync_items"
)

// SearchQuery configures Search.
type SearchQuery struct {
	Types []MediaType
	Query string
	Limit int
}

// Search looks up movies, shows, episodes, people or lists by text.
func (g *Gateway) Search(ctx context.Context, q SearchQuery) (json.RawMessage, error) {
	text := normalizeText(q.Query)
	if text == "" {
		return nil, api.Validationf("search query is required")
	}
	if len(q.Types) == 0 {
		return nil, api.Validationf("at least one search type is required")
	}
	if q.Limit < 0 {
		return nil, api.Validationf("search limit must not be negative")
	}
	types := make([]string, 0, len(q.Types))
	seen := make(map[MediaType]bool, len(q.Types))
	for _, t := range q.Types {
		t = MediaType(strings.ToLower(strings.TrimSpace(string(t))))
		if !t.searchable() {
			return nil, api.Validationf("invalid search type %q", t)
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, string(t))
		}
	}
	slices.Sort(types)

	query := url.Values{"query": {text}, "extended": {"full"}}
	if q.Limit > 0 {
		query.Set("limit", strconv.Itoa(q.Limit))
	}
	key := cacheKey(OpSearch, url.Values{"types": {strings.Join(types, ",")}, "query": {text}, "limit": {strconv.Itoa(q.Limit)}})
	return g.fetch(ctx, api.Descriptor{
		Op:       OpSearch,
		Method:   http.MethodGet,
		Path:     "/search/" + strings.Join(types, ","),
		Query:    query,
		CacheKey: key,
		CacheTTL: g.ttls.Search,
	})
}

// GetItem fetches full details for a movie or show.
func (g *Gateway) GetItem(ctx context.Context, mediaType MediaType, id string) (json.RawMessage, error) {
	mediaType = MediaType(strings.ToLower(strings.TrimSpace(string(mediaType))))
	if mediaType != Movie && mediaType != Show {
		return nil, api.Validationf("invalid item type %q", mediaType)
	}
	id, err := identifier("item id", id)
	if err != nil {
		return nil, err
	}
	return g.fetch(ctx, api.Descriptor{
		Op:       OpItem,
		Method:   http.MethodGet,
		Path:     "/" + mediaType.plural() + "/" + id,
		Query:    url.Values{"extended": {"full"}},
		CacheKey: cacheKey(OpItem, url.Values{"type": {string(mediaType)}, "id": {id}}),
		CacheTTL: g.ttls.Item,
	})
}

// GetUserList fetches a public user's list.
func (g *Gateway) GetUserList(ctx context.Context, username string, list ListType, mediaType MediaType) (json.RawMessage, error) {
	user, err := identifier("username", username)
	if err != nil {
		return nil, err
	}
	list, mediaType, err = listParams(list, mediaType)
	if err != nil {
		return nil, err
	}
	return g.fetch(ctx, api.Descriptor{
		Op:       OpUserList,
		Method:   http.MethodGet,
		Path:     "/users/" + user + "/" + string(list) + "/" + mediaType.plural(),
		Query:    url.Values{"extended": {"full"}},
		CacheKey: cacheKey(OpUserList, url.Values{"user": {user}, "list": {string(list)}, "type": {string(mediaType)}}),
		CacheTTL: g.ttls.List,
	})
}

// GetUserStats fetches a public user's watch statistics.
func (g *Gateway) GetUserStats(ctx context.Context, username string) (json.RawMessage, error) {
	user, err := identifier("username", username)
	if err != nil {
		return nil, err
	}
	return g.fetch(ctx, api.Descriptor{
		Op:       OpUserStats,
		Method:   http.MethodGet,
		Path:     "/users/" + user + "/stats",
		CacheKey: cacheKey(OpUserStats, url.Values{"user": {user}}),
		CacheTTL: g.ttls.Stats,
	})
}

// GetSyncItems fetches the signed-in user's own list. It requires a token.
func (g *Gateway) GetSyncItems(ctx context.Context, list ListType, mediaType MediaType) (json.RawMessage, error) {
	list, mediaType, err := listParams(list, mediaType)
	if err != nil {
		return nil, err
	}
	return g.fetch(ctx, api.Descriptor{
		Op:           OpSyncItems,
		Method:       http.MethodGet,
		Path:         "/sync/" + string(list) + "/" + mediaType.plural(),
		RequiresAuth: true,
		Query:        url.Values{"extended": {"full"}},
		CacheKey:     cacheKey(OpSyncItems, url.Values{"list": {string(list)}, "type": {string(mediaType)}}),
		CacheTTL:     g.ttls.Sync,
	})
}

// Invalidate drops every cached result, e.g. after the signed-in identity
// changes.
func (g *Gateway) Invalidate() {
	g.cache.Clear()
	g.logger.Debug("cache cleared")
}

func (g *Gateway) fetch(ctx context.Context, desc api.Descriptor) (json.RawMessage, error) {
	if cached, ok := g.cache.Get(desc.CacheKey); ok {
		if payload, ok := cached.(json.RawMessage); ok {
			g.logger.Trace("cache hit", "key", desc.CacheKey)
			return payload, nil
		}
	}

	load := func(ctx context.Context) (json.RawMessage, error) {
		payload, err := g.sched.Do(ctx, desc)
		if err != nil {
			return nil, err
		}
		g.cache.Set(desc.CacheKey, payload, desc.CacheTTL)
		return payload, nil
	}

	if !g.dedupe {
		return load(ctx)
	}

	// The shared load must outlive whichever caller started it; each caller
	// stops waiting on its own ctx.
	shared := context.WithoutCancel(ctx)
	ch := g.sf.DoChan(desc.CacheKey, func() (any, error) {
		return load(shared)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			g.logger.Trace("joined in-flight fetch", "key", desc.CacheKey)
		}
		return res.Val.(json.RawMessage), nil
	}
}

// cacheKey is deterministic: url.Values.Encode sorts by key.
func cacheKey(op string, params url.Values) string {
	return op + "?" + params.Encode()
}

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

func identifier(field, value string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return "", api.Validationf("%s is required", field)
	}
	if !identifierPattern.MatchString(v) {
		return "", api.Validationf("invalid %s %q", field, value)
	}
	return v, nil
}

func listParams(list ListType, mediaType MediaType) (ListType, MediaType, error) {
	list = ListType(strings.ToLower(strings.TrimSpace(string(list))))
	if !list.valid() {
		return "", "", api.Validationf("invalid list type %q", list)
	}
	mediaType = MediaType(strings.ToLower(strings.TrimSpace(string(mediaType))))
	if mediaType != Movie && mediaType != Show {
		return "", "", api.Validationf("invalid list media type %q", mediaType)
	}
	return list, mediaType, nil
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}
