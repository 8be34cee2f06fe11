package gateway

import (
	"encoding/json"
	"fmt"
	"time"
)

// MediaType enumerates the item kinds the API knows about.
type MediaType string

const (
	Movie   MediaType = "movie"
	Show    MediaType = "show"
	Episode MediaType = "episode"
	Person  MediaType = "person"
	List    MediaType = "list"
)

func (m MediaType) searchable() bool {
	switch m {
	case Movie, Show, Episode, Person, List:
		return true
	}
	return false
}

func (m MediaType) plural() string {
	return string(m) + "s"
}

// ParseMediaTypes converts raw names, rejecting unknown ones.
func ParseMediaTypes(names []string) ([]MediaType, error) {
	out := make([]MediaType, 0, len(names))
	for _, n := range names {
		m := MediaType(n)
		if !m.searchable() {
			return nil, fmt.Errorf("unknown media type %q", n)
		}
		out = append(out, m)
	}
	return out, nil
}

// ListType enumerates the per-user lists.
type ListType string

const (
	Watchlist  ListType = "watchlist"
	Watched    ListType = "watched"
	Collection ListType = "collection"
	Ratings    ListType = "ratings"
)

func (l ListType) valid() bool {
	switch l {
	case Watchlist, Watched, Collection, Ratings:
		return true
	}
	return false
}

// IDs mirrors the identifier block attached to every item.
type IDs struct {
	Trakt int64  `json:"trakt"`
	Slug  string `json:"slug"`
	IMDB  string `json:"imdb"`
	TMDB  int64  `json:"tmdb"`
}

// Item is the common subset of movie and show payloads.
type Item struct {
	Title    string   `json:"title"`
	Year     int      `json:"year"`
	IDs      IDs      `json:"ids"`
	Overview string   `json:"overview"`
	Runtime  int      `json:"runtime"`
	Rating   float64  `json:"rating"`
	Genres   []string `json:"genres"`
}

// SearchResult mirrors one element of a /search response.
type SearchResult struct {
	Type  string  `json:"type"`
	Score float64 `json:"score"`
	Movie *Item   `json:"movie,omitempty"`
	Show  *Item   `json:"show,omitempty"`
}

// Item returns whichever item the result carries.
func (r SearchResult) Item() *Item {
	if r.Movie != nil {
		return r.Movie
	}
	return r.Show
}

// UserStats mirrors /users/{id}/stats.
type UserStats struct {
	Movies   WatchStats `json:"movies"`
	Shows    WatchStats `json:"shows"`
	Episodes WatchStats `json:"episodes"`
}

// WatchStats aggregates counts for one media type.
type WatchStats struct {
	Plays     int `json:"plays"`
	Watched   int `json:"watched"`
	Minutes   int `json:"minutes"`
	Collected int `json:"collected"`
	Ratings   int `json:"ratings"`
}

// WatchTime converts the minute counter to a duration.
func (w WatchStats) WatchTime() time.Duration {
	return time.Duration(w.Minutes) * time.Minute
}

// DecodeSearch parses a search payload.
func DecodeSearch(payload json.RawMessage) ([]SearchResult, error) {
	var results []SearchResult
	if err := json.Unmarshal(payload, &results); err != nil {
		return nil, fmt.Errorf("decode search: %w", err)
	}
	return results, nil
}

// DecodeStats parses a user stats payload.
func DecodeStats(payload json.RawMessage) (UserStats, error) {
	var stats UserStats
	if err := json.Unmarshal(payload, &stats); err != nil {
		return UserStats{}, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}
