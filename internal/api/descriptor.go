package api

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Classification is fixed when a descriptor is built and never changes.
type Classification int

const (
	Public Classification = iota
	Private
)

func (c Classification) String() string {
	if c == Private {
		return "private"
	}
	return "public"
}

// Descriptor is a normalized, validated request consumed by the scheduler.
type Descriptor struct {
	Op           string
	Method       string
	Path         string
	RequiresAuth bool
	Query        url.Values
	Body         any
	CacheKey     string
	CacheTTL     time.Duration
}

// Classification reports whether the call is public or private.
func (d Descriptor) Classification() Classification {
	if d.RequiresAuth {
		return Private
	}
	return Public
}

// Validate checks the structural fields the transport needs.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Path) == "" || !strings.HasPrefix(d.Path, "/") {
		return Validationf("descriptor path %q must be absolute", d.Path)
	}
	switch d.Method {
	case http.MethodGet, http.MethodPost, http.MethodDelete:
	default:
		return Validationf("descriptor method %q not supported", d.Method)
	}
	return nil
}

// Auth carries the header values read fresh for a single request.
type Auth struct {
	ClientID    string
	AccessToken string
}
