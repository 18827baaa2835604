package registry

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// Environment describes the caller recorded on each click.
//
// Location is a simulated coarse locality, not a geolocation result.
type Environment interface {
	Location() string
	UserAgent() string
}

// ProcessEnvironment reports the environment of the running process
type ProcessEnvironment struct{}

// localtimePath is the system zone link consulted when TZ is unset
var localtimePath = "/etc/localtime"

// Location returns the process timezone name: TZ when set, else the zone
// /etc/localtime links to, else the current zone abbreviation.
func (ProcessEnvironment) Location() string {
	if tz := strings.TrimSpace(os.Getenv("TZ")); tz != "" {
		return tz
	}
	// Go names the system zone "Local" regardless of its configuration
	if name := time.Local.String(); name != "" && name != "Local" {
		return name
	}
	if name := zoneFromLink(localtimePath); name != "" {
		return name
	}
	if abbr, _ := time.Now().Zone(); abbr != "" {
		return abbr
	}
	return "Unknown"
}

// zoneFromLink returns the IANA name a zoneinfo symlink points at, or ""
func zoneFromLink(path string) string {
	target, err := os.Readlink(path)
	if err != nil {
		return ""
	}
	_, name, found := strings.Cut(target, "zoneinfo/")
	if !found {
		return ""
	}
	return strings.Trim(name, "/")
}

// UserAgent returns "<binary> (<os>; <arch>) <go version>"
func (ProcessEnvironment) UserAgent() string {
	name := "linkregistry"
	if len(os.Args) > 0 && os.Args[0] != "" {
		name = filepath.Base(os.Args[0])
	}
	return name + " (" + runtime.GOOS + "; " + runtime.GOARCH + ") " + runtime.Version()
}

// ClientInfo overrides the environment for a single call. Empty fields fall
// back to the registry's Environment.
type ClientInfo struct {
	Location  string
	UserAgent string
}

type clientKey struct{}

// WithClient attaches caller details to ctx
func WithClient(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, clientKey{}, info)
}

// ClientFromContext returns the caller details attached by WithClient
func ClientFromContext(ctx context.Context) (ClientInfo, bool) {
	info, ok := ctx.Value(clientKey{}).(ClientInfo)
	return info, ok
}

func (r *Registry) callerFor(ctx context.Context) (location, agent string) {
	location = r.env.Location()
	agent = r.env.UserAgent()

	if info, ok := ClientFromContext(ctx); ok {
		if info.Location != "" {
			location = info.Location
		}
		if info.UserAgent != "" {
			agent = info.UserAgent
		}
	}
	return location, agent
}
