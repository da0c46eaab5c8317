// Package videoid classifies media references and derives the stable ids scribe keys
// its units by.
package videoid

import (
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

// aliases lists, per canonical host, every host that serves the same site.
var aliases = map[string][]string{
	"youtube.com": {"www.youtube.com", "m.youtube.com", "music.youtube.com", "youtu.be"},
	"x.com":       {"www.x.com", "twitter.com", "www.twitter.com", "mobile.twitter.com"},
	"twitch.tv":   {"www.twitch.tv", "m.twitch.tv"},
	"kick.com":    {"www.kick.com"},
}

var canonical = func() map[string]string {
	m := map[string]string{}
	for c, hosts := range aliases {
		m[c] = c
		for _, h := range hosts {
			m[h] = c
		}
	}
	return m
}()

// youTubeIDPrefixes are path prefixes followed directly by a video id.
var youTubeIDPrefixes = []string{"/embed/", "/v/", "/shorts/", "/live/"}

var errNoYouTubeID = errors.New("no youtube video id in url")

// CanonicalHost maps host (with or without port) onto the site it belongs to. Unknown
// hosts come back lowercased.
func CanonicalHost(host string) string {
	h := bareHost(host)
	if c, ok := canonical[h]; ok {
		return c
	}
	return h
}

// Namespace is the UUIDv5 namespace for domain, derived from the DNS namespace.
func Namespace(domain string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(bareHost(domain)))
}

// NameUUID is the UUIDv5 of name inside the domain's namespace.
func NameUUID(domain, name string) uuid.UUID {
	return uuid.NewSHA1(Namespace(domain), []byte(strings.TrimSpace(name)))
}

// Normalize returns raw as a stable URL plus its canonical host. The fragment, user info
// and trailing slashes go; YouTube video links collapse to /watch?v=<id>; X, Twitch and
// Kick lose their query. Other hosts keep their query untouched.
func Normalize(raw string) (string, string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", errors.New("missing url")
	}
	u, err := url.Parse(raw)
	if err == nil && u.Scheme == "" {
		u, err = url.Parse("https://" + raw)
	}
	if err != nil {
		return "", "", err
	}

	u.Fragment = ""
	u.User = nil
	host := CanonicalHost(u.Host)
	id, idErr := youTubeID(u)

	if host != "" {
		u.Host = host
	}
	if u.Scheme == "http" {
		u.Scheme = "https"
	}
	if u.Path != "/" {
		u.Path = strings.TrimRight(u.Path, "/")
	}

	switch host {
	case "youtube.com":
		if idErr == nil {
			u.Path = "/watch"
			u.RawQuery = "v=" + url.QueryEscape(id)
		}
	case "x.com", "twitch.tv", "kick.com":
		u.RawQuery = ""
	}
	return u.String(), host, nil
}

// youTubeID pulls the video id out of any YouTube link shape scribe accepts.
func youTubeID(u *url.URL) (string, error) {
	h := bareHost(u.Host)
	if h == "youtu.be" {
		if id := firstSegment(u.Path); id != "" {
			return id, nil
		}
		return "", errNoYouTubeID
	}
	if CanonicalHost(h) != "youtube.com" {
		return "", errNoYouTubeID
	}
	if v := strings.TrimSpace(u.Query().Get("v")); v != "" {
		return v, nil
	}
	for _, prefix := range youTubeIDPrefixes {
		if rest, ok := strings.CutPrefix(u.Path, prefix); ok {
			if id := firstSegment(rest); id != "" {
				return id, nil
			}
		}
	}
	return "", errNoYouTubeID
}

func bareHost(hostport string) string {
	h := strings.ToLower(strings.TrimSpace(hostport))
	if strings.Contains(h, ":") {
		if u, err := url.Parse("//" + h); err == nil && u.Hostname() != "" {
			h = u.Hostname()
		}
	}
	return strings.TrimSuffix(h, ".")
}

func firstSegment(p string) string {
	seg, _, _ := strings.Cut(strings.TrimPrefix(strings.TrimSpace(p), "/"), "/")
	return strings.TrimSpace(seg)
}
