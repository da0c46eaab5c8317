package videoid

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

type Kind string

const (
	KindVideo    Kind = "video"
	KindChannel  Kind = "channel"
	KindPlaylist Kind = "playlist"
)

var (
	bareYouTubeID = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	bareHandle    = regexp.MustCompile(`^@[A-Za-z0-9._-]{3,30}$`)
)

// Reference is a classified, normalized media reference.
type Reference struct {
	Kind   Kind
	URL    string
	Domain string
	// VideoID is the platform id for a video, when the platform exposes one in the URL.
	VideoID string
}

// Classify decides from the shape of raw alone whether it names a single video, a
// channel or a playlist. Bare 11 character YouTube ids and bare @handles are accepted.
func Classify(raw string) (Reference, error) {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Reference{}, errors.New("missing reference")
	case bareHandle.MatchString(raw):
		return Reference{Kind: KindChannel, URL: "https://youtube.com/" + raw, Domain: "youtube.com"}, nil
	case bareYouTubeID.MatchString(raw):
		return Reference{Kind: KindVideo, URL: "https://youtube.com/watch?v=" + raw, Domain: "youtube.com", VideoID: raw}, nil
	}

	normalized, canon, err := Normalize(raw)
	if err != nil {
		return Reference{}, err
	}
	u, err := url.Parse(normalized)
	if err != nil {
		return Reference{}, err
	}
	if u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return Reference{}, errors.New("reference is not a web url")
	}

	ref := Reference{Kind: KindVideo, URL: normalized, Domain: canon}
	if canon == "youtube.com" {
		if id, err := youTubeID(u); err == nil {
			ref.VideoID = id
			return ref, nil
		}
		if list := u.Query().Get("list"); list != "" {
			ref.Kind = KindPlaylist
			ref.URL = "https://youtube.com/playlist?list=" + url.QueryEscape(list)
			return ref, nil
		}
		if isYouTubeChannelPath(u.Path) {
			ref.Kind = KindChannel
			ref.URL = "https://youtube.com" + channelRoot(u.Path)
			return ref, nil
		}
		return Reference{}, errors.New("unrecognized youtube url")
	}

	if canon == "twitch.tv" {
		segs := strings.Split(strings.Trim(u.Path, "/"), "/")
		if len(segs) == 1 && segs[0] != "" {
			ref.Kind = KindChannel
		}
	}
	return ref, nil
}

func isYouTubeChannelPath(p string) bool {
	first := firstSegment(p)
	switch {
	case strings.HasPrefix(first, "@"):
		return true
	case first == "channel" || first == "c" || first == "user":
		return firstSegment(strings.TrimPrefix(strings.TrimPrefix(p, "/"), first)) != ""
	}
	return false
}

// channelRoot trims tab suffixes such as /videos or /streams from a channel path.
func channelRoot(p string) string {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	if strings.HasPrefix(segs[0], "@") {
		return "/" + segs[0]
	}
	if len(segs) >= 2 {
		return "/" + segs[0] + "/" + segs[1]
	}
	return "/" + strings.Join(segs, "/")
}

// ItemID returns the unit id for a video: the platform id when known, otherwise a
// UUIDv5 of the normalized URL within the domain namespace.
func (r Reference) ItemID() string {
	if r.VideoID != "" {
		return r.VideoID
	}
	return NameUUID(r.Domain, r.URL).String()
}

// CollectionKey returns the batch key for a channel or playlist. Resubmitting the same
// collection yields the same key.
func (r Reference) CollectionKey() string {
	return NameUUID(r.Domain, string(r.Kind)+":"+r.URL).String()
}
