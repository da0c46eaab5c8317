// Package resolver classifies submitted references and lists the items of channels and
// playlists through yt-dlp's flat playlist mode.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"thirdcoast.systems/scribe/internal/pipeline"
	"thirdcoast.systems/scribe/internal/videoid"
	"thirdcoast.systems/scribe/pkg/ytdlp"
)

// Lister is implemented by *ytdlp.Client.
type Lister interface {
	FlatPlaylist(ctx context.Context, url string, limit int, extraArgs ...string) ([]ytdlp.Entry, error)
}

type Resolver struct {
	Lister Lister
	Logger *slog.Logger
}

var _ pipeline.Resolver = (*Resolver)(nil)

func New(l Lister) *Resolver {
	return &Resolver{Lister: l}
}

func (r *Resolver) log() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Resolver) Classify(raw string) (pipeline.Reference, error) {
	ref, err := videoid.Classify(raw)
	if err != nil {
		return pipeline.Reference{}, err
	}

	switch ref.Kind {
	case videoid.KindChannel:
		return pipeline.Reference{Kind: pipeline.KindChannel, URL: ref.URL, BatchKey: ref.CollectionKey()}, nil
	case videoid.KindPlaylist:
		return pipeline.Reference{Kind: pipeline.KindPlaylist, URL: ref.URL, BatchKey: ref.CollectionKey()}, nil
	}
	return pipeline.Reference{Kind: pipeline.KindSingle, URL: ref.URL, ItemID: ref.ItemID()}, nil
}

// Resolve lists the videos of a collection in the order the platform reports them.
// Entries that do not classify as single videos (nested tabs, live placeholders) are skipped.
func (r *Resolver) Resolve(ctx context.Context, ref pipeline.Reference, limit int) ([]pipeline.Item, error) {
	if !ref.Kind.Collection() {
		return nil, fmt.Errorf("resolve: %s is not a collection", ref.Kind)
	}

	listURL := ref.URL
	if ref.Kind == pipeline.KindChannel {
		listURL = strings.TrimSuffix(listURL, "/") + "/videos"
	}

	entries, err := r.Lister.FlatPlaylist(ctx, listURL, limit)
	if err != nil {
		return nil, err
	}

	items := make([]pipeline.Item, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		item, ok := entryItem(e)
		if !ok {
			skipped++
			continue
		}
		items = append(items, item)
		if limit > 0 && len(items) == limit {
			break
		}
	}

	r.log().Info("resolved collection", "url", listURL, "items", len(items), "skipped", skipped)
	return items, nil
}

func entryItem(e ytdlp.Entry) (pipeline.Item, bool) {
	if e.Type == "playlist" {
		return pipeline.Item{}, false
	}

	raw := strings.TrimSpace(e.URL)
	if raw == "" {
		raw = strings.TrimSpace(e.ID)
	}
	if raw == "" {
		return pipeline.Item{}, false
	}

	ref, err := videoid.Classify(raw)
	if err != nil || ref.Kind != videoid.KindVideo {
		return pipeline.Item{}, false
	}
	return pipeline.Item{ID: ref.ItemID(), URL: ref.URL}, true
}
