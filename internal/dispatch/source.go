package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/teamarr/teamarr/internal/epg"
	"github.com/teamarr/teamarr/internal/m3u"
	"github.com/teamarr/teamarr/internal/matcher"
)

// Source feeds the orchestrator's event phase. Groups backed by a manager
// playlist group read through the facade; groups with a direct M3U URL
// bypass the manager.
type Source struct {
	client *Client
	http   *http.Client
}

func NewSource(client *Client) *Source {
	return &Source{client: client}
}

func (s *Source) Streams(ctx context.Context, group *epg.EventGroup) ([]matcher.Stream, error) {
	if group.M3UGroup != "" && s.client != nil {
		raw, err := s.client.ListStreams(ctx, group.M3UGroup)
		if err != nil {
			return nil, fmt.Errorf("manager streams for group %s: %w", group.Name, err)
		}
		out := make([]matcher.Stream, 0, len(raw))
		for _, st := range raw {
			out = append(out, matcher.Stream{
				GroupID:  group.ID,
				StreamID: strconv.Itoa(st.ID),
				Name:     st.Name,
			})
		}
		return out, nil
	}

	if group.M3UURL != "" {
		entries, err := m3u.Fetch(ctx, group.M3UURL, s.http)
		if err != nil {
			return nil, fmt.Errorf("playlist for group %s: %w", group.Name, err)
		}
		out := make([]matcher.Stream, 0, len(entries))
		for _, e := range entries {
			out = append(out, matcher.Stream{
				GroupID:  group.ID,
				StreamID: e.ID,
				Name:     e.Name,
			})
		}
		return out, nil
	}

	return nil, fmt.Errorf("group %s has no stream source configured", group.Name)
}
