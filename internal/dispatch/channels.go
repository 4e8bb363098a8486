package dispatch

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/teamarr/teamarr/internal/reconciler"
)

// wireChannel is a channel row as the manager's API carries it.
type wireChannel struct {
	ID            int    `json:"id,omitempty"`
	Name          string `json:"name"`
	ChannelNumber int    `json:"channel_number,omitempty"`
	ChannelGroup  string `json:"channel_group,omitempty"`
	Profile       string `json:"profile,omitempty"`
	LogoURL       string `json:"logo_url,omitempty"`
	StreamIDs     []int  `json:"stream_ids,omitempty"`
	TVGID         string `json:"tvg_id,omitempty"`
}

func toWire(spec reconciler.ChannelSpec) (wireChannel, error) {
	wc := wireChannel{
		Name:          spec.Name,
		ChannelNumber: spec.Number,
		ChannelGroup:  spec.Group,
		Profile:       spec.Profile,
		LogoURL:       spec.LogoURL,
	}
	for _, id := range spec.StreamIDs {
		n, err := strconv.Atoi(id)
		if err != nil {
			return wc, fmt.Errorf("stream id %q is not numeric", id)
		}
		wc.StreamIDs = append(wc.StreamIDs, n)
	}
	return wc, nil
}

// CreateChannel creates a downstream channel and returns its manager id.
func (c *Client) CreateChannel(ctx context.Context, spec reconciler.ChannelSpec) (string, error) {
	wc, err := toWire(spec)
	if err != nil {
		return "", err
	}
	var created wireChannel
	if err := c.do(ctx, "POST", "/api/channels/channels/", wc, &created); err != nil {
		return "", err
	}
	if created.ID == 0 {
		return "", fmt.Errorf("manager create returned no channel id")
	}
	c.log.Info().Int("id", created.ID).Str("name", spec.Name).Msg("downstream channel created")
	return strconv.Itoa(created.ID), nil
}

func (c *Client) UpdateChannel(ctx context.Context, id string, spec reconciler.ChannelSpec) error {
	wc, err := toWire(spec)
	if err != nil {
		return err
	}
	return c.do(ctx, "PATCH", "/api/channels/channels/"+url.PathEscape(id)+"/", wc, nil)
}

func (c *Client) DeleteChannel(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/api/channels/channels/"+url.PathEscape(id)+"/", nil, nil)
}

// SetChannelEPG links a downstream channel to a guide channel id from our
// XMLTV output.
func (c *Client) SetChannelEPG(ctx context.Context, id, guideChannelID string) error {
	body := map[string]string{"tvg_id": guideChannelID}
	return c.do(ctx, "POST", "/api/channels/channels/"+url.PathEscape(id)+"/epg/", body, nil)
}

// ListChannels returns every channel the manager knows.
func (c *Client) ListChannels(ctx context.Context) ([]reconciler.ManagerChannel, error) {
	var wire []wireChannel
	if err := c.do(ctx, "GET", "/api/channels/channels/", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]reconciler.ManagerChannel, 0, len(wire))
	for _, wc := range wire {
		out = append(out, reconciler.ManagerChannel{
			ID:      strconv.Itoa(wc.ID),
			Name:    wc.Name,
			Number:  wc.ChannelNumber,
			Group:   wc.ChannelGroup,
			Profile: wc.Profile,
		})
	}
	return out, nil
}

// Stream is one playlist stream as the manager reports it.
type Stream struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Group string `json:"channel_group"`
	URL   string `json:"url,omitempty"`
}

// ListM3UGroups returns the manager's playlist group names.
func (c *Client) ListM3UGroups(ctx context.Context) ([]string, error) {
	var wire []struct {
		Name string `json:"name"`
	}
	if err := c.do(ctx, "GET", "/api/channels/groups/", nil, &wire); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(wire))
	for _, g := range wire {
		out = append(out, g.Name)
	}
	return out, nil
}

// ListStreams returns the raw streams of one manager playlist group.
func (c *Client) ListStreams(ctx context.Context, group string) ([]Stream, error) {
	var out []Stream
	path := "/api/channels/streams/?channel_group=" + url.QueryEscape(group)
	if err := c.do(ctx, "GET", path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RefreshM3U asks the manager to re-pull one playlist account.
func (c *Client) RefreshM3U(ctx context.Context, accountID string) error {
	return c.do(ctx, "POST", "/api/m3u/accounts/"+url.PathEscape(accountID)+"/refresh/", nil, nil)
}
