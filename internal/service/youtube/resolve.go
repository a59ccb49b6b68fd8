package youtube

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/pkg/errors"
)

// ChannelRef is a parsed channel reference extracted from user input.
type ChannelRef struct {
	Kind  ChannelRefKind
	Value string
}

type ChannelRefKind string

const (
	RefChannelID ChannelRefKind = "channel_id"
	RefHandle    ChannelRefKind = "handle"
	RefUsername  ChannelRefKind = "username"
	RefCustom    ChannelRefKind = "custom"
)

var channelIDRe = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)

// ParseChannelURL accepts the forms channel owners actually paste: full
// youtube.com URLs (/channel/, /@handle, /user/, /c/), bare @handles, and
// raw UC... channel IDs.
func ParseChannelURL(raw string) (*ChannelRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty channel reference")
	}

	if channelIDRe.MatchString(raw) {
		return &ChannelRef{Kind: RefChannelID, Value: raw}, nil
	}
	if strings.HasPrefix(raw, "@") {
		return &ChannelRef{Kind: RefHandle, Value: raw}, nil
	}

	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid channel URL: %w", err)
	}

	host := strings.TrimPrefix(u.Hostname(), "www.")
	if host != "youtube.com" && host != "m.youtube.com" && host != "youtu.be" {
		return nil, fmt.Errorf("not a YouTube URL: %s", u.Hostname())
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		return nil, fmt.Errorf("no channel path in URL")
	}

	switch {
	case parts[0] == "channel" && len(parts) > 1:
		if !channelIDRe.MatchString(parts[1]) {
			return nil, fmt.Errorf("malformed channel ID: %s", parts[1])
		}
		return &ChannelRef{Kind: RefChannelID, Value: parts[1]}, nil
	case strings.HasPrefix(parts[0], "@"):
		return &ChannelRef{Kind: RefHandle, Value: parts[0]}, nil
	case parts[0] == "user" && len(parts) > 1:
		return &ChannelRef{Kind: RefUsername, Value: parts[1]}, nil
	case parts[0] == "c" && len(parts) > 1:
		return &ChannelRef{Kind: RefCustom, Value: parts[1]}, nil
	}

	return nil, fmt.Errorf("unrecognized channel URL form: %s", u.Path)
}

// ResolveChannelID turns any parsed reference into a canonical UC... ID.
// Custom (/c/) slugs have no direct lookup and fall back to search, which is
// expensive quota-wise.
func (ys *YouTubeService) ResolveChannelID(ctx context.Context, ref *ChannelRef) (string, error) {
	switch ref.Kind {
	case RefChannelID:
		return ref.Value, nil

	case RefHandle:
		if err := ys.checkQuota(listQuotaCost); err != nil {
			return "", err
		}
		resp, err := ys.service.Channels.List([]string{"id"}).
			ForHandle(ref.Value).Context(ctx).Do()
		if err != nil {
			return "", wrapAPIError("resolve handle", err)
		}
		ys.consumeQuota(listQuotaCost)
		if len(resp.Items) == 0 {
			return "", errors.NewNotFoundError("channel", ref.Value)
		}
		return resp.Items[0].Id, nil

	case RefUsername:
		if err := ys.checkQuota(listQuotaCost); err != nil {
			return "", err
		}
		resp, err := ys.service.Channels.List([]string{"id"}).
			ForUsername(ref.Value).Context(ctx).Do()
		if err != nil {
			return "", wrapAPIError("resolve username", err)
		}
		ys.consumeQuota(listQuotaCost)
		if len(resp.Items) == 0 {
			return "", errors.NewNotFoundError("channel", ref.Value)
		}
		return resp.Items[0].Id, nil

	case RefCustom:
		if err := ys.checkQuota(searchQuotaCost); err != nil {
			return "", err
		}
		ys.logger.Warn("resolving custom channel slug via search",
			zap.String("slug", ref.Value),
			zap.Int("quotaCost", searchQuotaCost))
		resp, err := ys.service.Search.List([]string{"id"}).
			Q(ref.Value).Type("channel").MaxResults(1).Context(ctx).Do()
		if err != nil {
			return "", wrapAPIError("resolve custom slug", err)
		}
		ys.consumeQuota(searchQuotaCost)
		if len(resp.Items) == 0 || resp.Items[0].Id == nil {
			return "", errors.NewNotFoundError("channel", ref.Value)
		}
		return resp.Items[0].Id.ChannelId, nil
	}

	return "", fmt.Errorf("unknown channel reference kind: %s", ref.Kind)
}
