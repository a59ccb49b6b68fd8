// Package ingest receives push notifications for newly published videos.
// YouTube delivers these over WebSub (PubSubHubbub): the hub verifies the
// callback with a GET challenge, then POSTs Atom feed fragments when a
// subscribed channel publishes.
package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/creatrr/competitor-tracker-go/internal/domain"
)

const hubURL = "https://pubsubhubbub.appspot.com/subscribe"

// videoIngester is the discovery entry point notifications feed into.
type videoIngester interface {
	DiscoverNewVideo(ctx context.Context, videoID, channelID string) (*domain.Video, error)
}

type videoChecker interface {
	Exists(ctx context.Context, videoID string) (bool, error)
}

type subscriptionStore interface {
	Upsert(ctx context.Context, sub *domain.WebSubSubscription) error
	Deactivate(ctx context.Context, channelID string) error
	GetExpiring(ctx context.Context, threshold time.Time) ([]*domain.WebSubSubscription, error)
}

type channelLister interface {
	GetActive(ctx context.Context) ([]*domain.Channel, error)
}

// Subscriber manages per-channel leases with the hub.
type Subscriber struct {
	callbackURL  string
	leaseSeconds int
	client       *http.Client
	store        subscriptionStore
	channels     channelLister
	logger       *zap.Logger
}

func NewSubscriber(callbackURL string, leaseSeconds int, store subscriptionStore, channels channelLister, logger *zap.Logger) *Subscriber {
	return &Subscriber{
		callbackURL:  callbackURL,
		leaseSeconds: leaseSeconds,
		client:       &http.Client{Timeout: 30 * time.Second},
		store:        store,
		channels:     channels,
		logger:       logger,
	}
}

func feedURL(channelID string) string {
	return fmt.Sprintf("https://www.youtube.com/xml/feeds/videos.xml?channel_id=%s", channelID)
}

// Subscribe requests (or renews) a lease for one channel. The hub answers
// 202 and verifies the callback asynchronously.
func (s *Subscriber) Subscribe(ctx context.Context, channelID string) error {
	if s.callbackURL == "" {
		return fmt.Errorf("callback URL not configured")
	}

	topic := feedURL(channelID)
	form := url.Values{
		"hub.callback":      {s.callbackURL},
		"hub.topic":         {topic},
		"hub.verify":        {"async"},
		"hub.mode":          {"subscribe"},
		"hub.lease_seconds": {fmt.Sprintf("%d", s.leaseSeconds)},
	}

	if err := s.postHub(ctx, form); err != nil {
		return err
	}

	now := time.Now()
	sub := &domain.WebSubSubscription{
		ChannelID:    channelID,
		FeedURL:      topic,
		CallbackURL:  s.callbackURL,
		SubscribedAt: now,
		ExpiresAt:    now.Add(time.Duration(s.leaseSeconds) * time.Second),
		IsActive:     true,
	}
	if err := s.store.Upsert(ctx, sub); err != nil {
		s.logger.Error("subscription accepted but not recorded",
			zap.String("channelId", channelID),
			zap.Error(err))
	}

	s.logger.Info("push subscription requested",
		zap.String("channelId", channelID),
		zap.Time("expiresAt", sub.ExpiresAt))
	return nil
}

func (s *Subscriber) Unsubscribe(ctx context.Context, channelID string) error {
	if s.callbackURL == "" {
		return fmt.Errorf("callback URL not configured")
	}

	form := url.Values{
		"hub.callback": {s.callbackURL},
		"hub.topic":    {feedURL(channelID)},
		"hub.verify":   {"async"},
		"hub.mode":     {"unsubscribe"},
	}
	if err := s.postHub(ctx, form); err != nil {
		return err
	}
	return s.store.Deactivate(ctx, channelID)
}

func (s *Subscriber) postHub(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hubURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("hub request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("hub rejected request: %d %s", resp.StatusCode, string(body))
	}
	return nil
}

// SubscribeAll requests leases for every active channel. Returns
// (subscribed, failed).
func (s *Subscriber) SubscribeAll(ctx context.Context) (int, int, error) {
	channels, err := s.channels.GetActive(ctx)
	if err != nil {
		return 0, 0, err
	}

	subscribed, failed := 0, 0
	for _, ch := range channels {
		if err := s.Subscribe(ctx, ch.ChannelID); err != nil {
			failed++
			s.logger.Error("subscription failed",
				zap.String("channelId", ch.ChannelID),
				zap.Error(err))
			continue
		}
		subscribed++
	}
	return subscribed, failed, nil
}

// RenewExpiring re-subscribes channels whose lease ends within the buffer.
// Leases held for channels that have since been deactivated are dropped at
// the hub instead of renewed.
func (s *Subscriber) RenewExpiring(ctx context.Context, buffer time.Duration) (int, int, error) {
	expiring, err := s.store.GetExpiring(ctx, time.Now().Add(buffer))
	if err != nil {
		return 0, 0, err
	}
	if len(expiring) == 0 {
		return 0, 0, nil
	}

	channels, err := s.channels.GetActive(ctx)
	if err != nil {
		return 0, 0, err
	}
	active := make(map[string]bool, len(channels))
	for _, ch := range channels {
		active[ch.ChannelID] = true
	}

	renewed, failed, dropped := 0, 0, 0
	for _, sub := range expiring {
		if !active[sub.ChannelID] {
			if err := s.Unsubscribe(ctx, sub.ChannelID); err != nil {
				s.logger.Warn("could not drop stale lease",
					zap.String("channelId", sub.ChannelID),
					zap.Error(err))
			}
			dropped++
			continue
		}
		if err := s.Subscribe(ctx, sub.ChannelID); err != nil {
			failed++
			continue
		}
		renewed++
	}

	s.logger.Info("subscription renewal pass finished",
		zap.Int("expiring", len(expiring)),
		zap.Int("renewed", renewed),
		zap.Int("failed", failed),
		zap.Int("dropped", dropped))
	return renewed, failed, nil
}

// Handler is the HTTP callback the hub talks to. GET is lease verification,
// POST is a new-video notification.
type Handler struct {
	ingester videoIngester
	videos   videoChecker
	logger   *zap.Logger
}

func NewHandler(ingester videoIngester, videos videoChecker, logger *zap.Logger) *Handler {
	return &Handler{
		ingester: ingester,
		videos:   videos,
		logger:   logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleVerification(w, r)
	case http.MethodPost:
		h.handleNotification(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handleVerification echoes hub.challenge for subscribe/unsubscribe checks.
func (h *Handler) handleVerification(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	mode := q.Get("hub.mode")
	topic := q.Get("hub.topic")
	challenge := q.Get("hub.challenge")

	if mode != "subscribe" && mode != "unsubscribe" {
		h.logger.Warn("unknown verification mode", zap.String("mode", mode))
		w.WriteHeader(http.StatusNotFound)
		return
	}

	h.logger.Info("push subscription verified",
		zap.String("mode", mode),
		zap.String("topic", topic))
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, challenge)
}

// notificationFeed matches the Atom fragment the hub POSTs.
type notificationFeed struct {
	Entries []struct {
		VideoID   string `xml:"http://www.youtube.com/xml/schemas/2015 videoId"`
		ChannelID string `xml:"http://www.youtube.com/xml/schemas/2015 channelId"`
		Published string `xml:"published"`
	} `xml:"entry"`
}

func (h *Handler) handleNotification(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	receivedAt := time.Now()

	var feed notificationFeed
	if err := xml.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&feed); err != nil {
		h.logger.Error("notification parse failed", zap.Error(err))
		// 2xx anyway; the hub retries non-2xx and the payload will not
		// get better.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	processed, skipped, errs := 0, 0, 0
	for _, entry := range feed.Entries {
		if entry.VideoID == "" || entry.ChannelID == "" {
			errs++
			continue
		}

		if published, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			h.logger.Info("push notification received",
				zap.String("videoId", entry.VideoID),
				zap.Duration("deliveryDelay", receivedAt.Sub(published)))
		}

		exists, err := h.videos.Exists(r.Context(), entry.VideoID)
		if err != nil {
			errs++
			continue
		}
		if exists {
			skipped++
			continue
		}

		if _, err := h.ingester.DiscoverNewVideo(r.Context(), entry.VideoID, entry.ChannelID); err != nil {
			errs++
			h.logger.Error("failed to ingest pushed video",
				zap.String("videoId", entry.VideoID),
				zap.Error(err))
			continue
		}
		processed++
	}

	h.logger.Info("push notification handled",
		zap.Int("processed", processed),
		zap.Int("skipped", skipped),
		zap.Int("errors", errs))
	w.WriteHeader(http.StatusNoContent)
}
