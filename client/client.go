// Package client is the data layer of the IA Sport app: a REST client
// that attaches the session token to every request, classifies errors,
// and falls back to the durable offline snapshot when the predictions
// listing cannot be reached.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ia-sport/offline-cache/kvstore"
	"github.com/ia-sport/offline-cache/predictions"
)

const defaultTimeout = 30 * time.Second

// API routes relative to the base URL.
const (
	PathPredictions = "/predictions"
	PathSubscribe   = "/notifications/subscribe"
	PathUnsubscribe = "/notifications/unsubscribe"
)

var (
	// ErrUnauthorized is returned when the origin rejects the session.
	// The session has already been torn down when it is returned.
	ErrUnauthorized = errors.New("session rejected")
	// ErrOffline wraps network-level failures where no response was
	// received at all.
	ErrOffline = errors.New("network unreachable")
)

type Config struct {
	// BaseURL of the API, e.g. "https://api.ia-sport.app/api".
	BaseURL string
	// Store for session state and the offline snapshot.
	Store kvstore.Store
	// HTTPClient to use. A client with a 30 second timeout is used
	// if nil.
	HTTPClient *http.Client
	// Logger to use. A console logger is used if nil.
	Logger *zerolog.Logger
	// OnUnauthorized is invoked after a rejected session has been torn
	// down; the app uses it to route to the login entry point.
	OnUnauthorized func()
}

type Client struct {
	baseURL        string
	store          kvstore.Store
	http           *http.Client
	log            zerolog.Logger
	onUnauthorized func()
}

func New(config Config) *Client {
	var logger zerolog.Logger
	if config.Logger == nil {
		logger = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		logger = *config.Logger
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:        strings.TrimSuffix(config.BaseURL, "/"),
		store:          config.Store,
		http:           httpClient,
		log:            logger.With().Str("component", "client").Logger(),
		onUnauthorized: config.OnUnauthorized,
	}
}

// do issues a request with the session token attached. A 401 on a
// non-auth route tears down the session before returning
// ErrUnauthorized; a network-level failure returns an error wrapping
// ErrOffline.
func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader *bytes.Reader
	if body != nil {
		bts, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(bts)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token, found := c.Token(); found {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOffline, err)
	}
	if res.StatusCode == http.StatusUnauthorized && !strings.HasPrefix(path, "/auth/") {
		res.Body.Close()
		c.log.Debug().Str("path", path).Msg("Session rejected, tearing down")
		c.teardownSession()
		return nil, ErrUnauthorized
	}
	return res, nil
}

func ok(res *http.Response) bool {
	return res.StatusCode >= 200 && res.StatusCode < 300
}

// Predictions fetches the predictions listing. On a network-level
// failure the stored snapshot is returned instead, tagged as cached.
func (c *Client) Predictions(ctx context.Context) (predictions.Listing, error) {
	return c.fetchListing(ctx, PathPredictions)
}

// PredictionsByDate fetches the listing for a specific date
// (YYYY-MM-DD), with the same offline fallback as Predictions.
func (c *Client) PredictionsByDate(ctx context.Context, date string) (predictions.Listing, error) {
	return c.fetchListing(ctx, PathPredictions+"?date="+url.QueryEscape(date))
}

func (c *Client) fetchListing(ctx context.Context, path string) (predictions.Listing, error) {
	var listing predictions.Listing
	res, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		if errors.Is(err, ErrOffline) {
			if snapshot, _, found := c.Snapshot(); found {
				c.log.Debug().Str("path", path).Msg("Serving predictions from offline snapshot")
				snapshot.Cached = true
				return snapshot, nil
			}
		}
		return listing, err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(&listing); err != nil {
		return listing, fmt.Errorf("decoding predictions listing: %w", err)
	}
	// non-ok responses pass through for the caller to interpret and
	// are never written to the snapshot
	if ok(res) && listing.Success {
		c.saveSnapshot(listing)
	}
	return listing, nil
}

// saveSnapshot overwrites the fallback snapshot wholesale and stamps
// the last sync time. Last write wins; there is no merging, so a read
// after being offline can regress previously unlocked fields.
func (c *Client) saveSnapshot(listing predictions.Listing) {
	listing.Cached = false
	bts, err := json.Marshal(listing)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not marshal snapshot")
		return
	}
	if err := c.store.Put(kvstore.KeyCachedPredictions, bts); err != nil {
		c.log.Error().Err(err).Msg("Could not store snapshot")
		return
	}
	stamp := time.Now().UTC().Format(time.RFC3339)
	if err := c.store.Put(kvstore.KeyLastSync, []byte(stamp)); err != nil {
		c.log.Error().Err(err).Msg("Could not store last sync time")
	}
}

// Snapshot returns the stored fallback listing and the last sync time.
func (c *Client) Snapshot() (predictions.Listing, time.Time, bool) {
	var listing predictions.Listing
	bts, found, err := c.store.Get(kvstore.KeyCachedPredictions)
	if err != nil {
		c.log.Error().Err(err).Msg("Could not read snapshot")
		return listing, time.Time{}, false
	}
	if !found {
		return listing, time.Time{}, false
	}
	if err := json.Unmarshal(bts, &listing); err != nil {
		c.log.Error().Err(err).Msg("Could not unmarshal snapshot")
		return listing, time.Time{}, false
	}
	return listing, c.lastSync(), true
}

// LastSync returns the time of the last successful predictions read.
func (c *Client) LastSync() (time.Time, bool) {
	t := c.lastSync()
	return t, !t.IsZero()
}

func (c *Client) lastSync() time.Time {
	bts, found, err := c.store.Get(kvstore.KeyLastSync)
	if err != nil || !found {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, string(bts))
	if err != nil {
		return time.Time{}
	}
	return t
}

// SubscriptionKeys are the browser-issued encryption keys of a push
// subscription.
type SubscriptionKeys struct {
	P256dh string `json:"p256dh"`
	Auth   string `json:"auth"`
}

// Subscription is the push subscription descriptor registered with the
// remote push service.
type Subscription struct {
	Endpoint string           `json:"endpoint"`
	Keys     SubscriptionKeys `json:"keys"`
}

// SubscribePush registers the subscription with the origin and records
// the subscribed flag.
func (c *Client) SubscribePush(ctx context.Context, sub Subscription, deviceType string) error {
	res, err := c.do(ctx, http.MethodPost, PathSubscribe, map[string]any{
		"subscription": sub,
		"deviceType":   deviceType,
	})
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if !ok(res) {
		return fmt.Errorf("subscribe failed: %s", res.Status)
	}
	return c.store.Put(kvstore.KeyPushSubscribed, []byte("true"))
}

// UnsubscribePush deregisters the subscription. The local flag is
// cleared even when the origin call fails.
func (c *Client) UnsubscribePush(ctx context.Context) error {
	defer c.store.Delete(kvstore.KeyPushSubscribed)
	res, err := c.do(ctx, http.MethodPost, PathUnsubscribe, nil)
	if err != nil {
		return err
	}
	res.Body.Close()
	if !ok(res) {
		return fmt.Errorf("unsubscribe failed: %s", res.Status)
	}
	return nil
}

// PushSubscribed reports whether a push subscription is recorded.
func (c *Client) PushSubscribed() bool {
	bts, found, err := c.store.Get(kvstore.KeyPushSubscribed)
	return err == nil && found && string(bts) == "true"
}
