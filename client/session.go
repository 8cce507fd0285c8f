package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ia-sport/offline-cache/kvstore"
)

// User is the locally stored user record.
type User struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	IsPremium     bool   `json:"isPremium"`
	FreeViewsLeft int    `json:"freeViewsLeft"`
}

// SaveSession stores the auth token and user record.
func (c *Client) SaveSession(token string, user User) error {
	if err := c.store.Put(kvstore.KeyAuthToken, []byte(token)); err != nil {
		return err
	}
	bts, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.store.Put(kvstore.KeyUserData, bts)
}

// Token returns the stored auth token, if any.
func (c *Client) Token() (string, bool) {
	bts, found, err := c.store.Get(kvstore.KeyAuthToken)
	if err != nil || !found || len(bts) == 0 {
		return "", false
	}
	return string(bts), true
}

// CurrentUser returns the stored user record, if any.
func (c *Client) CurrentUser() (User, bool) {
	var user User
	bts, found, err := c.store.Get(kvstore.KeyUserData)
	if err != nil || !found {
		return user, false
	}
	if err := json.Unmarshal(bts, &user); err != nil {
		c.log.Error().Err(err).Msg("Could not unmarshal user record")
		return user, false
	}
	return user, true
}

// Authenticated reports whether both a token and a user record exist.
func (c *Client) Authenticated() bool {
	_, hasToken := c.Token()
	_, hasUser := c.CurrentUser()
	return hasToken && hasUser
}

// UpdateUser applies an in-place update to the stored user record,
// e.g. refreshing the free views counter after a listing read.
func (c *Client) UpdateUser(update func(*User)) error {
	user, _ := c.CurrentUser()
	update(&user)
	bts, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return c.store.Put(kvstore.KeyUserData, bts)
}

// SessionExpiresWithin reports whether the stored token is a JWT that
// expires within the given duration. The token is inspected without
// signature verification; verifying it is the origin's job.
func (c *Client) SessionExpiresWithin(d time.Duration) bool {
	token, found := c.Token()
	if !found {
		return false
	}
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < d
}

// teardownSession clears the token and user record and routes the app
// to the login entry point.
func (c *Client) teardownSession() {
	c.store.Delete(kvstore.KeyAuthToken)
	c.store.Delete(kvstore.KeyUserData)
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// Logout clears the whole local session: auth state, offline snapshot,
// preferences and the push subscription (best effort).
func (c *Client) Logout(ctx context.Context) {
	if c.PushSubscribed() {
		if err := c.UnsubscribePush(ctx); err != nil {
			c.log.Debug().Err(err).Msg("Could not unsubscribe push on logout")
		}
	}
	c.store.Delete(kvstore.KeyAuthToken)
	c.store.Delete(kvstore.KeyUserData)
	c.store.Delete(kvstore.KeyCachedPredictions)
	c.store.Delete(kvstore.KeyLastSync)
	c.store.Delete(kvstore.KeyPreferences)
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}
