// Package push translates inbound push payloads into user notifications
// and routes notification clicks back into navigation.
package push

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ia-sport/offline-cache/pkg/lifetime"
)

// Notification defaults used when a payload does not provide them.
const (
	DefaultTitle = "IA Sport"
	DefaultBody  = "Nueva predicción caliente disponible 🔥"
	DefaultIcon  = "/logo192.png"
)

// Notification click actions.
const (
	ActionView  = "view"
	ActionClose = "close"
)

// Payload is the push payload contract. All fields are optional; a
// payload that is not valid JSON degrades to a text-only body with the
// fixed default title and icons.
type Payload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Icon  string `json:"icon"`
	Badge string `json:"badge"`
	URL   string `json:"url"`
}

// ParsePayload decodes a raw push payload, falling back to treating it
// as plain text on a parse failure.
func ParsePayload(data []byte) Payload {
	payload := Payload{
		Title: DefaultTitle,
		Body:  DefaultBody,
		Icon:  DefaultIcon,
		Badge: DefaultIcon,
	}
	if len(data) == 0 {
		return payload
	}
	var decoded Payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		payload.Body = string(data)
		return payload
	}
	if decoded.Title == "" {
		decoded.Title = DefaultTitle
	}
	if decoded.Icon == "" {
		decoded.Icon = DefaultIcon
	}
	if decoded.Badge == "" {
		decoded.Badge = DefaultIcon
	}
	return decoded
}

// Data travels with a shown notification and comes back on click.
type Data struct {
	ArrivedAt time.Time `json:"dateOfArrival"`
	ID        string    `json:"id"`
	URL       string    `json:"url"`
}

type Action struct {
	Action string `json:"action"`
	Title  string `json:"title"`
	Icon   string `json:"icon"`
}

// Options are the notification options handed to the Notifier.
type Options struct {
	Body    string   `json:"body"`
	Icon    string   `json:"icon"`
	Badge   string   `json:"badge"`
	Vibrate []int    `json:"vibrate"`
	Data    Data     `json:"data"`
	Actions []Action `json:"actions"`
}

// Notifier renders user notifications.
type Notifier interface {
	Show(ctx context.Context, title string, opts Options) error
	Close(ctx context.Context, id string) error
}

// WindowClient is an open window under the worker's control.
type WindowClient interface {
	URL() string
	Focus(ctx context.Context) error
}

// Clients enumerates and opens window clients.
type Clients interface {
	MatchAll(ctx context.Context) ([]WindowClient, error)
	OpenWindow(ctx context.Context, url string) (WindowClient, error)
}

// Bridge wires push payloads to notifications and clicks to windows.
type Bridge struct {
	notifier Notifier
	clients  Clients
	log      zerolog.Logger
}

func NewBridge(notifier Notifier, clients Clients, logger *zerolog.Logger) *Bridge {
	var log zerolog.Logger
	if logger == nil {
		log = zerolog.New(zerolog.NewConsoleWriter())
	} else {
		log = *logger
	}
	return &Bridge{
		notifier: notifier,
		clients:  clients,
		log:      log,
	}
}

// OnPush handles an inbound push. Showing the notification is
// registered on the event so the worker stays alive until it is
// visible.
func (b *Bridge) OnPush(ctx context.Context, evt *lifetime.Event, data []byte) {
	payload := ParsePayload(data)
	target := payload.URL
	if target == "" {
		target = "/"
	}
	opts := Options{
		Body:    payload.Body,
		Icon:    payload.Icon,
		Badge:   payload.Badge,
		Vibrate: []int{200, 100, 200},
		Data: Data{
			ArrivedAt: time.Now(),
			ID:        uuid.NewString(),
			URL:       target,
		},
		Actions: []Action{
			{Action: ActionView, Title: "Ver predicción", Icon: "/icons/view.png"},
			{Action: ActionClose, Title: "Cerrar", Icon: "/icons/close.png"},
		},
	}
	b.log.Debug().Str("title", payload.Title).Str("url", target).Msg("Push received")
	evt.WaitUntil(func() {
		if err := b.notifier.Show(ctx, payload.Title, opts); err != nil {
			b.log.Error().Err(err).Msg("Could not show notification")
		}
	})
}

// OnNotificationClick closes the notification and, unless the close
// action was clicked, focuses the window already showing the target URL
// or opens a new one. The focus-or-open work is registered on the
// event.
func (b *Bridge) OnNotificationClick(ctx context.Context, evt *lifetime.Event, action string, data Data) {
	b.log.Debug().Str("action", action).Msg("Notification click")
	if err := b.notifier.Close(ctx, data.ID); err != nil {
		b.log.Error().Err(err).Msg("Could not close notification")
	}
	if action == ActionClose {
		return
	}
	target := data.URL
	if target == "" {
		target = "/"
	}
	evt.WaitUntil(func() {
		b.focusOrOpen(ctx, target)
	})
}

func (b *Bridge) focusOrOpen(ctx context.Context, target string) {
	windows, err := b.clients.MatchAll(ctx)
	if err != nil {
		b.log.Error().Err(err).Msg("Could not enumerate window clients")
		return
	}
	for _, window := range windows {
		if window.URL() == target {
			if err := window.Focus(ctx); err == nil {
				return
			}
			b.log.Debug().Str("url", target).Msg("Could not focus window, opening a new one")
			break
		}
	}
	if _, err := b.clients.OpenWindow(ctx, target); err != nil {
		b.log.Error().Err(err).Str("url", target).Msg("Could not open window")
	}
}
