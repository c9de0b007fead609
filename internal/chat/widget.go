// Package chat implements the finance chat widget: an ordered, append-only
// message list fed by a remote chat endpoint.
package chat

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/ashureev/finboard/internal/domain"
	"github.com/ashureev/finboard/internal/metrics"
)

var (
	// ErrEmptyPrompt is returned for empty or whitespace-only input.
	ErrEmptyPrompt = errors.New("prompt is empty")
	// ErrBusy is returned when a send is attempted while another is in flight.
	ErrBusy = errors.New("a message is already being sent")
)

// Asker sends one prompt to the chat endpoint.
type Asker interface {
	Ask(ctx context.Context, prompt string) (Reply, error)
}

// Recorder persists finished exchanges for operators.
type Recorder interface {
	RecordExchange(ctx context.Context, e domain.Exchange) error
}

// Snapshot is a copy of the widget state.
type Snapshot struct {
	Messages []domain.ChatMessage `json:"messages"`
	Loading  bool                 `json:"loading"`
	Error    string               `json:"error,omitempty"`
}

// Widget holds the messages of one workspace. Sends are serialized: while one
// is in flight, further sends fail with ErrBusy, so every accepted send adds a
// user message immediately followed by its bot message.
type Widget struct {
	id       string
	asker    Asker
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time

	mu       sync.Mutex
	messages []domain.ChatMessage
	loading  bool
	lastErr  string
	subs     map[int]chan Snapshot
	nextSub  int
}

// Option customizes a Widget.
type Option func(*Widget)

// WithRecorder attaches a transcript recorder.
func WithRecorder(r Recorder) Option {
	return func(w *Widget) { w.recorder = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Widget) { w.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Widget) { w.now = now }
}

// NewWidget creates an empty widget for workspace id.
func NewWidget(id string, asker Asker, opts ...Option) *Widget {
	w := &Widget{
		id:     id,
		asker:  asker,
		logger: slog.Default(),
		now:    time.Now,
		subs:   make(map[int]chan Snapshot),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Pending is an accepted send whose reply has not arrived yet.
type Pending struct {
	w       *Widget
	prompt  string
	started time.Time
	once    sync.Once
	reply   domain.ChatMessage
}

// Submit validates the prompt, appends the user message and marks the widget
// loading. The request itself is issued by Pending.Await.
func (w *Widget) Submit(prompt string) (*Pending, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	w.mu.Lock()
	if w.loading {
		w.mu.Unlock()
		return nil, ErrBusy
	}
	started := w.now()
	w.messages = append(w.messages, domain.ChatMessage{Text: prompt, SentAt: started})
	w.loading = true
	w.publishLocked()
	w.mu.Unlock()

	return &Pending{w: w, prompt: prompt, started: started}, nil
}

// Await issues the request and appends the bot message. It is safe to call
// more than once; only the first call talks to the endpoint.
func (p *Pending) Await(ctx context.Context) domain.ChatMessage {
	p.once.Do(func() {
		p.reply = p.w.complete(ctx, p.prompt, p.started)
	})
	return p.reply
}

// Send is Submit followed by Await.
func (w *Widget) Send(ctx context.Context, prompt string) (domain.ChatMessage, error) {
	p, err := w.Submit(prompt)
	if err != nil {
		return domain.ChatMessage{}, err
	}
	return p.Await(ctx), nil
}

func (w *Widget) complete(ctx context.Context, prompt string, started time.Time) domain.ChatMessage {
	reply, err := w.asker.Ask(ctx, prompt)
	finished := w.now()
	metrics.ChatLatency.Observe(finished.Sub(started).Seconds())

	exchange := domain.Exchange{
		WorkspaceID: w.id,
		Prompt:      prompt,
		StartedAt:   started,
		FinishedAt:  finished,
	}

	bot := domain.ChatMessage{IsBot: true, SentAt: finished}
	switch {
	case err != nil:
		metrics.ChatExchanges.WithLabelValues("failed").Inc()
		w.logger.Warn("Chat request failed", "workspace_id", w.id, "error", err)
		bot.Text = domain.ErrorPlaceholder
		exchange.Failed = true
		exchange.Error = err.Error()
	case strings.TrimSpace(reply.Text()) == "":
		metrics.ChatExchanges.WithLabelValues("empty").Inc()
		w.logger.Warn("Chat reply was empty", "workspace_id", w.id)
		bot.Text = domain.ErrorPlaceholder
	default:
		metrics.ChatExchanges.WithLabelValues("ok").Inc()
		bot.Text = reply.Text()
	}
	exchange.Reply = bot.Text

	w.mu.Lock()
	w.messages = append(w.messages, bot)
	if err != nil {
		w.lastErr = errorText(err)
	}
	w.loading = false
	w.publishLocked()
	w.mu.Unlock()

	if w.recorder != nil {
		if recErr := w.recorder.RecordExchange(context.WithoutCancel(ctx), exchange); recErr != nil {
			w.logger.Warn("Failed to record chat exchange", "workspace_id", w.id, "error", recErr)
		}
	}
	return bot
}

// Snapshot returns a copy of the current state.
func (w *Widget) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.snapshotLocked()
}

// Subscribe returns a channel receiving the latest snapshot after every change
// and a cancel func. Slow readers only ever miss intermediate states.
func (w *Widget) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	w.mu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, id)
			w.mu.Unlock()
			close(ch)
		})
	}
}

func (w *Widget) snapshotLocked() Snapshot {
	msgs := make([]domain.ChatMessage, len(w.messages))
	copy(msgs, w.messages)
	return Snapshot{Messages: msgs, Loading: w.loading, Error: w.lastErr}
}

func (w *Widget) publishLocked() {
	if len(w.subs) == 0 {
		return
	}
	snap := w.snapshotLocked()
	for _, ch := range w.subs {
		select {
		case ch <- snap:
		default:
			// Replace the stale snapshot nobody has read yet.
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

// errorText is the message kept for display. Status details of a failed
// request stay in the log and the transcript.
func errorText(err error) string {
	if errors.Is(err, ErrRequestFailed) {
		return ErrRequestFailed.Error()
	}
	return err.Error()
}
