// Package chat orchestrates presence changes and the message pipeline: every inbound
// event is resolved against the presence registry, persisted, rendered and fanned out.
package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MarcoPoloResearchLab/chatroom/internal/logging"
	"github.com/MarcoPoloResearchLab/chatroom/internal/markup"
	"github.com/MarcoPoloResearchLab/chatroom/internal/messages"
	"github.com/MarcoPoloResearchLab/chatroom/internal/metrics"
	"github.com/MarcoPoloResearchLab/chatroom/internal/presence"
	"go.uber.org/zap"
)

const (
	// UnknownAuthor labels messages from connections that are no longer registered.
	UnknownAuthor = "unknown user"

	defaultHistoryLimit   = 50
	defaultPersistTimeout = 5 * time.Second

	// Notices carried by unicast error events.
	NoticeSendFailed    = "message send failed"
	NoticeHistoryFailed = "history unavailable"
	NoticeBadRequest    = "unsupported request"

	kindText  = "text"
	kindImage = "image"
)

var (
	errMissingPresence  = errors.New("presence registry dependency required")
	errMissingStore     = errors.New("message store dependency required")
	errMissingRenderer  = errors.New("renderer dependency required")
	errMissingTransport = errors.New("transport dependency required")

	// ErrPersistFailed reports that a message was not stored and therefore not broadcast.
	ErrPersistFailed = errors.New("chat: message not persisted")
	// ErrUnknownEvent reports an inbound event name with no handler.
	ErrUnknownEvent = errors.New("chat: unknown event")
	// ErrMalformedPayload reports an inbound payload that could not be decoded.
	ErrMalformedPayload = errors.New("chat: malformed payload")
	// ErrRateLimited reports a frame discarded because its connection exceeded the rate limit.
	ErrRateLimited = errors.New("chat: rate limited")
)

// Presence is the registry surface used by the pipeline.
type Presence interface {
	Connect(id presence.ConnectionID) string
	Disconnect(id presence.ConnectionID) (string, bool)
	Lookup(id presence.ConnectionID) (string, bool)
	Roster() []string
	Len() int
}

// MessageStore appends messages and returns recent ones newest first.
type MessageStore interface {
	Insert(ctx context.Context, author, rawText string) (messages.Record, error)
	QueryRecent(ctx context.Context, limit int) ([]messages.Record, error)
}

// Renderer converts raw message text to safe markup and never fails.
type Renderer interface {
	Render(raw string) string
}

// Transport delivers events to live connections. Broadcast is best effort per
// connection and never reports partial failure.
type Transport interface {
	Broadcast(event Event)
	Send(id presence.ConnectionID, event Event) error
}

// Dependencies wires the pipeline to its collaborators; zero limits fall back to defaults.
type Dependencies struct {
	Presence       Presence
	Store          MessageStore
	Renderer       Renderer
	Transport      Transport
	Logger         *zap.Logger
	HistoryLimit   int
	PersistTimeout time.Duration
}

type handlerFunc func(p *Pipeline, ctx context.Context, id presence.ConnectionID, data json.RawMessage) error

var inboundHandlers = map[string]handlerFunc{
	InboundMessage:      handleTextMessage,
	InboundImageMessage: handleImageMessage,
	InboundHistory:      handleHistoryRequest,
}

// Pipeline holds no state of its own beyond its collaborators and the lock that
// orders roster broadcasts.
type Pipeline struct {
	rosterMu       sync.Mutex
	presence       Presence
	store          MessageStore
	renderer       Renderer
	transport      Transport
	logger         *zap.Logger
	historyLimit   int
	persistTimeout time.Duration
}

// NewPipeline validates dependencies and constructs a Pipeline.
func NewPipeline(deps Dependencies) (*Pipeline, error) {
	if deps.Presence == nil {
		return nil, errMissingPresence
	}
	if deps.Store == nil {
		return nil, errMissingStore
	}
	if deps.Renderer == nil {
		return nil, errMissingRenderer
	}
	if deps.Transport == nil {
		return nil, errMissingTransport
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	historyLimit := deps.HistoryLimit
	if historyLimit <= 0 {
		historyLimit = defaultHistoryLimit
	}
	persistTimeout := deps.PersistTimeout
	if persistTimeout <= 0 {
		persistTimeout = defaultPersistTimeout
	}

	return &Pipeline{
		presence:       deps.Presence,
		store:          deps.Store,
		renderer:       deps.Renderer,
		transport:      deps.Transport,
		logger:         logger,
		historyLimit:   historyLimit,
		persistTimeout: persistTimeout,
	}, nil
}

// HandleConnect assigns a display name to the connection and announces it. The
// connection must already be reachable through the transport.
func (p *Pipeline) HandleConnect(id presence.ConnectionID) string {
	name := p.presence.Connect(id)
	p.logger.Info("participant joined", zap.String("connection_id", id.String()), zap.String("username", name))

	p.sendTo(id, Event{Name: EventSession, Data: UserPayload{Username: name}})
	p.transport.Broadcast(Event{Name: EventUserJoined, Data: UserPayload{Username: name}})
	p.broadcastRoster()
	return name
}

// HandleDisconnect releases the connection's name. Repeated calls are no-ops.
func (p *Pipeline) HandleDisconnect(id presence.ConnectionID) {
	name, ok := p.presence.Disconnect(id)
	if !ok {
		p.logger.Debug("disconnect for unregistered connection", zap.String("connection_id", id.String()))
		return
	}
	p.logger.Info("participant left", zap.String("connection_id", id.String()), zap.String("username", name))

	p.transport.Broadcast(Event{Name: EventUserLeft, Data: UserPayload{Username: name}})
	p.broadcastRoster()
}

// Dispatch routes an inbound client event to its handler.
func (p *Pipeline) Dispatch(ctx context.Context, id presence.ConnectionID, inbound Inbound) error {
	handler, ok := inboundHandlers[inbound.Name]
	if !ok {
		p.sendTo(id, errorEvent(NoticeBadRequest))
		return fmt.Errorf("%w: %q", ErrUnknownEvent, inbound.Name)
	}
	return handler(p, ctx, id, inbound.Data)
}

// HandleMessage persists raw text from the connection and broadcasts its rendering.
func (p *Pipeline) HandleMessage(ctx context.Context, id presence.ConnectionID, rawText string) error {
	return p.publish(ctx, id, rawText, kindText)
}

// HandleImageMessage publishes an image reference as an embed.
func (p *Pipeline) HandleImageMessage(ctx context.Context, id presence.ConnectionID, url string) error {
	return p.publish(ctx, id, markup.ImageEmbed(url), kindImage)
}

// History returns the most recent messages, oldest first, rendered for display.
func (p *Pipeline) History(ctx context.Context) ([]MessagePayload, error) {
	queryCtx, cancel := context.WithTimeout(ctx, p.persistTimeout)
	defer cancel()

	records, err := p.store.QueryRecent(queryCtx, p.historyLimit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}

	history := make([]MessagePayload, len(records))
	for index, record := range records {
		history[len(records)-1-index] = MessagePayload{
			Username:  record.Author,
			Message:   p.renderer.Render(record.RawText),
			Timestamp: record.Timestamp(),
		}
	}
	return history, nil
}

// Reject tells the connection that one of its frames was discarded before dispatch.
func (p *Pipeline) Reject(id presence.ConnectionID, reason error) {
	notice := NoticeBadRequest
	if errors.Is(reason, ErrRateLimited) {
		notice = NoticeSendFailed
	}
	p.logger.Debug("inbound frame rejected", zap.String("connection_id", id.String()), zap.Error(reason))
	p.sendTo(id, errorEvent(notice))
}

// HandleHistoryRequest replies to the requesting connection only.
func (p *Pipeline) HandleHistoryRequest(ctx context.Context, id presence.ConnectionID) error {
	history, err := p.History(ctx)
	if err != nil {
		p.logger.Error("history query failed", zap.String("connection_id", id.String()), zap.Error(err))
		p.sendTo(id, errorEvent(NoticeHistoryFailed))
		return err
	}
	p.sendTo(id, Event{Name: EventHistory, Data: HistoryPayload{Messages: history}})
	return nil
}

func (p *Pipeline) publish(ctx context.Context, id presence.ConnectionID, rawText, kind string) error {
	author, ok := p.presence.Lookup(id)
	if !ok {
		author = UnknownAuthor
	}
	rendered := p.renderer.Render(rawText)

	persistCtx, cancel := context.WithTimeout(ctx, p.persistTimeout)
	started := time.Now()
	record, err := p.store.Insert(persistCtx, author, rawText)
	metrics.PersistDuration.Observe(time.Since(started).Seconds())
	cancel()
	if err != nil {
		metrics.MessageFailures.Inc()
		p.logger.Error("message persistence failed",
			zap.String("connection_id", id.String()),
			zap.String("username", author),
			zap.Error(err))
		p.sendTo(id, errorEvent(NoticeSendFailed))
		return fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}

	metrics.MessagesPersisted.WithLabelValues(kind).Inc()
	p.transport.Broadcast(Event{Name: EventMessage, Data: MessagePayload{
		Username:  author,
		Message:   rendered,
		Timestamp: record.Timestamp(),
	}})
	p.logger.Info("message sent",
		zap.Int64("message_id", record.ID),
		zap.String("username", author),
		zap.String("kind", kind),
		logging.PreviewField("preview", rawText))
	return nil
}

// broadcastRoster snapshots and enqueues under one lock, so the last roster any
// connection receives matches the registry once churn settles.
func (p *Pipeline) broadcastRoster() {
	p.rosterMu.Lock()
	defer p.rosterMu.Unlock()
	roster := p.presence.Roster()
	metrics.ConnectedParticipants.Set(float64(len(roster)))
	p.transport.Broadcast(Event{Name: EventRosterUpdated, Data: RosterPayload{Users: roster}})
}

func (p *Pipeline) sendTo(id presence.ConnectionID, event Event) {
	if err := p.transport.Send(id, event); err != nil {
		p.logger.Debug("unicast delivery failed",
			zap.String("connection_id", id.String()),
			zap.String("event", event.Name),
			zap.Error(err))
	}
}

func errorEvent(notice string) Event {
	return Event{Name: EventError, Data: ErrorPayload{Message: notice}}
}

func handleTextMessage(p *Pipeline, ctx context.Context, id presence.ConnectionID, data json.RawMessage) error {
	var request textMessageRequest
	if err := decodePayload(data, &request); err != nil {
		p.sendTo(id, errorEvent(NoticeSendFailed))
		return err
	}
	return p.HandleMessage(ctx, id, request.Message)
}

func handleImageMessage(p *Pipeline, ctx context.Context, id presence.ConnectionID, data json.RawMessage) error {
	var request imageMessageRequest
	if err := decodePayload(data, &request); err != nil {
		p.sendTo(id, errorEvent(NoticeSendFailed))
		return err
	}
	return p.HandleImageMessage(ctx, id, request.URL)
}

func handleHistoryRequest(p *Pipeline, ctx context.Context, id presence.ConnectionID, _ json.RawMessage) error {
	return p.HandleHistoryRequest(ctx, id)
}

func decodePayload(data json.RawMessage, target any) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
