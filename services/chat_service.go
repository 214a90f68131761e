//go:generate go run go.uber.org/mock/mockgen -source=chat_service.go -destination=../mocks/mock_chat_service.go -package=mocks
package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	apperrors "chatwire/errors"

	"chatwire/contract"
	"chatwire/domain"
	"chatwire/moderation"
	"chatwire/observability"
	"chatwire/repositories"
	"chatwire/search"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// IChatService is the behavior behind every inbound connection event.
// Handlers run concurrently, one goroutine per event; every method must
// therefore be safe under concurrent invocation. Failures are returned
// for logging but never crash the connection (fire-and-forget contract:
// the client receives no acknowledgment either way).
type IChatService interface {
	Connect(ctx context.Context, sessionID string, user repositories.User, sink contract.EventSink)
	Disconnect(ctx context.Context, sessionID, userID string)
	OpenThread(ctx context.Context, sessionID, requesterID, targetID string) error
	SendMessage(ctx context.Context, cmd domain.SendMessageCommand) error
	ListThreads(ctx context.Context, sessionID, requesterID string) error
	MarkSeen(ctx context.Context, viewerID, otherID string) error
	Search(ctx context.Context, sessionID string, cmd domain.SearchCommand) error
}

type ChatService struct {
	log           *slog.Logger
	registry      contract.IRegistry
	presence      contract.IPresenceTracker
	conversations repositories.IConversationRepository
	users         repositories.IUserRepository
	moderator     *moderation.Moderator
	index         search.IMessageIndex
	monitor       *observability.Monitor
	searchLimit   int
}

// NewChatService wires the event router. moderator and index may be nil
// when the corresponding features are disabled by configuration.
func NewChatService(log *slog.Logger, registry contract.IRegistry,
	presence contract.IPresenceTracker, conversations repositories.IConversationRepository,
	users repositories.IUserRepository, moderator *moderation.Moderator,
	index search.IMessageIndex, monitor *observability.Monitor, searchLimit int) *ChatService {
	return &ChatService{
		log:           log,
		registry:      registry,
		presence:      presence,
		conversations: conversations,
		users:         users,
		moderator:     moderator,
		index:         index,
		monitor:       monitor,
		searchLimit:   searchLimit,
	}
}

// Connect joins the session to the user's room. When this is the user's
// first live session, the updated presence set goes out to every
// connected room; otherwise only the new session receives the current
// snapshot, since nothing changed for anyone else.
func (s *ChatService) Connect(ctx context.Context, sessionID string, user repositories.User, sink contract.EventSink) {
	s.registry.Subscribe(sessionID, user.ID, sink)
	s.monitor.ConnectionOpened()

	cameOnline := s.presence.Connect(user.ID)
	snapshot := contract.OutboundEvent{Name: contract.EventOnlineUsers, Payload: s.presence.Online()}
	if cameOnline {
		s.broadcastAll(ctx, snapshot)
		return
	}
	s.deliver(ctx, sink, snapshot)
}

// Disconnect tears the session down. Presence only drops, and the set
// is only re-broadcast, when the user's last session ends.
func (s *ChatService) Disconnect(ctx context.Context, sessionID, userID string) {
	s.registry.Unsubscribe(sessionID, userID)
	s.monitor.ConnectionClosed()

	if s.presence.Disconnect(userID) {
		s.broadcastAll(ctx, contract.OutboundEvent{
			Name:    contract.EventOnlineUsers,
			Payload: s.presence.Online(),
		})
	}
}

// OpenThread answers a message-page event: the target's profile with
// their live presence flag, then the full thread, both to the asking
// session only. An unknown target yields a partial profile and an empty
// thread rather than an error.
func (s *ChatService) OpenThread(ctx context.Context, sessionID, requesterID, targetID string) error {
	sink, ok := s.registry.SinkForSession(sessionID)
	if !ok {
		return nil
	}

	profile := contract.ProfilePayload{ID: targetID}
	target, err := s.users.GetUserByID(targetID)
	switch {
	case err == nil:
		profile = toProfile(target.Profile(), s.presence.IsOnline(targetID))
	case errors.Is(err, apperrors.ErrUserNotFound):
		s.log.Warn("open-thread target does not exist", "target", targetID)
	default:
		return err
	}
	s.deliver(ctx, sink, contract.OutboundEvent{Name: contract.EventMessageUser, Payload: profile})

	messages := make([]contract.MessagePayload, 0)
	if pair, err := domain.NewPair(requesterID, targetID); err == nil {
		thread, err := s.conversations.LoadThread(pair)
		if err != nil {
			return err
		}
		messages = toMessagePayloads(thread)
	}
	s.deliver(ctx, sink, contract.OutboundEvent{Name: contract.EventMessages, Payload: messages})
	return nil
}

// SendMessage persists one message and re-sends full current state to
// both participants: the refreshed thread and both sidebars. Recomputed
// state instead of deltas keeps every open session of either user
// consistent without client-side merge logic.
func (s *ChatService) SendMessage(ctx context.Context, cmd domain.SendMessageCommand) error {
	createdAt := cmd.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	msg := domain.Message{
		ID:        uuid.New(),
		AuthorID:  cmd.SenderID,
		Text:      cmd.Text,
		ImageURL:  cmd.ImageURL,
		VideoURL:  cmd.VideoURL,
		CreatedAt: createdAt,
	}
	if !msg.HasContent() {
		return apperrors.ErrEmptyMessage
	}
	if s.moderator != nil && msg.Text != "" {
		msg.Text = s.moderator.Censor(msg.Text)
	}

	conv, err := s.conversations.FindOrCreate(cmd.SenderID, cmd.ReceiverID)
	if err != nil {
		return err
	}
	if err := s.conversations.AppendMessage(conv.Pair, msg); err != nil {
		return err
	}
	s.monitor.MessageSent()

	// Indexing is best-effort: a search outage must not block delivery.
	if s.index != nil {
		if err := s.index.Index(conv.Pair.Key(), msg); err != nil {
			s.log.Warn("failed to index message", "pair", conv.Pair.Key(), "error", err)
		}
	}

	thread, err := s.conversations.LoadThread(conv.Pair)
	if err != nil {
		return err
	}
	threadEvent := contract.OutboundEvent{
		Name:    contract.EventMessages,
		Payload: toMessagePayloads(thread),
	}
	s.broadcastUser(ctx, cmd.SenderID, threadEvent)
	s.broadcastUser(ctx, cmd.ReceiverID, threadEvent)

	if err := s.pushSidebar(ctx, cmd.SenderID); err != nil {
		return err
	}
	return s.pushSidebar(ctx, cmd.ReceiverID)
}

// ListThreads answers a sidebar event, to the asking session only.
func (s *ChatService) ListThreads(ctx context.Context, sessionID, requesterID string) error {
	sink, ok := s.registry.SinkForSession(sessionID)
	if !ok {
		return nil
	}
	summaries, err := s.buildSummaries(requesterID)
	if err != nil {
		return err
	}
	s.deliver(ctx, sink, contract.OutboundEvent{Name: contract.EventConversation, Payload: summaries})
	return nil
}

// MarkSeen acknowledges every unseen message the other participant
// wrote in the shared thread, then refreshes both sidebars so unseen
// badges stay consistent on every open session of either user.
func (s *ChatService) MarkSeen(ctx context.Context, viewerID, otherID string) error {
	if _, err := s.conversations.MarkSeen(viewerID, otherID); err != nil {
		return err
	}
	if err := s.pushSidebar(ctx, viewerID); err != nil {
		return err
	}
	return s.pushSidebar(ctx, otherID)
}

// Search runs a full-text query inside one thread and returns matching
// messages, in thread order, to the asking session only.
func (s *ChatService) Search(ctx context.Context, sessionID string, cmd domain.SearchCommand) error {
	sink, ok := s.registry.SinkForSession(sessionID)
	if !ok {
		return nil
	}

	matches := make([]contract.MessagePayload, 0)
	defer func() {
		s.deliver(ctx, sink, contract.OutboundEvent{Name: contract.EventSearchResult, Payload: matches})
	}()

	if s.index == nil {
		return nil
	}
	pair, err := domain.NewPair(cmd.RequesterID, cmd.OtherID)
	if err != nil {
		return err
	}
	ids, err := s.index.Search(ctx, pair.Key(), cmd.Terms, s.searchLimit)
	if err != nil || len(ids) == 0 {
		return err
	}

	thread, err := s.conversations.LoadThread(pair)
	if err != nil {
		return err
	}
	idSet := lo.SliceToMap(ids, func(id string) (string, struct{}) {
		return id, struct{}{}
	})
	matches = lo.Filter(toMessagePayloads(thread), func(p contract.MessagePayload, _ int) bool {
		_, hit := idSet[p.ID]
		return hit
	})
	return nil
}

func (s *ChatService) pushSidebar(ctx context.Context, userID string) error {
	summaries, err := s.buildSummaries(userID)
	if err != nil {
		return err
	}
	s.broadcastUser(ctx, userID, contract.OutboundEvent{
		Name:    contract.EventConversation,
		Payload: summaries,
	})
	return nil
}

func (s *ChatService) buildSummaries(userID string) ([]contract.ThreadSummaryPayload, error) {
	records, err := s.conversations.ListThreads(userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]contract.ThreadSummaryPayload, 0, len(records))
	for _, record := range records {
		otherID := record.Conversation.Pair.Other(userID)
		peer := contract.ProfilePayload{ID: otherID, Online: s.presence.IsOnline(otherID)}
		if user, err := s.users.GetUserByID(otherID); err == nil {
			peer = toProfile(user.Profile(), peer.Online)
		} else {
			s.log.Warn("sidebar peer lookup failed", "peer", otherID, "error", err)
		}

		summary := contract.ThreadSummaryPayload{
			ConversationID: record.Conversation.Pair.Key(),
			Peer:           peer,
			Unseen:         record.Unseen,
			UpdatedAt:      record.Conversation.LastActivityAt,
		}
		if record.LastMessage != nil {
			last := toMessagePayload(*record.LastMessage)
			summary.LastMessage = &last
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *ChatService) deliver(ctx context.Context, sink contract.EventSink, e contract.OutboundEvent) {
	if err := sink.Consume(ctx, e); err != nil {
		s.monitor.DeliveryFailed()
		s.log.Warn("event delivery failed", "event", e.Name, "error", err)
		return
	}
	s.monitor.EventDelivered()
}

func (s *ChatService) broadcastUser(ctx context.Context, userID string, e contract.OutboundEvent) {
	for _, sink := range s.registry.SinksForUser(userID) {
		s.deliver(ctx, sink, e)
	}
}

func (s *ChatService) broadcastAll(ctx context.Context, e contract.OutboundEvent) {
	for _, sink := range s.registry.AllSinks() {
		s.deliver(ctx, sink, e)
	}
}

func toProfile(user domain.User, online bool) contract.ProfilePayload {
	return contract.ProfilePayload{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		AvatarURL: user.AvatarURL,
		Online:    online,
	}
}

func toMessagePayload(msg domain.Message) contract.MessagePayload {
	return contract.MessagePayload{
		ID:        msg.ID.String(),
		Sender:    msg.AuthorID,
		Text:      msg.Text,
		ImageURL:  msg.ImageURL,
		VideoURL:  msg.VideoURL,
		Seen:      msg.Seen,
		CreatedAt: msg.CreatedAt,
	}
}

func toMessagePayloads(messages []domain.Message) []contract.MessagePayload {
	return lo.Map(messages, func(msg domain.Message, _ int) contract.MessagePayload {
		return toMessagePayload(msg)
	})
}
