package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/pairkey"
	"github.com/matheus3301/pawchat/internal/store"
)

// ConversationStore is the part of the store the resolver uses.
type ConversationStore interface {
	GetConversations(ctx context.Context, ids ...string) ([]store.Conversation, error)
	InsertConversation(ctx context.Context, c *store.Conversation) error
}

// Resolver maps a pair of identities to the id of their conversation,
// creating the conversation on first contact.
type Resolver struct {
	store  ConversationStore
	logger *zap.Logger
}

// NewResolver creates a resolver. A nil logger discards log output.
func NewResolver(s ConversationStore, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: s, logger: logger}
}

// Resolve returns the conversation id for self and counterpart. An existing
// conversation keeps the orientation it was created with; a new one is
// created as self_counterpart with both participant snapshots. Losing a
// creation race is not an error: the winner's id is returned.
func (r *Resolver) Resolve(ctx context.Context, self, counterpart store.Participant) (string, error) {
	if err := validateParticipants(self, counterpart); err != nil {
		return "", err
	}
	forward, reverse := pairkey.Candidates(self.Identity, counterpart.Identity)

	id, found, err := r.lookup(ctx, forward, reverse)
	if err != nil {
		return "", unavailable("resolve conversation", err)
	}
	if found {
		return id, nil
	}

	err = r.store.InsertConversation(ctx, &store.Conversation{ID: forward, A: self, B: counterpart})
	if err == nil {
		r.logger.Info("conversation created",
			zap.String("conversation_id", forward),
			zap.String("initiator", self.Identity))
		return forward, nil
	}
	if !errors.Is(err, store.ErrConflict) {
		return "", unavailable("create conversation", err)
	}

	// Another writer created it between the lookup and the insert.
	id, found, lookupErr := r.lookup(ctx, forward, reverse)
	if lookupErr != nil {
		return "", unavailable("resolve conversation", lookupErr)
	}
	if !found {
		return "", unavailable("create conversation", err)
	}
	r.logger.Debug("conversation create lost race", zap.String("conversation_id", id))
	return id, nil
}

func (r *Resolver) lookup(ctx context.Context, forward, reverse string) (string, bool, error) {
	convs, err := r.store.GetConversations(ctx, forward, reverse)
	if err != nil {
		return "", false, err
	}
	switch len(convs) {
	case 0:
		return "", false, nil
	case 1:
		return convs[0].ID, true, nil
	}
	r.logger.Warn("conversation exists in both orientations",
		zap.String("forward", forward),
		zap.String("reverse", reverse))
	return forward, true, nil
}

func validateParticipants(self, counterpart store.Participant) error {
	a := strings.TrimSpace(self.Identity)
	b := strings.TrimSpace(counterpart.Identity)
	switch {
	case a == "" || b == "":
		return fmt.Errorf("%w: identity is empty", ErrInvalidParticipants)
	case a != self.Identity || b != counterpart.Identity:
		return fmt.Errorf("%w: identity has surrounding whitespace", ErrInvalidParticipants)
	case a == b:
		return fmt.Errorf("%w: cannot open a conversation with yourself", ErrInvalidParticipants)
	}
	return nil
}
