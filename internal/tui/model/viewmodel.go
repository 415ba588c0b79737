// Package model holds TUI state fetched from the daemon and the active
// chat session.
package model

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/pawchat/internal/api"
	"github.com/matheus3301/pawchat/internal/chat"
	"github.com/matheus3301/pawchat/internal/store"
)

// Daemon is what the TUI needs from the daemon. *client.Client implements it.
type Daemon interface {
	chat.Backend
	ListConversations(ctx context.Context, viewer string, limit int) ([]chat.InboxEntry, error)
	GetConversation(ctx context.Context, id, viewer string) (*chat.ConversationView, error)
	GetStatus(ctx context.Context) (*api.GetStatusResponse, error)
	WatchInbox(ctx context.Context, viewer string) (chat.InboxSubscription, error)
}

// ChatSettings are the controller settings taken from the profile config.
type ChatSettings struct {
	PageSize            int
	ResubscribeAttempts int
	OutboxSize          int
}

const (
	inboxLimit = 100

	inboxRetryMin = 500 * time.Millisecond
	inboxRetryMax = 30 * time.Second
)

// ViewModel caches daemon state and owns the active chat controller. The
// UI redraws when RefreshCh fires.
type ViewModel struct {
	mu sync.RWMutex

	daemon   Daemon
	self     store.Participant
	settings ChatSettings
	logger   *zap.Logger

	inbox  []chat.InboxEntry
	status *api.GetStatusResponse

	active     *chat.Controller
	activeWith store.Participant
	stopActive context.CancelFunc

	Flash Flash

	refreshCh chan struct{}
}

// NewViewModel creates a view model for the signed-in identity self.
func NewViewModel(d Daemon, self store.Participant, settings ChatSettings, logger *zap.Logger) *ViewModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ViewModel{
		daemon:    d,
		self:      self,
		settings:  settings,
		logger:    logger,
		refreshCh: make(chan struct{}, 1),
	}
}

// RefreshCh returns the channel that signals UI refresh.
func (vm *ViewModel) RefreshCh() <-chan struct{} {
	return vm.refreshCh
}

func (vm *ViewModel) signalRefresh() {
	select {
	case vm.refreshCh <- struct{}{}:
	default:
	}
}

// Self returns the signed-in identity.
func (vm *ViewModel) Self() store.Participant {
	return vm.self
}

// LoadStatus fetches the daemon status.
func (vm *ViewModel) LoadStatus(ctx context.Context) error {
	resp, err := vm.daemon.GetStatus(ctx)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.status = resp
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// LoadInbox fetches the conversation list.
func (vm *ViewModel) LoadInbox(ctx context.Context) error {
	entries, err := vm.daemon.ListConversations(ctx, vm.self.Identity, inboxLimit)
	if err != nil {
		return err
	}
	vm.mu.Lock()
	vm.inbox = entries
	vm.mu.Unlock()
	vm.signalRefresh()
	return nil
}

// WatchInbox reloads the inbox whenever a conversation involving self is
// created, until ctx is done. A lost stream is reopened with backoff and
// the inbox reloaded, since entries may have been missed meanwhile.
func (vm *ViewModel) WatchInbox(ctx context.Context) {
	wait := inboxRetryMin
	for {
		sub, err := vm.daemon.WatchInbox(ctx, vm.self.Identity)
		if err == nil {
			wait = inboxRetryMin
			if err := vm.LoadInbox(ctx); err != nil && ctx.Err() == nil {
				vm.logger.Debug("inbox reload failed", zap.Error(err))
			}
			for range sub.Entries() {
				if err := vm.LoadInbox(ctx); err != nil && ctx.Err() == nil {
					vm.logger.Debug("inbox reload failed", zap.Error(err))
				}
			}
			err = sub.Err()
			sub.Close()
		}
		if ctx.Err() != nil {
			return
		}
		vm.logger.Debug("inbox watch lost", zap.Error(err), zap.Duration("retry_in", wait))
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
		wait = min(wait*2, inboxRetryMax)
	}
}

// Inbox returns a snapshot of the conversation list.
func (vm *ViewModel) Inbox() []chat.InboxEntry {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.inbox
}

// Status returns the last fetched daemon status, or nil.
func (vm *ViewModel) Status() *api.GetStatusResponse {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.status
}

// OpenChat closes the current chat, if any, and opens a session with
// counterpart. The controller is returned even when Open fails so the UI
// can show its error state.
func (vm *ViewModel) OpenChat(ctx context.Context, counterpart store.Participant) (*chat.Controller, error) {
	vm.CloseChat()

	ctl := chat.NewController(vm.daemon, chat.Config{
		Self:                vm.self,
		Counterpart:         counterpart,
		PageSize:            vm.settings.PageSize,
		ResubscribeAttempts: vm.settings.ResubscribeAttempts,
		OutboxSize:          vm.settings.OutboxSize,
		OnSendFailure: func(_ string, err error) {
			vm.Flash.Set(Err, "Send failed: "+err.Error(), 5*time.Second)
			vm.signalRefresh()
		},
		Logger: vm.logger.Named("chat"),
	})

	watchCtx, cancel := context.WithCancel(context.Background())
	vm.mu.Lock()
	vm.active = ctl
	vm.activeWith = counterpart
	vm.stopActive = cancel
	vm.mu.Unlock()

	go vm.forward(watchCtx, ctl)

	err := ctl.Open(ctx)
	vm.signalRefresh()
	return ctl, err
}

// forward turns controller updates into UI refreshes.
func (vm *ViewModel) forward(ctx context.Context, ctl *chat.Controller) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-ctl.Updates():
			if u.Err != nil {
				vm.Flash.Set(Err, u.Err.Error(), 10*time.Second)
			}
			vm.signalRefresh()
		}
	}
}

// Retry resets an errored chat and opens it again.
func (vm *ViewModel) Retry(ctx context.Context) error {
	ctl := vm.Active()
	if ctl == nil {
		return nil
	}
	if ctl.State() != chat.Error {
		return nil
	}
	if err := ctl.Reset(); err != nil {
		return err
	}
	err := ctl.Open(ctx)
	vm.signalRefresh()
	return err
}

// CloseChat terminates the active chat session.
func (vm *ViewModel) CloseChat() {
	vm.mu.Lock()
	ctl, stop := vm.active, vm.stopActive
	vm.active, vm.stopActive = nil, nil
	vm.activeWith = store.Participant{}
	vm.mu.Unlock()

	if ctl != nil {
		ctl.Close()
		stop()
	}
}

// Active returns the active chat controller, or nil.
func (vm *ViewModel) Active() *chat.Controller {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.active
}

// ActiveWith returns the counterpart of the active chat.
func (vm *ViewModel) ActiveWith() store.Participant {
	vm.mu.RLock()
	defer vm.mu.RUnlock()
	return vm.activeWith
}

// Details fetches the active conversation as seen by self.
func (vm *ViewModel) Details(ctx context.Context) (*chat.ConversationView, error) {
	ctl := vm.Active()
	if ctl == nil || ctl.ConversationID() == "" {
		return nil, errors.New("no open conversation")
	}
	return vm.daemon.GetConversation(ctx, ctl.ConversationID(), vm.self.Identity)
}

// Send sends body in the active chat.
func (vm *ViewModel) Send(body string) error {
	ctl := vm.Active()
	if ctl == nil {
		return chat.ErrNotLive
	}
	_, err := ctl.Send(body)
	return err
}

// LoadOlder loads the previous page of the active chat.
func (vm *ViewModel) LoadOlder(ctx context.Context) (int, error) {
	ctl := vm.Active()
	if ctl == nil {
		return 0, chat.ErrNotLive
	}
	n, err := ctl.LoadOlder(ctx)
	if err == nil && n == 0 && !ctl.HasMore() {
		vm.Flash.Set(Info, "Start of conversation", 3*time.Second)
	}
	vm.signalRefresh()
	return n, err
}
