package chat

import (
	"cmp"
	"slices"

	"github.com/matheus3301/pawchat/internal/store"
)

// MessageStatus is the delivery state of a message in a session view.
type MessageStatus string

const (
	// Pending messages were sent from this session and are not yet stored.
	Pending MessageStatus = "pending"
	// Confirmed messages are stored and carry a store id.
	Confirmed MessageStatus = "confirmed"
	// Failed messages were sent from this session and could not be stored.
	// They stay in the view until the session ends.
	Failed MessageStatus = "failed"
)

// ViewMessage is one entry of a session view.
type ViewMessage struct {
	ID          int64 // 0 until confirmed
	ClientMsgID string
	SenderID    string
	Body        string
	CreatedAt   int64
	Status      MessageStatus
	Err         error

	seq uint64 // local send order of unconfirmed entries
}

// view is the ordered message list of a session: confirmed messages by
// (created_at, id), then unconfirmed ones in local send order.
type view struct {
	msgs []ViewMessage
	ids  map[int64]struct{}
	seq  uint64
}

func newView() *view {
	return &view{ids: make(map[int64]struct{})}
}

// addPending appends an optimistic entry.
func (v *view) addPending(clientMsgID, senderID, body string, now int64) {
	v.seq++
	v.msgs = append(v.msgs, ViewMessage{
		ClientMsgID: clientMsgID,
		SenderID:    senderID,
		Body:        body,
		CreatedAt:   now,
		Status:      Pending,
		seq:         v.seq,
	})
}

// merge adds a stored message. A message already present by id is skipped;
// one matching a local entry by client id confirms that entry. It reports
// whether the view changed.
func (v *view) merge(m store.Message) bool {
	if _, ok := v.ids[m.ID]; ok {
		return false
	}
	v.ids[m.ID] = struct{}{}

	confirmed := ViewMessage{
		ID:          m.ID,
		ClientMsgID: m.ClientMsgID,
		SenderID:    m.SenderID,
		Body:        m.Body,
		CreatedAt:   m.CreatedAt,
		Status:      Confirmed,
	}
	if i := v.indexLocal(m.ClientMsgID); i >= 0 {
		v.msgs[i] = confirmed
	} else {
		v.msgs = append(v.msgs, confirmed)
	}
	v.sort()
	return true
}

// fail marks the local entry with clientMsgID as failed.
func (v *view) fail(clientMsgID string, err error) bool {
	i := v.indexLocal(clientMsgID)
	if i < 0 {
		return false
	}
	v.msgs[i].Status = Failed
	v.msgs[i].Err = err
	v.sort()
	return true
}

// indexLocal returns the index of the unconfirmed entry with clientMsgID, or -1.
func (v *view) indexLocal(clientMsgID string) int {
	if clientMsgID == "" {
		return -1
	}
	return slices.IndexFunc(v.msgs, func(m ViewMessage) bool {
		return m.Status != Confirmed && m.ClientMsgID == clientMsgID
	})
}

func (v *view) sort() {
	slices.SortStableFunc(v.msgs, compareView)
}

func compareView(a, b ViewMessage) int {
	ac, bc := a.Status == Confirmed, b.Status == Confirmed
	switch {
	case ac && !bc:
		return -1
	case !ac && bc:
		return 1
	case !ac && !bc:
		return cmp.Compare(a.seq, b.seq)
	}
	if c := cmp.Compare(a.CreatedAt, b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// snapshot returns a copy of the entries.
func (v *view) snapshot() []ViewMessage {
	return slices.Clone(v.msgs)
}

// oldest returns the cursor of the oldest confirmed message.
func (v *view) oldest() (store.Cursor, bool) {
	for _, m := range v.msgs {
		if m.Status == Confirmed {
			return store.Cursor{CreatedAt: m.CreatedAt, ID: m.ID}, true
		}
	}
	return store.Cursor{}, false
}
