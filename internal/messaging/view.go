package messaging

import (
	"context"
	"sort"
	"sync"
)

// Loader reads message history
type Loader interface {
	ListMessages(ctx context.Context, conversationID string, cursor *Cursor, order Order, limit int) (Page, error)
}

// View is one viewer's ordered, duplicate-free copy of a conversation. It
// merges history pages with live messages; a message arriving through
// both paths is kept once.
type View struct {
	conversationID string
	loader         Loader
	pageSize       int

	mu       sync.Mutex
	messages []Message
	seen     map[string]struct{}
	hasMore  bool

	sub  *Subscription
	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewView creates an empty view. pageSize <= 0 uses PageSize.
func NewView(conversationID string, loader Loader, pageSize int) *View {
	if pageSize <= 0 {
		pageSize = PageSize
	}
	return &View{
		conversationID: conversationID,
		loader:         loader,
		pageSize:       pageSize,
		seen:           make(map[string]struct{}),
		done:           make(chan struct{}),
	}
}

// LoadInitial fetches the most recent page
func (v *View) LoadInitial(ctx context.Context) error {
	page, err := v.loader.ListMessages(ctx, v.conversationID, nil, Desc, v.pageSize)
	if err != nil {
		return err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	v.mergeLocked(page.Messages)
	v.hasMore = page.HasMore
	return nil
}

// LoadOlder fetches the page before the oldest loaded message and returns
// how many messages were added. With nothing loaded it behaves like
// LoadInitial.
func (v *View) LoadOlder(ctx context.Context) (int, error) {
	v.mu.Lock()
	var cursor *Cursor
	if len(v.messages) > 0 {
		c := CursorOf(v.messages[0])
		cursor = &c
	}
	v.mu.Unlock()

	page, err := v.loader.ListMessages(ctx, v.conversationID, cursor, Desc, v.pageSize)
	if err != nil {
		return 0, err
	}

	v.mu.Lock()
	defer v.mu.Unlock()
	added := v.mergeLocked(page.Messages)
	v.hasMore = page.HasMore
	return added, nil
}

// Lagged fires when the live subscription dropped messages. It is nil
// before Attach.
func (v *View) Lagged() <-chan struct{} {
	if v.sub == nil {
		return nil
	}
	return v.sub.Lagged()
}

// Recover replays history from the earliest dropped live message and
// returns the messages that were new to the view, oldest first
func (v *View) Recover(ctx context.Context) ([]Message, error) {
	if v.sub == nil {
		return nil, nil
	}
	missed, ok := v.sub.Missed()
	if !ok {
		return nil, nil
	}

	var fresh []Message
	if v.Apply(missed) {
		fresh = append(fresh, missed)
	}

	cursor := CursorOf(missed)
	for {
		page, err := v.loader.ListMessages(ctx, v.conversationID, &cursor, Asc, v.pageSize)
		if err != nil {
			return fresh, err
		}

		v.mu.Lock()
		for _, m := range page.Messages {
			if v.insertLocked(m) {
				fresh = append(fresh, m)
			}
		}
		v.mu.Unlock()

		if !page.HasMore || len(page.Messages) == 0 {
			return fresh, nil
		}
		cursor = CursorOf(page.Messages[len(page.Messages)-1])
	}
}

// Apply adds a live message and reports whether it was new
func (v *View) Apply(m Message) bool {
	if m.ConversationID != v.conversationID {
		return false
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.insertLocked(m)
}

// Messages returns a snapshot in (created_at, id) order
func (v *View) Messages() []Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// HasMore reports whether older history remains
func (v *View) HasMore() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hasMore
}

// Len returns how many messages are loaded
func (v *View) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.messages)
}

// Attach subscribes the view to live messages from hub. Messages new to the
// view are forwarded on the returned channel, which closes after Close.
// Attach before LoadInitial so nothing sent in between is missed.
func (v *View) Attach(hub *Hub) <-chan Message {
	out := make(chan Message, defaultSubscriptionBuffer)
	v.sub = hub.Subscribe(v.conversationID)

	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		defer close(out)
		for {
			select {
			case <-v.done:
				return
			case m, ok := <-v.sub.C:
				if !ok {
					return
				}
				if !v.Apply(m) {
					continue
				}
				select {
				case out <- m:
				case <-v.done:
					return
				}
			}
		}
	}()

	return out
}

// Close releases the live subscription and waits for the forwarder
func (v *View) Close() {
	v.once.Do(func() {
		close(v.done)
		if v.sub != nil {
			v.sub.Close()
		}
		v.wg.Wait()
	})
}

func (v *View) mergeLocked(msgs []Message) int {
	added := 0
	for _, m := range msgs {
		if v.insertLocked(m) {
			added++
		}
	}
	return added
}

func (v *View) insertLocked(m Message) bool {
	if _, ok := v.seen[m.ID]; ok {
		return false
	}
	v.seen[m.ID] = struct{}{}

	i := sort.Search(len(v.messages), func(i int) bool {
		return m.before(v.messages[i])
	})
	v.messages = append(v.messages, Message{})
	copy(v.messages[i+1:], v.messages[i:])
	v.messages[i] = m
	return true
}
