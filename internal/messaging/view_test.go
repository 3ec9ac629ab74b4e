package messaging

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/cuongbtq/jobmatch-be/shared/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memoryLoader serves history from a slice the way Store does
type memoryLoader struct {
	mu    sync.Mutex
	log   []Message
	calls int
	err   error
}

func (l *memoryLoader) add(m Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.log = append(l.log, m)
	sort.Slice(l.log, func(i, j int) bool { return l.log[i].before(l.log[j]) })
}

func (l *memoryLoader) ListMessages(ctx context.Context, conversationID string, cursor *Cursor, order Order, limit int) (Page, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return Page{}, l.err
	}

	var out []Message
	if order == Desc {
		for i := len(l.log) - 1; i >= 0; i-- {
			m := l.log[i]
			if cursor != nil && !m.before(Message{CreatedAt: cursor.CreatedAt, ID: cursor.ID}) {
				continue
			}
			out = append(out, m)
		}
	} else {
		for _, m := range l.log {
			if cursor != nil && !(Message{CreatedAt: cursor.CreatedAt, ID: cursor.ID}).before(m) {
				continue
			}
			out = append(out, m)
		}
	}

	page := Page{HasMore: len(out) > limit}
	if page.HasMore {
		out = out[:limit]
	}
	if order == Desc {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	page.Messages = out
	return page, nil
}

func seededLoader(n int) *memoryLoader {
	l := &memoryLoader{}
	for i := 1; i <= n; i++ {
		l.add(msg(fmt.Sprintf("m%03d", i), time.Duration(i)*time.Second))
	}
	return l
}

func ids(msgs []Message) []string {
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.ID
	}
	return out
}

func TestView_Pagination(t *testing.T) {
	loader := seededLoader(120)
	view := NewView("conv-1", loader, 0)
	ctx := context.Background()

	require.NoError(t, view.LoadInitial(ctx))
	assert.Equal(t, PageSize, view.Len())
	assert.True(t, view.HasMore())
	assert.Equal(t, "m071", view.Messages()[0].ID)
	assert.Equal(t, "m120", view.Messages()[PageSize-1].ID)

	added, err := view.LoadOlder(ctx)
	require.NoError(t, err)
	assert.Equal(t, PageSize, added)
	assert.True(t, view.HasMore())

	added, err = view.LoadOlder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, added)
	assert.False(t, view.HasMore())

	msgs := view.Messages()
	require.Len(t, msgs, 120)
	assert.Equal(t, "m001", msgs[0].ID)
	assert.True(t, sort.SliceIsSorted(msgs, func(i, j int) bool { return msgs[i].before(msgs[j]) }))
}

func TestView_LoadOlderOnEmptyLoadsNewest(t *testing.T) {
	view := NewView("conv-1", seededLoader(3), 2)

	added, err := view.LoadOlder(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"m002", "m003"}, ids(view.Messages()))
}

func TestView_ApplyDeduplicates(t *testing.T) {
	loader := seededLoader(3)
	view := NewView("conv-1", loader, 10)

	// live copy lands before history
	live := msg("m003", 3*time.Second)
	assert.True(t, view.Apply(live))
	assert.False(t, view.Apply(live))

	require.NoError(t, view.LoadInitial(context.Background()))
	assert.Equal(t, []string{"m001", "m002", "m003"}, ids(view.Messages()))

	assert.False(t, view.Apply(msg("m002", 2*time.Second)), "already loaded from history")
	assert.False(t, view.Apply(Message{ID: "x", ConversationID: "conv-2"}), "other conversation")
}

func TestView_ApplyKeepsOrder(t *testing.T) {
	view := NewView("conv-1", &memoryLoader{}, 10)

	view.Apply(msg("b", 2*time.Second))
	view.Apply(msg("d", 4*time.Second))
	view.Apply(msg("a", time.Second))
	view.Apply(msg("c", 2*time.Second)) // same timestamp as b, id breaks the tie

	assert.Equal(t, []string{"a", "b", "c", "d"}, ids(view.Messages()))
}

func TestView_RecoverAfterDrops(t *testing.T) {
	hub := NewHub(logger.NewDiscard(), 1)
	loader := seededLoader(2)
	view := NewView("conv-1", loader, 10)
	defer view.Close()

	updates := view.Attach(hub)
	require.NoError(t, view.LoadInitial(context.Background()))

	// nobody reads updates, so the forwarder stalls and the hub drops
	const total = 100
	for i := 3; i < 3+total; i++ {
		m := msg(fmt.Sprintf("m%03d", i), time.Duration(i)*time.Second)
		loader.add(m)
		hub.Publish(m)
	}

	select {
	case <-view.Lagged():
	case <-time.After(time.Second):
		t.Fatal("expected lag signal")
	}

	recovered, err := view.Recover(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, recovered)
	assert.True(t, sort.SliceIsSorted(recovered, func(i, j int) bool { return recovered[i].before(recovered[j]) }))

	got := make(map[string]int)
	for _, m := range recovered {
		got[m.ID]++
	}
	deadline := time.After(2 * time.Second)
	for len(got) < total {
		select {
		case m := <-updates:
			got[m.ID]++
		case <-deadline:
			t.Fatalf("only %d of %d messages delivered", len(got), total)
		}
	}

	for id, n := range got {
		assert.Equal(t, 1, n, "message %s delivered more than once", id)
	}
	assert.Equal(t, total+2, view.Len())
}

func TestView_RecoverWithoutDrops(t *testing.T) {
	hub := NewHub(logger.NewDiscard(), 8)
	loader := seededLoader(3)
	view := NewView("conv-1", loader, 10)
	defer view.Close()

	fresh, err := view.Recover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fresh, "not attached")
	assert.Nil(t, view.Lagged())

	view.Attach(hub)
	fresh, err = view.Recover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, fresh)
	assert.Equal(t, 0, loader.calls)
}

func TestView_RecoverLoaderError(t *testing.T) {
	hub := NewHub(logger.NewDiscard(), 1)
	loader := &memoryLoader{}
	view := NewView("conv-1", loader, 10)
	defer view.Close()

	view.sub = hub.Subscribe("conv-1")
	hub.Publish(msg("m1", time.Second))
	hub.Publish(msg("m2", 2*time.Second))

	loader.err = errors.New("db down")
	fresh, err := view.Recover(context.Background())
	assert.Error(t, err)
	assert.Equal(t, []string{"m2"}, ids(fresh), "the dropped message itself is kept")
}

func TestView_LoaderError(t *testing.T) {
	loader := &memoryLoader{err: errors.New("db down")}
	view := NewView("conv-1", loader, 10)

	assert.Error(t, view.LoadInitial(context.Background()))
	_, err := view.LoadOlder(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, view.Len())
}

func TestView_AttachForwardsOnlyNew(t *testing.T) {
	hub := NewHub(logger.NewDiscard(), 8)
	loader := seededLoader(2)
	view := NewView("conv-1", loader, 10)

	updates := view.Attach(hub)
	require.NoError(t, view.LoadInitial(context.Background()))

	hub.Publish(msg("m002", 2*time.Second)) // duplicate of history
	hub.Publish(msg("m003", 3*time.Second))

	select {
	case m := <-updates:
		assert.Equal(t, "m003", m.ID)
	case <-time.After(time.Second):
		t.Fatal("expected live message")
	}

	view.Close()
	view.Close()

	_, ok := <-updates
	assert.False(t, ok, "updates closed after Close")
	assert.Equal(t, 0, hub.Subscribers("conv-1"), "subscription released")
	assert.Equal(t, []string{"m001", "m002", "m003"}, ids(view.Messages()))
}

func TestView_CloseWithoutAttach(t *testing.T) {
	view := NewView("conv-1", &memoryLoader{}, 10)
	view.Close()
}
