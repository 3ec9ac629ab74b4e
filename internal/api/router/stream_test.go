package router

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/jobmatch-be/internal/messaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sseEvent struct {
	name string
	data string
}

// readEvent reads one "event:/data:" block
func readEvent(t *testing.T, r *bufio.Reader) sseEvent {
	t.Helper()
	var ev sseEvent
	for {
		line, err := r.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\r\n")

		switch {
		case line == "" && ev.name != "":
			return ev
		case strings.HasPrefix(line, "event:"):
			ev.name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			ev.data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
	}
}

func openStream(t *testing.T, env *testEnv, token string) (*bufio.Reader, *http.Response, context.CancelFunc) {
	t.Helper()
	server := httptest.NewServer(SetupRouter(env.deps))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, server.URL+"/api/conversations/"+convID+"/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	return bufio.NewReader(resp.Body), resp, cancel
}

func TestStreamMessages(t *testing.T) {
	env := newTestEnv(t)
	old := messaging.Message{ID: "m1", ConversationID: convID, SenderID: factoryID, Body: "Chào bạn", CreatedAt: t0}
	env.messages.messages = []messaging.Message{old}

	reader, resp, cancel := openStream(t, env, "worker-token")
	defer cancel()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	ev := readEvent(t, reader)
	require.Equal(t, "snapshot", ev.name)
	var snap struct {
		Messages []messaging.Message `json:"messages"`
		HasMore  bool                `json:"has_more"`
	}
	require.NoError(t, json.Unmarshal([]byte(ev.data), &snap))
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, "m1", snap.Messages[0].ID)

	require.Equal(t, 1, env.hub.Subscribers(convID))

	// a message already in the snapshot is not sent again
	env.hub.Publish(old)
	fresh := messaging.Message{ID: "m2", ConversationID: convID, SenderID: factoryID, Body: "Mai đi làm nhé", CreatedAt: t0.Add(time.Minute)}
	env.hub.Publish(fresh)
	env.hub.Publish(fresh)

	ev = readEvent(t, reader)
	require.Equal(t, "message", ev.name)
	var got messaging.Message
	require.NoError(t, json.Unmarshal([]byte(ev.data), &got))
	assert.Equal(t, "m2", got.ID)

	cancel()
	assert.Eventually(t, func() bool { return env.hub.Subscribers(convID) == 0 }, 2*time.Second, 10*time.Millisecond,
		"subscription released after the client leaves")
}

func TestStreamMessages_BurstIsDeliveredOnce(t *testing.T) {
	env := newTestEnv(t)
	env.hub = messaging.NewHub(env.deps.Logger, 1)
	env.deps.Hub = env.hub

	reader, _, cancel := openStream(t, env, "worker-token")
	defer cancel()
	timer := time.AfterFunc(5*time.Second, cancel)
	defer timer.Stop()
	require.Equal(t, "snapshot", readEvent(t, reader).name)
	require.Equal(t, 1, env.hub.Subscribers(convID))

	// stored before published, as SendMessage does; the tiny hub buffer
	// drops part of the burst and the stream replays it from history
	const total = 300
	for i := 1; i <= total; i++ {
		m := messaging.Message{
			ID:             fmt.Sprintf("m%04d", i),
			ConversationID: convID,
			SenderID:       factoryID,
			Body:           "tin " + strconv.Itoa(i),
			CreatedAt:      t0.Add(time.Duration(i) * time.Second),
		}
		env.messages.store(m)
		env.hub.Publish(m)
	}

	got := make(map[string]int)
	for len(got) < total {
		ev := readEvent(t, reader)
		if ev.name != "message" {
			continue
		}
		var m messaging.Message
		require.NoError(t, json.Unmarshal([]byte(ev.data), &m))
		got[m.ID]++
	}
	for id, n := range got {
		assert.Equal(t, 1, n, "message %s sent more than once", id)
	}
}

func TestStreamMessages_Heartbeat(t *testing.T) {
	env := newTestEnv(t)
	env.deps.HeartbeatInterval = 20 * time.Millisecond

	reader, _, cancel := openStream(t, env, "factory-token")
	defer cancel()

	assert.Equal(t, "snapshot", readEvent(t, reader).name)
	assert.Equal(t, "heartbeat", readEvent(t, reader).name)
}

func TestStreamMessages_Outsider(t *testing.T) {
	env := newTestEnv(t)

	_, resp, cancel := openStream(t, env, "stranger-token")
	defer cancel()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, env.hub.Subscribers(convID))
}
