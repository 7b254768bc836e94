package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/creatorhub/backend/internal/abtests"
)

func testClient(creatorID uuid.UUID) *Client {
	return &Client{
		ID:        uuid.New().String(),
		CreatorID: creatorID,
		UserID:    uuid.New(),
		Role:      "creator",
		send:      make(chan WSMessage, 8),
	}
}

func TestHubBroadcastReachesOnlyTeamClients(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	teamA := uuid.New()
	teamB := uuid.New()

	a1 := testClient(teamA)
	a2 := testClient(teamA)
	b1 := testClient(teamB)
	hub.Register(a1)
	hub.Register(a2)
	hub.Register(b1)

	hub.BroadcastToTeam(teamA, "status_changed", map[string]string{"status": "active"})

	for _, c := range []*Client{a1, a2} {
		select {
		case msg := <-c.send:
			require.Equal(t, "status_changed", msg.Event)
		default:
			t.Fatal("team A client did not receive the event")
		}
	}
	require.Empty(t, b1.send)
}

// Broadcasting while clients connect and disconnect must not trip the race
// detector or corrupt the team map.
func TestHubBroadcastDuringRegisterChurn(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	team := uuid.New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 200; i++ {
			c := testClient(team)
			hub.Register(c)
			hub.Unregister(c)
		}
	}()

	for i := 0; i < 200; i++ {
		hub.BroadcastToTeam(team, "status_changed", map[string]int{"seq": i})
	}
	<-done
}

func TestHubUnregisterDropsClient(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	team := uuid.New()
	c := testClient(team)

	hub.Register(c)
	require.Equal(t, 1, hub.SessionCount(team))

	hub.Unregister(c)
	require.Equal(t, 0, hub.SessionCount(team))

	hub.BroadcastToTeam(team, "metrics_updated", nil)
	require.Empty(t, c.send)
}

func TestPublishTestEventFallsBackToLocalBroadcast(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	team := uuid.New()
	c := testClient(team)
	hub.Register(c)

	variantID := uuid.New()
	hub.PublishTestEvent(context.Background(), team, abtests.TestEvent{
		Type:      "variant_changed",
		TestID:    uuid.New(),
		VariantID: &variantID,
		Variant:   "B",
		At:        time.Now(),
	})

	select {
	case msg := <-c.send:
		require.Equal(t, "variant_changed", msg.Event)
		var event abtests.TestEvent
		require.NoError(t, json.Unmarshal(msg.Data, &event))
		require.Equal(t, "B", event.Variant)
	default:
		t.Fatal("event was not delivered locally")
	}
}

func TestRedisPubSubRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	bridge := NewRedisPubSub(client, zap.NewNop())
	team := uuid.New()

	received := make(chan redisPayload, 1)
	cancel, err := bridge.SubscribeTeam(team, func(event string, payload []byte) {
		received <- redisPayload{Event: event, Data: payload}
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, bridge.PublishTeamEvent(team, "winner_selected", []byte(`{"variant":"A"}`)))

	select {
	case got := <-received:
		require.Equal(t, "winner_selected", got.Event)
		require.JSONEq(t, `{"variant":"A"}`, string(got.Data))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for Redis delivery")
	}
}
