package realtime

import (
	"context"
	"testing"
	"time"

	"liaison/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBroker_DeliversPerRelationship(t *testing.T) {
	b := NewLocalBroker()
	ctx := context.Background()

	ch1, cancel1, err := b.Subscribe(ctx, "rel-1")
	require.NoError(t, err)
	defer cancel1()
	ch2, cancel2, err := b.Subscribe(ctx, "rel-2")
	require.NoError(t, err)
	defer cancel2()

	require.NoError(t, b.PublishNotice(ctx, models.Notice{ID: "n1", RelationshipID: "rel-1", Body: models.TextBody("hi")}))

	select {
	case n := <-ch1:
		assert.Equal(t, "n1", n.ID)
	case <-time.After(time.Second):
		t.Fatal("notice not delivered")
	}
	select {
	case n := <-ch2:
		t.Fatalf("unexpected notice %s on rel-2", n.ID)
	default:
	}
}

func TestLocalBroker_ContextCancelClosesChannel(t *testing.T) {
	b := NewLocalBroker()
	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := b.Subscribe(ctx, "rel-1")
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("channel not closed")
	}
	require.NoError(t, b.PublishNotice(context.Background(), models.Notice{RelationshipID: "rel-1"}))
}

func TestLocalBroker_SlowSubscriberDoesNotBlock(t *testing.T) {
	b := NewLocalBroker()
	_, cancel, err := b.Subscribe(context.Background(), "rel-1")
	require.NoError(t, err)
	defer cancel()
	for i := 0; i < subscriberBuffer*2; i++ {
		require.NoError(t, b.PublishNotice(context.Background(), models.Notice{RelationshipID: "rel-1"}))
	}
}

func TestChannel(t *testing.T) {
	assert.Equal(t, "liaison:notices:rel-9", Channel("rel-9"))
}
