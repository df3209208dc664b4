package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/types"
)

func TestHub_PublishReachesAllSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ch1, cancel1 := hub.Subscribe()
	defer cancel1()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()

	assert.Equal(t, 2, hub.SubscriberCount())

	hub.Publish(types.AssetEvent{AssetName: "part", Phase: "building"})

	for _, ch := range []<-chan types.AssetEvent{ch1, ch2} {
		select {
		case event := <-ch:
			assert.Equal(t, "part", event.AssetName)
			assert.Equal(t, "building", event.Phase)
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ch, cancel := hub.Subscribe()
	cancel()

	_, ok := <-ch
	assert.False(t, ok)
	assert.Equal(t, 0, hub.SubscriberCount())

	// 重复取消不 panic
	cancel()
}

func TestHub_SlowSubscriberDropsNotBlocks(t *testing.T) {
	hub := NewHub(zap.NewNop())

	ch, cancel := hub.Subscribe()
	defer cancel()

	// 填满缓冲后继续发布必须立即返回
	done := make(chan struct{})
	go func() {
		for i := 0; i < subscriberBuffer*3; i++ {
			hub.Publish(types.AssetEvent{AssetName: "flood", Phase: "building"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}

	// 缓冲里最多 subscriberBuffer 条
	received := 0
	for {
		select {
		case <-ch:
			received++
		default:
			require.LessOrEqual(t, received, subscriberBuffer)
			return
		}
	}
}

func TestHub_PublishWithoutSubscribers(t *testing.T) {
	hub := NewHub(zap.NewNop())
	hub.Publish(types.AssetEvent{AssetName: "noone"})
	assert.Equal(t, 0, hub.SubscriberCount())
}
