package bus

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishOrder(t *testing.T) {
	b := New()
	var got []string

	b.Subscribe(KindInfo, func(_ context.Context, ev Event) {
		got = append(got, "first:"+ev.(Info).Message)
	})
	b.Subscribe(KindInfo, func(_ context.Context, ev Event) {
		got = append(got, "second:"+ev.(Info).Message)
	})
	b.Subscribe(KindSuccess, func(_ context.Context, ev Event) {
		got = append(got, "success:"+ev.(Success).Message)
	})

	ctx := context.Background()
	b.Publish(ctx, Info{Message: "a"})
	b.Publish(ctx, Success{Message: "b"})
	b.Publish(ctx, Info{Message: "c"})

	assert.Equal(t, []string{
		"first:a", "second:a",
		"success:b",
		"first:c", "second:c",
	}, got)
}

func TestUnsubscribe(t *testing.T) {
	b := New()
	calls := 0
	unsub := b.Subscribe(KindReloadScene, func(context.Context, Event) { calls++ })

	b.Publish(context.Background(), ReloadScene{})
	unsub()
	unsub()
	b.Publish(context.Background(), ReloadScene{})

	assert.Equal(t, 1, calls)
	assert.Zero(t, b.Subscribers(KindReloadScene))
}

func TestReentrantPublish(t *testing.T) {
	b := New()
	var got []Kind

	b.Subscribe(KindLoadScene, func(ctx context.Context, ev Event) {
		got = append(got, ev.Kind())
		b.Publish(ctx, CityModelLoaded{ModelID: ev.(LoadScene).ModelID})
	})
	b.Subscribe(KindCityModelLoaded, func(_ context.Context, ev Event) {
		got = append(got, ev.Kind())
	})

	b.Publish(context.Background(), LoadScene{ModelID: "m"})
	assert.Equal(t, []Kind{KindLoadScene, KindCityModelLoaded}, got)
}

func TestUnsubscribeDuringPublish(t *testing.T) {
	b := New()
	calls := 0
	var unsub func()
	unsub = b.Subscribe(KindInfo, func(context.Context, Event) {
		calls++
		unsub()
	})
	b.Subscribe(KindInfo, func(context.Context, Event) { calls++ })

	b.Publish(context.Background(), Info{})
	assert.Equal(t, 2, calls, "the snapshot taken at publish time is delivered in full")
	b.Publish(context.Background(), Info{})
	assert.Equal(t, 3, calls)
}
