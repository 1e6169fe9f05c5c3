package lasagna

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestKick_RejoinsOnceAndReplaysOnJoin(t *testing.T) {
	e := newTestEnv(t).withSocket(t)
	e.client.InitChannel(context.Background(), "push:k", nil, ChannelCallbacks{})

	received := 0
	ref, ok := e.client.RegisterEventHandler("push:k", "msg", func(json.RawMessage) { received++ })
	if !ok {
		t.Fatalf("RegisterEventHandler() ok = false")
	}
	joined := 0
	e.client.JoinChannel("push:k", func() { joined++ })
	first := e.network.LastChannel("push:k")

	first.Emit(EventKicked, nil)

	if got := len(e.network.Channels("push:k")); got != 2 {
		t.Fatalf("transport channels = %d, want 2", got)
	}
	if first.LeaveCalls() != 1 {
		t.Fatalf("kicked channel leave calls = %d, want 1", first.LeaveCalls())
	}
	if joined != 2 {
		t.Fatalf("onJoin calls = %d, want 2", joined)
	}
	if len(e.accessor.calls()) != 1 {
		t.Fatalf("accessor calls = %d, want 1 (credential still valid)", len(e.accessor.calls()))
	}

	second := e.network.LastChannel("push:k")
	second.Emit("msg", map[string]string{"hi": "there"})
	if received != 1 {
		t.Fatalf("restored handler calls = %d, want 1", received)
	}
	if !e.client.UnregisterEventHandler("push:k", "msg", ref) {
		t.Fatalf("UnregisterEventHandler() with pre-rejoin ref = false")
	}
	if second.HandlerCount("msg") != 0 {
		t.Fatalf("handler still bound after unregister")
	}
}

func TestKick_FromReplacedChannelIgnored(t *testing.T) {
	e := newTestEnv(t).withSocket(t)
	e.client.InitChannel(context.Background(), "push:k", nil, ChannelCallbacks{})
	e.client.JoinChannel("push:k", nil)
	first := e.network.LastChannel("push:k")
	first.Emit(EventKicked, nil)

	first.Emit(EventKicked, nil)
	if got := len(e.network.Channels("push:k")); got != 2 {
		t.Fatalf("transport channels = %d, want 2", got)
	}

	e.network.LastChannel("push:k").Emit(EventKicked, nil)
	if got := len(e.network.Channels("push:k")); got != 3 {
		t.Fatalf("transport channels after second kick = %d, want 3", got)
	}
}

func TestKick_RefreshesStaleCredential(t *testing.T) {
	e := newTestEnv(t).withSocket(t)
	e.client.InitChannel(context.Background(), "push:k", nil, ChannelCallbacks{})
	e.clock.Add(3 * time.Hour)
	renewed := signToken(t, testNow.Add(6*time.Hour))
	e.accessor.token = renewed

	e.network.LastChannel("push:k").Emit(EventKicked, nil)

	info, ok := e.client.Channel("push:k")
	if !ok || info.Params[CredentialKey] != renewed {
		t.Fatalf("params = %v, want renewed credential", info.Params)
	}
}

func TestBan_LeavesWithoutRejoin(t *testing.T) {
	e := newTestEnv(t).withSocket(t)
	e.client.InitChannel(context.Background(), "push:b", nil, ChannelCallbacks{})
	e.client.JoinChannel("push:b", nil)
	ch := e.network.LastChannel("push:b")

	ch.Emit(EventBanned, nil)

	if _, ok := e.client.Channel("push:b"); ok {
		t.Fatalf("banned channel still registered")
	}
	if ch.LeaveCalls() != 1 {
		t.Fatalf("leave calls = %d, want 1", ch.LeaveCalls())
	}
	if e.client.rejoins.Pending("push:b") {
		t.Fatalf("rejoin subscription survived ban")
	}
	ch.Emit(EventKicked, nil)
	if got := len(e.network.Channels("push:b")); got != 1 {
		t.Fatalf("transport channels = %d, want 1", got)
	}
}

func TestRejoin_KeepsCallbacks(t *testing.T) {
	e := newTestEnv(t).withSocket(t)
	e.client.InitChannel(context.Background(), "push:k", Params{"room": "a"}, ChannelCallbacks{OnError: func(error) {}})
	e.network.LastChannel("push:k").Emit(EventKicked, nil)

	second := e.network.LastChannel("push:k")
	if _, errs := second.CallbackCounts(); errs != 1 {
		t.Fatalf("error callbacks on rebuilt channel = %d, want 1", errs)
	}
	if second.Params()["room"] != "a" {
		t.Fatalf("rebuilt channel params = %v", second.Params())
	}
}
