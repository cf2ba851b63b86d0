// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package preview

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/overlaycast/internal/config"
	"github.com/ManuGH/overlaycast/internal/player"
	"github.com/ManuGH/overlaycast/internal/player/playertest"
)

func TestProbe_Ready(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	sink := playertest.NewSink(nil)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for sink.Source() == "" {
			time.Sleep(time.Millisecond)
		}
		sink.Emit(player.SinkEvent{Type: player.SinkLoadedMetadata})
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	snap, err := Probe(ctx, config.Defaults(), "http://cdn.example/clip.mp4", ProbeDeps{Sink: sink})
	require.NoError(t, err)
	<-done

	assert.Contains(t, []player.State{player.StateReady, player.StatePlaying}, snap.State)
	assert.Equal(t, player.KindProgressive, snap.Kind)
	assert.Nil(t, snap.Error)
}

func TestProbe_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	cfg := config.Defaults()
	cfg.Player.LoadTimeout = 20 * time.Millisecond

	snap, err := Probe(context.Background(), cfg, "http://cdn.example/stalled.mp4", ProbeDeps{Sink: playertest.NewSink(nil)})
	require.NoError(t, err)
	assert.Equal(t, player.StateError, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, player.PlaybackError{Kind: player.ErrorNetwork, Detail: "loading timeout"}, *snap.Error)
}

func TestProbe_EmptySource(t *testing.T) {
	snap, err := Probe(context.Background(), config.Defaults(), "", ProbeDeps{Sink: playertest.NewSink(nil)})
	require.NoError(t, err)
	assert.False(t, snap.Attached)
}

func TestProbe_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Probe(ctx, config.Defaults(), "http://cdn.example/clip.mp4", ProbeDeps{Sink: playertest.NewSink(nil)})
	assert.ErrorIs(t, err, context.Canceled)
}
