// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package player_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/overlaycast/internal/player"
	"github.com/ManuGH/overlaycast/internal/player/playertest"
)

const (
	streamA = "https://cdn.example.test/live/a.m3u8"
	streamB = "https://cdn.example.test/live/b.m3u8"
)

func newController(t *testing.T, sink player.Sink, engines player.EngineFactory, opts player.Options) (*player.Controller, *playertest.Clock) {
	t.Helper()
	clock := playertest.NewClock(time.Unix(1700000000, 0))
	logger := zerolog.Nop()
	c, err := player.New(player.Config{
		Sink:    sink,
		Engines: engines,
		Clock:   clock,
		Options: opts,
		Logger:  &logger,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return c, clock
}

// settle lets callbacks enqueued by the previous round trip run as well.
func settle(t *testing.T, c *player.Controller) player.Snapshot {
	t.Helper()
	ctx := context.Background()
	_, err := c.Snapshot(ctx)
	require.NoError(t, err)
	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	return snap
}

func adaptiveRig(t *testing.T, opts player.Options) (*player.Controller, *playertest.Clock, *playertest.SegmentSink, *playertest.EngineFactory, *playertest.Recorder) {
	t.Helper()
	rec := &playertest.Recorder{}
	sink := playertest.NewSegmentSink(rec)
	engines := playertest.NewEngineFactory(rec)
	c, clock := newController(t, sink, engines, opts)
	return c, clock, sink, engines, rec
}

func indexOf(calls []string, want string) int {
	for i, c := range calls {
		if c == want {
			return i
		}
	}
	return -1
}

func TestNew_RequiresSink(t *testing.T) {
	_, err := player.New(player.Config{})
	require.Error(t, err)
}

func TestController_InitialState(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, _ := newController(t, sink, nil, player.Options{Muted: true})

	snap := settle(t, c)
	assert.Equal(t, player.StateLoading, snap.State)
	assert.False(t, snap.Attached)
	assert.Nil(t, snap.Error)
	assert.Equal(t, player.VolumeState{Level: 1, Muted: true}, snap.Volume)

	level, muted := sink.Volume()
	assert.Equal(t, 1.0, level)
	assert.True(t, muted)
}

func TestController_TeardownPrecedesCreate(t *testing.T) {
	c, _, _, engines, rec := adaptiveRig(t, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	require.NoError(t, c.Load(ctx, streamB))
	settle(t, c)

	calls := rec.Calls()
	destroy1 := indexOf(calls, "engine1.destroy")
	new2 := indexOf(calls, "engine2.new")
	require.NotEqual(t, -1, destroy1, "first engine must be destroyed: %v", calls)
	require.NotEqual(t, -1, new2, "second engine must be created: %v", calls)
	assert.Less(t, destroy1, new2, "teardown must precede creation: %v", calls)

	all := engines.Engines()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Destroyed())
	assert.Equal(t, 0, all[1].Destroyed())
	assert.Less(t, indexOf(calls, "engine2.load("+streamB+")"), indexOf(calls, "engine2.attach"))

	for _, cfg := range engines.Configs() {
		assert.Equal(t, player.EngineConfig{}, cfg, "worker and debug stay off")
	}
}

func TestController_AdaptiveReadyWithAutoplay(t *testing.T) {
	c, _, _, engines, rec := adaptiveRig(t, player.Options{Autoplay: true})

	require.NoError(t, c.Load(context.Background(), streamA))
	snap := settle(t, c)
	assert.Equal(t, player.KindAdaptive, snap.Kind)
	assert.Equal(t, player.StateLoading, snap.State)

	engines.Last().ManifestParsed()
	snap = settle(t, c)
	assert.Equal(t, player.StatePlaying, snap.State)
	assert.Nil(t, snap.Error)
	assert.NotEqual(t, -1, indexOf(rec.Calls(), "sink.play"))
}

func TestController_ReadyWithoutAutoplayDoesNotPlay(t *testing.T) {
	c, _, _, engines, rec := adaptiveRig(t, player.Options{})

	require.NoError(t, c.Load(context.Background(), streamA))
	settle(t, c)
	engines.Last().ManifestParsed()

	snap := settle(t, c)
	assert.Equal(t, player.StateReady, snap.State)
	assert.Equal(t, -1, indexOf(rec.Calls(), "sink.play"))
}

func TestController_AutoplayRejectionIsSwallowed(t *testing.T) {
	c, _, sink, engines, _ := adaptiveRig(t, player.Options{Autoplay: true})
	sink.SetPlayErr(player.ErrPlayNotAllowed)

	require.NoError(t, c.Load(context.Background(), streamA))
	settle(t, c)
	engines.Last().ManifestParsed()

	snap := settle(t, c)
	assert.Equal(t, player.StateReady, snap.State)
	assert.Nil(t, snap.Error)
}

func TestController_LoadingTimeout(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, clock := newController(t, sink, nil, player.Options{})

	require.NoError(t, c.Load(context.Background(), streamA))
	settle(t, c)

	clock.Advance(9999 * time.Millisecond)
	snap := settle(t, c)
	assert.Equal(t, player.StateLoading, snap.State)

	clock.Advance(time.Millisecond)
	snap = settle(t, c)
	assert.Equal(t, player.StateError, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, player.PlaybackError{Kind: player.ErrorNetwork, Detail: "loading timeout"}, *snap.Error)
	assert.Equal(t, "Stream loading timeout - please check your connection or try again", snap.Message)
}

func TestController_FatalEngineErrorBeforeTimeout(t *testing.T) {
	tests := []struct {
		name    string
		typ     player.EngineErrorType
		details string
		want    player.PlaybackError
	}{
		{"network with details", player.EngineNetworkError, "manifestLoadError", player.PlaybackError{Kind: player.ErrorNetwork, Detail: "manifestLoadError"}},
		{"network fallback", player.EngineNetworkError, "", player.PlaybackError{Kind: player.ErrorNetwork, Detail: "failed to load stream"}},
		{"media fallback", player.EngineMediaError, "", player.PlaybackError{Kind: player.ErrorMedia, Detail: "media decode error"}},
		{"other", player.EngineMuxError, "", player.PlaybackError{Kind: player.ErrorUnknown, Detail: "unknown error"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, clock, _, engines, _ := adaptiveRig(t, player.Options{})
			require.NoError(t, c.Load(context.Background(), streamA))
			settle(t, c)

			clock.Advance(3 * time.Second)
			engines.Last().Fail(tt.typ, tt.details, true)
			snap := settle(t, c)
			require.NotNil(t, snap.Error)
			assert.Equal(t, tt.want, *snap.Error)
			assert.Equal(t, player.StateError, snap.State)

			// the loading timer was cancelled on resolution
			assert.Equal(t, 0, clock.Pending())
			clock.Advance(20 * time.Second)
			snap = settle(t, c)
			assert.Equal(t, tt.want, *snap.Error)
		})
	}
}

func TestController_FirstErrorWins(t *testing.T) {
	c, _, _, engines, _ := adaptiveRig(t, player.Options{})
	require.NoError(t, c.Load(context.Background(), streamA))
	settle(t, c)

	engines.Last().Fail(player.EngineNetworkError, "fragLoadError", true)
	engines.Last().Fail(player.EngineMediaError, "bufferAppendError", true)

	snap := settle(t, c)
	require.NotNil(t, snap.Error)
	assert.Equal(t, player.ErrorNetwork, snap.Error.Kind)
	assert.Equal(t, "fragLoadError", snap.Error.Detail)
}

func TestController_NonFatalEngineErrorIgnored(t *testing.T) {
	c, _, _, engines, _ := adaptiveRig(t, player.Options{})
	require.NoError(t, c.Load(context.Background(), streamA))
	settle(t, c)

	engines.Last().Fail(player.EngineNetworkError, "fragLoadError", false)
	snap := settle(t, c)
	assert.Equal(t, player.StateLoading, snap.State)
	assert.Nil(t, snap.Error)

	engines.Last().ManifestParsed()
	snap = settle(t, c)
	assert.Equal(t, player.StateReady, snap.State)
}

func TestController_StaleTimerNeverFires(t *testing.T) {
	sink := playertest.NewSink(nil)
	sink.NativeHLS = true
	c, clock := newController(t, sink, nil, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)
	clock.Advance(6 * time.Second)

	require.NoError(t, c.Load(ctx, streamB))
	settle(t, c)
	clock.Advance(6 * time.Second)

	// the first session's deadline has passed but it was superseded
	snap := settle(t, c)
	assert.Equal(t, player.StateLoading, snap.State)
	assert.Nil(t, snap.Error)
	assert.Equal(t, player.KindNativeHLS, snap.Kind)
	assert.Equal(t, streamB, sink.Source())

	sink.Emit(player.SinkEvent{Type: player.SinkLoadedMetadata})
	snap = settle(t, c)
	assert.Equal(t, player.StateReady, snap.State)

	clock.Advance(time.Minute)
	snap = settle(t, c)
	assert.Equal(t, player.StateReady, snap.State)
	assert.Nil(t, snap.Error)
}

func TestController_StaleEngineEventsDropped(t *testing.T) {
	c, _, _, engines, _ := adaptiveRig(t, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)
	first := engines.Last()
	require.NoError(t, c.Load(ctx, streamB))
	settle(t, c)

	first.Fail(player.EngineNetworkError, "manifestLoadError", true)
	first.ManifestParsed()

	snap := settle(t, c)
	assert.Equal(t, player.StateLoading, snap.State)
	assert.Nil(t, snap.Error)
	assert.Equal(t, uint64(2), snap.Generation)
}

func TestController_SinkErrorsByStrategy(t *testing.T) {
	tests := []struct {
		name      string
		nativeHLS bool
		err       *player.MediaError
		want      player.PlaybackError
	}{
		{
			name:      "native decode",
			nativeHLS: true,
			err:       &player.MediaError{Code: player.MediaErrDecode, Message: "PIPELINE_ERROR_DECODE"},
			want:      player.PlaybackError{Kind: player.ErrorMedia, Detail: "PIPELINE_ERROR_DECODE"},
		},
		{
			name:      "native without message",
			nativeHLS: true,
			err:       &player.MediaError{Code: player.MediaErrNetwork},
			want:      player.PlaybackError{Kind: player.ErrorUnknown, Detail: "failed to load video stream"},
		},
		{
			name: "progressive unsupported",
			err:  &player.MediaError{Code: player.MediaErrSrcNotSupported},
			want: player.PlaybackError{Kind: player.ErrorUnknown, Detail: "unsupported format or network issue"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := playertest.NewSink(nil)
			sink.NativeHLS = tt.nativeHLS
			c, _ := newController(t, sink, nil, player.Options{})
			require.NoError(t, c.Load(context.Background(), streamA))
			settle(t, c)

			sink.Emit(player.SinkEvent{Type: player.SinkError, Err: tt.err})
			snap := settle(t, c)
			assert.Equal(t, player.StateError, snap.State)
			require.NotNil(t, snap.Error)
			assert.Equal(t, tt.want, *snap.Error)
		})
	}
}

func TestController_PlayPauseFollowsSinkEvents(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, _ := newController(t, sink, nil, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)
	sink.Emit(player.SinkEvent{Type: player.SinkLoadedMetadata})
	assert.Equal(t, player.StateReady, settle(t, c).State)

	require.NoError(t, c.TogglePlay(ctx))
	assert.Equal(t, player.StatePlaying, settle(t, c).State)

	require.NoError(t, c.TogglePlay(ctx))
	assert.Equal(t, player.StatePaused, settle(t, c).State)

	require.NoError(t, c.TogglePlay(ctx))
	assert.Equal(t, player.StatePlaying, settle(t, c).State)
}

func TestController_PlayRejected(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, _ := newController(t, sink, nil, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)
	sink.Emit(player.SinkEvent{Type: player.SinkLoadedMetadata})
	settle(t, c)

	sink.SetPlayErr(player.ErrPlayNotAllowed)
	err := c.TogglePlay(ctx)
	require.ErrorIs(t, err, player.ErrPlayNotAllowed)
	snap := settle(t, c)
	assert.Equal(t, player.StateReady, snap.State)
	assert.Nil(t, snap.Error)
}

func TestController_PlayFailureBecomesError(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, _ := newController(t, sink, nil, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)
	sink.Emit(player.SinkEvent{Type: player.SinkLoadedMetadata})
	settle(t, c)

	sink.SetPlayErr(errors.New("decoder busy"))
	require.NoError(t, c.TogglePlay(ctx))
	snap := settle(t, c)
	assert.Equal(t, player.StateError, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, player.PlaybackError{Kind: player.ErrorUnknown, Detail: "play failed: decoder busy"}, *snap.Error)
}

func TestController_PlayFailureWhileErroredIsReturned(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, clock := newController(t, sink, nil, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)
	clock.Advance(10 * time.Second)
	require.Equal(t, player.StateError, settle(t, c).State)

	sink.SetPlayErr(errors.New("decoder busy"))
	err := c.TogglePlay(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoder busy")

	snap := settle(t, c)
	assert.Equal(t, player.StateError, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, "loading timeout", snap.Error.Detail, "the first error is kept")
}

func TestController_PlayDuringLoadingCarriesIntoReady(t *testing.T) {
	c, _, _, engines, _ := adaptiveRig(t, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)

	require.NoError(t, c.TogglePlay(ctx))
	assert.Equal(t, player.StateLoading, settle(t, c).State)

	engines.Last().ManifestParsed()
	assert.Equal(t, player.StatePlaying, settle(t, c).State)

	require.NoError(t, c.TogglePlay(ctx))
	assert.Equal(t, player.StatePaused, settle(t, c).State)
}

func TestController_PauseDuringLoadingKeepsAutoplay(t *testing.T) {
	c, _, sink, engines, rec := adaptiveRig(t, player.Options{Autoplay: true})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)
	sink.Emit(player.SinkEvent{Type: player.SinkPlay})
	sink.Emit(player.SinkEvent{Type: player.SinkPause})
	settle(t, c)

	rec.Reset()
	engines.Last().ManifestParsed()
	assert.Equal(t, player.StatePlaying, settle(t, c).State, "autoplay still applies")
	assert.NotEqual(t, -1, indexOf(rec.Calls(), "sink.play"))
}

func TestController_RetryRecreatesSession(t *testing.T) {
	c, clock, _, engines, _ := adaptiveRig(t, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	settle(t, c)
	clock.Advance(10 * time.Second)
	snap := settle(t, c)
	require.Equal(t, player.StateError, snap.State)

	require.NoError(t, c.Retry(ctx))
	snap = settle(t, c)
	assert.Equal(t, player.StateLoading, snap.State)
	assert.Nil(t, snap.Error)
	assert.Equal(t, uint64(2), snap.Generation)

	all := engines.Engines()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all[0].Destroyed())

	all[1].ManifestParsed()
	assert.Equal(t, player.StateReady, settle(t, c).State)
}

func TestController_NewSessionAppliesMutedOption(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, _ := newController(t, sink, nil, player.Options{})
	ctx := context.Background()
	volume := func() player.VolumeState {
		t.Helper()
		v, err := c.Volume(ctx)
		require.NoError(t, err)
		return v
	}

	require.NoError(t, c.Load(ctx, streamA))
	require.NoError(t, c.SetVolume(ctx, 0.4))

	require.NoError(t, c.SetOptions(ctx, player.Options{Muted: true}))
	assert.Equal(t, player.VolumeState{Level: 0.4}, volume(), "muted waits for the next session")

	require.NoError(t, c.Retry(ctx))
	assert.Equal(t, player.VolumeState{Level: 1, Muted: true}, volume())
	level, muted := sink.Volume()
	assert.Equal(t, 1.0, level)
	assert.True(t, muted)

	require.NoError(t, c.SetVolume(ctx, 0.5))
	require.NoError(t, c.Load(ctx, streamB))
	assert.Equal(t, player.VolumeState{Level: 0.5, Muted: true}, volume(), "a source change keeps the level")

	require.NoError(t, c.SetOptions(ctx, player.Options{}))
	require.NoError(t, c.Retry(ctx))
	assert.Equal(t, player.VolumeState{Level: 1}, volume())
	_, muted = sink.Volume()
	assert.False(t, muted)
}

func TestController_RetryWithoutSource(t *testing.T) {
	c, _ := newController(t, playertest.NewSink(nil), nil, player.Options{})
	require.ErrorIs(t, c.Retry(context.Background()), player.ErrNoSource)
}

func TestController_ToggleMuteTwiceRestoresVolume(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, _ := newController(t, sink, nil, player.Options{})
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, streamA))

	require.NoError(t, c.SetVolume(ctx, 0.35))
	before, err := c.Volume(ctx)
	require.NoError(t, err)

	require.NoError(t, c.ToggleMute(ctx))
	mid, err := c.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, player.VolumeState{Level: 0.35, Muted: true}, mid)

	require.NoError(t, c.ToggleMute(ctx))
	after, err := c.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	level, muted := sink.Volume()
	assert.Equal(t, 0.35, level)
	assert.False(t, muted)
}

func TestController_UnmuteRestoresLastLevel(t *testing.T) {
	c, _ := newController(t, playertest.NewSink(nil), nil, player.Options{})
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, streamA))

	require.NoError(t, c.SetVolume(ctx, 0.6))
	require.NoError(t, c.SetVolume(ctx, 0))
	vol, err := c.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, player.VolumeState{Level: 0, Muted: true}, vol)

	require.NoError(t, c.ToggleMute(ctx))
	vol, err = c.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, player.VolumeState{Level: 0.6, Muted: false}, vol)
}

// Toggling twice from a zero level lands on the restored level, not on the
// starting state.
func TestController_ToggleMuteTwiceAtZeroLevel(t *testing.T) {
	sink := playertest.NewSink(nil)
	c, _ := newController(t, sink, nil, player.Options{})
	ctx := context.Background()
	require.NoError(t, c.Load(ctx, streamA))

	require.NoError(t, c.SetVolume(ctx, 0.6))
	require.NoError(t, c.SetVolume(ctx, 0))

	require.NoError(t, c.ToggleMute(ctx))
	require.NoError(t, c.ToggleMute(ctx))
	vol, err := c.Volume(ctx)
	require.NoError(t, err)
	assert.Equal(t, player.VolumeState{Level: 0.6, Muted: true}, vol)

	level, muted := sink.Volume()
	assert.Equal(t, 0.6, level)
	assert.True(t, muted)
}

func TestController_SetVolumeBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		start player.VolumeState
		level float64
		want  player.VolumeState
	}{
		{"zero mutes", player.VolumeState{Level: 1}, 0, player.VolumeState{Level: 0, Muted: true}},
		{"negative clamps to zero", player.VolumeState{Level: 1}, -0.5, player.VolumeState{Level: 0, Muted: true}},
		{"above one clamps", player.VolumeState{Level: 1}, 1.7, player.VolumeState{Level: 1}},
		{"nonzero unmutes", player.VolumeState{Level: 1, Muted: true}, 0.4, player.VolumeState{Level: 0.4}},
		{"nonzero keeps unmuted", player.VolumeState{Level: 1}, 0.8, player.VolumeState{Level: 0.8}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newController(t, playertest.NewSink(nil), nil, player.Options{Muted: tt.start.Muted})
			ctx := context.Background()
			require.NoError(t, c.Load(ctx, streamA))

			require.NoError(t, c.SetVolume(ctx, tt.level))
			got, err := c.Volume(ctx)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestController_SetVolumeRejectsNaN(t *testing.T) {
	c, _ := newController(t, playertest.NewSink(nil), nil, player.Options{})
	require.NoError(t, c.Load(context.Background(), streamA))
	assert.ErrorIs(t, c.SetVolume(context.Background(), math.NaN()), player.ErrInvalidVolume)
}

func TestController_ControlsRequireAttachment(t *testing.T) {
	c, _ := newController(t, playertest.NewSink(nil), nil, player.Options{})
	ctx := context.Background()

	assert.ErrorIs(t, c.TogglePlay(ctx), player.ErrNotAttached)
	assert.ErrorIs(t, c.ToggleMute(ctx), player.ErrNotAttached)
	assert.ErrorIs(t, c.SetVolume(ctx, 0.5), player.ErrNotAttached)
}

func TestController_EmptySourceDetaches(t *testing.T) {
	rec := &playertest.Recorder{}
	sink := playertest.NewSink(rec)
	c, clock := newController(t, sink, nil, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	require.NoError(t, c.Load(ctx, "  "))
	snap := settle(t, c)
	assert.False(t, snap.Attached)
	assert.Equal(t, 0, sink.Listeners())
	assert.Equal(t, 0, clock.Pending())
	assert.Equal(t, "", sink.Source())
}

func TestController_AutoplayChangeRecreatesSession(t *testing.T) {
	c, _, _, engines, _ := adaptiveRig(t, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	require.NoError(t, c.SetOptions(ctx, player.Options{Autoplay: false, ClassName: "wide"}))
	assert.Len(t, engines.Engines(), 1)

	require.NoError(t, c.SetOptions(ctx, player.Options{Autoplay: true}))
	snap := settle(t, c)
	assert.Len(t, engines.Engines(), 2)
	assert.Equal(t, uint64(2), snap.Generation)
	assert.True(t, snap.Options.Autoplay)
}

func TestController_EngineInitFailure(t *testing.T) {
	rec := &playertest.Recorder{}
	engines := playertest.NewEngineFactory(rec)
	engines.NewErr = errors.New("no decoder")
	c, clock := newController(t, playertest.NewSegmentSink(rec), engines, player.Options{})

	require.NoError(t, c.Load(context.Background(), streamA))
	snap := settle(t, c)
	assert.Equal(t, player.StateError, snap.State)
	require.NotNil(t, snap.Error)
	assert.Equal(t, player.ErrorUnknown, snap.Error.Kind)
	assert.Equal(t, "engine init failed: no decoder", snap.Error.Detail)
	assert.Equal(t, 0, clock.Pending())
}

func TestController_DestroyPanicIsContained(t *testing.T) {
	rec := &playertest.Recorder{}
	engines := playertest.NewEngineFactory(rec)
	engines.PanicOnDestroy = true
	c, _ := newController(t, playertest.NewSegmentSink(rec), engines, player.Options{})
	ctx := context.Background()

	require.NoError(t, c.Load(ctx, streamA))
	require.NoError(t, c.Load(ctx, streamB))
	snap := settle(t, c)
	assert.Equal(t, player.StateLoading, snap.State)
	assert.Len(t, engines.Engines(), 2)
}

func TestController_ProgressiveFallback(t *testing.T) {
	rec := &playertest.Recorder{}
	engines := playertest.NewEngineFactory(rec)
	engines.Disabled = true
	sink := playertest.NewSegmentSink(rec)
	c, _ := newController(t, sink, engines, player.Options{})

	require.NoError(t, c.Load(context.Background(), "https://cdn.example.test/vod/movie.mp4"))
	snap := settle(t, c)
	assert.Equal(t, player.KindProgressive, snap.Kind)
	assert.Equal(t, "https://cdn.example.test/vod/movie.mp4", sink.Source())
	assert.Empty(t, engines.Engines())
}

func TestController_CloseReleasesEverything(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	rec := &playertest.Recorder{}
	sink := playertest.NewSegmentSink(rec)
	engines := playertest.NewEngineFactory(rec)
	clock := playertest.NewClock(time.Unix(0, 0))
	logger := zerolog.Nop()
	c, err := player.New(player.Config{Sink: sink, Engines: engines, Clock: clock, Logger: &logger})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Load(ctx, streamA))
	require.NoError(t, c.Close(ctx))
	require.NoError(t, c.Close(ctx))

	select {
	case <-c.Done():
	default:
		t.Fatal("event loop still running after Close")
	}
	assert.Equal(t, 1, engines.Last().Destroyed())
	assert.Equal(t, 0, sink.Listeners())
	assert.Equal(t, 0, clock.Pending())

	assert.ErrorIs(t, c.Load(ctx, streamB), player.ErrClosed)
	_, err = c.Snapshot(ctx)
	assert.ErrorIs(t, err, player.ErrClosed)

	// late callbacks from the released engine are harmless
	engines.Last().ManifestParsed()
}
