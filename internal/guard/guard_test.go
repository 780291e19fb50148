package guard

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gzhole/hostguard/internal/platform"
)

type fakeDebugger struct {
	attached   bool
	debuggable bool
	buildReads int
}

func (d *fakeDebugger) DebuggerAttached() bool { return d.attached }

func (d *fakeDebugger) BuildDebuggable() bool {
	d.buildReads++
	return d.debuggable
}

type fakeSurface struct {
	mu     sync.Mutex
	secure bool
	writes int
	err    error
}

func (s *fakeSurface) SetSecure(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.writes++
	s.secure = enabled
	return nil
}

func (s *fakeSurface) Secure() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secure
}

func provider(s platform.Surface) platform.SurfaceProviderFunc {
	return func() platform.Surface { return s }
}

func TestIsDebugged(t *testing.T) {
	tests := []struct {
		name       string
		attached   bool
		debuggable bool
		want       bool
		wantReads  int
	}{
		{"attached, release build", true, false, true, 0},
		{"attached, debuggable build", true, true, true, 0},
		{"detached, debuggable build", false, true, true, 1},
		{"detached, release build", false, false, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &fakeDebugger{attached: tt.attached, debuggable: tt.debuggable}
			g := New(d, nil, nil, nil)
			assert.Equal(t, tt.want, g.IsDebugged())
			assert.Equal(t, tt.wantReads, d.buildReads)
		})
	}
}

func TestSetSecureDisplay_Idempotent(t *testing.T) {
	s := &fakeSurface{}
	var applied []bool
	g := New(nil, provider(s), nil, func(enabled, ok bool, err error) {
		require.NoError(t, err)
		applied = append(applied, ok)
	})

	g.SetSecureDisplay(true)
	g.SetSecureDisplay(true)
	assert.True(t, s.Secure())
	assert.Equal(t, 1, s.writes, "second enable must be a no-op")
	assert.Equal(t, []bool{true, false}, applied)
	assert.Equal(t, CaptureSuppressed, g.CaptureState())

	g.SetSecureDisplay(false)
	assert.False(t, s.Secure())
	assert.Equal(t, CaptureUnsuppressed, g.CaptureState())

	g.SetSecureDisplay(false)
	assert.Equal(t, 2, s.writes)
}

func TestSetSecureDisplay_NoSurface(t *testing.T) {
	var calls int
	g := New(nil, provider(nil), nil, func(enabled, ok bool, err error) {
		calls++
		assert.False(t, ok)
		assert.NoError(t, err)
	})

	g.SetSecureDisplay(true)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CaptureNoSurface, g.CaptureState())

	g = New(nil, nil, nil, nil)
	g.SetSecureDisplay(true)
	assert.Equal(t, CaptureNoSurface, g.CaptureState())
}

func TestSetSecureDisplay_SurfaceError(t *testing.T) {
	s := &fakeSurface{err: errors.New("window gone")}
	var gotErr error
	g := New(nil, provider(s), nil, func(enabled, ok bool, err error) { gotErr = err })

	g.SetSecureDisplay(true)
	assert.EqualError(t, gotErr, "window gone")
}

func TestSetSecureDisplay_RunsOnExecutor(t *testing.T) {
	var queued []func()
	exec := platform.ExecutorFunc(func(fn func()) { queued = append(queued, fn) })
	s := &fakeSurface{}
	g := New(nil, provider(s), exec, nil)

	g.SetSecureDisplay(true)
	assert.False(t, s.Secure(), "toggle must not run on the caller")
	require.Len(t, queued, 1)

	queued[0]()
	assert.True(t, s.Secure())
}

func TestSetSecureDisplay_LastWriterWins(t *testing.T) {
	loop := platform.NewLoop(context.Background(), 64)
	s := &fakeSurface{}
	g := New(nil, provider(s), loop, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			g.SetSecureDisplay(i%2 == 0)
		}(i)
	}
	wg.Wait()
	g.SetSecureDisplay(true)
	loop.Close()

	assert.True(t, s.Secure())
}
