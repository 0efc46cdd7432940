package socket

import (
	"context"
	"errors"
	"net"
	"testing"

	"github.com/marmos91/dittonet/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ownerStub struct {
	got []*event.Record
}

func (o *ownerStub) HandleCompletion(rec *event.Record) {
	o.got = append(o.got, rec)
}

func TestBase_Lifecycle(t *testing.T) {
	var started, disposed int
	b := NewBase("test", Hooks{
		OnStart:   func(context.Context) error { started++; return nil },
		OnDispose: func() { disposed++ },
	})

	assert.Equal(t, "test", b.Name())
	assert.False(t, b.Running())
	assert.ErrorIs(t, b.Stop(), ErrNotRunning)

	require.NoError(t, b.Start(context.Background()))
	assert.True(t, b.Running())
	assert.ErrorIs(t, b.Start(context.Background()), ErrAlreadyRunning)

	require.NoError(t, b.Stop())
	assert.False(t, b.Running())
	assert.ErrorIs(t, b.Stop(), ErrNotRunning)

	// A stopped base can be started again.
	require.NoError(t, b.Start(context.Background()))
	require.NoError(t, b.Stop())

	assert.Equal(t, 2, started)
	assert.Equal(t, 2, disposed)
}

func TestBase_StartHookFailure(t *testing.T) {
	boom := errors.New("bind failed")
	b := NewBase("test", Hooks{
		OnStart: func(context.Context) error { return boom },
	})

	err := b.Start(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.False(t, b.Running())
}

func TestBase_ReportErrorInOrder(t *testing.T) {
	b := NewBase("test", Hooks{})

	var calls []string
	b.OnError(func(op event.Op, err error) { calls = append(calls, "first:"+op.String()) })
	b.OnError(nil)
	b.OnError(func(event.Op, error) { panic("handler bug") })
	b.OnError(func(op event.Op, err error) { calls = append(calls, "last:"+err.Error()) })

	b.ReportError(event.OpAccept, errors.New("reset"))
	b.ReportError(event.OpAccept, nil)

	assert.Equal(t, []string{"first:accept", "last:reset"}, calls)
}

func TestBase_ProcessWithRearm(t *testing.T) {
	tests := []struct {
		name      string
		process   func(*event.Record) error
		wantError bool
	}{
		{
			name:    "success",
			process: func(*event.Record) error { return nil },
		},
		{
			name:      "error",
			process:   func(*event.Record) error { return errors.New("factory failed") },
			wantError: true,
		},
		{
			name:      "panic",
			process:   func(*event.Record) error { panic("subscriber bug") },
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBase("test", Hooks{})

			var reported []event.Op
			b.OnError(func(op event.Op, err error) { reported = append(reported, op) })

			rearmed := 0
			rec := &event.Record{Op: event.OpAccept}
			assert.NotPanics(t, func() {
				b.ProcessWithRearm(rec, func() { rearmed++ }, tt.process)
			})

			assert.Equal(t, 1, rearmed)
			if tt.wantError {
				assert.Equal(t, []event.Op{event.OpAccept}, reported)
			} else {
				assert.Empty(t, reported)
			}
		})
	}
}

func TestBase_HandleCompletion(t *testing.T) {
	b := NewBase("test", Hooks{})

	t.Run("owner receives record", func(t *testing.T) {
		owner := &ownerStub{}
		rec := &event.Record{Op: event.OpReceive, UserToken: owner}
		b.HandleCompletion(rec)
		assert.Equal(t, []*event.Record{rec}, owner.got)
	})

	t.Run("orphan is closed and released", func(t *testing.T) {
		pool := event.NewPool(16)
		a, peer := net.Pipe()
		defer peer.Close()

		rec := pool.Get()
		rec.Op = event.OpSend
		rec.Conn = a
		b.HandleCompletion(rec)

		assert.Equal(t, int64(0), pool.Outstanding())
		_, err := a.Write([]byte("x"))
		assert.Error(t, err)
	})
}
