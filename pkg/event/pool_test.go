package event

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPool_GetPut(t *testing.T) {
	p := NewPool(128)

	r := p.Get()
	require.NotNil(t, r)
	assert.Len(t, r.Buffer, 128)
	assert.Equal(t, OpNone, r.Op)
	assert.Equal(t, int64(1), p.Outstanding())

	r.Release()
	assert.Equal(t, int64(0), p.Outstanding())
}

func TestPool_DefaultBufferSize(t *testing.T) {
	p := NewPool(0)
	assert.Equal(t, DefaultBufferSize, p.BufferSize())

	r := p.Get()
	defer r.Release()
	assert.Len(t, r.Buffer, DefaultBufferSize)
}

func TestPool_DoubleReleasePanics(t *testing.T) {
	p := NewPool(16)
	r := p.Get()
	r.Release()

	assert.Panics(t, func() { r.Release() })
	assert.Equal(t, int64(0), p.Outstanding())
}

func TestPool_ForeignPoolPanics(t *testing.T) {
	a := NewPool(16)
	b := NewPool(16)

	r := a.Get()
	assert.Panics(t, func() { b.Put(r) })
	r.Release()
}

func TestPool_ClearsStateOnGet(t *testing.T) {
	p := NewPool(16)

	r := p.Get()
	c1, c2 := net.Pipe()
	defer c2.Close()
	r.Op = OpReceive
	r.Conn = c1
	r.Err = errors.New("boom")
	r.N = 9
	r.UserToken = "owner"
	r.Release()
	_ = c1.Close()

	r = p.Get()
	defer r.Release()
	assert.Equal(t, OpNone, r.Op)
	assert.Nil(t, r.Conn)
	assert.NoError(t, r.Err)
	assert.Zero(t, r.N)
	assert.Nil(t, r.UserToken)
}

func TestPool_Concurrent(t *testing.T) {
	p := NewPool(32)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				r := p.Get()
				r.N = j
				r.Release()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), p.Outstanding())
}

func TestRecord_PrepareAccept(t *testing.T) {
	p := NewPool(16)
	r := p.Get()
	defer r.Release()

	r.Op = OpReceive
	r.Err = ErrOperationAborted
	r.N = 3
	r.PrepareAccept()

	assert.Equal(t, OpAccept, r.Op)
	assert.NoError(t, r.Err)
	assert.Zero(t, r.N)
}

func TestRecord_Aborted(t *testing.T) {
	r := &Record{}
	assert.False(t, r.Aborted())

	r.Err = fmt.Errorf("accept: %w", ErrOperationAborted)
	assert.True(t, r.Aborted())

	r.Err = errors.New("connection reset")
	assert.False(t, r.Aborted())
}

func TestOp_String(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{OpNone, "none"},
		{OpAccept, "accept"},
		{OpConnect, "connect"},
		{OpDisconnect, "disconnect"},
		{OpReceive, "receive"},
		{OpSend, "send"},
		{OpReceiveFrom, "receive-from"},
		{OpSendTo, "send-to"},
		{Op(200), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.op.String())
		})
	}
}
