package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func buildFrame(opcode uint16, body ...byte) []byte {
	w := NewWriterWithOpcode(opcode)
	w.WriteBytes(body)
	return w.Bytes()
}

func TestDispatchCallsRegisteredHandler(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	called := false
	reg.Register(OpClientChat, []SessionState{StateInWorld}, func(sess any, r *Reader) error {
		called = true
		assert.Equal(t, OpClientChat, r.Opcode())
		return nil
	})

	err := reg.Dispatch(nil, StateInWorld, buildFrame(OpClientChat, 1, 2, 3))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestDispatchUnknownOpcodeClosesConnection(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	err := reg.Dispatch(nil, StateInWorld, buildFrame(0xBEEF))
	assert.Error(t, err)
}

func TestDispatchWrongStateRejected(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(OpClientEnteredWorld, []SessionState{StateWorldSRP}, func(sess any, r *Reader) error {
		t.Fatal("handler should not run for a disallowed state")
		return nil
	})

	err := reg.Dispatch(nil, StateUnauth, buildFrame(OpClientEnteredWorld))
	assert.Error(t, err)
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(OpClientChat, []SessionState{StateInWorld}, func(sess any, r *Reader) error {
		panic("boom")
	})

	err := reg.Dispatch(nil, StateInWorld, buildFrame(OpClientChat))
	assert.Error(t, err)
}

func TestDispatchRejectsShortFrame(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	err := reg.Dispatch(nil, StateInWorld, []byte{0x01})
	assert.Error(t, err)
}

func TestRegistered(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	assert.False(t, reg.Registered(OpClientChat))
	reg.Register(OpClientChat, []SessionState{StateInWorld}, func(sess any, r *Reader) error { return nil })
	assert.True(t, reg.Registered(OpClientChat))
}
