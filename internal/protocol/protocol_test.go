package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSplitsBatchedFrames(t *testing.T) {
	frame := []byte("{\"id\":1,\"connect\":{\"ping\":25}}\n{\"push\":{\"channel\":\"news\"}}\n")
	replies, err := Decode(frame)
	require.NoError(t, err)
	require.Len(t, replies, 2)
	assert.Equal(t, uint32(1), replies[0].ID)
	assert.Equal(t, "news", replies[1].Push.Channel)
}

func TestDecodeHeartbeatFrame(t *testing.T) {
	replies, err := Decode(PingFrame)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].IsHeartbeat())
}

func TestDecodeFailsWholeFrameOnPartialParse(t *testing.T) {
	frame := []byte("{\"id\":1}\n{not json}\n")
	_, err := Decode(frame)
	assert.Error(t, err)
}

func TestCommandMethod(t *testing.T) {
	cmd := &Command{ID: 1, Subscribe: &SubscribeRequest{Channel: "news"}}
	assert.Equal(t, MethodSubscribe, cmd.Method())
}

func TestNextCommandIDMonotonic(t *testing.T) {
	ResetCommandIDCounter()
	a := NextCommandID()
	b := NextCommandID()
	assert.Equal(t, uint32(1), a)
	assert.Equal(t, uint32(2), b)
}

func TestCloseCodeReconnectable(t *testing.T) {
	assert.False(t, CloseInvalidToken.Reconnectable())
	assert.False(t, CloseForceNoReconnect.Reconnectable())
	assert.False(t, CloseUnsupportedData.Reconnectable())
	assert.False(t, CloseMandatoryExtension.Reconnectable())
	assert.True(t, CloseTokenVerificationFailed.Reconnectable())
	assert.True(t, CloseAbnormalClosure.Reconnectable())
	// 1007 (invalid frame payload data) is not one of the four codes
	// this protocol treats as irrecoverable; it must fall through to the
	// default reconnectable branch like any other/unknown code.
	assert.True(t, CloseInvalidFramePayloadData.Reconnectable())
}
