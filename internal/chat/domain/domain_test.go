package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageStatus_Order(t *testing.T) {
	assert.True(t, StatusSent.Before(StatusDelivered))
	assert.True(t, StatusDelivered.Before(StatusRead))
	assert.False(t, StatusRead.Before(StatusDelivered))
	assert.False(t, StatusSent.Before(StatusSent))

	assert.Nil(t, StatusSent.Lower())
	assert.Equal(t, []MessageStatus{StatusSent}, StatusDelivered.Lower())
	assert.Equal(t, []MessageStatus{StatusSent, StatusDelivered}, StatusRead.Lower())

	assert.False(t, MessageStatus("lost").Valid())
	assert.Equal(t, -1, MessageStatus("lost").Rank())
}

func TestConversation_Peer(t *testing.T) {
	c := Conversation{Participants: []string{"a", "b"}}
	assert.Equal(t, "b", c.Peer("a"))
	assert.Equal(t, "a", c.Peer("b"))
	assert.Equal(t, "", c.Peer("z"))
	assert.True(t, c.HasParticipant("a"))
	assert.False(t, c.HasParticipant("z"))
}

func TestEvent_EncodeDecode(t *testing.T) {
	b, err := UserStatusEvent("a", PresenceOnline).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"user_status","data":{"userId":"a","status":"online"}}`, string(b))

	env, err := DecodeEnvelope(b)
	require.NoError(t, err)
	assert.Equal(t, EventUserStatus, env.Event)

	var p UserStatusPayload
	require.NoError(t, json.Unmarshal(env.Data, &p))
	assert.Equal(t, "a", p.UserID)
}

func TestOnlineUsersEvent_EmptyIsArray(t *testing.T) {
	b, err := OnlineUsersEvent(nil).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"event":"online_users","data":[]}`, string(b))
}

func TestDecodeEnvelope_Invalid(t *testing.T) {
	_, err := DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)

	_, err = DecodeEnvelope([]byte(`{"data":{}}`))
	assert.ErrorIs(t, err, ErrMissingEvent)
}
