package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udalga/alkiscord/internal/domain"
)

func TestHandleOfferRelaysToTarget(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	bobID := f.join(t, "conn-bob", "Bob")
	f.tr.reset()

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0 o=- ..."}`)
	err := f.signal.HandleOffer(context.Background(), "conn-alice", domain.OfferPayload{TargetUserID: bobID, Offer: offer})
	require.NoError(t, err)

	sent := f.tr.sentTo("conn-bob")
	require.Len(t, sent, 1)
	assert.Equal(t, domain.EventOffer, sent[0].Event)
	ev := sent[0].Data.(domain.OfferEvent)
	assert.Equal(t, aliceID, ev.FromUserID)
	// The body passes through untouched.
	assert.JSONEq(t, string(offer), string(ev.Offer))

	// Relay is point to point, never a broadcast.
	assert.Empty(t, f.tr.broadcasts(f.roomID))
	assert.Empty(t, f.tr.sentTo("conn-alice"))
}

func TestHandleAnswerRelaysToTarget(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	bobID := f.join(t, "conn-bob", "Bob")
	f.tr.reset()

	answer := json.RawMessage(`{"type":"answer","sdp":"v=0"}`)
	err := f.signal.HandleAnswer(context.Background(), "conn-bob", domain.AnswerPayload{TargetUserID: aliceID, Answer: answer})
	require.NoError(t, err)

	sent := f.tr.sentTo("conn-alice")
	require.Len(t, sent, 1)
	assert.Equal(t, domain.EventAnswer, sent[0].Event)
	ev := sent[0].Data.(domain.AnswerEvent)
	assert.Equal(t, bobID, ev.FromUserID)
	assert.JSONEq(t, string(answer), string(ev.Answer))
}

func TestHandleICECandidateRelaysToTarget(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	bobID := f.join(t, "conn-bob", "Bob")
	f.tr.reset()

	candidate := json.RawMessage(`{"candidate":"candidate:1 1 UDP 2122252543 192.0.2.1 54321 typ host","sdpMid":"0"}`)
	err := f.signal.HandleICECandidate(context.Background(), "conn-alice", domain.ICECandidatePayload{TargetUserID: bobID, Candidate: candidate})
	require.NoError(t, err)

	sent := f.tr.sentTo("conn-bob")
	require.Len(t, sent, 1)
	ev := sent[0].Data.(domain.ICECandidateEvent)
	assert.Equal(t, aliceID, ev.FromUserID)
	assert.JSONEq(t, string(candidate), string(ev.Candidate))
}

func TestRelayUnreachableTargetIsDropped(t *testing.T) {
	f := newFixture(t)
	f.join(t, "conn-alice", "Alice")
	f.tr.reset()

	err := f.signal.HandleOffer(context.Background(), "conn-alice", domain.OfferPayload{TargetUserID: "gone", Offer: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Empty(t, f.tr.all())
}

func TestRelayFromUnboundSenderIsIgnored(t *testing.T) {
	f := newFixture(t)
	bobID := f.join(t, "conn-bob", "Bob")
	f.tr.reset()

	err := f.signal.HandleOffer(context.Background(), "conn-stranger", domain.OfferPayload{TargetUserID: bobID, Offer: json.RawMessage(`{}`)})
	require.NoError(t, err)
	assert.Empty(t, f.tr.all())
}

// Directional role assignment: when Alice starts voice, every already
// active member is told and initiates toward her; Alice herself hears
// nothing and waits to answer.
func TestHandleVoiceStartedNotifiesOthersOnly(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	f.join(t, "conn-bob", "Bob")
	require.NoError(t, f.signal.HandleVoiceStarted(context.Background(), "conn-bob"))
	f.tr.reset()

	require.NoError(t, f.signal.HandleVoiceStarted(context.Background(), "conn-alice"))

	bcasts := f.tr.broadcasts(f.roomID)
	require.Len(t, bcasts, 1)
	assert.Equal(t, domain.EventPeerVoiceStarted, bcasts[0].env.Event)
	assert.Equal(t, "conn-alice", bcasts[0].connID)
	assert.Equal(t, aliceID, bcasts[0].env.Data.(domain.PeerEvent).UserID)

	user, ok := f.reg.UserByID(f.roomID, aliceID)
	require.True(t, ok)
	assert.True(t, user.IsVoiceActive)
}

func TestHandleVoiceStoppedClearsPresence(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	require.NoError(t, f.signal.HandleVoiceStarted(context.Background(), "conn-alice"))
	f.tr.reset()

	require.NoError(t, f.signal.HandleVoiceStopped(context.Background(), "conn-alice"))

	bcasts := f.tr.broadcasts(f.roomID)
	require.Len(t, bcasts, 1)
	assert.Equal(t, domain.EventPeerVoiceStopped, bcasts[0].env.Event)

	user, _ := f.reg.UserByID(f.roomID, aliceID)
	assert.False(t, user.IsVoiceActive)
}

// Screen start/stop notifications do not touch presence flags; the
// room-level toggle owns the IsSharingScreen state.
func TestHandleScreenStartedIsNotificationOnly(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	f.tr.reset()

	require.NoError(t, f.signal.HandleScreenStarted(context.Background(), "conn-alice"))

	bcasts := f.tr.broadcasts(f.roomID)
	require.Len(t, bcasts, 1)
	assert.Equal(t, domain.EventPeerScreenStarted, bcasts[0].env.Event)
	assert.Equal(t, "conn-alice", bcasts[0].connID)

	user, _ := f.reg.UserByID(f.roomID, aliceID)
	assert.False(t, user.IsSharingScreen)
}

func TestHandleReadyForConnections(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	f.join(t, "conn-bob", "Bob")
	f.tr.reset()

	require.NoError(t, f.signal.HandleReadyForConnections(context.Background(), "conn-alice", "screen"))

	bcasts := f.tr.broadcasts(f.roomID)
	require.Len(t, bcasts, 1)
	assert.Equal(t, domain.EventPeerReady, bcasts[0].env.Event)
	assert.Equal(t, "conn-alice", bcasts[0].connID)
	ev := bcasts[0].env.Data.(domain.PeerReadyEvent)
	assert.Equal(t, aliceID, ev.UserID)
	assert.Equal(t, "screen", ev.Type)
}

// The roster query returns the current voice mesh minus the requester,
// who then offers toward each listed member.
func TestHandleRequestVoiceUsers(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	bobID := f.join(t, "conn-bob", "Bob")
	f.join(t, "conn-carol", "Carol")
	require.NoError(t, f.signal.HandleVoiceStarted(context.Background(), "conn-alice"))
	require.NoError(t, f.signal.HandleVoiceStarted(context.Background(), "conn-bob"))
	f.tr.reset()

	require.NoError(t, f.signal.HandleRequestVoiceUsers(context.Background(), "conn-carol"))

	sent := f.tr.sentTo("conn-carol")
	require.Len(t, sent, 1)
	assert.Equal(t, domain.EventVoiceUsersList, sent[0].Event)
	ev := sent[0].Data.(domain.VoiceUsersListEvent)
	assert.ElementsMatch(t, []string{aliceID, bobID}, ev.VoiceUsers)
	assert.Empty(t, f.tr.broadcasts(f.roomID))
}

func TestHandleRequestVoiceUsersEmptyMesh(t *testing.T) {
	f := newFixture(t)
	f.join(t, "conn-alice", "Alice")
	f.tr.reset()

	require.NoError(t, f.signal.HandleRequestVoiceUsers(context.Background(), "conn-alice"))

	sent := f.tr.sentTo("conn-alice")
	require.Len(t, sent, 1)
	assert.Empty(t, sent[0].Data.(domain.VoiceUsersListEvent).VoiceUsers)
}

func TestHandleDisconnectAnnouncesPeerLeft(t *testing.T) {
	f := newFixture(t)
	aliceID := f.join(t, "conn-alice", "Alice")
	f.join(t, "conn-bob", "Bob")
	f.tr.reset()

	require.NoError(t, f.signal.HandleDisconnect(context.Background(), "conn-alice"))

	bcasts := f.tr.broadcasts(f.roomID)
	require.Len(t, bcasts, 1)
	assert.Equal(t, domain.EventPeerLeft, bcasts[0].env.Event)
	assert.Equal(t, "conn-alice", bcasts[0].connID)
	assert.Equal(t, aliceID, bcasts[0].env.Data.(domain.PeerEvent).UserID)
}

func TestHandleDisconnectUnbound(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.signal.HandleDisconnect(context.Background(), "conn-stranger"))
	assert.Empty(t, f.tr.all())
}
