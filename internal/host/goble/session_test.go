//go:build test

package goble

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/device"
	"github.com/srg/blams/internal/testutils"
)

const testAddress = "AA:BB:CC:DD:EE:FF"

type SessionTestSuite struct {
	suite.Suite

	helper       *testutils.TestHelper
	originalDial func(ctx context.Context, address string) (ble.Client, error)
	client       *fakeClient
	session      *Session
	notes        chan string
}

func TestSessionTestSuite(t *testing.T) {
	suite.Run(t, new(SessionTestSuite))
}

func (s *SessionTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.originalDial = Dial
	s.client = newAMSClient(false)
	Dial = func(ctx context.Context, address string) (ble.Client, error) {
		return s.client, nil
	}
	s.notes = make(chan string, 64)
	s.session = NewSession(s.helper.Logger, Options{
		DiscoveryTimeout: 2 * time.Second,
		Notifier: ams.NotifierFunc(func(msg string) {
			select {
			case s.notes <- msg:
			default:
			}
		}),
	})
}

func (s *SessionTestSuite) TearDownTest() {
	_ = s.session.Close()
	Dial = s.originalDial
}

func (s *SessionTestSuite) ctx() context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	s.T().Cleanup(cancel)
	return ctx
}

func (s *SessionTestSuite) connectAndDiscover() {
	s.Require().NoError(s.session.Connect(s.ctx(), testAddress))
	outcome, err := s.session.Discover(s.ctx())
	s.Require().NoError(err, "discovery MUST succeed against a complete AMS profile")
	s.Require().Equal(ams.OutcomeReady, outcome)

	// selector writes are fire-and-forget and may trail the completion
	s.Require().Eventually(func() bool {
		return len(s.client.recorded()) >= 4
	}, 2*time.Second, 10*time.Millisecond)
}

func (s *SessionTestSuite) waitForUpdate(field ams.Field) ams.MediaUpdate {
	timeout := time.After(2 * time.Second)
	for {
		select {
		case u := <-s.session.Updates():
			if u.Field == field {
				return u
			}
		case <-timeout:
			s.FailNow("media update not received", "field %s", field)
			return ams.MediaUpdate{}
		}
	}
}

func (s *SessionTestSuite) TestDefaultsApplied() {
	// GOAL: Verify zero options are replaced by struct tag defaults
	//
	// TEST SCENARIO: NewSession with only DiscoveryTimeout → connect timeout 30s, buffer 32

	s.Equal(30*time.Second, s.session.opts.ConnectTimeout)
	s.Equal(2*time.Second, s.session.opts.DiscoveryTimeout, "explicit values MUST be kept")
	s.Equal(32, s.session.opts.UpdateBuffer)
}

func (s *SessionTestSuite) TestDiscoverSubscribesInOrder() {
	// GOAL: Verify discovery subscribes both characteristics and primes entity update after its CCCD
	//
	// TEST SCENARIO: Connect → Discover → both subscriptions → two selector writes on EU after its subscription

	s.connectAndDiscover()

	ops := s.client.recorded()
	s.Require().Len(ops, 4)

	index := func(kind string, u ble.UUID, value []byte) int {
		for i, op := range ops {
			if op.Kind == kind && op.UUID.Equal(u) && string(op.Value) == string(value) {
				return i
			}
		}
		return -1
	}
	rcSub := index("subscribe", ams.RemoteCommandUUID, nil)
	euSub := index("subscribe", ams.EntityUpdateUUID, nil)
	playback := index("write-char", ams.EntityUpdateUUID, []byte{0x00, 0x01})
	track := index("write-char", ams.EntityUpdateUUID, []byte{0x02, 0x00, 0x01, 0x02, 0x03})

	s.NotEqual(-1, rcSub, "remote command MUST be subscribed")
	s.NotEqual(-1, euSub, "entity update MUST be subscribed")
	s.Greater(playback, euSub, "playback selector MUST follow the entity update subscription")
	s.Greater(track, playback, "track selector MUST follow the playback selector")

	h, err := s.session.Handles(s.ctx())
	s.Require().NoError(err)
	s.Equal(uint16(0x12), h.RemoteCommand.ValueHandle)
	s.Equal(uint16(0x16), h.EntityUpdateCCCD.Handle)
}

func (s *SessionTestSuite) TestDiscoverWithoutPlatformHandles() {
	// GOAL: Verify discovery works when the platform reports no attribute handles
	//
	// TEST SCENARIO: Profile with zero handles → synthetic handles assigned → Ready, notifications decoded

	s.client = newAMSClient(true)
	s.connectAndDiscover()

	h, err := s.session.Handles(s.ctx())
	s.Require().NoError(err)
	s.NotZero(h.EntityUpdate.ValueHandle, "synthetic value handle MUST be assigned")
	s.NotEqual(h.EntityUpdate.ValueHandle, h.RemoteCommand.ValueHandle)
	s.True(h.EntityUpdateCCCD.Found)

	s.Require().True(s.client.notify(ams.EntityUpdateUUID, testutils.TrackPayload(2, "Song Title")))
	u := s.waitForUpdate(ams.FieldTitle)
	s.Equal("Song Title", u.State.Title)
}

func (s *SessionTestSuite) TestNotificationsReachMedia() {
	// GOAL: Verify notifications flow from the go-ble handler through the loop into media state
	//
	// TEST SCENARIO: Discover → EU playback and artist notifications → updates published → Media snapshot matches

	s.connectAndDiscover()

	s.client.notify(ams.EntityUpdateUUID, testutils.PlayerPayload("1,1.0,42.5"))
	s.waitForUpdate(ams.FieldPlaybackInfo)
	s.client.notify(ams.EntityUpdateUUID, testutils.TrackPayload(0, "Band"))
	s.waitForUpdate(ams.FieldArtist)

	m := s.session.Media()
	s.True(m.IsPlaying)
	s.Equal(1.0, m.PlaybackRate)
	s.Equal(42.5, m.ElapsedSeconds)
	s.Equal("Band", m.Artist)
}

func (s *SessionTestSuite) TestSendCommand() {
	// GOAL: Verify remote commands are written without response as one byte
	//
	// TEST SCENARIO: SendCommand before connect → unavailable → discover → SendCommand → write-char recorded on return

	s.ErrorIs(s.session.SendCommand(s.ctx(), ams.CommandPlay), ErrCommandUnavailable)

	s.connectAndDiscover()
	s.Require().NoError(s.session.SendCommand(s.ctx(), ams.CommandNextTrack))

	// SendCommand flushes the write queue, no polling needed
	ops := s.client.recorded()
	s.Equal(fakeOp{Kind: "write-char", UUID: ams.RemoteCommandUUID, Value: []byte{0x03}, NoRsp: true}, ops[len(ops)-1])
}

func (s *SessionTestSuite) TestServiceNotFound() {
	// GOAL: Verify an absent AMS service surfaces as NotFoundError
	//
	// TEST SCENARIO: Peripheral without AMS → Discover → NotFound outcome and *device.NotFoundError

	s.client = newEmptyClient()
	s.Require().NoError(s.session.Connect(s.ctx(), testAddress))

	outcome, err := s.session.Discover(s.ctx())
	s.Equal(ams.OutcomeNotFound, outcome)
	var nf *device.NotFoundError
	s.Require().ErrorAs(err, &nf)
	s.Equal("service", nf.Resource)
}

func (s *SessionTestSuite) TestDiscoveryTimeout() {
	// GOAL: Verify a stalled discovery ends with ErrTimeout and late results are ignored
	//
	// TEST SCENARIO: Service discovery blocks → timeout fires → ErrTimeout → release blocked call → state unchanged

	s.session.opts.DiscoveryTimeout = 50 * time.Millisecond
	s.client.serviceGate = make(chan struct{})
	s.Require().NoError(s.session.Connect(s.ctx(), testAddress))

	outcome, err := s.session.Discover(s.ctx())
	s.Equal(ams.OutcomeTimeout, outcome)
	s.ErrorIs(err, device.ErrTimeout)

	close(s.client.serviceGate)
	time.Sleep(50 * time.Millisecond)
	h, err := s.session.Handles(s.ctx())
	s.Require().NoError(err)
	s.Equal(ams.ServiceHandle{}, h.Service, "late service result MUST be ignored")
}

func (s *SessionTestSuite) TestDiscoveryHostError() {
	// GOAL: Verify a go-ble discovery error ends discovery with an error
	//
	// TEST SCENARIO: DiscoverServices fails with disconnect → Discover returns ErrNotConnected

	s.client.discoverErr = errors.New("device not connected")
	s.Require().NoError(s.session.Connect(s.ctx(), testAddress))

	outcome, err := s.session.Discover(s.ctx())
	s.Equal(ams.OutcomeError, outcome)
	s.ErrorIs(err, device.ErrNotConnected)
}

func (s *SessionTestSuite) TestDisconnectResetsClient() {
	// GOAL: Verify a lost connection resets handles and media
	//
	// TEST SCENARIO: Discover → decode artist and title unread → peripheral disconnects → media, handles and buffered updates cleared

	s.connectAndDiscover()
	s.client.notify(ams.EntityUpdateUUID, testutils.TrackPayload(0, "Band"))
	s.client.notify(ams.EntityUpdateUUID, testutils.TrackPayload(2, "Song"))
	s.Eventually(func() bool { return s.session.Media().Title == "Song" }, 2*time.Second, 10*time.Millisecond)
	s.Equal(int64(2), s.session.UpdateStats().Written)

	s.client.drop()

	select {
	case <-s.session.Disconnected():
	case <-time.After(2 * time.Second):
		s.FailNow("disconnect MUST be reported")
	}
	s.Equal(ams.MediaState{}, s.session.Media(), "media MUST be cleared on disconnect")
	s.Len(s.session.Updates(), 0, "updates of the lost connection MUST be discarded")
	h, err := s.session.Handles(s.ctx())
	s.Require().NoError(err)
	s.Equal(ams.HandleTable{}, h)
	s.ErrorIs(s.session.SendCommand(s.ctx(), ams.CommandPlay), ErrCommandUnavailable)
}

func (s *SessionTestSuite) TestConnectTwice() {
	// GOAL: Verify a second Connect is rejected while connected
	//
	// TEST SCENARIO: Connect → Connect → ErrAlreadyConnected; empty address rejected

	s.Require().NoError(s.session.Connect(s.ctx(), testAddress))
	s.ErrorIs(s.session.Connect(s.ctx(), testAddress), device.ErrAlreadyConnected)
	s.Error(s.session.Connect(s.ctx(), "  "))
}

func (s *SessionTestSuite) TestDisconnectClearsSubscriptions() {
	// GOAL: Verify Disconnect clears subscriptions and cancels the connection
	//
	// TEST SCENARIO: Discover → Disconnect → clear and cancel recorded → second Disconnect is a no-op

	s.connectAndDiscover()
	s.Require().NoError(s.session.Disconnect())

	ops := s.client.recorded()
	s.Equal("clear", ops[len(ops)-2].Kind)
	s.Equal("cancel", ops[len(ops)-1].Kind)
	s.NoError(s.session.Disconnect())

	_, err := s.session.Discover(s.ctx())
	s.ErrorIs(err, device.ErrNotConnected)
}
