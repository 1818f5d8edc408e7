//go:build test

package ams_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/testutils"
)

type ClientTestSuite struct {
	testutils.ClientSuite
}

func TestClientTestSuite(t *testing.T) {
	suite.Run(t, new(ClientTestSuite))
}

func (s *ClientTestSuite) TestDiscoverAll() {
	// GOAL: Verify a full handshake against a complete AMS peripheral
	//
	// TEST SCENARIO: Service found → three characteristics → both CCCDs → writes confirmed → Ready, one completion

	s.DiscoverAll()

	s.Equal([]ams.ConnID{1}, s.Completions, "completion MUST fire exactly once with the connection id")
	s.Equal(ams.OutcomeReady, s.Client.Outcome())
	s.NoError(s.Client.Err())
	s.True(s.Client.CanSendCommands())

	writes := s.Host.Writes()
	s.Require().Len(writes, 4)
	s.Equal(testutils.RemoteCommandCCCD, writes[0].Handle)
	s.Equal([]byte{0x01, 0x00}, writes[0].Value)
	s.Equal(testutils.EntityUpdateCCCD, writes[1].Handle)
	s.Equal([]byte{0x01, 0x00}, writes[1].Value)
	s.Equal(testutils.EntityUpdateValue, writes[2].Handle)
	s.Equal([]byte{0x00, 0x01}, writes[2].Value)
	s.Nil(writes[2].OnComplete, "selector writes MUST be fire-and-forget")
	s.Equal(testutils.EntityUpdateValue, writes[3].Handle)
	s.Equal([]byte{0x02, 0x00, 0x01, 0x02, 0x03}, writes[3].Value)

	s.Contains(s.Notes, "AMS Characteristic discovered: Remote Command")
	s.Contains(s.Notes, "AMS Characteristic discovered: Entity Update")
	s.Contains(s.Notes, "AMS Characteristic discovered: Entity Attribute")
}

func (s *ClientTestSuite) TestServiceNotFound() {
	// GOAL: Verify an absent service completes without further discovery
	//
	// TEST SCENARIO: Service lookup ends with no match → NotFound completion → no characteristic or descriptor calls

	s.Discover(4)
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())

	s.Equal([]ams.ConnID{4}, s.Completions)
	s.Equal(ams.StateNotFound, s.Client.State())
	s.Empty(s.Host.CallsOf(testutils.CallDiscoverCharacteristics), "no characteristic discovery MUST be issued")
	s.Empty(s.Host.CallsOf(testutils.CallDiscoverDescriptors), "no descriptor discovery MUST be issued")
}

func (s *ClientTestSuite) TestServiceLookupError() {
	// GOAL: Verify a host error during service lookup ends discovery
	//
	// TEST SCENARIO: Service lookup reports ATT error → Error completion → later results ignored

	s.Discover(1)
	s.Host.DeliverService(ams.ServiceResult{Status: ams.Status(0x0E)})
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())

	s.Len(s.Completions, 1)
	s.Equal(ams.StateError, s.Client.State())
	var hostErr *ams.HostError
	s.Require().ErrorAs(s.Client.Err(), &hostErr)
	s.Equal(ams.Status(0x0E), hostErr.Status)
}

func (s *ClientTestSuite) TestMissingEntityUpdate() {
	// GOAL: Verify an absent characteristic gets no descriptor scan yet discovery completes
	//
	// TEST SCENARIO: Only remote command found → one scan → CCCD subscribed → Ready

	s.Discover(1)
	s.Host.DeliverService(testutils.AMSService(testutils.ServiceStart, testutils.ServiceEnd))
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.Host.DeliverCharacteristic(testutils.Char(ams.RemoteCommandUUID, testutils.RemoteCommandValue))
	s.Host.DeliverCharacteristic(testutils.Done[ams.CharacteristicResult]())

	scans := s.Host.CallsOf(testutils.CallDiscoverDescriptors)
	s.Require().Len(scans, 1, "only the discovered characteristic MUST be scanned")
	s.Equal(testutils.RemoteCommandValue, scans[0].Start)
	s.Equal(testutils.ServiceEnd, scans[0].End)
	s.False(s.Client.Handles().EntityUpdate.Discovered)

	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Desc(ams.CCCDUUID, testutils.RemoteCommandCCCD))
	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Done[ams.DescriptorResult]())
	s.Empty(s.Completions, "completion MUST wait for the subscribe confirmation")

	s.Host.CompleteWrite(testutils.RemoteCommandCCCD, ams.StatusOK)
	s.Equal([]ams.ConnID{1}, s.Completions)
	s.Equal(ams.StateReady, s.Client.State())
}

func (s *ClientTestSuite) TestNoCharacteristics() {
	// GOAL: Verify the degenerate none-found case completes once
	//
	// TEST SCENARIO: Service found → characteristic scan finds nothing → NotFound completion

	s.Discover(1)
	s.Host.DeliverService(testutils.AMSService(testutils.ServiceStart, testutils.ServiceEnd))
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.Host.DeliverCharacteristic(testutils.Done[ams.CharacteristicResult]())

	s.Len(s.Completions, 1)
	s.Equal(ams.StateNotFound, s.Client.State())
	s.Empty(s.Host.CallsOf(testutils.CallDiscoverDescriptors))
}

func (s *ClientTestSuite) TestInterleavedDescriptorScans() {
	// GOAL: Verify descriptor scans completing out of order still complete exactly once
	//
	// TEST SCENARIO: Entity update scan finishes before remote command scan → writes confirmed mid-scan → one completion

	s.Discover(1)
	s.Host.DeliverService(testutils.AMSService(testutils.ServiceStart, testutils.ServiceEnd))
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.DeliverCharacteristics()

	s.Host.DeliverDescriptor(testutils.EntityUpdateValue, testutils.Desc(ams.CCCDUUID, testutils.EntityUpdateCCCD))
	s.Host.CompleteWrite(testutils.EntityUpdateCCCD, ams.StatusOK)
	s.Host.DeliverDescriptor(testutils.EntityUpdateValue, testutils.Done[ams.DescriptorResult]())
	s.Empty(s.Completions)

	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Desc(ams.CCCDUUID, testutils.RemoteCommandCCCD))
	s.Host.CompleteWrite(testutils.RemoteCommandCCCD, ams.Status(0x05))
	s.Equal([]ams.ConnID{1}, s.Completions, "both descriptors found and confirmed MUST complete")

	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Done[ams.DescriptorResult]())
	s.Len(s.Completions, 1, "late scan end MUST NOT complete again")
	s.Contains(s.Notes, "AMS subscribe failed: handle 0x0013: att error 0x05")
}

func (s *ClientTestSuite) TestDuplicateDescriptorSingleWrite() {
	// GOAL: Verify at most one subscribe write per characteristic
	//
	// TEST SCENARIO: Remote command CCCD reported twice → one write to its handle

	s.Discover(1)
	s.Host.DeliverService(testutils.AMSService(testutils.ServiceStart, testutils.ServiceEnd))
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.DeliverCharacteristics()

	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Desc(ams.CCCDUUID, testutils.RemoteCommandCCCD))
	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Desc(ams.CCCDUUID, testutils.RemoteCommandCCCD))

	s.Len(s.Host.WritesTo(testutils.RemoteCommandCCCD), 1, "duplicate CCCD MUST NOT trigger a second write")
}

func (s *ClientTestSuite) TestSendCommand() {
	// GOAL: Verify commands are no-ops before discovery and single byte writes after
	//
	// TEST SCENARIO: SendCommand before discovery → no write → discovery → SendCommand → one 1-byte write without response

	s.False(s.Client.SendCommand(ams.CommandPlay), "command before discovery MUST be a no-op")
	s.Empty(s.Host.Writes())

	s.DiscoverAll()
	before := len(s.Host.Writes())

	s.True(s.Client.SendCommand(ams.CommandNextTrack))
	writes := s.Host.Writes()[before:]
	s.Require().Len(writes, 1)
	s.Equal(testutils.RemoteCommandValue, writes[0].Handle)
	s.Equal([]byte{0x03}, writes[0].Value)
	s.True(writes[0].NoResponse, "remote command MUST be written without response")
	s.Nil(writes[0].OnComplete)
}

func (s *ClientTestSuite) TestSendCommandAfterCharacteristicScan() {
	// GOAL: Verify commands are available as soon as the remote command characteristic is discovered
	//
	// TEST SCENARIO: Characteristics discovered, descriptors pending → SendCommand(Play) → one write

	s.Discover(1)
	s.Host.DeliverService(testutils.AMSService(testutils.ServiceStart, testutils.ServiceEnd))
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.DeliverCharacteristics()

	s.True(s.Client.SendCommand(ams.CommandPlay))
	s.Equal([]byte{0x00}, s.Host.WritesTo(testutils.RemoteCommandValue)[0].Value)
}

func (s *ClientTestSuite) TestNotifications() {
	// GOAL: Verify notifications decode into media state and are published
	//
	// TEST SCENARIO: Discover → player and track notifications → accessors and update ring reflect them

	s.DiscoverAll()

	s.Client.OnNotification(testutils.EntityUpdateValue, testutils.PlayerPayload("1,1.0,42.5"))
	s.Client.OnNotification(testutils.EntityUpdateValue, testutils.TrackPayload(2, "Song Title"))
	s.Client.OnNotification(testutils.EntityUpdateValue, testutils.TrackPayload(0, "Band"))
	s.Client.OnNotification(testutils.EntityUpdateValue, testutils.TrackPayload(3, "180.25"))
	s.Client.OnNotification(testutils.RemoteCommandValue, []byte{0x00, 0x01, 0x02})

	s.True(s.Client.IsPlaying())
	s.Equal(1.0, s.Client.PlaybackRate())
	s.Equal(42.5, s.Client.Elapsed())
	s.Equal("Song Title", s.Client.Title())
	s.Equal("Band", s.Client.Artist())
	s.Equal("", s.Client.Album())
	s.Equal(180.25, s.Client.Duration())
	s.Equal([]ams.RemoteCommand{ams.CommandPlay, ams.CommandPause, ams.CommandTogglePlayPause}, s.Client.Media().SupportedCommands)

	updates := s.DrainUpdates()
	s.Require().Len(updates, 5)
	s.Equal(ams.FieldPlaybackInfo, updates[0].Field)
	s.Equal(ams.FieldSupportedCommands, updates[4].Field)
}

func (s *ClientTestSuite) TestTruncatedPlayerPayload() {
	// GOAL: Verify a truncated playback payload is fail-soft
	//
	// TEST SCENARIO: Full playback info → truncated "1" payload → rate and elapsed keep prior values

	s.DiscoverAll()
	s.Client.OnNotification(testutils.EntityUpdateValue, testutils.PlayerPayload("0,2.0,12"))

	s.NotPanics(func() {
		s.Client.OnNotification(testutils.EntityUpdateValue, []byte{0x00, 0x01, '1'})
	})
	s.True(s.Client.IsPlaying())
	s.Equal(2.0, s.Client.PlaybackRate())
	s.Equal(12.0, s.Client.Elapsed())
}

func (s *ClientTestSuite) TestResetIgnoresStaleCallbacks() {
	// GOAL: Verify callbacks from a previous connection do not mutate reset state
	//
	// TEST SCENARIO: Discover on conn 1 → Reset → Discover on conn 2 → conn 1 service callback fires → no effect

	s.Discover(1)
	staleService := s.Host.ServiceCallback(0)

	s.Client.Reset()
	s.Equal([]ams.ConnID{1}, s.Completions, "reset MUST complete the pending discovery")
	s.Equal(ams.StateIdle, s.Client.State())

	s.Discover(2)
	staleService(testutils.AMSService(0x50, 0x60))
	staleService(testutils.Done[ams.ServiceResult]())

	s.Equal(ams.ServiceHandle{}, s.Client.Handles().Service, "stale callback MUST NOT record handles")
	s.Equal(ams.StateServiceLookup, s.Client.State())
	s.Len(s.Completions, 1)
	s.Empty(s.Host.CallsOf(testutils.CallDiscoverCharacteristics))
}

func (s *ClientTestSuite) TestResetClearsHandlesAndMedia() {
	// GOAL: Verify Reset drops handles and media so old notifications are ignored
	//
	// TEST SCENARIO: Discover → decode title → Reset → same notification → nothing changes, commands are no-ops

	s.DiscoverAll()
	s.Client.OnNotification(testutils.EntityUpdateValue, testutils.TrackPayload(2, "Song"))
	s.Require().Equal("Song", s.Client.Title())

	s.Client.Reset()
	s.Equal(ams.HandleTable{}, s.Client.Handles())
	s.Equal("", s.Client.Title())

	s.Client.OnNotification(testutils.EntityUpdateValue, testutils.TrackPayload(2, "Stale"))
	s.Equal("", s.Client.Title(), "notification after reset MUST be ignored")
	s.False(s.Client.SendCommand(ams.CommandPlay))

	s.Host.CompleteWrites(ams.StatusOK)
	s.Len(s.Completions, 1)
}

func (s *ClientTestSuite) TestStaleWriteCompletion() {
	// GOAL: Verify a subscribe confirmation from an earlier attempt is ignored
	//
	// TEST SCENARIO: Attempt 1 reaches writes → Reset → attempt 2 reaches writes → attempt 1 write confirms → no completion

	s.Discover(1)
	s.Host.DeliverService(testutils.AMSService(testutils.ServiceStart, testutils.ServiceEnd))
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.DeliverCharacteristics()
	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Desc(ams.CCCDUUID, testutils.RemoteCommandCCCD))
	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Done[ams.DescriptorResult]())
	s.Host.DeliverDescriptor(testutils.EntityUpdateValue, testutils.Done[ams.DescriptorResult]())

	s.Client.Reset()
	s.Completions = nil

	s.Discover(1)
	s.Host.DeliverService(testutils.AMSService(testutils.ServiceStart, testutils.ServiceEnd))
	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.DeliverCharacteristics()
	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Desc(ams.CCCDUUID, testutils.RemoteCommandCCCD))
	s.Host.DeliverDescriptor(testutils.RemoteCommandValue, testutils.Done[ams.DescriptorResult]())
	s.Host.DeliverDescriptor(testutils.EntityUpdateValue, testutils.Done[ams.DescriptorResult]())

	s.Require().Equal(2, s.Host.PendingWrites())
	s.Host.CompleteWrite(testutils.RemoteCommandCCCD, ams.StatusOK) // attempt 1
	s.Empty(s.Completions, "stale confirmation MUST NOT complete the new attempt")

	s.Host.CompleteWrite(testutils.RemoteCommandCCCD, ams.StatusOK) // attempt 2
	s.Equal([]ams.ConnID{1}, s.Completions)
}

func (s *ClientTestSuite) TestRediscoverAbortsPending() {
	// GOAL: Verify every Discover call gets exactly one completion
	//
	// TEST SCENARIO: Discover(1) pending → Discover(2) → first completes as error → second runs to NotFound

	s.Discover(1)
	s.Discover(2)
	s.Equal([]ams.ConnID{1}, s.Completions)

	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.Equal([]ams.ConnID{1, 2}, s.Completions)
	s.Equal(ams.StateNotFound, s.Client.State())
}

func (s *ClientTestSuite) TestAbortTimesOut() {
	// GOAL: Verify Abort ends a stalled discovery with a timeout
	//
	// TEST SCENARIO: Service lookup never ends → Abort → Error state, timeout outcome, single completion

	s.Discover(3)
	s.Client.Abort(3)
	s.Client.Abort(3)

	s.Equal([]ams.ConnID{3}, s.Completions)
	s.Equal(ams.StateError, s.Client.State())
	s.Equal(ams.OutcomeTimeout, s.Client.Outcome())

	s.Host.DeliverService(testutils.Done[ams.ServiceResult]())
	s.Len(s.Completions, 1)
}
