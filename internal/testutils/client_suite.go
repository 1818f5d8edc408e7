//go:build test

package testutils

import (
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/ringchan"
)

// Handle layout of the AMS peripheral used by ClientSuite.DiscoverAll.
const (
	ServiceStart uint16 = 0x0010
	ServiceEnd   uint16 = 0x0020

	RemoteCommandValue   uint16 = 0x0012
	RemoteCommandCCCD    uint16 = 0x0013
	EntityUpdateValue    uint16 = 0x0015
	EntityUpdateCCCD     uint16 = 0x0016
	EntityAttributeValue uint16 = 0x0018
)

// ClientSuite wires an ams.Client to a FakeHost and records completions,
// debug notifications and published media updates.
//
//	type DiscoverySuite struct {
//	    testutils.ClientSuite
//	}
//
//	func (s *DiscoverySuite) TestReady() {
//	    s.DiscoverAll()
//	    s.Equal(ams.StateReady, s.Client.State())
//	}
type ClientSuite struct {
	suite.Suite

	Logger  *logrus.Logger
	Host    *FakeHost
	Client  *ams.Client
	Updates *ringchan.Ring[ams.MediaUpdate]

	Completions []ams.ConnID
	Notes       []string
}

func (s *ClientSuite) SetupTest() {
	s.Logger = NewTestHelper(s.T()).Logger
	s.Host = NewFakeHost()
	s.Updates = ringchan.New[ams.MediaUpdate](16)
	s.Completions = nil
	s.Notes = nil
	s.Client = ams.NewClient(s.Host, s.Logger,
		ams.WithUpdates(s.Updates),
		ams.WithNotifier(ams.NotifierFunc(func(msg string) {
			s.Notes = append(s.Notes, msg)
		})),
	)
}

// Discover starts discovery on conn, recording its completion.
func (s *ClientSuite) Discover(conn ams.ConnID) {
	s.Client.Discover(conn, func(c ams.ConnID) {
		s.Completions = append(s.Completions, c)
	})
}

// DeliverCharacteristics reports the three AMS characteristics and ends the scan.
func (s *ClientSuite) DeliverCharacteristics() {
	s.Host.DeliverCharacteristic(Char(ams.RemoteCommandUUID, RemoteCommandValue))
	s.Host.DeliverCharacteristic(Char(ams.EntityUpdateUUID, EntityUpdateValue))
	s.Host.DeliverCharacteristic(Char(ams.EntityAttributeUUID, EntityAttributeValue))
	s.Host.DeliverCharacteristic(Done[ams.CharacteristicResult]())
}

// DiscoverAll runs a complete discovery on conn 1 against a peripheral that
// exposes every AMS attribute and confirms every subscribe write.
func (s *ClientSuite) DiscoverAll() {
	s.Discover(1)
	s.Host.DeliverService(AMSService(ServiceStart, ServiceEnd))
	s.Host.DeliverService(Done[ams.ServiceResult]())
	s.DeliverCharacteristics()

	s.Host.DeliverDescriptor(RemoteCommandValue, Desc(ams.CCCDUUID, RemoteCommandCCCD))
	s.Host.DeliverDescriptor(RemoteCommandValue, Done[ams.DescriptorResult]())
	s.Host.DeliverDescriptor(EntityUpdateValue, Desc(ams.CCCDUUID, EntityUpdateCCCD))
	s.Host.DeliverDescriptor(EntityUpdateValue, Done[ams.DescriptorResult]())
	s.Host.CompleteWrites(ams.StatusOK)

	s.Require().Equal(ams.StateReady, s.Client.State(), "discovery MUST reach Ready")
}

// DrainUpdates returns every media update buffered so far.
func (s *ClientSuite) DrainUpdates() []ams.MediaUpdate {
	var out []ams.MediaUpdate
	for {
		u, ok := s.Updates.TryReceive()
		if !ok {
			return out
		}
		out = append(out, u)
	}
}
