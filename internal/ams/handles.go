package ams

// ServiceHandle is the attribute handle range of the discovered AMS service.
type ServiceHandle struct {
	Start uint16
	End   uint16
}

// CharacteristicEntry tracks one characteristic of interest. Discovered is
// sticky for the lifetime of a connection.
type CharacteristicEntry struct {
	ValueHandle uint16
	// EndHandle is the last handle of the characteristic definition, 0 when
	// the host did not report it.
	EndHandle  uint16
	Discovered bool
}

// DescriptorEntry tracks the notification configuration descriptor of a
// characteristic. Handle 0 means not found.
type DescriptorEntry struct {
	Handle uint16
	Found  bool
}

// HandleTable holds every handle learned during discovery.
type HandleTable struct {
	Service ServiceHandle

	RemoteCommand   CharacteristicEntry
	EntityUpdate    CharacteristicEntry
	EntityAttribute CharacteristicEntry

	RemoteCommandCCCD DescriptorEntry
	EntityUpdateCCCD  DescriptorEntry
}

// Tracks reports whether handle is one of the value or descriptor handles
// learned so far. Handle 0 is never tracked.
func (t HandleTable) Tracks(handle uint16) bool {
	if handle == 0 {
		return false
	}
	for _, h := range []uint16{
		t.RemoteCommand.ValueHandle,
		t.EntityUpdate.ValueHandle,
		t.EntityAttribute.ValueHandle,
		t.RemoteCommandCCCD.Handle,
		t.EntityUpdateCCCD.Handle,
	} {
		if h == handle {
			return true
		}
	}
	return false
}

// Progress is the discovery bookkeeping that complements the flags held in
// the HandleTable.
type Progress struct {
	ServiceFound bool
	// PendingScans counts descriptor scans without a terminal result.
	PendingScans int
	// PendingWrites counts subscribe writes without a completion.
	PendingWrites int
}
