package testutils

import (
	"fmt"
	"sync"

	"github.com/go-ble/ble"

	"github.com/srg/blams/internal/ams"
)

// HostCallKind names a FakeHost operation.
type HostCallKind string

const (
	CallDiscoverService         HostCallKind = "discover-service"
	CallDiscoverCharacteristics HostCallKind = "discover-characteristics"
	CallDiscoverDescriptors     HostCallKind = "discover-descriptors"
	CallWrite                   HostCallKind = "write"
)

// HostCall is one recorded FakeHost operation.
type HostCall struct {
	Kind  HostCallKind
	Conn  ams.ConnID
	UUID  ble.UUID
	Start uint16
	End   uint16
	Write ams.WriteRequest
}

// FakeHost is a scriptable ams.Host. It records every call and keeps the
// callbacks so a test decides when and in which order results arrive.
//
//	host := testutils.NewFakeHost()
//	client := ams.NewClient(host, logger)
//	client.Discover(1, done)
//	host.DeliverService(testutils.AMSService(0x10, 0x30))
//	host.DeliverService(testutils.Done[ams.ServiceResult]())
type FakeHost struct {
	mu    sync.Mutex
	calls []HostCall

	services []func(ams.ServiceResult)
	chars    []func(ams.CharacteristicResult)
	descs    map[uint16][]func(ams.DescriptorResult)
	pending  []ams.WriteRequest
}

func NewFakeHost() *FakeHost {
	return &FakeHost{descs: make(map[uint16][]func(ams.DescriptorResult))}
}

func (h *FakeHost) DiscoverService(conn ams.ConnID, uuid ble.UUID, cb func(ams.ServiceResult)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, HostCall{Kind: CallDiscoverService, Conn: conn, UUID: uuid})
	h.services = append(h.services, cb)
}

func (h *FakeHost) DiscoverCharacteristics(conn ams.ConnID, start, end uint16, cb func(ams.CharacteristicResult)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, HostCall{Kind: CallDiscoverCharacteristics, Conn: conn, Start: start, End: end})
	h.chars = append(h.chars, cb)
}

func (h *FakeHost) DiscoverDescriptors(conn ams.ConnID, start, end uint16, cb func(ams.DescriptorResult)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, HostCall{Kind: CallDiscoverDescriptors, Conn: conn, Start: start, End: end})
	h.descs[start] = append(h.descs[start], cb)
}

func (h *FakeHost) Write(conn ams.ConnID, w ams.WriteRequest) {
	h.mu.Lock()
	defer h.mu.Unlock()
	w.Value = append([]byte(nil), w.Value...)
	h.calls = append(h.calls, HostCall{Kind: CallWrite, Conn: conn, Write: w})
	if w.OnComplete != nil {
		h.pending = append(h.pending, w)
	}
}

// Calls returns a copy of every recorded call.
func (h *FakeHost) Calls() []HostCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]HostCall(nil), h.calls...)
}

// CallsOf returns the recorded calls of one kind.
func (h *FakeHost) CallsOf(kind HostCallKind) []HostCall {
	var out []HostCall
	for _, c := range h.Calls() {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Writes returns every write request in issue order.
func (h *FakeHost) Writes() []ams.WriteRequest {
	var out []ams.WriteRequest
	for _, c := range h.CallsOf(CallWrite) {
		out = append(out, c.Write)
	}
	return out
}

// WritesTo returns the writes issued on handle.
func (h *FakeHost) WritesTo(handle uint16) []ams.WriteRequest {
	var out []ams.WriteRequest
	for _, w := range h.Writes() {
		if w.Handle == handle {
			out = append(out, w)
		}
	}
	return out
}

// ServiceCallback returns the callback of the i-th service discovery.
func (h *FakeHost) ServiceCallback(i int) func(ams.ServiceResult) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.services[i]
}

// DeliverService feeds r to the latest service discovery.
func (h *FakeHost) DeliverService(r ams.ServiceResult) {
	h.mu.Lock()
	if len(h.services) == 0 {
		h.mu.Unlock()
		panic("fakehost: no service discovery in flight")
	}
	cb := h.services[len(h.services)-1]
	h.mu.Unlock()
	cb(r)
}

// DeliverCharacteristic feeds r to the latest characteristic discovery.
func (h *FakeHost) DeliverCharacteristic(r ams.CharacteristicResult) {
	h.mu.Lock()
	if len(h.chars) == 0 {
		h.mu.Unlock()
		panic("fakehost: no characteristic discovery in flight")
	}
	cb := h.chars[len(h.chars)-1]
	h.mu.Unlock()
	cb(r)
}

// DeliverDescriptor feeds r to the latest descriptor scan starting at start.
func (h *FakeHost) DeliverDescriptor(start uint16, r ams.DescriptorResult) {
	h.mu.Lock()
	cbs := h.descs[start]
	if len(cbs) == 0 {
		h.mu.Unlock()
		panic(fmt.Sprintf("fakehost: no descriptor scan at 0x%04X", start))
	}
	cb := cbs[len(cbs)-1]
	h.mu.Unlock()
	cb(r)
}

// PendingWrites returns the number of confirmed writes without completion.
func (h *FakeHost) PendingWrites() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.pending)
}

// CompleteWrite completes the oldest pending confirmed write on handle.
func (h *FakeHost) CompleteWrite(handle uint16, status ams.Status) {
	h.mu.Lock()
	for i, w := range h.pending {
		if w.Handle != handle {
			continue
		}
		h.pending = append(h.pending[:i], h.pending[i+1:]...)
		h.mu.Unlock()
		w.OnComplete(status)
		return
	}
	h.mu.Unlock()
	panic(fmt.Sprintf("fakehost: no pending write on 0x%04X", handle))
}

// CompleteWrites completes every pending confirmed write with status.
func (h *FakeHost) CompleteWrites(status ams.Status) {
	h.mu.Lock()
	pending := h.pending
	h.pending = nil
	h.mu.Unlock()
	for _, w := range pending {
		w.OnComplete(status)
	}
}

// Done returns a terminal stream result.
func Done[T ams.ServiceResult | ams.CharacteristicResult | ams.DescriptorResult]() T {
	var r T
	switch v := any(&r).(type) {
	case *ams.ServiceResult:
		v.Status = ams.StatusDone
	case *ams.CharacteristicResult:
		v.Status = ams.StatusDone
	case *ams.DescriptorResult:
		v.Status = ams.StatusDone
	}
	return r
}

// AMSService returns a found AMS service result.
func AMSService(start, end uint16) ams.ServiceResult {
	return ams.ServiceResult{Service: &ams.Service{UUID: ams.ServiceUUID, StartHandle: start, EndHandle: end}}
}

// Char returns a found characteristic result.
func Char(u ble.UUID, valueHandle uint16) ams.CharacteristicResult {
	return ams.CharacteristicResult{Characteristic: &ams.Characteristic{
		UUID:        u,
		ValueHandle: valueHandle,
		Property:    ble.CharNotify | ble.CharWrite,
	}}
}

// Desc returns a found descriptor result.
func Desc(u ble.UUID, handle uint16) ams.DescriptorResult {
	return ams.DescriptorResult{Descriptor: &ams.Descriptor{UUID: u, Handle: handle}}
}
