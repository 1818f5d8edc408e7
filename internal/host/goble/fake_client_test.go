//go:build test

package goble

import (
	"errors"
	"sync"

	"github.com/go-ble/ble"

	"github.com/srg/blams/internal/ams"
)

// fakeOp is one recorded go-ble client call.
type fakeOp struct {
	Kind  string // "subscribe", "write-char", "write-desc", "clear", "cancel"
	UUID  ble.UUID
	Value []byte
	NoRsp bool
}

// fakeClient is an in-memory ble.Client exposing an AMS profile. Methods the
// host never calls are left to the embedded nil interface.
type fakeClient struct {
	ble.Client

	mu       sync.Mutex
	services []*ble.Service
	ops      []fakeOp
	handlers map[string]ble.NotificationHandler

	discoverErr  error
	serviceGate  chan struct{}
	subscribeErr error

	disconnected chan struct{}
	disconnect   sync.Once
}

// newAMSClient builds a profile with every AMS attribute. With zeroHandles the
// client reports no handles, as CoreBluetooth does.
func newAMSClient(zeroHandles bool) *fakeClient {
	h := func(v uint16) uint16 {
		if zeroHandles {
			return 0
		}
		return v
	}
	cccd := func(v uint16) *ble.Descriptor {
		return &ble.Descriptor{UUID: ble.ClientCharacteristicConfigUUID, Handle: h(v)}
	}

	rc := &ble.Characteristic{UUID: ams.RemoteCommandUUID, Property: ble.CharNotify | ble.CharWrite, Handle: h(0x11), ValueHandle: h(0x12), EndHandle: h(0x13)}
	rc.Descriptors = []*ble.Descriptor{cccd(0x13)}
	eu := &ble.Characteristic{UUID: ams.EntityUpdateUUID, Property: ble.CharNotify | ble.CharWrite, Handle: h(0x14), ValueHandle: h(0x15), EndHandle: h(0x16)}
	eu.Descriptors = []*ble.Descriptor{cccd(0x16)}
	ea := &ble.Characteristic{UUID: ams.EntityAttributeUUID, Property: ble.CharRead | ble.CharWrite, Handle: h(0x17), ValueHandle: h(0x18), EndHandle: h(0x18)}

	svc := &ble.Service{UUID: ams.ServiceUUID, Handle: h(0x10), EndHandle: h(0x18)}
	svc.Characteristics = []*ble.Characteristic{rc, eu, ea}

	return &fakeClient{
		services:     []*ble.Service{svc},
		handlers:     make(map[string]ble.NotificationHandler),
		disconnected: make(chan struct{}),
	}
}

func newEmptyClient() *fakeClient {
	return &fakeClient{
		services:     []*ble.Service{{UUID: ble.UUID16(0x180F), Handle: 1, EndHandle: 5}},
		handlers:     make(map[string]ble.NotificationHandler),
		disconnected: make(chan struct{}),
	}
}

func (f *fakeClient) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	if f.serviceGate != nil {
		<-f.serviceGate
	}
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	var out []*ble.Service
	for _, s := range f.services {
		for _, u := range filter {
			if s.UUID.Equal(u) {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

func (f *fakeClient) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	return s.Characteristics, nil
}

func (f *fakeClient) DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error) {
	return c.Descriptors, nil
}

func (f *fakeClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if c.CCCD == nil {
		return errors.New("cccd not found")
	}
	if f.subscribeErr != nil {
		return f.subscribeErr
	}
	f.ops = append(f.ops, fakeOp{Kind: "subscribe", UUID: c.UUID})
	f.handlers[c.UUID.String()] = h
	return nil
}

func (f *fakeClient) WriteCharacteristic(c *ble.Characteristic, v []byte, noRsp bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fakeOp{Kind: "write-char", UUID: c.UUID, Value: append([]byte(nil), v...), NoRsp: noRsp})
	return nil
}

func (f *fakeClient) WriteDescriptor(d *ble.Descriptor, v []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fakeOp{Kind: "write-desc", UUID: d.UUID, Value: append([]byte(nil), v...)})
	return nil
}

func (f *fakeClient) ClearSubscriptions() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ops = append(f.ops, fakeOp{Kind: "clear"})
	return nil
}

func (f *fakeClient) CancelConnection() error {
	f.mu.Lock()
	f.ops = append(f.ops, fakeOp{Kind: "cancel"})
	f.mu.Unlock()
	f.drop()
	return nil
}

func (f *fakeClient) Disconnected() <-chan struct{} {
	return f.disconnected
}

func (f *fakeClient) drop() {
	f.disconnect.Do(func() { close(f.disconnected) })
}

// notify simulates a peripheral notification on the characteristic u.
func (f *fakeClient) notify(u ble.UUID, payload []byte) bool {
	f.mu.Lock()
	h, ok := f.handlers[u.String()]
	f.mu.Unlock()
	if ok {
		h(payload)
	}
	return ok
}

func (f *fakeClient) recorded() []fakeOp {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]fakeOp(nil), f.ops...)
}
