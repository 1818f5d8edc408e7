// Package goble runs the AMS client on top of github.com/go-ble/ble.
//
// go-ble exposes a blocking, object based GATT API while the AMS client
// expects an asynchronous, handle based host with strictly serialized
// callbacks. Host bridges the two: every go-ble call runs on its own
// goroutine and its results are posted back to a single event loop, which is
// the only goroutine that touches the ams.Client.
package goble

import (
	"bytes"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/blams/internal/ams"
	"github.com/srg/blams/internal/groutine"
)

const (
	// DefaultLoopBuffer is the event loop queue size.
	DefaultLoopBuffer = 256
	// DefaultWriteBuffer is the per connection write queue size.
	DefaultWriteBuffer = 32

	// syntheticHandleBase is the first handle assigned to attributes the
	// platform reports without one (CoreBluetooth never exposes handles).
	syntheticHandleBase  uint16 = 0x8000
	syntheticServiceSpan uint16 = 0x00FF

	failDeliveryTimeout = 5 * time.Second
)

// NotifyFunc receives notifications on the event loop.
type NotifyFunc func(handle uint16, payload []byte)

type descriptorRef struct {
	char *ble.Characteristic
	desc *ble.Descriptor
}

// attributes maps handles to the go-ble objects of one connection. It is
// filled from discovery goroutines and read from the writer goroutine.
type attributes struct {
	services *hashmap.Map[uint16, *ble.Service]
	chars    *hashmap.Map[uint16, *ble.Characteristic]
	descs    *hashmap.Map[uint16, descriptorRef]

	next atomic.Uint32
}

func newAttributes() *attributes {
	a := &attributes{
		services: hashmap.New[uint16, *ble.Service](),
		chars:    hashmap.New[uint16, *ble.Characteristic](),
		descs:    hashmap.New[uint16, descriptorRef](),
	}
	a.next.Store(uint32(syntheticHandleBase))
	return a
}

func (a *attributes) allocate(n uint16) uint16 {
	return uint16(a.next.Add(uint32(n)) - uint32(n))
}

func (a *attributes) addService(s *ble.Service) {
	if s.Handle == 0 {
		s.Handle = a.allocate(syntheticServiceSpan + 1)
		s.EndHandle = s.Handle + syntheticServiceSpan
	}
	a.services.Set(s.Handle, s)
}

func (a *attributes) addCharacteristic(c *ble.Characteristic) {
	if c.ValueHandle == 0 {
		c.Handle = a.allocate(2)
		c.ValueHandle = c.Handle + 1
	}
	a.chars.Set(c.ValueHandle, c)
}

func (a *attributes) addDescriptor(c *ble.Characteristic, d *ble.Descriptor) {
	if d.Handle == 0 {
		d.Handle = a.allocate(1)
	}
	a.descs.Set(d.Handle, descriptorRef{char: c, desc: d})
}

// writeJob is a queued write, or a flush marker when flushed is set.
type writeJob struct {
	req     ams.WriteRequest
	flushed chan struct{}
}

type link struct {
	client ble.Client
	conn   ams.ConnID
	attrs  *attributes
	writes chan writeJob
	done   chan struct{}
}

// Host implements ams.Host on a go-ble client.
type Host struct {
	logger *logrus.Logger
	loop   chan func()

	mu     sync.RWMutex
	link   *link
	notify NotifyFunc
}

// NewHost creates a host. Run must be started before any ams.Client call.
func NewHost(logger *logrus.Logger) *Host {
	if logger == nil {
		logger = logrus.New()
	}
	return &Host{
		logger: logger,
		loop:   make(chan func(), DefaultLoopBuffer),
	}
}

// Run executes posted functions until ctx is done.
func (h *Host) Run(ctx context.Context) {
	h.logger.Debug("AMS event loop started")
	defer h.logger.Debug("AMS event loop stopped")
	for {
		select {
		case <-ctx.Done():
			return
		case fn := <-h.loop:
			fn()
		}
	}
}

// Post queues fn on the event loop. It returns false when ctx ends first.
func (h *Host) Post(ctx context.Context, fn func()) bool {
	select {
	case h.loop <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// Do runs fn on the event loop and waits for it to return.
func (h *Host) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	if !h.Post(ctx, func() {
		defer close(done)
		fn()
	}) {
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Attach binds the host to a connected client. Notifications are delivered to
// notify on the event loop.
func (h *Host) Attach(client ble.Client, conn ams.ConnID, notify NotifyFunc) {
	h.Detach()

	l := &link{
		client: client,
		conn:   conn,
		attrs:  newAttributes(),
		writes: make(chan writeJob, DefaultWriteBuffer),
		done:   make(chan struct{}),
	}

	h.mu.Lock()
	h.link = l
	h.notify = notify
	h.mu.Unlock()

	groutine.Go(context.Background(), "ams-writer", h.logger, func(ctx context.Context) {
		h.writer(l)
	})

	h.logger.WithField("conn", conn).Debug("AMS host attached")
}

// Detach drops the current client. Pending writes complete with
// StatusNotConnected.
func (h *Host) Detach() {
	h.mu.Lock()
	l := h.link
	h.link = nil
	h.notify = nil
	h.mu.Unlock()

	if l != nil {
		close(l.done)
		h.logger.WithField("conn", l.conn).Debug("AMS host detached")
	}
}

func (h *Host) current(conn ams.ConnID) *link {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.link == nil || h.link.conn != conn {
		return nil
	}
	return h.link
}

// deliver posts fn to the loop without blocking the calling goroutine
// forever once the loop is gone.
func (h *Host) deliver(l *link, fn func()) {
	select {
	case h.loop <- fn:
	case <-l.done:
	}
}

func (h *Host) DiscoverService(conn ams.ConnID, uuid ble.UUID, cb func(ams.ServiceResult)) {
	l := h.current(conn)
	if l == nil {
		h.failLater(func() { cb(ams.ServiceResult{Status: ams.StatusNotConnected}) })
		return
	}

	groutine.Go(context.Background(), "ams-discover-service", h.logger, func(ctx context.Context) {
		svcs, err := l.client.DiscoverServices([]ble.UUID{uuid})
		if err != nil {
			h.logger.WithFields(logrus.Fields{"uuid": uuid, "error": err}).Warn("Service discovery failed")
			h.deliver(l, func() { cb(ams.ServiceResult{Status: statusOf(err)}) })
			return
		}

		results := make([]ams.ServiceResult, 0, len(svcs)+1)
		for _, s := range svcs {
			if !s.UUID.Equal(uuid) {
				continue
			}
			l.attrs.addService(s)
			results = append(results, ams.ServiceResult{Service: &ams.Service{
				UUID:        s.UUID,
				StartHandle: s.Handle,
				EndHandle:   s.EndHandle,
			}})
		}
		results = append(results, ams.ServiceResult{Status: ams.StatusDone})

		h.logger.WithFields(logrus.Fields{"uuid": uuid, "matches": len(results) - 1}).Debug("Service discovery finished")
		h.deliver(l, func() {
			for _, r := range results {
				cb(r)
			}
		})
	})
}

func (h *Host) DiscoverCharacteristics(conn ams.ConnID, start, end uint16, cb func(ams.CharacteristicResult)) {
	l := h.current(conn)
	if l == nil {
		h.failLater(func() { cb(ams.CharacteristicResult{Status: ams.StatusNotConnected}) })
		return
	}
	svc, ok := l.attrs.services.Get(start)
	if !ok {
		h.failLater(func() { cb(ams.CharacteristicResult{Status: ams.StatusUnknownHandle}) })
		return
	}

	groutine.Go(context.Background(), "ams-discover-characteristics", h.logger, func(ctx context.Context) {
		chars, err := l.client.DiscoverCharacteristics(nil, svc)
		if err != nil {
			h.logger.WithFields(logrus.Fields{"service": svc.UUID, "error": err}).Warn("Characteristic discovery failed")
			h.deliver(l, func() { cb(ams.CharacteristicResult{Status: statusOf(err)}) })
			return
		}

		results := make([]ams.CharacteristicResult, 0, len(chars)+1)
		for _, c := range chars {
			l.attrs.addCharacteristic(c)
			results = append(results, ams.CharacteristicResult{Characteristic: &ams.Characteristic{
				UUID:        c.UUID,
				ValueHandle: c.ValueHandle,
				EndHandle:   c.EndHandle,
				Property:    c.Property,
			}})
		}
		results = append(results, ams.CharacteristicResult{Status: ams.StatusDone})

		h.logger.WithFields(logrus.Fields{"service": svc.UUID, "count": len(results) - 1}).Debug("Characteristic discovery finished")
		h.deliver(l, func() {
			for _, r := range results {
				cb(r)
			}
		})
	})
}

// DiscoverDescriptors reports the descriptors of the characteristic whose
// value handle is start.
func (h *Host) DiscoverDescriptors(conn ams.ConnID, start, end uint16, cb func(ams.DescriptorResult)) {
	l := h.current(conn)
	if l == nil {
		h.failLater(func() { cb(ams.DescriptorResult{Status: ams.StatusNotConnected}) })
		return
	}
	char, ok := l.attrs.chars.Get(start)
	if !ok {
		h.failLater(func() { cb(ams.DescriptorResult{Status: ams.StatusUnknownHandle}) })
		return
	}

	groutine.Go(context.Background(), "ams-discover-descriptors", h.logger, func(ctx context.Context) {
		descs, err := l.client.DiscoverDescriptors(nil, char)
		if err != nil {
			h.logger.WithFields(logrus.Fields{"characteristic": char.UUID, "error": err}).Warn("Descriptor discovery failed")
			h.deliver(l, func() { cb(ams.DescriptorResult{Status: statusOf(err)}) })
			return
		}

		results := make([]ams.DescriptorResult, 0, len(descs)+1)
		for _, d := range descs {
			l.attrs.addDescriptor(char, d)
			results = append(results, ams.DescriptorResult{Descriptor: &ams.Descriptor{UUID: d.UUID, Handle: d.Handle}})
		}
		results = append(results, ams.DescriptorResult{Status: ams.StatusDone})

		h.logger.WithFields(logrus.Fields{
			"characteristic": char.UUID,
			"count":          len(results) - 1,
			"end":            end,
		}).Debug("Descriptor discovery finished")
		h.deliver(l, func() {
			for _, r := range results {
				cb(r)
			}
		})
	})
}

// Write queues w on the connection writer. Writes run one at a time in
// issue order.
func (h *Host) Write(conn ams.ConnID, w ams.WriteRequest) {
	w.Value = append([]byte(nil), w.Value...)

	l := h.current(conn)
	if l == nil {
		if w.OnComplete != nil {
			h.failLater(func() { w.OnComplete(ams.StatusNotConnected) })
		}
		return
	}

	select {
	case l.writes <- writeJob{req: w}:
	case <-l.done:
		if w.OnComplete != nil {
			h.failLater(func() { w.OnComplete(ams.StatusNotConnected) })
		}
	}
}

// Flush waits until every write queued before the call has been executed.
func (h *Host) Flush(ctx context.Context) error {
	h.mu.RLock()
	l := h.link
	h.mu.RUnlock()
	if l == nil {
		return nil
	}

	flushed := make(chan struct{})
	select {
	case l.writes <- writeJob{flushed: flushed}:
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-flushed:
		return nil
	case <-l.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Host) writer(l *link) {
	for {
		select {
		case <-l.done:
			return
		case job := <-l.writes:
			if job.flushed != nil {
				close(job.flushed)
				continue
			}
			w := job.req
			status := h.execWrite(l, w)
			if w.OnComplete != nil {
				cb := w.OnComplete
				h.deliver(l, func() { cb(status) })
			}
		}
	}
}

func (h *Host) execWrite(l *link, w ams.WriteRequest) ams.Status {
	logger := h.logger.WithFields(logrus.Fields{
		"handle": w.Handle,
		"value":  w.Value,
	})

	if ref, ok := l.attrs.descs.Get(w.Handle); ok {
		if ref.desc.UUID.Equal(ble.ClientCharacteristicConfigUUID) && bytes.Equal(w.Value, ams.CCCDEnable()) {
			ref.char.CCCD = ref.desc
			valueHandle := ref.char.ValueHandle
			err := l.client.Subscribe(ref.char, false, func(payload []byte) {
				data := append([]byte(nil), payload...)
				h.deliver(l, func() { h.dispatchNotification(valueHandle, data) })
			})
			if err != nil {
				logger.WithField("error", err).Warn("Subscribe failed")
				return statusOf(err)
			}
			logger.Debug("Subscribed")
			return ams.StatusOK
		}
		if err := l.client.WriteDescriptor(ref.desc, w.Value); err != nil {
			logger.WithField("error", err).Warn("Descriptor write failed")
			return statusOf(err)
		}
		return ams.StatusOK
	}

	if char, ok := l.attrs.chars.Get(w.Handle); ok {
		if err := l.client.WriteCharacteristic(char, w.Value, w.NoResponse); err != nil {
			logger.WithField("error", err).Warn("Characteristic write failed")
			return statusOf(err)
		}
		logger.Debug("Characteristic written")
		return ams.StatusOK
	}

	logger.Warn("Write to unknown handle")
	return ams.StatusUnknownHandle
}

func (h *Host) dispatchNotification(handle uint16, payload []byte) {
	h.mu.RLock()
	notify := h.notify
	h.mu.RUnlock()
	if notify != nil {
		notify(handle, payload)
	}
}

// failLater reports a failure asynchronously, keeping callbacks off the
// caller's stack.
func (h *Host) failLater(fn func()) {
	groutine.Go(context.Background(), "ams-host-fail", h.logger, func(ctx context.Context) {
		select {
		case h.loop <- fn:
		case <-time.After(failDeliveryTimeout):
			h.logger.Warn("Event loop not running, dropping host failure")
		}
	})
}
