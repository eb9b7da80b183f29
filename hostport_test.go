package nrf70

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/soypat/nrf70/nrfwifi"
)

// Hostport queue registers and slots used by the tests. They sit in packet
// RAM between the TX and RX buffer pools.
const (
	testBase      = nrfwifi.RPU_MEM_PKT_BASE + 0x10000
	testEventBusy = testBase + 0x000
	testEventAvl  = testBase + 0x008
	testCmdBusy   = testBase + 0x010
	testCmdAvl    = testBase + 0x018
	testRxBusy    = testBase + 0x020
	testCmdSlot   = testBase + 0x1000
	testEventSlot = testBase + 0x2000
)

func testHPQ() nrfwifi.HPQMInfo {
	q := func(addr uint32) nrfwifi.HPQ { return nrfwifi.HPQ{Enqueue: addr, Dequeue: addr + 4} }
	return nrfwifi.HPQMInfo{
		EventBusy: q(testEventBusy),
		EventAvl:  q(testEventAvl),
		CmdBusy:   q(testCmdBusy),
		CmdAvl:    q(testCmdAvl),
		RxBufBusy: [nrfwifi.MAX_NUM_OF_RX_QUEUES]nrfwifi.HPQ{
			q(testRxBusy), q(testRxBusy + 8), q(testRxBusy + 16),
		},
	}
}

func newTestRPU(bus *fakeBus) *rpu {
	r := &rpu{}
	r.reinit(bus, logstate{})
	r.hpq = testHPQ()
	r.hpqValid = true
	r.rxCmdBase = nrfwifi.RPU_MEM_RX_CMD_BASE
	r.txCmdBase = nrfwifi.RPU_MEM_TX_CMD_BASE
	r.cmdTimeout = 50 * time.Millisecond
	r.bootTimeout = 50 * time.Millisecond
	return r
}

func TestHPQDequeue(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	q := r.hpq.CmdAvl
	for _, empty := range []uint32{0, nrfwifi.HPQ_INVALID} {
		bus.set(q.Dequeue, empty)
		_, ok, err := r.hpqDequeue(q)
		if err != nil {
			t.Fatal(err)
		} else if ok {
			t.Errorf("value %#x: want empty", empty)
		}
		if n := len(bus.writesTo(q.Dequeue)); n != 0 {
			t.Errorf("value %#x: want no write back, got %d", empty, n)
		}
	}
	bus.set(q.Dequeue, testCmdSlot)
	v, ok, err := r.hpqDequeue(q)
	if err != nil {
		t.Fatal(err)
	} else if !ok || v != testCmdSlot {
		t.Fatalf("got %#x, %v", v, ok)
	}
	w := bus.writesTo(q.Dequeue)
	if len(w) != 1 || len(w[0].data) != 1 || w[0].data[0] != testCmdSlot {
		t.Errorf("want single write back of %#x, got %v", uint32(testCmdSlot), w)
	}
}

func TestHPQDequeueWaitTimeout(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	start := time.Now()
	_, err := r.hpqDequeueWait(r.hpq.CmdAvl, 20*time.Millisecond)
	if err != ErrTimeout {
		t.Errorf("want ErrTimeout, got %v", err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Error("returned before timeout")
	}
}

func TestSendCommandFragments(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	bus.set(r.hpq.CmdAvl.Dequeue, testCmdSlot)
	payload := make([]byte, 1500)
	for i := range payload {
		payload[i] = byte(i)
	}
	err := r.sendCommand(nrfwifi.MsgTypeUMAC, payload)
	if err != nil {
		t.Fatal(err)
	}
	posted := bus.writesTo(r.hpq.CmdBusy.Enqueue)
	// 12 byte header plus 1500 bytes is split in 1024 byte chunks.
	if len(posted) != 2 {
		t.Fatalf("want 2 posted chunks, got %d", len(posted))
	}
	doorbells := bus.writesTo(nrfwifi.RPU_REG_INT_TO_MCU_CTRL)
	if len(doorbells) != 2 {
		t.Fatalf("want 2 doorbells, got %d", len(doorbells))
	}
	if doorbells[0].data[0] != nrfwifi.RPU_CMD_START_MAGIC|0x7fff0000 {
		t.Errorf("first doorbell %#x", doorbells[0].data[0])
	}
	if doorbells[1].data[0] != (nrfwifi.RPU_CMD_START_MAGIC+1)|0x7fff0000 {
		t.Errorf("second doorbell %#x", doorbells[1].data[0])
	}
	// Last chunk overwrote the slot, it holds the message tail.
	got := bus.getBytes(testCmdSlot, 1512-1024)
	if !bytes.Equal(got, payload[1024-12:]) {
		t.Error("second chunk content mismatch")
	}
}

func TestSendCommandNotInitialized(t *testing.T) {
	r := newTestRPU(newFakeBus())
	r.hpqValid = false
	if err := r.sendCommand(nrfwifi.MsgTypeSystem, nil); err != ErrNotInitialized {
		t.Errorf("want ErrNotInitialized, got %v", err)
	}
}

// putEvent stores an event at slot and queues it on the event busy queue.
func putEvent(bus *fakeBus, slot uint32, typ nrfwifi.MsgType, resubmit bool, payload []byte) {
	msg := make([]byte, nrfwifi.HOST_RPU_MSG_LEN+len(payload))
	hdr := nrfwifi.HostRPUMsg{Len: uint32(len(msg)), Type: typ}
	if resubmit {
		hdr.Resubmit = 1
	}
	hdr.Put(msg)
	copy(msg[nrfwifi.HOST_RPU_MSG_LEN:], payload)
	bus.setBytes(slot, msg)
	bus.set(testEventBusy+4, slot)
}

// popOnWriteBack clears a dequeue register when the driver writes back,
// emulating the RPU advancing the queue.
func popOnWriteBack(bus *fakeBus, dequeue uint32) {
	target := busAddr(dequeue, procAny)
	bus.onWrite = func(addr uint32, data []uint32) {
		if addr == target {
			bus.mu.Lock()
			bus.mem[target] = 0
			bus.mu.Unlock()
		}
	}
}

func TestReadEvent(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	popOnWriteBack(bus, r.hpq.EventBusy.Dequeue)

	_, _, err := r.readEvent()
	if err != ErrNoData {
		t.Fatalf("want ErrNoData, got %v", err)
	}
	payload := []byte("event payload")
	putEvent(bus, testEventSlot, nrfwifi.MsgTypeSystem, true, payload)
	hdr, got, err := r.readEvent()
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Type != nrfwifi.MsgTypeSystem || !bytes.Equal(got, payload) {
		t.Errorf("got type %v payload %q", hdr.Type, got)
	}
	freed := bus.writesTo(r.hpq.EventAvl.Enqueue)
	if len(freed) != 1 || freed[0].data[0] != testEventSlot {
		t.Errorf("resubmitted event not returned to event available queue: %v", freed)
	}
	_, _, err = r.readEvent()
	if err != ErrNoData {
		t.Errorf("want ErrNoData after event consumed, got %v", err)
	}
}

// serveOnWriteBack presents slots on a dequeue register one at a time,
// advancing to the next one whenever the driver writes back the head.
func serveOnWriteBack(bus *fakeBus, dequeue uint32, slots ...uint32) {
	target := busAddr(dequeue, procAny)
	next := 0
	advance := func() {
		v := uint32(0)
		if next < len(slots) {
			v = slots[next]
			next++
		}
		bus.set(dequeue, v)
	}
	advance()
	bus.onWrite = func(addr uint32, data []uint32) {
		if addr == target {
			advance()
		}
	}
}

// putEventHead stores the first slot of an event whose payload is n bytes
// long, along with as much of payload as fits in the slot.
func putEventHead(bus *fakeBus, slot uint32, n int, payload []byte) {
	first := min(n, nrfwifi.MAX_EVENT_POOL_LEN-nrfwifi.HOST_RPU_MSG_LEN)
	msg := make([]byte, nrfwifi.HOST_RPU_MSG_LEN+first)
	hdr := nrfwifi.HostRPUMsg{Len: uint32(nrfwifi.HOST_RPU_MSG_LEN + n), Type: nrfwifi.MsgTypeUMAC, Resubmit: 1}
	hdr.Put(msg)
	copy(msg[nrfwifi.HOST_RPU_MSG_LEN:], payload)
	bus.setBytes(slot, msg)
}

func TestReadEventFragmented(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	payload := make([]byte, 2500)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	first := nrfwifi.MAX_EVENT_POOL_LEN - nrfwifi.HOST_RPU_MSG_LEN
	slots := []uint32{testEventSlot, testEventSlot + 0x400, testEventSlot + 0x800}
	putEventHead(bus, slots[0], len(payload), payload)
	bus.setBytes(slots[1], payload[first:first+nrfwifi.MAX_EVENT_POOL_LEN])
	bus.setBytes(slots[2], payload[first+nrfwifi.MAX_EVENT_POOL_LEN:])
	serveOnWriteBack(bus, r.hpq.EventBusy.Dequeue, slots...)

	hdr, got, err := r.readEvent()
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Type != nrfwifi.MsgTypeUMAC {
		t.Errorf("got type %v", hdr.Type)
	}
	if !bytes.Equal(got, payload) {
		for i := range got {
			if i < len(payload) && got[i] != payload[i] {
				t.Fatalf("payload mismatch at byte %d of %d", i, len(got))
			}
		}
		t.Fatalf("got %d payload bytes, want %d", len(got), len(payload))
	}
	freed := bus.writesTo(r.hpq.EventAvl.Enqueue)
	if len(freed) != len(slots) {
		t.Fatalf("freed %d slots, want %d", len(freed), len(slots))
	}
	for i, w := range freed {
		if w.data[0] != slots[i] {
			t.Errorf("freed slot %d: got %#x, want %#x", i, w.data[0], slots[i])
		}
	}
	if _, _, err = r.readEvent(); err != ErrNoData {
		t.Errorf("want ErrNoData after fragmented event, got %v", err)
	}
}

func TestReadEventOverflow(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	const n = eventBufLen + 1000
	// Header slot plus the continuation slots carrying the remainder.
	first := nrfwifi.MAX_EVENT_POOL_LEN - nrfwifi.HOST_RPU_MSG_LEN
	nslots := 1 + (n-first+nrfwifi.MAX_EVENT_POOL_LEN-1)/nrfwifi.MAX_EVENT_POOL_LEN
	var slots []uint32
	for i := 0; i < nslots; i++ {
		slots = append(slots, testEventSlot+uint32(i)*0x400)
	}
	putEventHead(bus, slots[0], n, nil)
	// An ordinary event queued behind the oversized one.
	next := testEventSlot + uint32(nslots)*0x400
	putEventAt(bus, next, nrfwifi.MsgTypeSystem, []byte("after"))
	serveOnWriteBack(bus, r.hpq.EventBusy.Dequeue, append(slots, next)...)

	_, _, err := r.readEvent()
	if err != ErrBufferOverflow {
		t.Fatalf("want ErrBufferOverflow, got %v", err)
	}
	if freed := bus.writesTo(r.hpq.EventAvl.Enqueue); len(freed) != nslots {
		t.Errorf("freed %d slots, want %d", len(freed), nslots)
	}
	hdr, got, err := r.readEvent()
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Type != nrfwifi.MsgTypeSystem || string(got) != "after" {
		t.Errorf("queue out of step after overflow: type %v payload %q", hdr.Type, got)
	}
}

func TestReadEventAddressOutsideMap(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	popOnWriteBack(bus, r.hpq.EventBusy.Dequeue)
	for _, addr := range []uint32{0x12345678, nrfwifi.RPU_ADDR_PKTRAM_END - 3} {
		bus.set(r.hpq.EventBusy.Dequeue, addr)
		_, _, err := r.readEvent()
		if err != ErrInvalidAddress {
			t.Errorf("event at %#x: want ErrInvalidAddress, got %v", addr, err)
		}
	}

	// Header inside packet RAM with a payload running past its end.
	slot := uint32(nrfwifi.RPU_ADDR_PKTRAM_END - 0xf)
	putEvent(bus, slot, nrfwifi.MsgTypeUMAC, true, nil)
	hdr := nrfwifi.HostRPUMsg{Len: nrfwifi.HOST_RPU_MSG_LEN + 64, Type: nrfwifi.MsgTypeUMAC, Resubmit: 1}
	var b [nrfwifi.HOST_RPU_MSG_LEN]byte
	hdr.Put(b[:])
	bus.setBytes(slot, b[:])
	_, _, err := r.readEvent()
	if !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("truncated event: want ErrInvalidAddress, got %v", err)
	}
	freed := bus.writesTo(r.hpq.EventAvl.Enqueue)
	if len(freed) != 1 || freed[0].data[0] != slot {
		t.Errorf("dropped event slot not returned: %v", freed)
	}
	if _, _, err = r.readEvent(); err != ErrNoData {
		t.Errorf("want ErrNoData, got %v", err)
	}
}

func TestSendCommandSlotOutsideMap(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	bus.set(r.hpq.CmdAvl.Dequeue, 0x12345678)
	err := r.sendCommand(nrfwifi.MsgTypeSystem, make([]byte, 16))
	if err != ErrInvalidAddress {
		t.Errorf("want ErrInvalidAddress, got %v", err)
	}
	if posted := bus.writesTo(r.hpq.CmdBusy.Enqueue); len(posted) != 0 {
		t.Errorf("command posted from invalid slot: %v", posted)
	}
}

func TestSeedRxDescriptors(t *testing.T) {
	d, bus := newTestDevice(t)
	r := &d.rpu
	wdata := bus.writesTo(nrfwifi.RPU_REG_MIPS_MCU_SYS_CORE_MEM_WDATA)
	if len(wdata) != numRxBufs {
		t.Fatalf("got %d RX commands, want %d", len(wdata), numRxBufs)
	}
	for q := 0; q < nrfwifi.MAX_NUM_OF_RX_QUEUES; q++ {
		posted := bus.writesTo(r.hpq.RxBufBusy[q].Enqueue)
		if len(posted) != nrfwifi.RX_BUFS_PER_QUEUE {
			t.Errorf("queue %d: %d buffers posted, want %d", q, len(posted), nrfwifi.RX_BUFS_PER_QUEUE)
			continue
		}
		for b := 0; b < nrfwifi.RX_BUFS_PER_QUEUE; b++ {
			desc := q*nrfwifi.RX_BUFS_PER_QUEUE + b
			rb := &r.rx[desc]
			addr := rxPoolBase + uint32(rxBufSize*desc)
			if rb.addr != addr || int(rb.desc) != desc || int(rb.queue) != q {
				t.Errorf("buffer %d: got addr %#x desc %d queue %d", desc, rb.addr, rb.desc, rb.queue)
			}
			if got := bus.get(addr); got != uint32(desc) {
				t.Errorf("buffer %d: header word %d", desc, got)
			}
			if got, want := posted[b].data[0], r.rxCmdBase+nrfwifi.RPU_DATA_CMD_SIZE_MAX_RX*uint32(desc); got != want {
				t.Errorf("buffer %d: posted %#x, want %#x", desc, got, want)
			}
			if got, want := wdata[desc].data[0], addr+nrfwifi.RX_BUF_HEADROOM; got != want {
				t.Errorf("buffer %d: RX command %#x, want %#x", desc, got, want)
			}
		}
	}
	if end := r.rx[numRxBufs-1].addr + rxBufSize; end != nrfwifi.RPU_ADDR_PKTRAM_END+1 {
		t.Errorf("RX pool ends at %#x", end)
	}
}
