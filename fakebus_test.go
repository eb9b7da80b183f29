package nrf70

import (
	"sync"
	"testing"
	"time"

	"github.com/soypat/nrf70/nrfwifi"
)

// fakeBus is an in-memory Bus. Reads return the addressed word in every
// position of the buffer so region latency words are harmless.
type fakeBus struct {
	mu     sync.Mutex
	mem    map[uint32]uint32
	sr1    uint8
	sr2    uint8
	writes []busWrite
	reads  int
	// onWrite is called after every data write, outside the bus lock.
	onWrite func(addr uint32, data []uint32)
}

type busWrite struct {
	addr uint32
	data []uint32
}

var _ Bus = (*fakeBus)(nil)

func newFakeBus() *fakeBus {
	return &fakeBus{
		mem: make(map[uint32]uint32),
		sr1: sr1RPUAwake | sr1RPUReady,
	}
}

func (b *fakeBus) Read(addr uint32, buf []uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reads++
	v := b.mem[addr]
	for i := range buf {
		buf[i] = v
	}
	return nil
}

func (b *fakeBus) Write(addr uint32, buf []uint32) error {
	b.mu.Lock()
	data := append([]uint32(nil), buf...)
	for i, v := range data {
		b.mem[addr+4*uint32(i)] = v
	}
	b.writes = append(b.writes, busWrite{addr: addr, data: data})
	hook := b.onWrite
	b.mu.Unlock()
	if hook != nil {
		hook(addr, data)
	}
	return nil
}

func (b *fakeBus) ReadSR0() (uint8, error) { return 0, nil }

func (b *fakeBus) ReadSR1() (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sr1, nil
}

func (b *fakeBus) ReadSR2() (uint8, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sr2, nil
}

func (b *fakeBus) WriteSR2(v uint8) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sr2 = v
	return nil
}

// busAddr translates an RPU address to the bus address it is accessed at.
func busAddr(addr uint32, proc processor) uint32 {
	r, off := resolve(addr, proc)
	return r.start + off
}

// set stores v at RPU address addr.
func (b *fakeBus) set(addr uint32, v uint32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mem[busAddr(addr, procAny)] = v
}

func (b *fakeBus) get(addr uint32) uint32 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.mem[busAddr(addr, procAny)]
}

// setBytes stores data at RPU address addr in bus byte order.
func (b *fakeBus) setBytes(addr uint32, data []byte) {
	words := make([]uint32, (len(data)+3)/4)
	putWords(words, data)
	base := busAddr(addr, procAny)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, w := range words {
		b.mem[base+4*uint32(i)] = w
	}
}

// getBytes returns n bytes stored at RPU address addr.
func (b *fakeBus) getBytes(addr uint32, n int) []byte {
	words := make([]uint32, (n+3)/4)
	base := busAddr(addr, procAny)
	b.mu.Lock()
	for i := range words {
		words[i] = b.mem[base+4*uint32(i)]
	}
	b.mu.Unlock()
	dst := make([]byte, n)
	getWords(dst, words)
	return dst
}

// writesTo returns the writes made to RPU address addr.
func (b *fakeBus) writesTo(addr uint32) []busWrite {
	return b.writesAt(busAddr(addr, procAny))
}

func (b *fakeBus) numWrites() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.writes)
}

// newTestDevice returns a Device whose RPU looks booted: the hostport
// queues are valid and every RX buffer has been handed out.
func newTestDevice(t *testing.T) (*Device, *fakeBus) {
	t.Helper()
	bus := newFakeBus()
	d := New(bus, Config{
		CommandTimeout: 50 * time.Millisecond,
		EventTimeout:   time.Second,
	})
	d.rpu.hpq = testHPQ()
	d.rpu.hpqValid = true
	d.rpu.rxCmdBase = nrfwifi.RPU_MEM_RX_CMD_BASE
	d.rpu.txCmdBase = nrfwifi.RPU_MEM_TX_CMD_BASE
	if err := d.rpu.seedRx(); err != nil {
		t.Fatal(err)
	}
	return d, bus
}

// firstWrite returns the index of the first write to bus address addr, or
// -1 if there was none.
func (b *fakeBus) firstWrite(addr uint32) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, bw := range b.writes {
		if bw.addr == addr {
			return i
		}
	}
	return -1
}

// writesAt returns the writes made to bus address addr.
func (b *fakeBus) writesAt(addr uint32) (w []busWrite) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bw := range b.writes {
		if bw.addr == addr {
			w = append(w, bw)
		}
	}
	return w
}
