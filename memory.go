package nrf70

import (
	"log/slog"
)

// processor selects between the two RPU MIPS cores. Both map their ROM and
// RAM at overlapping RPU addresses so the processor disambiguates them.
type processor uint8

const (
	procAny processor = iota
	procLMAC
	procUMAC
)

func (p processor) String() string {
	switch p {
	case procLMAC:
		return "lmac"
	case procUMAC:
		return "umac"
	}
	return "any"
}

// memRegion maps an RPU address window onto the bus address space.
type memRegion struct {
	name string
	// Bus address window, both ends inclusive.
	start, end uint32
	// latency is the number of dummy words returned before valid data on reads.
	latency uint8
	// RPU address window, both ends inclusive.
	rpuStart, rpuEnd uint32
	proc             processor
}

// size returns the length in bytes of the region's bus window.
func (r *memRegion) size() uint32 { return r.end - r.start + 1 }

func (r *memRegion) String() string { return r.name }

var (
	regionSysBus     = memRegion{name: "SYSBUS", start: 0x000000, end: 0x008FFF, latency: 1, rpuStart: 0xA4000000, rpuEnd: 0xA4FFFFFF}
	regionExtSysBus  = memRegion{name: "EXT_SYS_BUS", start: 0x009000, end: 0x03FFFF, latency: 2}
	regionPBus       = memRegion{name: "PBUS", start: 0x040000, end: 0x07FFFF, latency: 1, rpuStart: 0xA5000000, rpuEnd: 0xA5FFFFFF}
	regionPktRAM     = memRegion{name: "PKTRAM", start: 0x0C0000, end: 0x0F0FFF, latency: 0, rpuStart: 0xB0000000, rpuEnd: 0xB0FFFFFF}
	regionGRAM       = memRegion{name: "GRAM", start: 0x080000, end: 0x092000, latency: 1, rpuStart: 0xB7000000, rpuEnd: 0xB7FFFFFF}
	regionLMACROM    = memRegion{name: "LMAC_ROM", start: 0x100000, end: 0x134000, latency: 1, rpuStart: 0x80000000, rpuEnd: 0x80033FFF, proc: procLMAC}
	regionLMACRetRAM = memRegion{name: "LMAC_RET_RAM", start: 0x140000, end: 0x14C000, latency: 1, rpuStart: 0x80040000, rpuEnd: 0x8004BFFF, proc: procLMAC}
	regionLMACSrcRAM = memRegion{name: "LMAC_SRC_RAM", start: 0x180000, end: 0x190000, latency: 1, rpuStart: 0x80080000, rpuEnd: 0x8008FFFF, proc: procLMAC}
	regionUMACROM    = memRegion{name: "UMAC_ROM", start: 0x200000, end: 0x261800, latency: 1, rpuStart: 0x80000000, rpuEnd: 0x800617FF, proc: procUMAC}
	regionUMACRetRAM = memRegion{name: "UMAC_RET_RAM", start: 0x280000, end: 0x2A4000, latency: 1, rpuStart: 0x80080000, rpuEnd: 0x800A3FFF, proc: procUMAC}
	regionUMACSrcRAM = memRegion{name: "UMAC_SRC_RAM", start: 0x300000, end: 0x338000, latency: 1, rpuStart: 0x80100000, rpuEnd: 0x80137FFF, proc: procUMAC}
)

// regions is the lookup table used by resolve. EXT_SYS_BUS has no RPU
// window and is only reachable through region relative accesses.
var regions = [...]*memRegion{
	&regionSysBus,
	&regionExtSysBus,
	&regionPBus,
	&regionPktRAM,
	&regionGRAM,
	&regionLMACROM,
	&regionLMACRetRAM,
	&regionLMACSrcRAM,
	&regionUMACROM,
	&regionUMACRetRAM,
	&regionUMACSrcRAM,
}

// resolve maps an RPU address to the region containing it and the offset
// within the region. Regions bound to a processor only match when proc is
// that processor. A failed lookup is a driver bug and panics.
func resolve(addr uint32, proc processor) (*memRegion, uint32) {
	r, off, ok := lookup(addr, proc)
	if !ok {
		panic("nrf70: no memory region for address 0x" + hex32(addr) + " proc " + proc.String())
	}
	return r, off
}

func lookup(addr uint32, proc processor) (*memRegion, uint32, bool) {
	for _, r := range regions {
		if r.rpuStart == 0 && r.rpuEnd == 0 {
			continue
		}
		if r.proc != procAny && r.proc != proc {
			continue
		}
		if addr >= r.rpuStart && addr <= r.rpuEnd {
			return r, addr - r.rpuStart, true
		}
	}
	return nil, 0, false
}

// checkAddr validates an RPU supplied address range of nbytes starting at
// addr. Unlike resolve it never panics.
func (m *mem) checkAddr(addr uint32, proc processor, nbytes int) error {
	r, off, ok := lookup(addr, proc)
	if !ok {
		m.logerr("rpu address outside memory map", slog.String("addr", hex32(addr)), slog.Int("len", nbytes))
		return ErrInvalidAddress
	}
	return m.checkBounds(r, off, nbytes)
}

// mem performs region translated accesses over a Bus.
type mem struct {
	bus Bus
	logstate
	// scratch holds the latency dummy words plus the data word.
	scratch [4]uint32
}

func (m *mem) checkBounds(r *memRegion, off uint32, nbytes int) error {
	if uint64(off)+uint64(nbytes) > uint64(r.size()) {
		m.logerr("region access out of bounds", slog.String("region", r.name),
			slog.Uint64("off", uint64(off)), slog.Int("len", nbytes))
		return ErrInvalidAddress
	}
	return nil
}

// readRegion32 reads a single word, discarding the region's latency words.
func (m *mem) readRegion32(r *memRegion, off uint32) (uint32, error) {
	if err := m.checkBounds(r, off, 4); err != nil {
		return 0, err
	}
	lat := int(r.latency)
	buf := m.scratch[:lat+1]
	err := m.bus.Read(r.start+off, buf)
	if err != nil {
		return 0, &BusError{Op: "read", Addr: r.start + off, Err: err}
	}
	return buf[lat], nil
}

// readRegion reads len(buf) words one at a time. Burst reads return the
// first word repeatedly on some regions so they are never used.
func (m *mem) readRegion(r *memRegion, off uint32, buf []uint32) error {
	if err := m.checkBounds(r, off, 4*len(buf)); err != nil {
		return err
	}
	for i := range buf {
		v, err := m.readRegion32(r, off+4*uint32(i))
		if err != nil {
			return err
		}
		buf[i] = v
	}
	return nil
}

func (m *mem) writeRegion(r *memRegion, off uint32, buf []uint32) error {
	if err := m.checkBounds(r, off, 4*len(buf)); err != nil {
		return err
	}
	err := m.bus.Write(r.start+off, buf)
	if err != nil {
		return &BusError{Op: "write", Addr: r.start + off, Err: err}
	}
	return nil
}

func (m *mem) writeRegion32(r *memRegion, off uint32, v uint32) error {
	m.scratch[0] = v
	return m.writeRegion(r, off, m.scratch[:1])
}

func (m *mem) read32(addr uint32, proc processor) (uint32, error) {
	r, off := resolve(addr, proc)
	v, err := m.readRegion32(r, off)
	if err == nil && m.isTraceEnabled() {
		m.trace("read32", slog.String("addr", hex32(addr)), slog.String("val", hex32(v)))
	}
	return v, err
}

func (m *mem) readBuf(addr uint32, proc processor, buf []uint32) error {
	r, off := resolve(addr, proc)
	return m.readRegion(r, off, buf)
}

func (m *mem) write32(addr uint32, proc processor, v uint32) error {
	r, off := resolve(addr, proc)
	if m.isTraceEnabled() {
		m.trace("write32", slog.String("addr", hex32(addr)), slog.String("val", hex32(v)))
	}
	return m.writeRegion32(r, off, v)
}

func (m *mem) writeBuf(addr uint32, proc processor, buf []uint32) error {
	r, off := resolve(addr, proc)
	return m.writeRegion(r, off, buf)
}

// readBytes reads len(dst) bytes at addr through the word buffer scratch,
// which must hold at least (len(dst)+3)/4 words.
func (m *mem) readBytes(addr uint32, proc processor, dst []byte, scratch []uint32) error {
	nw := int(alignup(uint(len(dst)), 4) / 4)
	if nw > len(scratch) {
		return ErrBufferTooSmall
	}
	err := m.readBuf(addr, proc, scratch[:nw])
	if err != nil {
		return err
	}
	getWords(dst, scratch[:nw])
	return nil
}
