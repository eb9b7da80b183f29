package nrf70

import (
	"encoding/binary"
	"log/slog"
	"unsafe"

	"golang.org/x/exp/constraints"
)

var _busOrder = binary.LittleEndian

// SPI opcodes understood by the nRF70 serial interface.
const (
	spiCmdRead     = 0x0B // Fast read, one dummy byte.
	spiCmdWrite    = 0x02
	spiCmdReadSR0  = 0x05
	spiCmdReadSR1  = 0x1f
	spiCmdReadSR2  = 0x2f
	spiCmdWriteSR2 = 0x3f
	spiWriteAddrHi = 0x80 // Set in the high address byte of writes.
)

// Status register bits.
const (
	sr0WriteInProgress = 0x01
	sr1RPUAwake        = 0x02
	sr1RPUReady        = 0x04
	sr2RPUWakeupReq    = 0x01
)

// Bus is the transport to the nRF70 RPU. Addresses are bus addresses, that
// is the 24 bit addresses of the memory region table, not RPU addresses.
// Buffers are word aligned and transferred in RPU byte order.
//
// Bus implementations are not required to be safe for concurrent use: the
// Device runner is the only user of the bus once Run is called.
type Bus interface {
	Read(addr uint32, buf []uint32) error
	Write(addr uint32, buf []uint32) error
	ReadSR0() (uint8, error)
	ReadSR1() (uint8, error)
	ReadSR2() (uint8, error)
	WriteSR2(v uint8) error
}

// SPI is a full duplex SPI controller such as TinyGo's machine.SPI.
// A nil w or r reads or writes zeros respectively.
type SPI interface {
	Tx(w, r []byte) error
}

type outputPin func(bool)

// SPIBus implements Bus over an SPI controller and a chip select pin.
type SPIBus struct {
	spi SPI
	cs  outputPin
	log logstate
	cmd [5]byte
	sr  [2]byte
}

var _ Bus = (*SPIBus)(nil)

// NewSPIBus returns a Bus over spi. cs is called with true to assert chip
// select; the nRF70 chip select is active low and cs must account for that.
func NewSPIBus(spi SPI, cs func(asserted bool), logger *slog.Logger) *SPIBus {
	return &SPIBus{spi: spi, cs: cs, log: makeLogstate(logger)}
}

func (b *SPIBus) Read(addr uint32, buf []uint32) error {
	b.cmd = [5]byte{spiCmdRead, byte(addr >> 16), byte(addr >> 8), byte(addr), 0}
	b.cs(true)
	err := b.spi.Tx(b.cmd[:], nil)
	if err == nil && len(buf) > 0 {
		err = b.spi.Tx(nil, u32AsU8(buf))
	}
	b.cs(false)
	if b.log.isTraceEnabled() && len(buf) > 0 {
		b.log.trace("spi:read", slog.String("addr", hex32(addr)), slog.String("data", hexdump(u32AsU8(buf), 32)))
	}
	return err
}

func (b *SPIBus) Write(addr uint32, buf []uint32) error {
	b.cmd = [5]byte{spiCmdWrite, byte(addr>>16) | spiWriteAddrHi, byte(addr >> 8), byte(addr)}
	if b.log.isTraceEnabled() && len(buf) > 0 {
		b.log.trace("spi:write", slog.String("addr", hex32(addr)), slog.String("data", hexdump(u32AsU8(buf), 32)))
	}
	b.cs(true)
	err := b.spi.Tx(b.cmd[:4], nil)
	if err == nil && len(buf) > 0 {
		err = b.spi.Tx(u32AsU8(buf), nil)
	}
	b.cs(false)
	return err
}

func (b *SPIBus) ReadSR0() (uint8, error) { return b.readSR(spiCmdReadSR0) }
func (b *SPIBus) ReadSR1() (uint8, error) { return b.readSR(spiCmdReadSR1) }
func (b *SPIBus) ReadSR2() (uint8, error) { return b.readSR(spiCmdReadSR2) }

func (b *SPIBus) WriteSR2(v uint8) error {
	b.log.trace("spi:write-sr2", slog.Uint64("val", uint64(v)))
	b.sr = [2]byte{spiCmdWriteSR2, v}
	b.cs(true)
	err := b.spi.Tx(b.sr[:], nil)
	b.cs(false)
	return err
}

// readSR transfers the opcode followed by a dummy byte, the register value
// is clocked out during the second byte.
func (b *SPIBus) readSR(op byte) (uint8, error) {
	var w = [2]byte{op, 0}
	b.cs(true)
	err := b.spi.Tx(w[:], b.sr[:])
	b.cs(false)
	if err != nil {
		return 0, err
	}
	b.log.trace("spi:read-sr", slog.Uint64("op", uint64(op)), slog.Uint64("val", uint64(b.sr[1])))
	return b.sr[1], nil
}

func u32AsU8(buf []uint32) []byte {
	return unsafeAsSlice[uint32, byte](buf)
}

// unsafeAsSlice converts a slice of F to a slice of T.
func unsafeAsSlice[F, T constraints.Unsigned](buf []F) []T {
	if len(buf) == 0 {
		return nil
	}
	fSize := unsafe.Sizeof(F(0))
	tSize := unsafe.Sizeof(T(0))
	ptr := unsafe.Pointer(&buf[0])
	if fSize > tSize {
		// Common case, i.e: uint32->byte
		return unsafe.Slice((*T)(ptr), len(buf)*int(fSize/tSize))
	}
	div := int(tSize / fSize)
	if uintptr(ptr)%tSize != 0 {
		panic("unaligned pointer")
	}
	// i.e: byte->uint32, truncates slice.
	return unsafe.Slice((*T)(ptr), len(buf)/div)
}

// alignup rounds `val` up to nearest multiple of `align`. `align` must be a power of 2.
func alignup[T constraints.Unsigned](val, align T) T {
	return (val + align - 1) &^ (align - 1)
}

// putWords copies src into dst words in bus order, zero padding the last word.
// It returns the number of words written.
func putWords(dst []uint32, src []byte) int {
	n := 0
	for len(src) >= 4 {
		dst[n] = _busOrder.Uint32(src)
		src = src[4:]
		n++
	}
	if len(src) > 0 {
		var tail [4]byte
		copy(tail[:], src)
		dst[n] = _busOrder.Uint32(tail[:])
		n++
	}
	return n
}

// getWords copies words in bus order into dst. It returns the number of bytes copied.
func getWords(dst []byte, src []uint32) int {
	n := 0
	for _, w := range src {
		if len(dst)-n >= 4 {
			_busOrder.PutUint32(dst[n:], w)
			n += 4
			continue
		}
		var tail [4]byte
		_busOrder.PutUint32(tail[:], w)
		n += copy(dst[n:], tail[:])
		break
	}
	return n
}
