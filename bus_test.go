package nrf70

import (
	"bytes"
	"errors"
	"testing"
)

// recordSPI records the bytes clocked out during each chip select frame and
// clocks in bytes from miso, zeros once it runs out.
type recordSPI struct {
	selected bool
	frames   [][]byte
	miso     []byte
	err      error
}

func (s *recordSPI) cs(asserted bool) {
	if asserted {
		s.frames = append(s.frames, nil)
	}
	s.selected = asserted
}

func (s *recordSPI) Tx(w, r []byte) error {
	if !s.selected {
		return errors.New("transfer without chip select")
	}
	if w != nil && r != nil && len(w) != len(r) {
		return ErrInvalidArgument
	}
	if s.err != nil {
		return s.err
	}
	frame := &s.frames[len(s.frames)-1]
	n := max(len(w), len(r))
	for i := 0; i < n; i++ {
		var out byte
		if w != nil {
			out = w[i]
		}
		*frame = append(*frame, out)
		if r != nil {
			var in byte
			if len(s.miso) > 0 {
				in, s.miso = s.miso[0], s.miso[1:]
			}
			r[i] = in
		}
	}
	return nil
}

func newRecordBus() (*SPIBus, *recordSPI) {
	spi := &recordSPI{}
	return NewSPIBus(spi, spi.cs, nil), spi
}

func TestSPIBusRead(t *testing.T) {
	b, spi := newRecordBus()
	spi.miso = []byte{0x11, 0x22, 0x33, 0x44, 0x55, 0x66, 0x77, 0x88}
	buf := make([]uint32, 2)
	if err := b.Read(0x0C1234, buf); err != nil {
		t.Fatal(err)
	}
	want := []byte{spiCmdRead, 0x0C, 0x12, 0x34, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if len(spi.frames) != 1 || !bytes.Equal(spi.frames[0], want) {
		t.Errorf("read frames %x, want %x", spi.frames, want)
	}
	if buf[0] != 0x44332211 || buf[1] != 0x88776655 {
		t.Errorf("read words %#x", buf)
	}
	if spi.selected {
		t.Error("chip select left asserted")
	}
}

func TestSPIBusWrite(t *testing.T) {
	b, spi := newRecordBus()
	if err := b.Write(0x0C1234, []uint32{0x44332211}); err != nil {
		t.Fatal(err)
	}
	want := []byte{spiCmdWrite, 0x0C | spiWriteAddrHi, 0x12, 0x34, 0x11, 0x22, 0x33, 0x44}
	if len(spi.frames) != 1 || !bytes.Equal(spi.frames[0], want) {
		t.Errorf("write frames %x, want %x", spi.frames, want)
	}
	if spi.selected {
		t.Error("chip select left asserted")
	}
}

func TestSPIBusStatus(t *testing.T) {
	b, spi := newRecordBus()
	for _, tc := range []struct {
		op   byte
		read func() (uint8, error)
	}{
		{spiCmdReadSR0, b.ReadSR0},
		{spiCmdReadSR1, b.ReadSR1},
		{spiCmdReadSR2, b.ReadSR2},
	} {
		spi.frames = nil
		spi.miso = []byte{0xff, tc.op ^ 0x5a}
		v, err := tc.read()
		if err != nil {
			t.Fatal(err)
		}
		if v != tc.op^0x5a {
			t.Errorf("op %#x: got %#x", tc.op, v)
		}
		if len(spi.frames) != 1 || !bytes.Equal(spi.frames[0], []byte{tc.op, 0}) {
			t.Errorf("op %#x: frames %x", tc.op, spi.frames)
		}
	}

	spi.frames = nil
	if err := b.WriteSR2(sr2RPUWakeupReq); err != nil {
		t.Fatal(err)
	}
	if len(spi.frames) != 1 || !bytes.Equal(spi.frames[0], []byte{spiCmdWriteSR2, sr2RPUWakeupReq}) {
		t.Errorf("write SR2 frames %x", spi.frames)
	}
}

func TestSPIBusError(t *testing.T) {
	b, spi := newRecordBus()
	spi.err = errFail
	if err := b.Read(0, make([]uint32, 1)); err != errFail {
		t.Errorf("read: want %v, got %v", errFail, err)
	}
	if err := b.Write(0, []uint32{1}); err != errFail {
		t.Errorf("write: want %v, got %v", errFail, err)
	}
	if _, err := b.ReadSR1(); err != errFail {
		t.Errorf("status: want %v, got %v", errFail, err)
	}
	if spi.selected {
		t.Error("chip select left asserted after failed transfer")
	}
}
