//go:build tinygo

package nrf70

import (
	"device"
	"machine"
)

// SPIbb is a bit-bang SPI controller hardcoded to mode 0 with separate data
// lines. It implements SPI for boards where no hardware or PIO SPI peripheral
// is free to drive the nRF70.
type SPIbb struct {
	SCK   machine.Pin
	SDI   machine.Pin
	SDO   machine.Pin
	Delay uint32
}

var _ SPI = (*SPIbb)(nil)

// Configure sets up the SCK and SDO pins as outputs and sets them low.
func (s *SPIbb) Configure() {
	s.SCK.Configure(machine.PinConfig{Mode: machine.PinOutput})
	s.SDO.Configure(machine.PinConfig{Mode: machine.PinOutput})
	s.SDI.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	s.SCK.Low()
	s.SDO.Low()
	if s.Delay == 0 {
		s.Delay = 1
	}
}

// Tx clocks out w while clocking in r. A nil w clocks out zeros and a nil r
// discards input. When both are set they must be of equal length.
func (s *SPIbb) Tx(w, r []byte) error {
	n := max(len(w), len(r))
	if w != nil && r != nil && len(w) != len(r) {
		return ErrInvalidArgument
	}
	for i := 0; i < n; i++ {
		var out byte
		if w != nil {
			out = w[i]
		}
		in := s.transfer(out)
		if r != nil {
			r[i] = in
		}
	}
	return nil
}

// Transfer matches signature of machine.SPI.Transfer.
func (s *SPIbb) Transfer(b byte) (out byte, _ error) {
	return s.transfer(b), nil
}

//go:inline
func (s *SPIbb) transfer(b byte) (out byte) {
	for bit := 7; bit >= 0; bit-- {
		out |= b2u8(s.bitTransfer(b&(1<<bit) != 0)) << bit
	}
	return out
}

// bitTransfer shifts one bit out on the falling edge and samples SDI on the
// rising edge.
//
//go:inline
func (s *SPIbb) bitTransfer(b bool) bool {
	s.SDO.Set(b)
	s.delay()
	s.SCK.High()
	s.delay()
	inputBit := s.SDI.Get()
	s.delay()
	s.SCK.Low()
	s.delay()
	return inputBit
}

// delay represents a quarter of the clock cycle
//
//go:inline
func (s *SPIbb) delay() {
	for i := uint32(0); i < s.Delay; i++ {
		device.Asm("nop")
	}
}

//go:inline
func b2u8(b bool) byte {
	if b {
		return 1
	}
	return 0
}
