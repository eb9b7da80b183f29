//go:build pico && !nrf70nopio

package nrf70

import (
	"log/slog"
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// NewPicoDevice returns a Device wired to an nRF7002 expansion board on a
// Raspberry Pi Pico. The SPI bus is driven by a PIO state machine, leaving the
// hardware SPI peripherals free. The host interrupt line triggers Device.IRQ.
func NewPicoDevice(logger *slog.Logger) (*Device, error) {
	const (
		SDI     = machine.GPIO16
		CS      = machine.GPIO17
		SCK     = machine.GPIO18
		SDO     = machine.GPIO19
		HOSTIRQ = machine.GPIO20
		BUCKEN  = machine.GPIO21
		IOVDD   = machine.GPIO22
	)
	for _, pin := range []machine.Pin{CS, BUCKEN, IOVDD} {
		pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	}
	CS.High()
	BUCKEN.Low()
	IOVDD.Low()
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return nil, err
	}
	spi, err := piolib.NewSPI(sm, machine.SPIConfig{
		Frequency: 8_000_000,
		SCK:       SCK,
		SDO:       SDO,
		SDI:       SDI,
		Mode:      0,
	})
	if err != nil {
		return nil, err
	}
	bus := NewSPIBus(spi, func(asserted bool) { CS.Set(!asserted) }, logger)
	d := New(bus, Config{
		Logger:      logger,
		BuckEnable:  BUCKEN.Set,
		IOVDDEnable: IOVDD.Set,
	})
	HOSTIRQ.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	err = HOSTIRQ.SetInterrupt(machine.PinRising, func(machine.Pin) { d.IRQ() })
	if err != nil {
		return nil, err
	}
	return d, nil
}
