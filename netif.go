package nrf70

import (
	"errors"
	"net"
)

// MTU (maximum transmission unit) returns the maximum amount
// of bytes that can be sent in a single ethernet frame in a call to SendEth.
func (d *Device) MTU() int { return MTU }

// HardwareAddr6 returns the device's 6-byte [MAC address].
//
// [MAC address]: https://en.wikipedia.org/wiki/MAC_address
func (d *Device) HardwareAddr6() ([6]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.mac == [6]byte{} {
		return [6]byte{}, errors.New("hardware address not acquired")
	}
	return d.mac, nil
}

// RecvEthHandle sets handler for receiving Ethernet pkt.
// If set to nil then incoming packets are ignored.
// pkt is only valid for the duration of the call.
func (d *Device) RecvEthHandle(handler func(pkt []byte) error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.rcvEth = handler
}

// SendEth queues an Ethernet packet for transmission. It does not block:
// ErrBusy is returned when every TX buffer is in flight.
func (d *Device) SendEth(pkt []byte) error {
	return d.queueTx(pkt)
}

// NetFlags returns the current network flags for the device.
func (d *Device) NetFlags() (flags net.Flags) {
	// Define net.Flags locally since not all Tinygo versions have them fully defined.
	const (
		FlagUp           net.Flags = 1 << iota // interface is administratively up
		FlagBroadcast                          // interface supports broadcast access capability
		FlagLoopback                           // interface is a loopback interface
		FlagPointToPoint                       // interface belongs to a point-to-point link
		FlagMulticast                          // interface supports multicast access capability
		FlagRunning                            // interface is in running state
	)
	d.mu.Lock()
	up := d.initialized
	d.mu.Unlock()
	if !up {
		return 0
	}
	flags |= FlagUp | FlagBroadcast | FlagMulticast
	if linkState(d.link.Load()) == linkStateUp {
		flags |= FlagRunning
	}
	return flags
}
