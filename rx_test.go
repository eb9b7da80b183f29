package nrf70

import (
	"bytes"
	"errors"
	"testing"

	"github.com/soypat/nrf70/nrfwifi"
	"github.com/soypat/seqs/eth"
)

var (
	testAddr1 = [6]byte{0x02, 1, 1, 1, 1, 1}
	testAddr2 = [6]byte{0x02, 2, 2, 2, 2, 2}
	testAddr3 = [6]byte{0x02, 3, 3, 3, 3, 3}
	testAddr4 = [6]byte{0x02, 4, 4, 4, 4, 4}
)

// dataFrame builds an 802.11 data frame with an RFC 1042 SNAP header.
func dataFrame(fc0, fc1 byte, ethType uint16, payload []byte) []byte {
	hdrLen := ieee80211HdrLen
	if fc1&3 == 3 {
		hdrLen = ieee80211HdrLen4
	}
	if fc0&ieee80211QoSDataBit != 0 {
		hdrLen += 2
	}
	frame := make([]byte, hdrLen)
	frame[0], frame[1] = fc0, fc1
	copy(frame[4:], testAddr1[:])
	copy(frame[10:], testAddr2[:])
	copy(frame[16:], testAddr3[:])
	if hdrLen >= ieee80211HdrLen4 {
		copy(frame[24:], testAddr4[:])
	}
	frame = append(frame, 0xaa, 0xaa, 0x03, 0, 0, 0, byte(ethType>>8), byte(ethType))
	return append(frame, payload...)
}

func TestIEEE80211Addrs(t *testing.T) {
	tests := []struct {
		fc1      byte
		dst, src [6]byte
	}{
		{fc1: 0, dst: testAddr1, src: testAddr2},
		{fc1: ieee80211FCFromDS, dst: testAddr1, src: testAddr3},
		{fc1: ieee80211FCToDS, dst: testAddr3, src: testAddr2},
		{fc1: ieee80211FCToDS | ieee80211FCFromDS, dst: testAddr1, src: testAddr4},
	}
	for _, tt := range tests {
		frame := dataFrame(0x08, tt.fc1, 0x0800, nil)
		dst, src := ieee80211Addrs(frame)
		if dst != tt.dst || src != tt.src {
			t.Errorf("fc1=%#x: got dst %x src %x, want %x %x", tt.fc1, dst, src, tt.dst, tt.src)
		}
	}
}

func TestIEEE80211HeaderLen(t *testing.T) {
	tests := []struct {
		fc0, fc1 byte
		want     int
	}{
		{0x08, 0x02, 24},
		{0x88, 0x02, 26},
		{0x08, 0x03, 30},
		{0x88, 0x03, 32},
	}
	for _, tt := range tests {
		frame := dataFrame(tt.fc0, tt.fc1, 0x0800, nil)
		if got := ieee80211HeaderLen(frame); got != tt.want {
			t.Errorf("fc=%#x%02x: got %d, want %d", tt.fc0, tt.fc1, got, tt.want)
		}
	}
}

func TestEthSkipLen(t *testing.T) {
	tests := []struct {
		ethType uint16
		want    int
	}{
		{0x05dc, 2},
		{0x0800, 8},
		{0x86dd, 8},
		{uint16(eth.EtherTypeAARP), 8},
		{uint16(eth.EtherTypeIPX1), 8},
	}
	for _, tt := range tests {
		if got := ethSkipLen(tt.ethType); got != tt.want {
			t.Errorf("%#04x: got %d, want %d", tt.ethType, got, tt.want)
		}
	}
}

func TestMPDUToEthernet(t *testing.T) {
	payload := []byte("ipv4 packet payload")
	for _, fc0 := range []byte{0x08, 0x88} {
		frame := dataFrame(fc0, ieee80211FCFromDS, 0x0800, payload)
		nb := netBuffer{buf: frame, end: len(frame)}
		err := mpduToEthernet(&nb, 0)
		if err != nil {
			t.Fatal(err)
		}
		got := nb.data()
		if len(got) != eth.SizeEthernetHeader+len(payload) {
			t.Fatalf("fc0=%#x: got length %d", fc0, len(got))
		}
		ehdr := eth.DecodeEthernetHeader(got)
		if ehdr.Destination != testAddr1 || ehdr.Source != testAddr3 {
			t.Errorf("fc0=%#x: got dst %x src %x", fc0, ehdr.Destination, ehdr.Source)
		}
		if ehdr.SizeOrEtherType != 0x0800 {
			t.Errorf("fc0=%#x: got ethertype %#x", fc0, ehdr.SizeOrEtherType)
		}
		if !bytes.Equal(got[eth.SizeEthernetHeader:], payload) {
			t.Errorf("fc0=%#x: payload mismatch", fc0)
		}
	}
}

func TestMPDUToEthernetShort(t *testing.T) {
	frame := dataFrame(0x08, 0, 0x0800, nil)
	for _, n := range []int{10, ieee80211HdrLen, len(frame) - 1} {
		nb := netBuffer{buf: frame[:n], end: n}
		if err := mpduToEthernet(&nb, 0); err != ErrBufferTooSmall {
			t.Errorf("len %d: want ErrBufferTooSmall, got %v", n, err)
		}
	}
	// Header length shorter than the distribution system bits allow.
	frame = dataFrame(0x08, 3, 0x0800, []byte("x"))
	nb := netBuffer{buf: frame, end: len(frame)}
	if err := mpduToEthernet(&nb, ieee80211HdrLen); err != ErrBufferTooSmall {
		t.Errorf("short header: want ErrBufferTooSmall, got %v", err)
	}
}

func TestNetBuffer(t *testing.T) {
	nb := netBuffer{buf: make([]byte, 16), head: 4, end: 12}
	if err := nb.push(5); err != ErrBufferTooSmall {
		t.Errorf("push past start: got %v", err)
	}
	if err := nb.pull(9); err != ErrBufferTooSmall {
		t.Errorf("pull past end: got %v", err)
	}
	if err := nb.pull(8); err != nil || len(nb.data()) != 0 {
		t.Errorf("pull all: %v, %d left", err, len(nb.data()))
	}
	if err := nb.push(12); err != nil || len(nb.data()) != 12 {
		t.Errorf("push all: %v, %d", err, len(nb.data()))
	}
}

// rxBuffEvent returns an RX_BUFF event payload naming a single MPDU.
func rxBuffEvent(desc uint16, size int) []byte {
	payload := make([]byte, nrfwifi.RX_BUFF_SUMMARY_LEN+nrfwifi.RX_BUF_INFO_LEN)
	summary := nrfwifi.RxBuffSummary{
		RxPktType: nrfwifi.NRF_WIFI_RX_PKT_DATA,
		PktCount:  1,
		Frequency: 2437,
	}
	summary.Put(payload)
	info := nrfwifi.RxBufInfo{DescID: desc, Len: uint16(size), PktType: nrfwifi.PKT_TYPE_MPDU}
	info.Put(payload[nrfwifi.RX_BUFF_SUMMARY_LEN:])
	return payload
}

func TestHandleRx(t *testing.T) {
	d, bus := newTestDevice(t)
	payload := []byte("arp request")
	frame := dataFrame(0x08, ieee80211FCFromDS, 0x0806, payload)
	const desc = 6 // Second queue.
	rb := &d.rpu.rx[desc]
	bus.setBytes(rb.addr+nrfwifi.RX_BUF_HEADROOM, frame)

	var got []byte
	d.RecvEthHandle(func(pkt []byte) error {
		got = append(got[:0], pkt...)
		return nil
	})
	queue := d.rpu.hpq.RxBufBusy[1].Enqueue
	before := len(bus.writesTo(queue))
	err := d.handleRx(rxBuffEvent(desc, len(frame)))
	if err != nil {
		t.Fatal(err)
	}
	ehdr := eth.DecodeEthernetHeader(got)
	if ehdr.SizeOrEtherType != 0x0806 || !bytes.Equal(got[eth.SizeEthernetHeader:], payload) {
		t.Errorf("delivered frame %x", got)
	}
	if after := len(bus.writesTo(queue)); after != before+1 {
		t.Errorf("rx buffer not reposted: %d writes, want %d", after, before+1)
	}

	// A failing handler still recycles the buffer.
	d.RecvEthHandle(func([]byte) error { return errors.New("stack full") })
	err = d.handleRx(rxBuffEvent(desc, len(frame)))
	if err != nil {
		t.Fatal(err)
	}
	if after := len(bus.writesTo(queue)); after != before+2 {
		t.Errorf("rx buffer not reposted after handler error: %d writes", after)
	}
}

func TestHandleRxBadDescriptor(t *testing.T) {
	d, bus := newTestDevice(t)
	n := bus.numWrites()
	err := d.handleRx(rxBuffEvent(numRxBufs, 64))
	if err != nil {
		t.Fatal(err)
	}
	if bus.numWrites() != n {
		t.Error("bad descriptor caused bus writes")
	}
}
