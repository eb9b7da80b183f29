package nrf70

import (
	"encoding/binary"
	"errors"
	"log/slog"

	"github.com/soypat/nrf70/nrfwifi"
	"github.com/soypat/seqs/eth"
)

// 802.11 MAC header layout.
const (
	ieee80211HdrLen     = 24
	ieee80211HdrLen4    = 30 // Four address header.
	ieee80211FCToDS     = 1 << 0
	ieee80211FCFromDS   = 1 << 1
	ieee80211QoSDataBit = 0x80
	llcSNAPLen          = 6
)

// netBuffer is a packet held in a larger buffer. The space before head is
// head room that headers can be pushed into without copying the packet.
type netBuffer struct {
	buf  []byte
	head int
	end  int
}

func (nb *netBuffer) data() []byte { return nb.buf[nb.head:nb.end] }

// pull removes n bytes from the start of the packet.
func (nb *netBuffer) pull(n int) error {
	if n < 0 || n > nb.end-nb.head {
		return ErrBufferTooSmall
	}
	nb.head += n
	return nil
}

// push prepends n bytes of head room to the packet.
func (nb *netBuffer) push(n int) error {
	if n < 0 || n > nb.head {
		return ErrBufferTooSmall
	}
	nb.head -= n
	return nil
}

// handleRx processes an RX_BUFF event. Every buffer it names is handed back
// to the RPU whether or not its packet could be delivered.
func (d *Device) handleRx(payload []byte) error {
	summary, infos, err := nrfwifi.DecodeRxBuff(payload)
	if err != nil {
		return err
	}
	d.trace("rx:buff", slog.Int("pkts", int(summary.PktCount)), slog.Int("freq", int(summary.Frequency)),
		slog.Int("type", int(summary.RxPktType)), slog.Int("hdrlen", int(summary.MACHeaderLen)))
	for i := 0; i < infos.Len(); i++ {
		info := infos.At(i)
		rb, err := d.rpu.rxBuf(info.DescID)
		if err != nil {
			d.warn("rx:bad-descriptor", slog.Int("desc", int(info.DescID)))
			continue
		}
		err = d.rxPacket(&summary, info, rb)
		if err != nil {
			var busErr *BusError
			if errors.As(err, &busErr) {
				return err
			}
			d.warn("rx:drop", slog.Int("desc", int(info.DescID)), slog.String("err", err.Error()))
		}
		err = d.rpu.postRxBuf(rb)
		if err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) rxPacket(summary *nrfwifi.RxBuffSummary, info nrfwifi.RxBufInfo, rb *rxBuffer) error {
	size := int(info.Len)
	err := d.rpu.refreshRx(rb, size)
	if err != nil {
		return err
	}
	switch summary.RxPktType {
	case nrfwifi.NRF_WIFI_RX_PKT_DATA:
		switch info.PktType {
		case nrfwifi.PKT_TYPE_MPDU:
			nb := netBuffer{buf: rb.data[:], end: size}
			err = mpduToEthernet(&nb, int(summary.MACHeaderLen))
			if err != nil {
				return err
			}
			d.deliver(nb.data())
			return nil
		case nrfwifi.PKT_TYPE_MSDU_WITH_MAC:
			return &NotHandledError{What: "rx msdu with mac", Code: uint32(info.PktType)}
		case nrfwifi.PKT_TYPE_MSDU:
			return &NotHandledError{What: "rx msdu", Code: uint32(info.PktType)}
		}
		return &NotHandledError{What: "rx data packet type", Code: uint32(info.PktType)}

	case nrfwifi.NRF_WIFI_RX_PKT_BCN_PRB_RSP:
		d.debug("rx:beacon", slog.Int("len", size), slog.String("data", hexdump(rb.data[:size], 64)))
		return nil
	}
	return &NotHandledError{What: "rx packet type", Code: uint32(summary.RxPktType)}
}

// deliver hands an Ethernet frame to the receive handler. Frames are
// dropped when no handler is set or the handler fails.
func (d *Device) deliver(frame []byte) {
	d.mu.Lock()
	rcv := d.rcvEth
	d.mu.Unlock()
	if rcv == nil {
		d.debug("rx:no-handler", slog.Int("len", len(frame)))
		return
	}
	err := rcv(frame)
	if err != nil {
		d.warn("rx:handler", slog.Int("len", len(frame)), slog.String("err", err.Error()))
	}
}

// mpduToEthernet converts the 802.11 data frame in nb to an Ethernet II
// frame in place. hdrLen is the 802.11 header length, zero computes it from
// the frame control field.
func mpduToEthernet(nb *netBuffer, hdrLen int) error {
	frame := nb.data()
	if len(frame) < ieee80211HdrLen {
		return ErrBufferTooSmall
	}
	fc := frame[1]
	if hdrLen == 0 {
		hdrLen = ieee80211HeaderLen(frame)
	}
	minHdr := ieee80211HdrLen
	if fc&(ieee80211FCToDS|ieee80211FCFromDS) == ieee80211FCToDS|ieee80211FCFromDS {
		minHdr = ieee80211HdrLen4
	}
	if hdrLen < minHdr || len(frame) < hdrLen+llcSNAPLen+2 {
		return ErrBufferTooSmall
	}
	var ehdr eth.EthernetHeader
	ehdr.Destination, ehdr.Source = ieee80211Addrs(frame)
	ethType := binary.BigEndian.Uint16(frame[hdrLen+llcSNAPLen:])
	err := nb.pull(hdrLen + ethSkipLen(ethType))
	if err != nil {
		return err
	}
	if ethType >= 0x600 {
		ehdr.SizeOrEtherType = ethType
	} else {
		ehdr.SizeOrEtherType = uint16(len(nb.data()))
	}
	err = nb.push(eth.SizeEthernetHeader)
	if err != nil {
		return err
	}
	ehdr.Put(nb.data())
	return nil
}

// ethSkipLen returns the number of encapsulation bytes after the 802.11
// header for a frame carrying ethType: the type field itself plus the
// bridge tunnel or RFC 1042 SNAP header when present.
func ethSkipLen(ethType uint16) int {
	switch {
	case ethType < 0x600:
		return 2
	case ethType == uint16(eth.EtherTypeAARP), ethType == uint16(eth.EtherTypeIPX1):
		// Bridge tunnel encapsulation, same length as RFC 1042.
		return 2 + llcSNAPLen
	default:
		return 2 + llcSNAPLen
	}
}

// ieee80211HeaderLen returns the MAC header length of a data frame.
func ieee80211HeaderLen(frame []byte) int {
	n := ieee80211HdrLen
	if frame[1]&(ieee80211FCToDS|ieee80211FCFromDS) == ieee80211FCToDS|ieee80211FCFromDS {
		n = ieee80211HdrLen4
	}
	if frame[0]&0x0c == 0x08 && frame[0]&ieee80211QoSDataBit != 0 {
		n += 2
	}
	return n
}

// ieee80211Addrs returns the Ethernet destination and source addresses of
// an 802.11 data frame according to its distribution system bits.
func ieee80211Addrs(frame []byte) (dst, src [6]byte) {
	var a1, a2, a3, a4 [6]byte
	copy(a1[:], frame[4:10])
	copy(a2[:], frame[10:16])
	copy(a3[:], frame[16:22])
	switch frame[1] & (ieee80211FCToDS | ieee80211FCFromDS) {
	case ieee80211FCToDS | ieee80211FCFromDS:
		copy(a4[:], frame[24:30])
		return a1, a4
	case ieee80211FCFromDS:
		return a1, a3
	case ieee80211FCToDS:
		return a3, a2
	}
	return a1, a2
}
