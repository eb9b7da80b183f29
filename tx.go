package nrf70

import (
	"log/slog"

	"github.com/soypat/nrf70/nrfwifi"
	"github.com/soypat/seqs/eth"
)

// MTU is the maximum Ethernet frame length accepted by SendEth.
const MTU = 1514

// txBuffer is a host frame buffer bound to one RPU TX descriptor.
type txBuffer struct {
	desc uint8
	n    int
	data [MTU]byte
}

// initTx fills the free list with every TX buffer.
func (d *Device) initTx() {
	d.txFree = make(chan *txBuffer, nrfwifi.MAX_TX_TOKENS)
	d.txq = make(chan *txBuffer, nrfwifi.MAX_TX_TOKENS)
	for i := range d.txBufs {
		d.txBufs[i].desc = uint8(i)
		d.txFree <- &d.txBufs[i]
	}
}

// queueTx copies pkt into a free TX buffer and queues it for the runner.
func (d *Device) queueTx(pkt []byte) error {
	if len(pkt) < eth.SizeEthernetHeader || len(pkt) > MTU {
		return ErrInvalidArgument
	} else if linkState(d.link.Load()) != linkStateUp {
		return ErrLinkDown
	}
	var tb *txBuffer
	select {
	case tb = <-d.txFree:
	default:
		return ErrBusy
	}
	tb.n = copy(tb.data[:], pkt)
	d.txq <- tb
	return nil
}

// handleTx writes a queued frame to its RPU TX buffer and posts the TX_BUFF
// command. The buffer stays in use until TX_BUFF_DONE returns it.
func (d *Device) handleTx(tb *txBuffer) error {
	err := d.tx(tb)
	if err != nil {
		d.txFree <- tb
	}
	return err
}

func (d *Device) tx(tb *txBuffer) error {
	r := &d.rpu
	if !r.hpqValid {
		return ErrNotInitialized
	}
	frame := tb.data[:tb.n]
	ehdr := eth.DecodeEthernetHeader(frame)
	payload := frame[eth.SizeEthernetHeader:]
	dataAddr := txPoolBase + uint32(tb.desc)*txBufSize + nrfwifi.TX_BUF_HEADROOM
	n := putWords(r.words[:], payload)
	err := r.writeBuf(dataAddr, procAny, r.words[:n])
	if err != nil {
		return err
	}

	cmd := nrfwifi.TxBuff{
		DescNum:   tb.desc,
		Dest:      ehdr.Destination,
		Src:       ehdr.Source,
		EtherType: ehdr.SizeOrEtherType,
		PktLen:    uint16(len(payload)),
		DDRPtr:    dataAddr,
	}
	msgLen := nrfwifi.HOST_RPU_MSG_LEN + cmd.Size()
	var msg [nrfwifi.HOST_RPU_MSG_LEN + nrfwifi.TX_BUFF_HEAD_LEN + nrfwifi.TX_BUFF_INFO_LEN]byte
	hdr := nrfwifi.HostRPUMsg{Len: uint32(msgLen), Type: nrfwifi.MsgTypeData}
	hdr.Put(msg[:])
	cmd.Put(msg[nrfwifi.HOST_RPU_MSG_LEN:])
	cmdAddr := r.txCmdBase + uint32(tb.desc)*nrfwifi.RPU_DATA_CMD_SIZE_MAX_TX
	n = putWords(r.words[:], msg[:msgLen])
	err = r.writeBuf(cmdAddr, procAny, r.words[:n])
	if err != nil {
		return err
	}
	err = r.postCommand(cmdAddr)
	if err != nil {
		return err
	}
	d.txBusy[tb.desc] = true
	d.trace("tx", slog.Int("desc", int(tb.desc)), slog.Int("len", tb.n), slog.Uint64("type", uint64(ehdr.SizeOrEtherType)))
	return nil
}

// handleTxDone returns the buffer of a transmitted frame to the free list.
func (d *Device) handleTxDone(payload []byte) error {
	done, err := nrfwifi.DecodeTxBuffDone(payload)
	if err != nil {
		return err
	}
	if int(done.DescNum) >= len(d.txBufs) {
		return &NotHandledError{What: "tx descriptor", Code: uint32(done.DescNum)}
	}
	if !d.txBusy[done.DescNum] {
		d.warn("tx:spurious-done", slog.Int("desc", int(done.DescNum)))
		return nil
	}
	if done.Status != 0 {
		d.debug("tx:status", slog.Int("desc", int(done.DescNum)), slog.Int("status", int(done.Status)))
	}
	d.txBusy[done.DescNum] = false
	d.txFree <- &d.txBufs[done.DescNum]
	return nil
}
