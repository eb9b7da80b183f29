package nrf70

import (
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
	"github.com/soypat/nrf70/nrfwifi"
)

// hpqEnqueue posts v to the queue.
func (r *rpu) hpqEnqueue(q nrfwifi.HPQ, v uint32) error {
	return r.write32(q.Enqueue, procAny, v)
}

// hpqDequeue pops a value from the queue. Popping is done by writing back
// the value read. Zero and the HPQ_INVALID sentinel both mean the queue is empty.
func (r *rpu) hpqDequeue(q nrfwifi.HPQ) (v uint32, ok bool, err error) {
	v, err = r.read32(q.Dequeue, procAny)
	if err != nil || v == 0 || v == nrfwifi.HPQ_INVALID {
		return 0, false, err
	}
	err = r.write32(q.Dequeue, procAny, v)
	if err != nil {
		return 0, false, err
	}
	return v, true, nil
}

// hpqDequeueWait dequeues from q, retrying until timeout.
func (r *rpu) hpqDequeueWait(q nrfwifi.HPQ, timeout time.Duration) (uint32, error) {
	b := backoff.Backoff{Min: 50 * time.Microsecond, Max: 5 * time.Millisecond, Factor: 2}
	deadline := time.Now().Add(timeout)
	for {
		v, ok, err := r.hpqDequeue(q)
		if err != nil {
			return 0, err
		} else if ok {
			return v, nil
		}
		if time.Since(deadline) >= 0 {
			return 0, ErrTimeout
		}
		time.Sleep(b.Duration())
	}
}

// sendCommand frames payload in a host-RPU message and submits it on the
// command queue, fragmenting it into MAX_CMD_SIZE chunks.
func (r *rpu) sendCommand(typ nrfwifi.MsgType, payload []byte) error {
	if !r.hpqValid {
		return ErrNotInitialized
	}
	total := nrfwifi.HOST_RPU_MSG_LEN + len(payload)
	if total > len(r.msg) {
		return ErrBufferTooSmall
	}
	hdr := nrfwifi.HostRPUMsg{Len: uint32(total), Type: typ}
	hdr.Put(r.msg[:])
	copy(r.msg[nrfwifi.HOST_RPU_MSG_LEN:], payload)
	msg := r.msg[:total]
	if r.isTraceEnabled() {
		r.trace("cmd:send", slog.String("type", typ.String()), slog.Int("len", total), slog.String("data", hexdump(msg, 48)))
	}
	for len(msg) > 0 {
		chunk := msg[:min(len(msg), nrfwifi.MAX_CMD_SIZE)]
		msg = msg[len(chunk):]
		addr, err := r.hpqDequeueWait(r.hpq.CmdAvl, r.cmdTimeout)
		if err != nil {
			r.logerr("cmd:no-slot", slog.String("err", err.Error()))
			return err
		}
		err = r.checkAddr(addr, procAny, len(chunk))
		if err != nil {
			return err
		}
		n := putWords(r.words[:], chunk)
		err = r.writeBuf(addr, procAny, r.words[:n])
		if err != nil {
			return err
		}
		err = r.postCommand(addr)
		if err != nil {
			return err
		}
	}
	return nil
}

// postCommand marks the command at addr busy and rings the UMAC doorbell.
func (r *rpu) postCommand(addr uint32) error {
	err := r.hpqEnqueue(r.hpq.CmdBusy, addr)
	if err != nil {
		return err
	}
	err = r.write32(nrfwifi.RPU_REG_INT_TO_MCU_CTRL, procUMAC, r.numCommands|0x7fff0000)
	r.numCommands++
	return err
}

// sendRxCommand registers an RX buffer with the LMAC through the indirect
// core memory window and posts it on the queue's RX busy queue.
func (r *rpu) sendRxCommand(cmd []uint32, desc uint16, queue int) error {
	if !r.hpqValid {
		return ErrNotInitialized
	} else if queue >= len(r.hpq.RxBufBusy) {
		return ErrInvalidArgument
	}
	addr := r.rxCmdBase + nrfwifi.RPU_DATA_CMD_SIZE_MAX_RX*uint32(desc)
	err := r.writeCore(addr, cmd, procLMAC)
	if err != nil {
		return err
	}
	return r.hpqEnqueue(r.hpq.RxBufBusy[queue], addr)
}

// writeCore writes words to processor core memory at coreAddr.
func (r *rpu) writeCore(coreAddr uint32, buf []uint32, proc processor) error {
	ctrl, wdata := uint32(nrfwifi.RPU_REG_MIPS_MCU_SYS_CORE_MEM_CTRL), uint32(nrfwifi.RPU_REG_MIPS_MCU_SYS_CORE_MEM_WDATA)
	if proc == procUMAC {
		ctrl, wdata = nrfwifi.RPU_REG_MIPS_MCU2_SYS_CORE_MEM_CTRL, nrfwifi.RPU_REG_MIPS_MCU2_SYS_CORE_MEM_WDATA
	}
	// Core memory is word addressed.
	err := r.write32(ctrl, proc, (coreAddr&nrfwifi.RPU_ADDR_MASK_OFFSET)/4)
	if err != nil {
		return err
	}
	for _, w := range buf {
		err = r.write32(wdata, proc, w)
		if err != nil {
			return err
		}
	}
	return nil
}

// readEvent pops an event from the event busy queue and returns its header
// and payload. The payload aliases r.event and is valid until the next call.
// Events longer than MAX_EVENT_POOL_LEN continue in the following event busy
// slots as raw bytes.
func (r *rpu) readEvent() (hdr nrfwifi.HostRPUMsg, payload []byte, err error) {
	if !r.hpqValid {
		return hdr, nil, ErrNotInitialized
	}
	addr, ok, err := r.hpqDequeue(r.hpq.EventBusy)
	if err != nil {
		return hdr, nil, err
	} else if !ok {
		return hdr, nil, ErrNoData
	}
	err = r.checkAddr(addr, procAny, nrfwifi.HOST_RPU_MSG_LEN)
	if err != nil {
		// The slot can not be returned, drop the event.
		return hdr, nil, err
	}
	var hbuf [nrfwifi.HOST_RPU_MSG_LEN]byte
	err = r.readBytes(addr, procAny, hbuf[:], r.words[:])
	if err != nil {
		return hdr, nil, err
	}
	hdr = nrfwifi.DecodeHostRPUMsg(hbuf[:])
	n := hdr.PayloadLen()
	first := min(n, nrfwifi.MAX_EVENT_POOL_LEN-nrfwifi.HOST_RPU_MSG_LEN)
	overflow := n > len(r.event)
	err = r.checkAddr(addr, procAny, nrfwifi.HOST_RPU_MSG_LEN+first)
	if err == nil && !overflow {
		err = r.readBytes(addr+nrfwifi.HOST_RPU_MSG_LEN, procAny, r.event[:first], r.words[:])
	}
	err = errjoin(err, r.freeEvent(addr, hdr.Resubmit != 0))
	if err != nil {
		return hdr, nil, err
	}
	got := first
	for got < n {
		// Continuation slots are consumed even when the event is dropped
		// so the queue stays in step with the RPU.
		caddr, err := r.hpqDequeueWait(r.hpq.EventBusy, r.cmdTimeout)
		if err != nil {
			return hdr, nil, err
		}
		chunk := min(n-got, nrfwifi.MAX_EVENT_POOL_LEN)
		err = r.checkAddr(caddr, procAny, chunk)
		if err != nil {
			return hdr, nil, err
		}
		if !overflow {
			err = r.readBytes(caddr, procAny, r.event[got:got+chunk], r.words[:])
		}
		err = errjoin(err, r.freeEvent(caddr, hdr.Resubmit != 0))
		if err != nil {
			return hdr, nil, err
		}
		got += chunk
	}
	if overflow {
		r.warn("event:overflow", slog.Int("len", n), slog.Int("max", len(r.event)))
		return hdr, nil, ErrBufferOverflow
	}
	r.trace("event:read", slog.String("addr", hex32(addr)), slog.String("type", hdr.Type.String()), slog.Int("len", n))
	return hdr, r.event[:n], nil
}

// freeEvent returns an event slot to the RPU when it asked for it.
func (r *rpu) freeEvent(addr uint32, resubmit bool) error {
	if !resubmit {
		return nil
	}
	return r.hpqEnqueue(r.hpq.EventAvl, addr)
}
