package nrf70

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/soypat/nrf70/nrfwifi"
)

// completion is a command awaiting its RPU completion event.
type completion struct {
	seq    uint32
	kind   nrfwifi.CommandKind
	active bool
	timer  *time.Timer
}

// maxScanResults bounds the number of BSS kept from a scan result dump.
const maxScanResults = 32

// scanDump accumulates SCAN_DISPLAY_RESULT events.
type scanDump struct {
	buf       [maxScanResults * nrfwifi.DISPLAY_RESULT_LEN]byte
	n         int
	truncated bool
}

// IRQ signals the runner that the host interrupt line was asserted.
// It never blocks and may be called from an interrupt handler.
func (d *Device) IRQ() { notify(d.irq) }

// Run is the driver's runner. It owns the bus and processes control actions,
// RPU events and outgoing frames until ctx is done or a bus error occurs.
// Exactly one Run call must be active for the control methods to make progress.
//
// Pending interrupts are always serviced before new actions and frames are
// accepted so a busy control side cannot starve event processing.
func (d *Device) Run(ctx context.Context) error {
	if !d.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer d.running.Store(false)
	var tick <-chan time.Time
	if d.cfg.PollPeriod > 0 {
		t := time.NewTicker(d.cfg.PollPeriod)
		defer t.Stop()
		tick = t.C
	}
	d.info("run:start")
	for {
		var err error
		select {
		case <-d.irq:
			err = d.handleIRQ()
		default:
			var timeout <-chan time.Time
			if d.await.active {
				timeout = d.await.timer.C
			}
			select {
			case <-ctx.Done():
				d.info("run:stop", slog.String("reason", ctx.Err().Error()))
				return ctx.Err()
			case <-d.irq:
				err = d.handleIRQ()
			case <-tick:
				err = d.handleIRQ()
			case <-d.act.runner:
				err = d.handleAction()
			case tb := <-d.txq:
				err = d.handleTx(tb)
			case <-timeout:
				d.expire()
			}
		}
		if err == nil {
			continue
		}
		var busErr *BusError
		if errors.As(err, &busErr) {
			d.logerr("run:bus-failure", slog.String("err", err.Error()))
			d.fail(err)
			return err
		}
		d.warn("run", slog.String("err", err.Error()))
	}
}

// handleIRQ acknowledges the interrupt and processes a single event.
func (d *Device) handleIRQ() error {
	if !d.rpu.hpqValid {
		return nil
	}
	err := d.rpu.irqAck()
	if err != nil {
		return err
	}
	hdr, payload, err := d.rpu.readEvent()
	if err == ErrNoData {
		err = nil
	} else {
		// Keep draining while the RPU may have events queued, also after
		// a dropped event.
		notify(d.irq)
		if err == nil {
			err = d.dispatch(hdr.Type, payload)
		}
	}
	fired, werr := d.rpu.watchdogCheck()
	if fired {
		d.warn("rpu:watchdog-expired")
	}
	return errjoin(err, werr)
}

func (d *Device) handleAction() error {
	a, seq, ok := d.act.takePending()
	if !ok {
		return nil
	}
	d.debug("action", slog.String("kind", a.kind.String()), slog.String("cmd", a.cmd.Kind.String()))
	switch a.kind {
	case actionBoot:
		return d.boot(seq, a.firmware)
	case actionCommand:
		if !d.rpu.hpqValid {
			d.act.respond(seq, nil, ErrNotInitialized)
			return nil
		}
		return d.submit(seq, &a.cmd, a.wait)
	case actionGet:
		d.get(seq, a.item)
		return nil
	}
	d.act.respond(seq, nil, ErrInvalidArgument)
	return nil
}

// boot validates the firmware, brings up the RPU and sends system init.
// The action completes on INIT_DONE.
func (d *Device) boot(seq uint32, blob []byte) error {
	fw, err := nrfwifi.ParseFirmware(blob)
	if err != nil {
		d.logerr("boot:firmware", slog.String("err", err.Error()))
		d.act.respond(seq, nil, err)
		return nil
	}
	d.debug("boot:firmware", slog.Uint64("features", uint64(fw.FeatureFlags)))
	d.rpu.reinit(d.bus, d.logstate)
	d.rpu.bootTimeout = d.cfg.BootTimeout
	d.rpu.cmdTimeout = d.cfg.CommandTimeout
	rf, err := d.rpu.boot(&fw, &d.cfg.RF, &d.cfg.TxPowerCeiling)
	if err != nil {
		d.act.respond(seq, nil, err)
		return err
	}
	sysInit := nrfwifi.DefaultSysInit(rf)
	sysInit.MAC = hardwareAddr(&d.rpu.umacInfo, d.cfg.MAC)
	cmd := nrfwifi.Command{Kind: nrfwifi.CmdSysInit, SysInit: &sysInit}
	return d.submit(seq, &cmd, true)
}

// submit encodes and sends cmd. When wait is set the action completes on
// the command's completion event, otherwise as soon as it is sent.
func (d *Device) submit(seq uint32, cmd *nrfwifi.Command, wait bool) error {
	n, err := cmd.Put(d.cmdBuf[:])
	if err != nil {
		d.act.respond(seq, nil, errjoin(ErrInvalidArgument, err))
		return nil
	}
	if cmd.Kind == nrfwifi.CmdGetScanResults {
		d.scan.n = 0
		d.scan.truncated = false
	}
	err = d.rpu.sendCommand(cmd.Domain(), d.cmdBuf[:n])
	if err != nil {
		d.act.respond(seq, nil, err)
		return err
	}
	if !wait {
		d.act.respond(seq, nil, nil)
		return nil
	}
	timeout := d.cfg.EventTimeout
	if cmd.Kind == nrfwifi.CmdTriggerScan {
		timeout = d.cfg.ScanTimeout
	}
	d.await.seq = seq
	d.await.kind = cmd.Kind
	d.await.active = true
	d.await.timer.Reset(timeout)
	return nil
}

func (d *Device) get(seq uint32, it item) {
	if !d.rpu.hpqValid {
		d.act.respond(seq, nil, ErrNotInitialized)
		return
	}
	switch it {
	case itemUMACInfo:
		d.act.respond(seq, d.rpu.umacInfoRaw[:], nil)
	case itemVersion:
		v := d.rpu.version
		d.act.respond(seq, []byte{v.Version, v.Major, v.Minor, v.Extra}, nil)
	default:
		d.act.respond(seq, nil, ErrInvalidArgument)
	}
}

// hardwareAddr returns the OTP programmed MAC address or fallback when
// the OTP is blank.
func hardwareAddr(info *nrfwifi.UMACInfo, fallback [6]byte) [6]byte {
	mac := info.HardwareAddr0()
	if mac == [6]byte{} || mac == [6]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff} {
		return fallback
	}
	return mac
}

// complete answers the command awaiting a completion of kind.
func (d *Device) complete(kind nrfwifi.CommandKind, data []byte, err error) {
	if !d.await.active || d.await.kind != kind {
		d.warn("event:unawaited-completion", slog.String("cmd", kind.String()))
		return
	}
	d.await.active = false
	d.await.timer.Stop()
	if !d.act.respond(d.await.seq, data, err) {
		d.warn("event:late-completion", slog.String("cmd", kind.String()))
	}
}

// expire fails a command whose completion event did not arrive in time.
func (d *Device) expire() {
	if !d.await.active {
		return
	}
	d.warn("event:completion-timeout", slog.String("cmd", d.await.kind.String()))
	d.await.active = false
	d.act.respond(d.await.seq, nil, ErrTimeout)
}

// fail answers any outstanding action with err.
func (d *Device) fail(err error) {
	if d.await.active {
		d.await.active = false
		d.await.timer.Stop()
		d.act.respond(d.await.seq, nil, err)
	}
}

func (d *Device) dispatch(typ nrfwifi.MsgType, payload []byte) error {
	switch typ {
	case nrfwifi.MsgTypeSystem:
		return d.handleSysEvent(payload)
	case nrfwifi.MsgTypeUMAC:
		return d.handleUMACEvent(payload)
	case nrfwifi.MsgTypeData:
		return d.handleDataEvent(payload)
	case nrfwifi.MsgTypeSupplicant:
		d.trace("event:supplicant", slog.Int("len", len(payload)))
		return nil
	}
	d.warn("event:unknown-domain", slog.Uint64("type", uint64(typ)), slog.Int("len", len(payload)))
	return nil
}

func (d *Device) handleSysEvent(payload []byte) error {
	if len(payload) < nrfwifi.SYS_HEAD_LEN {
		return ErrBufferTooSmall
	}
	hdr := nrfwifi.DecodeSysHead(payload)
	ev := nrfwifi.SysEvent(hdr.CmdEvent)
	d.debug("event:sys", slog.String("ev", ev.String()))
	switch ev {
	case nrfwifi.SysEvINIT_DONE:
		d.complete(nrfwifi.CmdSysInit, nil, nil)
	case nrfwifi.SysEvSTATS:
		d.complete(nrfwifi.CmdGetStats, payload[nrfwifi.SYS_HEAD_LEN:], nil)
	case nrfwifi.SysEvDEINIT_DONE:
		err := errjoin(d.rpu.disableInterrupts(), d.rpu.sleep())
		d.rpu.hpqValid = false
		d.complete(nrfwifi.CmdSysDeinit, nil, err)
		return err
	}
	return nil
}

func (d *Device) handleUMACEvent(payload []byte) error {
	if len(payload) < nrfwifi.UMAC_HDR_LEN {
		return ErrBufferTooSmall
	}
	hdr := nrfwifi.DecodeUMACHeader(payload)
	ev := nrfwifi.UMACEvent(hdr.CmdEvent)
	d.debug("event:umac", slog.String("ev", ev.String()), slog.Int("len", len(payload)))
	switch ev {
	case nrfwifi.UmacEvCMD_STATUS:
		st, err := nrfwifi.DecodeCmdStatus(payload)
		if err != nil {
			return err
		}
		kind := commandKind(st.CmdID)
		if !d.await.active || d.await.kind != kind {
			d.debug("event:cmd-status", slog.String("cmd", st.CmdID.String()), slog.Int("status", int(st.Status)))
			return nil
		}
		if st.Status != 0 {
			d.complete(kind, nil, &CodedError{Status: st.Status})
		} else if kind == nrfwifi.CmdChangeMACAddr {
			d.complete(kind, nil, nil)
		}
		// Other commands complete on their own events.

	case nrfwifi.UmacEvIFFLAGS_STATUS:
		st, err := nrfwifi.DecodeIfFlagsStatus(payload)
		if err != nil {
			return err
		}
		d.complete(nrfwifi.CmdSetIfFlags, nil, codedErr(st.Status))

	case nrfwifi.UmacEvTRIGGER_SCAN_START:
		d.info("scan:started")

	case nrfwifi.UmacEvSCAN_DONE:
		st, err := nrfwifi.DecodeScanDone(payload)
		if err != nil {
			return err
		}
		d.info("scan:done", slog.Int("status", int(st.Status)))
		d.complete(nrfwifi.CmdTriggerScan, nil, codedErr(st.Status))

	case nrfwifi.UmacEvSCAN_ABORTED:
		if d.await.active && d.await.kind == nrfwifi.CmdAbortScan {
			d.complete(nrfwifi.CmdAbortScan, nil, nil)
		} else {
			d.complete(nrfwifi.CmdTriggerScan, nil, ErrScanAborted)
		}

	case nrfwifi.UmacEvSCAN_DISPLAY_RESULT:
		res, err := nrfwifi.DecodeDisplayResults(payload)
		if err != nil {
			return err
		}
		n := copy(d.scan.buf[d.scan.n:], res.Results)
		d.scan.n += n
		if n < len(res.Results) && !d.scan.truncated {
			d.scan.truncated = true
			d.warn("scan:results-truncated", slog.Int("max", maxScanResults))
		}
		if !res.More() {
			d.complete(nrfwifi.CmdGetScanResults, d.scan.buf[:d.scan.n], nil)
		}
	}
	return nil
}

func (d *Device) handleDataEvent(payload []byte) error {
	if len(payload) < nrfwifi.UMAC_HEAD_LEN {
		return ErrBufferTooSmall
	}
	head := nrfwifi.DecodeUMACHead(payload)
	switch head.Cmd {
	case nrfwifi.DataCmdRX_BUFF:
		return d.handleRx(payload)
	case nrfwifi.DataCmdTX_BUFF_DONE:
		return d.handleTxDone(payload)
	case nrfwifi.DataCmdCARRIER_ON, nrfwifi.DataCmdCARRIER_OFF:
		cs, err := nrfwifi.DecodeCarrierState(payload)
		if err != nil {
			return err
		}
		state := linkStateDown
		if head.Cmd == nrfwifi.DataCmdCARRIER_ON {
			state = linkStateUp
		}
		d.info("link:carrier", slog.Bool("up", state == linkStateUp), slog.Uint64("wdev", uint64(cs.WdevID)))
		d.link.Store(uint32(state))
	default:
		return &NotHandledError{What: "data event", Code: uint32(head.Cmd)}
	}
	return nil
}

func codedErr(status int32) error {
	if status == 0 {
		return nil
	}
	return &CodedError{Status: status}
}

// commandKind maps a UMAC command id to the driver command kind.
func commandKind(cmd nrfwifi.UMACCommand) nrfwifi.CommandKind {
	switch cmd {
	case nrfwifi.UmacCmdTRIGGER_SCAN:
		return nrfwifi.CmdTriggerScan
	case nrfwifi.UmacCmdABORT_SCAN:
		return nrfwifi.CmdAbortScan
	case nrfwifi.UmacCmdGET_SCAN_RESULTS:
		return nrfwifi.CmdGetScanResults
	case nrfwifi.UmacCmdCHANGE_MACADDR:
		return nrfwifi.CmdChangeMACAddr
	case nrfwifi.UmacCmdSET_IFFLAGS:
		return nrfwifi.CmdSetIfFlags
	}
	return 0
}
