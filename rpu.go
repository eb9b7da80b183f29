package nrf70

import (
	"log/slog"
	"time"

	"github.com/jpillora/backoff"
	"github.com/soypat/nrf70/nrfwifi"
)

/*
Packet RAM layout, 0xB0005000..0xB0030FFF usable for host-RPU buffers:

	TX buffers: MAX_TX_TOKENS x {52 byte header, 1600 bytes data} from the start.
	RX buffers: 3 queues x 5 buffers x {4 byte descriptor id, 1600 bytes data} at the end.

RX descriptor ids are assigned across all queues starting from 0, queue q
owns descriptors q*5 through q*5+4.
*/
const (
	numRxBufs  = nrfwifi.MAX_NUM_OF_RX_QUEUES * nrfwifi.RX_BUFS_PER_QUEUE
	rxBufSize  = nrfwifi.RX_BUF_HEADROOM + nrfwifi.RX_MAX_DATA_SIZE
	rxPoolBase = nrfwifi.RPU_MEM_PKT_BASE + nrfwifi.RPU_PKTRAM_SIZE - numRxBufs*rxBufSize
	txBufSize  = nrfwifi.TX_BUF_HEADROOM + nrfwifi.TX_MAX_DATA_SIZE
	txPoolBase = nrfwifi.RPU_MEM_PKT_BASE

	fwChunkSize = 1024
	// eventBufLen bounds reassembled events.
	eventBufLen = 4 * nrfwifi.MAX_EVENT_POOL_LEN
)

// rxBuffer is the host copy of an RPU receive buffer.
type rxBuffer struct {
	// addr is the RPU address of the buffer's descriptor id word.
	addr  uint32
	desc  uint16
	queue uint8
	data  [nrfwifi.RX_MAX_DATA_SIZE]byte
}

// rpu holds the protocol state of a booted RPU. It is owned by the runner.
type rpu struct {
	mem
	hpq         nrfwifi.HPQMInfo
	hpqValid    bool
	rxCmdBase   uint32
	txCmdBase   uint32
	numCommands uint32
	version     nrfwifi.Version
	umacInfo    nrfwifi.UMACInfo
	umacInfoRaw [nrfwifi.UMAC_INFO_LEN]byte
	otp         otpParams
	bootTimeout time.Duration
	cmdTimeout  time.Duration
	rx          [numRxBufs]rxBuffer
	// words is scratch for word transfers of commands, events and RX data.
	words [(nrfwifi.RX_MAX_DATA_SIZE + 3) / 4]uint32
	msg   [2 * nrfwifi.MAX_CMD_SIZE]byte
	event [eventBufLen]byte
}

func (r *rpu) reinit(bus Bus, log logstate) {
	r.bus = bus
	r.logstate = log
	r.hpqValid = false
	r.numCommands = nrfwifi.RPU_CMD_START_MAGIC
}

// boot runs the boot sequence up to and excluding system init and returns
// the derived RF parameters for it.
func (r *rpu) boot(fw *nrfwifi.Firmware, cfg *RFConfig, ceil *TxPowerCeiling) (rf [nrfwifi.NRF_WIFI_RF_PARAMS_SIZE]byte, err error) {
	start := time.Now()
	r.info("boot:start")
	err = r.wakeup()
	if err != nil {
		return rf, err
	}
	err = r.enableClocks()
	if err != nil {
		return rf, err
	}
	err = r.enableInterrupts()
	if err != nil {
		return rf, err
	}
	err = r.reset()
	if err != nil {
		return rf, err
	}
	err = r.loadFirmware(fw)
	if err != nil {
		return rf, err
	}
	err = r.bootFirmware()
	if err != nil {
		return rf, err
	}
	ver, err := r.read32(nrfwifi.RPU_MEM_UMAC_VER, procAny)
	if err != nil {
		return rf, err
	}
	r.version = nrfwifi.DecodeVersion(ver)
	r.info("boot:firmware-up", slog.String("version", r.version.String()))

	// Firmware may have changed the power state.
	err = r.wakeup()
	if err != nil {
		return rf, err
	}
	err = r.readHostportInfo()
	if err != nil {
		return rf, err
	}
	err = r.readOTP()
	if err != nil {
		return rf, err
	}
	rf = deriveRFParams(r.otp, cfg, ceil)
	err = r.seedRx()
	if err != nil {
		return rf, err
	}
	r.info("boot:done", slog.Duration("elapsed", time.Since(start)))
	return rf, nil
}

func (r *rpu) readHostportInfo() error {
	buf := r.event[:nrfwifi.HPQM_INFO_LEN]
	err := r.readBytes(nrfwifi.RPU_MEM_HPQ_INFO, procAny, buf, r.words[:])
	if err != nil {
		return err
	}
	r.hpq = nrfwifi.DecodeHPQMInfo(buf)
	r.rxCmdBase, err = r.read32(nrfwifi.RPU_MEM_RX_CMD_BASE, procAny)
	if err != nil {
		return err
	}
	r.txCmdBase = nrfwifi.RPU_MEM_TX_CMD_BASE
	r.hpqValid = true
	r.debug("boot:hpqm",
		slog.String("cmd-avl", hex32(r.hpq.CmdAvl.Dequeue)),
		slog.String("event-busy", hex32(r.hpq.EventBusy.Dequeue)),
		slog.String("rx-cmd-base", hex32(r.rxCmdBase)),
	)
	return nil
}

func (r *rpu) readOTP() (err error) {
	buf := r.event[:nrfwifi.UMAC_INFO_LEN]
	err = r.readRegion(&regionPktRAM, nrfwifi.RPU_MEM_UMAC_BOOT_SIG-regionPktRAM.rpuStart, r.words[:nrfwifi.UMAC_INFO_LEN/4])
	if err != nil {
		return err
	}
	getWords(buf, r.words[:nrfwifi.UMAC_INFO_LEN/4])
	copy(r.umacInfoRaw[:], buf)
	r.umacInfo = nrfwifi.DecodeUMACInfo(buf)
	r.otp.calib = r.umacInfo.Calib
	r.otp.flags, err = r.readRegion32(&regionPktRAM, nrfwifi.RPU_MEM_OTP_INFO_FLAGS-regionPktRAM.rpuStart)
	if err != nil {
		return err
	}
	ft, err := r.read32(nrfwifi.RPU_MEM_OTP_FT_PROG_VERSION, procAny)
	if err != nil {
		return err
	}
	r.otp.ftProg = (ft & nrfwifi.FT_PROG_VER_MASK) >> 16
	r.otp.packageType, err = r.read32(nrfwifi.RPU_MEM_OTP_PACKAGE_TYPE, procAny)
	if err != nil {
		return err
	}
	r.debug("boot:otp", slog.Uint64("flags", uint64(r.otp.flags)),
		slog.Uint64("ft-prog", uint64(r.otp.ftProg)), slog.Uint64("package", uint64(r.otp.packageType)))
	return nil
}

// wakeup requests the RPU to leave sleep and waits until it is awake.
func (r *rpu) wakeup() error {
	r.debug("rpu:wakeup")
	err := r.bus.WriteSR2(sr2RPUWakeupReq)
	if err != nil {
		return err
	}
	acked := false
	for i := 0; i < 10 && !acked; i++ {
		sr2, err := r.bus.ReadSR2()
		if err != nil {
			return err
		}
		acked = sr2 == sr2RPUWakeupReq
		if !acked {
			time.Sleep(time.Millisecond)
		}
	}
	if !acked {
		return ErrNoAcknowledgement
	}
	for i := 0; i < 10; i++ {
		sr1, err := r.bus.ReadSR1()
		if err != nil {
			return err
		}
		if sr1&sr1RPUAwake != 0 {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return ErrTimeout
}

// waitUntilReady waits for the RPU to report both awake and ready.
func (r *rpu) waitUntilReady() error {
	for i := 0; i < 10; i++ {
		sr1, err := r.bus.ReadSR1()
		if err != nil {
			return err
		}
		if sr1 == sr1RPUAwake|sr1RPUReady {
			return nil
		}
		time.Sleep(time.Millisecond)
	}
	return ErrTimeout
}

func (r *rpu) sleep() error {
	r.debug("rpu:sleep")
	return r.bus.WriteSR2(0)
}

func (r *rpu) enableClocks() error {
	r.debug("rpu:enable-clocks")
	return r.writeRegion32(&regionPBus, nrfwifi.PBUS_AGC_SYS_CLK_CTRL_OFFSET, nrfwifi.PBUS_AGC_SYS_CLK_CTRL_VAL)
}

func (r *rpu) enableInterrupts() error {
	r.debug("rpu:enable-interrupts")
	v, err := r.read32(nrfwifi.RPU_REG_INT_FROM_RPU_CTRL, procAny)
	if err != nil {
		return err
	}
	err = r.write32(nrfwifi.RPU_REG_INT_FROM_RPU_CTRL, procAny, v|1<<nrfwifi.RPU_REG_BIT_INT_FROM_RPU_CTRL)
	if err != nil {
		return err
	}
	return r.write32(nrfwifi.RPU_REG_INT_FROM_MCU_CTRL, procAny, 1<<nrfwifi.RPU_REG_BIT_INT_FROM_MCU_CTRL)
}

func (r *rpu) disableInterrupts() error {
	r.debug("rpu:disable-interrupts")
	v, err := r.read32(nrfwifi.RPU_REG_INT_FROM_RPU_CTRL, procAny)
	if err != nil {
		return err
	}
	err = r.write32(nrfwifi.RPU_REG_INT_FROM_RPU_CTRL, procAny, v&^(1<<nrfwifi.RPU_REG_BIT_INT_FROM_RPU_CTRL))
	if err != nil {
		return err
	}
	return r.write32(nrfwifi.RPU_REG_INT_FROM_MCU_CTRL, procAny, ^uint32(1<<nrfwifi.RPU_REG_BIT_INT_FROM_MCU_CTRL))
}

// mcu describes the boot registers of one of the RPU processors.
type mcu struct {
	proc        processor
	control     uint32
	excpReady   uint32
	sigAddr     uint32
	sig         uint32
	sleepCtrl   uint32
	patchOffset uint32
	vectors     [4][2]uint32
}

var mcus = [2]mcu{
	{
		proc:        procLMAC,
		control:     nrfwifi.RPU_REG_MIPS_MCU_CONTROL,
		excpReady:   nrfwifi.RPU_REG_MIPS_MCU_BOOT_EXCP_READY,
		sigAddr:     nrfwifi.RPU_MEM_LMAC_BOOT_SIG,
		sig:         nrfwifi.NRF_WIFI_LMAC_BOOT_SIG,
		sleepCtrl:   nrfwifi.RPU_REG_UCC_SLEEP_CTRL_DATA_0,
		patchOffset: nrfwifi.NRF_WIFI_LMAC_ROM_PATCH_OFFSET,
		vectors: [4][2]uint32{
			{nrfwifi.RPU_REG_MIPS_MCU_BOOT_EXCP_INSTR_0, nrfwifi.NRF_WIFI_LMAC_BOOT_EXCP_VECT_0},
			{nrfwifi.RPU_REG_MIPS_MCU_BOOT_EXCP_INSTR_1, nrfwifi.NRF_WIFI_LMAC_BOOT_EXCP_VECT_1},
			{nrfwifi.RPU_REG_MIPS_MCU_BOOT_EXCP_INSTR_2, nrfwifi.NRF_WIFI_LMAC_BOOT_EXCP_VECT_2},
			{nrfwifi.RPU_REG_MIPS_MCU_BOOT_EXCP_INSTR_3, nrfwifi.NRF_WIFI_LMAC_BOOT_EXCP_VECT_3},
		},
	},
	{
		proc:        procUMAC,
		control:     nrfwifi.RPU_REG_MIPS_MCU2_CONTROL,
		excpReady:   nrfwifi.RPU_REG_MIPS_MCU2_BOOT_EXCP_READY,
		sigAddr:     nrfwifi.RPU_MEM_UMAC_BOOT_SIG,
		sig:         nrfwifi.NRF_WIFI_UMAC_BOOT_SIG,
		sleepCtrl:   nrfwifi.RPU_REG_UCC_SLEEP_CTRL_DATA_1,
		patchOffset: nrfwifi.NRF_WIFI_UMAC_ROM_PATCH_OFFSET,
		vectors: [4][2]uint32{
			{nrfwifi.RPU_REG_MIPS_MCU2_BOOT_EXCP_INSTR_0, nrfwifi.NRF_WIFI_UMAC_BOOT_EXCP_VECT_0},
			{nrfwifi.RPU_REG_MIPS_MCU2_BOOT_EXCP_INSTR_1, nrfwifi.NRF_WIFI_UMAC_BOOT_EXCP_VECT_1},
			{nrfwifi.RPU_REG_MIPS_MCU2_BOOT_EXCP_INSTR_2, nrfwifi.NRF_WIFI_UMAC_BOOT_EXCP_VECT_2},
			{nrfwifi.RPU_REG_MIPS_MCU2_BOOT_EXCP_INSTR_3, nrfwifi.NRF_WIFI_UMAC_BOOT_EXCP_VECT_3},
		},
	},
}

// reset performs a pulsed soft reset of the LMAC and then the UMAC.
func (r *rpu) reset() error {
	for i := range mcus {
		m := &mcus[i]
		r.debug("rpu:reset", slog.String("proc", m.proc.String()))
		err := r.write32(m.control, m.proc, 1)
		if err != nil {
			return err
		}
		err = r.pollWord(m.control, m.proc, 1, 0, time.Millisecond)
		if err != nil {
			return err
		}
		// MIPS restarts from its boot exception registers and waits.
		err = r.pollWord(m.excpReady, m.proc, 1, 1, time.Millisecond)
		if err != nil {
			return err
		}
	}
	return nil
}

// loadFirmware writes the patch images in blob order.
func (r *rpu) loadFirmware(fw *nrfwifi.Firmware) error {
	for _, kind := range fw.Order {
		img := &fw.Images[kind]
		if len(img.Data) == 0 {
			continue
		}
		proc := procLMAC
		if img.Kind.IsUMAC() {
			proc = procUMAC
		}
		reg, off := resolve(img.Kind.Dest(), proc)
		r.debug("rpu:load", slog.String("image", img.Kind.String()), slog.Int("len", len(img.Data)),
			slog.String("region", reg.name), slog.Uint64("off", uint64(off)))
		data := img.Data
		for len(data) > 0 {
			chunk := data[:min(len(data), fwChunkSize)]
			n := putWords(r.words[:], chunk)
			err := r.writeRegion(reg, off, r.words[:n])
			if err != nil {
				return err
			}
			off += uint32(len(chunk))
			data = data[len(chunk):]
		}
	}
	return nil
}

// bootFirmware starts the loaded patches and waits on their boot signatures.
func (r *rpu) bootFirmware() error {
	for i := range mcus {
		m := &mcus[i]
		r.debug("rpu:boot", slog.String("proc", m.proc.String()))
		err := r.write32(m.sigAddr, m.proc, 0)
		if err != nil {
			return err
		}
		err = r.write32(m.sleepCtrl, m.proc, m.patchOffset)
		if err != nil {
			return err
		}
		for _, v := range m.vectors {
			err = r.write32(v[0], m.proc, v[1])
			if err != nil {
				return err
			}
		}
		err = r.write32(m.control, m.proc, 1)
		if err != nil {
			return err
		}
		err = r.pollWord(m.sigAddr, m.proc, 0xffffffff, m.sig, 10*time.Millisecond)
		if err != nil {
			r.logerr("rpu:boot-signature", slog.String("proc", m.proc.String()))
			return err
		}
	}
	return nil
}

// pollWord reads addr until the masked value equals want or the boot
// timeout expires. maxWait caps the backoff between reads.
func (r *rpu) pollWord(addr uint32, proc processor, mask, want uint32, maxWait time.Duration) error {
	b := backoff.Backoff{Min: 100 * time.Microsecond, Max: maxWait, Factor: 2}
	deadline := time.Now().Add(r.bootTimeout)
	for {
		v, err := r.read32(addr, proc)
		if err != nil {
			return err
		}
		if v&mask == want {
			return nil
		}
		if time.Since(deadline) >= 0 {
			r.warn("rpu:poll-timeout", slog.String("addr", hex32(addr)), slog.String("got", hex32(v)))
			return ErrTimeout
		}
		time.Sleep(b.Duration())
	}
}

// seedRx hands every receive buffer to the RPU.
func (r *rpu) seedRx() error {
	for q := 0; q < nrfwifi.MAX_NUM_OF_RX_QUEUES; q++ {
		for b := 0; b < nrfwifi.RX_BUFS_PER_QUEUE; b++ {
			desc := q*nrfwifi.RX_BUFS_PER_QUEUE + b
			rb := &r.rx[desc]
			rb.desc = uint16(desc)
			rb.queue = uint8(q)
			rb.addr = rxPoolBase + uint32(rxBufSize*desc)
			err := r.write32(rb.addr, procAny, uint32(desc))
			if err != nil {
				return err
			}
			err = r.postRxBuf(rb)
			if err != nil {
				return err
			}
		}
	}
	r.debug("rpu:rx-seeded", slog.Int("bufs", numRxBufs), slog.String("base", hex32(rxPoolBase)))
	return nil
}

// rxBuf returns the receive buffer with descriptor id desc.
func (r *rpu) rxBuf(desc uint16) (*rxBuffer, error) {
	if int(desc) >= len(r.rx) || r.rx[desc].addr == 0 {
		return nil, ErrNotFound
	}
	return &r.rx[desc], nil
}

// postRxBuf hands rb to the RPU for reception.
func (r *rpu) postRxBuf(rb *rxBuffer) error {
	cmd := [1]uint32{rb.addr + nrfwifi.RX_BUF_HEADROOM}
	return r.sendRxCommand(cmd[:], rb.desc, int(rb.queue))
}

// refreshRx updates the cached copy of the first size bytes of an RX buffer.
func (r *rpu) refreshRx(rb *rxBuffer, size int) error {
	if size > len(rb.data) {
		return ErrBufferOverflow
	}
	return r.readBytes(rb.addr+nrfwifi.RX_BUF_HEADROOM, procAny, rb.data[:size], r.words[:])
}

// irqAck acknowledges the RPU to host interrupt.
func (r *rpu) irqAck() error {
	return r.write32(nrfwifi.RPU_REG_INT_FROM_MCU_ACK, procAny, 1<<nrfwifi.RPU_REG_BIT_INT_FROM_MCU_ACK)
}

// watchdogCheck reports and clears a pending RPU watchdog interrupt.
func (r *rpu) watchdogCheck() (fired bool, err error) {
	v, err := r.read32(nrfwifi.RPU_REG_MIPS_MCU_UCCP_INT_STATUS, procAny)
	if err != nil || v&(1<<nrfwifi.RPU_REG_BIT_MIPS_WATCHDOG_INT_STATUS) == 0 {
		return false, err
	}
	err = r.write32(nrfwifi.RPU_REG_MIPS_MCU_UCCP_INT_CLEAR, procAny, 1<<nrfwifi.RPU_REG_BIT_MIPS_WATCHDOG_INT_CLEAR)
	return true, err
}
