package nrf70

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soypat/nrf70/nrfwifi"
)

// Link state as reported by the carrier data events.
type linkState uint32

const (
	linkStateDown linkState = iota
	linkStateUp
)

// Device is an nRF70 Wi-Fi companion driven over a Bus.
//
// The runner, started with Run, owns the bus and all RPU state. Control
// methods such as Init and Scan hand requests to the runner and block until
// it answers, only one of them may be in flight at a time.
type Device struct {
	logstate
	cfg Config
	bus Bus
	act actionState
	irq chan struct{}

	// Runner owned state.
	rpu    rpu
	await  completion
	scan   scanDump
	cmdBuf [nrfwifi.MAX_CMD_SIZE]byte
	txBufs [nrfwifi.MAX_TX_TOKENS]txBuffer
	txBusy [nrfwifi.MAX_TX_TOKENS]bool

	txq    chan *txBuffer
	txFree chan *txBuffer

	running atomic.Bool
	link    atomic.Uint32

	mu          sync.Mutex
	initialized bool
	mac         [6]byte
	rcvEth      func([]byte) error
}

// Config holds the Device configuration.
type Config struct {
	Logger *slog.Logger
	// MAC is the hardware address used when the OTP memory holds none.
	MAC [6]byte
	// RF are the board RF calibration values.
	RF RFConfig
	// TxPowerCeiling are the configured transmit power ceilings. The chip
	// ceilings still apply when these are higher.
	TxPowerCeiling TxPowerCeiling
	// CommandTimeout bounds the wait for a free command slot.
	CommandTimeout time.Duration
	// BootTimeout bounds each reset and boot signature poll.
	BootTimeout time.Duration
	// ScanTimeout bounds the wait for scan completion.
	ScanTimeout time.Duration
	// EventTimeout bounds the wait for a command's completion event.
	EventTimeout time.Duration
	// PollPeriod, when non-zero, makes the runner check for events
	// periodically as if the interrupt line had been asserted.
	PollPeriod time.Duration
	// BuckEnable and IOVDDEnable drive the power control lines. Either may be
	// nil when the line is not under host control.
	BuckEnable  func(bool)
	IOVDDEnable func(bool)
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		TxPowerCeiling: DefaultTxPowerCeiling(),
		CommandTimeout: time.Second,
		BootTimeout:    time.Second,
		ScanTimeout:    10 * time.Second,
		EventTimeout:   5 * time.Second,
	}
}

// New returns a Device that communicates over bus. Run must be called
// before any control method.
func New(bus Bus, cfg Config) *Device {
	def := DefaultConfig()
	if cfg.CommandTimeout <= 0 {
		cfg.CommandTimeout = def.CommandTimeout
	}
	if cfg.BootTimeout <= 0 {
		cfg.BootTimeout = def.BootTimeout
	}
	if cfg.ScanTimeout <= 0 {
		cfg.ScanTimeout = def.ScanTimeout
	}
	if cfg.EventTimeout <= 0 {
		cfg.EventTimeout = def.EventTimeout
	}
	if cfg.TxPowerCeiling == (TxPowerCeiling{}) {
		cfg.TxPowerCeiling = def.TxPowerCeiling
	}
	d := &Device{
		logstate: makeLogstate(cfg.Logger),
		cfg:      cfg,
		bus:      bus,
		irq:      make(chan struct{}, 1),
	}
	d.act.init()
	d.initTx()
	d.await.timer = time.NewTimer(time.Hour)
	d.await.timer.Stop()
	d.rpu.reinit(bus, d.logstate)
	return d
}

// PowerOn sequences the power control lines, leaving at least 10ms after
// each step for the supplies to settle.
func (d *Device) PowerOn() {
	d.info("power:on")
	time.Sleep(10 * time.Millisecond)
	if d.cfg.BuckEnable != nil {
		d.cfg.BuckEnable(true)
	}
	time.Sleep(10 * time.Millisecond)
	if d.cfg.IOVDDEnable != nil {
		d.cfg.IOVDDEnable(true)
	}
	time.Sleep(10 * time.Millisecond)
}

// PowerOff de-asserts the power control lines.
func (d *Device) PowerOff() {
	d.info("power:off")
	if d.cfg.IOVDDEnable != nil {
		d.cfg.IOVDDEnable(false)
	}
	if d.cfg.BuckEnable != nil {
		d.cfg.BuckEnable(false)
	}
}

var errAlreadyInit = errors.New("nrf70: already initialized")

// Init boots the RPU with the firmware blob, sets the hardware address and
// brings the interface up. It must be called once before any other
// control method.
func (d *Device) Init(ctx context.Context, firmware []byte) (err error) {
	d.mu.Lock()
	initialized := d.initialized
	d.mu.Unlock()
	if initialized {
		return errAlreadyInit
	}
	err = d.cfg.RF.Validate()
	if err != nil {
		return err
	}
	start := time.Now()
	d.info("Init:start", slog.Int("fwlen", len(firmware)))
	_, err = d.act.issue(ctx, action{kind: actionBoot, firmware: firmware})
	if err != nil {
		d.logerr("Init:boot", slog.String("err", err.Error()))
		return err
	}
	info, err := d.UMACInfo(ctx)
	if err != nil {
		return err
	}
	mac := hardwareAddr(&info, d.cfg.MAC)
	d.mu.Lock()
	d.mac = mac
	d.mu.Unlock()
	d.info("Init:mac", slog.String("mac", hexdump(mac[:], 6)), slog.Uint64("part", uint64(info.Part)))
	err = d.command(ctx, nrfwifi.Command{Kind: nrfwifi.CmdChangeMACAddr, MAC: mac}, nil)
	if err != nil {
		return errjoin(errors.New("nrf70: set hardware address"), err)
	}
	err = d.command(ctx, nrfwifi.Command{Kind: nrfwifi.CmdSetIfFlags, IfUp: true}, nil)
	if err != nil {
		return errjoin(errors.New("nrf70: interface up"), err)
	}
	d.mu.Lock()
	d.initialized = true
	d.mu.Unlock()
	d.info("Init:done", slog.Duration("took", time.Since(start)))
	return nil
}

// command issues cmd and waits for its completion event.
func (d *Device) command(ctx context.Context, cmd nrfwifi.Command, resp []byte) error {
	_, err := d.commandResp(ctx, cmd, resp)
	return err
}

// commandResp is command returning the number of response bytes written to resp.
func (d *Device) commandResp(ctx context.Context, cmd nrfwifi.Command, resp []byte) (int, error) {
	n, err := d.act.issue(ctx, action{kind: actionCommand, cmd: cmd, wait: true, resp: resp})
	if err != nil {
		d.debug("command:failed", slog.String("cmd", cmd.Kind.String()), slog.String("err", err.Error()))
	}
	return n, err
}
