package nrf70

import (
	"context"
	"log/slog"
	"time"

	"github.com/soypat/nrf70/nrfwifi"
)

// ScanType selects between active and passive scanning.
type ScanType uint8

const (
	ScanPassive ScanType = iota
	ScanActive
)

// ScanOptions configures Scan. The zero value is a passive scan of all
// channels with firmware default timings.
type ScanOptions struct {
	// BSSID restricts results to a single access point when non-nil.
	BSSID *[6]byte
	// SSIDs to probe for during an active scan. At most 2.
	SSIDs []string
	// NProbes and HomeTime are accepted for compatibility with other
	// drivers. The nRF70 scan command has no equivalent and ignores them.
	NProbes  uint16
	HomeTime time.Duration
	Type     ScanType
	// Dwell is the time spent on each channel. Zero selects the firmware default.
	Dwell time.Duration
}

// scanParams returns the firmware scan parameters for o.
func (o *ScanOptions) scanParams() (p nrfwifi.ScanParams, err error) {
	if o.Dwell < 0 || o.Dwell > 0xffff*time.Millisecond {
		return p, ErrInvalidArgument
	} else if len(o.SSIDs) > nrfwifi.NRF_WIFI_SCAN_MAX_NUM_SSIDS {
		return p, ErrInvalidArgument
	}
	dwell := uint16(o.Dwell / time.Millisecond)
	switch o.Type {
	case ScanActive:
		p.DwellActive = dwell
	case ScanPassive:
		p.Passive = true
		p.DwellPassive = dwell
	default:
		return p, ErrInvalidArgument
	}
	if o.BSSID != nil {
		p.BSSID = *o.BSSID
	}
	for _, ssid := range o.SSIDs {
		if len(ssid) > nrfwifi.NRF_WIFI_SSID_LEN {
			return p, ErrInvalidArgument
		}
		p.SSIDs = append(p.SSIDs, []byte(ssid))
	}
	return p, nil
}

// Scan runs a scan and blocks until the RPU reports it finished. Results
// are then available through GetScanResults.
func (d *Device) Scan(ctx context.Context, opts ScanOptions) error {
	params, err := opts.scanParams()
	if err != nil {
		return err
	}
	if opts.NProbes != 0 || opts.HomeTime != 0 {
		d.debug("scan:ignored-options", slog.Int("nprobes", int(opts.NProbes)), slog.Duration("home", opts.HomeTime))
	}
	d.info("scan:start", slog.Bool("passive", params.Passive), slog.Duration("dwell", opts.Dwell))
	return d.command(ctx, nrfwifi.Command{
		Kind:       nrfwifi.CmdTriggerScan,
		Scan:       params,
		ScanReason: nrfwifi.SCAN_DISPLAY,
	}, nil)
}

// AbortScan stops a scan in progress.
func (d *Device) AbortScan(ctx context.Context) error {
	return d.command(ctx, nrfwifi.Command{Kind: nrfwifi.CmdAbortScan}, nil)
}

// ScanResult is a BSS found by the last scan.
type ScanResult struct {
	SSID           string
	BSSID          [6]byte
	Band           int32
	Channel        uint32
	SecurityType   int32
	BeaconInterval uint16
	Capability     int32
	// RSSI is the signal strength in dBm.
	RSSI int
}

// GetScanResults returns the BSSs found by the last scan.
func (d *Device) GetScanResults(ctx context.Context) ([]ScanResult, error) {
	var buf [maxScanResults * nrfwifi.DISPLAY_RESULT_LEN]byte
	n, err := d.commandResp(ctx, nrfwifi.Command{
		Kind:       nrfwifi.CmdGetScanResults,
		ScanReason: nrfwifi.SCAN_DISPLAY,
	}, buf[:])
	if err != nil {
		return nil, err
	}
	results := make([]ScanResult, 0, n/nrfwifi.DISPLAY_RESULT_LEN)
	for off := 0; off+nrfwifi.DISPLAY_RESULT_LEN <= n; off += nrfwifi.DISPLAY_RESULT_LEN {
		r := nrfwifi.DecodeDisplayResult(buf[off:])
		results = append(results, ScanResult{
			SSID:           r.SSIDString(),
			BSSID:          r.BSSID,
			Band:           r.Band,
			Channel:        r.Channel,
			SecurityType:   r.SecurityType,
			BeaconInterval: r.BeaconInterval,
			Capability:     r.Capability,
			RSSI:           r.SignalDBm(),
		})
	}
	return results, nil
}

// Stats are the firmware statistics returned by GetStats.
type Stats = nrfwifi.FWStats

// GetStats reads the firmware statistics.
func (d *Device) GetStats(ctx context.Context) (*Stats, error) {
	// Newer firmware appends counters, the event may exceed FW_STATS_LEN.
	buf := make([]byte, eventBufLen)
	n, err := d.commandResp(ctx, nrfwifi.Command{
		Kind:      nrfwifi.CmdGetStats,
		StatsType: nrfwifi.RPU_STATS_TYPE_ALL,
	}, buf)
	if err != nil {
		return nil, err
	}
	st, err := nrfwifi.DecodeFWStats(buf[:n])
	if err != nil {
		return nil, errjoin(ErrBufferTooSmall, err)
	}
	return &st, nil
}

// Deinit shuts down the RPU firmware and puts the RPU to sleep. Init must
// be called again before the Device can be used.
func (d *Device) Deinit(ctx context.Context) error {
	err := d.command(ctx, nrfwifi.Command{Kind: nrfwifi.CmdSysDeinit}, nil)
	if err != nil {
		return err
	}
	d.link.Store(uint32(linkStateDown))
	d.mu.Lock()
	d.initialized = false
	d.mu.Unlock()
	return nil
}

// Cancel abandons the outstanding control request, if any. The blocked
// caller returns with a nil error and any late RPU response is discarded.
func (d *Device) Cancel() {
	d.act.cancel()
}

// FirmwareVersion returns the version of the running UMAC firmware.
func (d *Device) FirmwareVersion(ctx context.Context) (nrfwifi.Version, error) {
	var buf [4]byte
	_, err := d.act.issue(ctx, action{kind: actionGet, item: itemVersion, resp: buf[:]})
	if err != nil {
		return nrfwifi.Version{}, err
	}
	return nrfwifi.Version{Version: buf[0], Major: buf[1], Minor: buf[2], Extra: buf[3]}, nil
}

// UMACInfo returns the identity and OTP information published by the UMAC.
func (d *Device) UMACInfo(ctx context.Context) (nrfwifi.UMACInfo, error) {
	var buf [nrfwifi.UMAC_INFO_LEN]byte
	_, err := d.act.issue(ctx, action{kind: actionGet, item: itemUMACInfo, resp: buf[:]})
	if err != nil {
		return nrfwifi.UMACInfo{}, err
	}
	return nrfwifi.DecodeUMACInfo(buf[:]), nil
}
