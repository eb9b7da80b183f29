package nrfwifi

import "errors"

// Command sizes, not including the HostRPUMsg header.
const (
	SYS_INIT_LEN         = 338
	SYS_DEINIT_LEN       = SYS_HEAD_LEN
	GET_STATS_LEN        = SYS_HEAD_LEN + 8
	SCAN_PARAMS_LEN      = 485
	TRIGGER_SCAN_LEN     = UMAC_HDR_LEN + 4 + SCAN_PARAMS_LEN
	ABORT_SCAN_LEN       = UMAC_HDR_LEN
	GET_SCAN_RESULTS_LEN = UMAC_HDR_LEN + 4
	CHANGE_MACADDR_LEN   = UMAC_HDR_LEN + NRF_WIFI_ETH_ALEN
	SET_IFFLAGS_LEN      = UMAC_HDR_LEN + 8
)

var (
	errUnknownCommand = errors.New("nrfwifi: unknown command kind")
	errTooManySSIDs   = errors.New("nrfwifi: too many scan SSIDs")
	errLongSSID       = errors.New("nrfwifi: SSID too long")
	errLongIE         = errors.New("nrfwifi: scan IE too long")
)

// CommandKind enumerates the commands the driver issues.
type CommandKind uint8

const (
	_ CommandKind = iota
	CmdSysInit
	CmdSysDeinit
	CmdGetStats
	CmdTriggerScan
	CmdAbortScan
	CmdGetScanResults
	CmdChangeMACAddr
	CmdSetIfFlags
)

func (k CommandKind) String() (s string) {
	switch k {
	case CmdSysInit:
		s = "sys-init"
	case CmdSysDeinit:
		s = "sys-deinit"
	case CmdGetStats:
		s = "get-stats"
	case CmdTriggerScan:
		s = "trigger-scan"
	case CmdAbortScan:
		s = "abort-scan"
	case CmdGetScanResults:
		s = "get-scan-results"
	case CmdChangeMACAddr:
		s = "change-macaddr"
	case CmdSetIfFlags:
		s = "set-ifflags"
	default:
		s = "unknown"
	}
	return s
}

// Command is a command addressed to the RPU. Kind selects which of the
// payload fields are encoded, the rest are ignored.
type Command struct {
	Kind CommandKind
	// SysInit is the payload of CmdSysInit.
	SysInit *SysInit
	// Scan is the payload of CmdTriggerScan.
	Scan ScanParams
	// ScanReason is used by CmdTriggerScan and CmdGetScanResults.
	ScanReason int32
	// StatsType is used by CmdGetStats.
	StatsType int32
	// MAC is the address set by CmdChangeMACAddr.
	MAC [NRF_WIFI_ETH_ALEN]byte
	// IfIndex and IfUp are used by CmdSetIfFlags.
	IfIndex uint32
	IfUp    bool
}

// Domain returns the message type the command is sent under.
func (c *Command) Domain() MsgType {
	switch c.Kind {
	case CmdSysInit, CmdSysDeinit, CmdGetStats:
		return MsgTypeSystem
	}
	return MsgTypeUMAC
}

// ID returns the command identifier within the command's domain.
func (c *Command) ID() uint32 {
	switch c.Kind {
	case CmdSysInit:
		return uint32(SysCmdINIT)
	case CmdSysDeinit:
		return uint32(SysCmdDEINIT)
	case CmdGetStats:
		return uint32(SysCmdGET_STATS)
	case CmdTriggerScan:
		return uint32(UmacCmdTRIGGER_SCAN)
	case CmdAbortScan:
		return uint32(UmacCmdABORT_SCAN)
	case CmdGetScanResults:
		return uint32(UmacCmdGET_SCAN_RESULTS)
	case CmdChangeMACAddr:
		return uint32(UmacCmdCHANGE_MACADDR)
	case CmdSetIfFlags:
		return uint32(UmacCmdSET_IFFLAGS)
	}
	return 0
}

// Size returns the encoded length of the command. It returns 0 for unknown kinds.
func (c *Command) Size() int {
	switch c.Kind {
	case CmdSysInit:
		return SYS_INIT_LEN
	case CmdSysDeinit:
		return SYS_DEINIT_LEN
	case CmdGetStats:
		return GET_STATS_LEN
	case CmdTriggerScan:
		return TRIGGER_SCAN_LEN
	case CmdAbortScan:
		return ABORT_SCAN_LEN
	case CmdGetScanResults:
		return GET_SCAN_RESULTS_LEN
	case CmdChangeMACAddr:
		return CHANGE_MACADDR_LEN
	case CmdSetIfFlags:
		return SET_IFFLAGS_LEN
	}
	return 0
}

// Put encodes the command into dst and returns the number of bytes written.
func (c *Command) Put(dst []byte) (int, error) {
	n := c.Size()
	if n == 0 {
		return 0, errUnknownCommand
	} else if len(dst) < n {
		return 0, errShortBuffer
	}
	dst = dst[:n]
	clear(dst)
	switch c.Kind {
	case CmdSysInit:
		if c.SysInit == nil {
			return 0, errUnknownCommand
		}
		c.putSysHead(dst)
		c.SysInit.put(dst)
	case CmdSysDeinit:
		c.putSysHead(dst)
	case CmdGetStats:
		c.putSysHead(dst)
		le.PutUint32(dst[8:], uint32(c.StatsType))
		le.PutUint32(dst[12:], 0) // op_mode
	case CmdTriggerScan:
		c.putUMACHeader(dst)
		le.PutUint32(dst[UMAC_HDR_LEN:], uint32(c.ScanReason))
		if err := c.Scan.put(dst[UMAC_HDR_LEN+4:]); err != nil {
			return 0, err
		}
	case CmdAbortScan:
		c.putUMACHeader(dst)
	case CmdGetScanResults:
		c.putUMACHeader(dst)
		le.PutUint32(dst[UMAC_HDR_LEN:], uint32(c.ScanReason))
	case CmdChangeMACAddr:
		c.putUMACHeader(dst)
		copy(dst[UMAC_HDR_LEN:], c.MAC[:])
	case CmdSetIfFlags:
		c.putUMACHeader(dst)
		state := uint32(NRF_WIFI_IFACE_DOWN)
		if c.IfUp {
			state = NRF_WIFI_IFACE_UP
		}
		le.PutUint32(dst[UMAC_HDR_LEN:], state)
		le.PutUint32(dst[UMAC_HDR_LEN+4:], c.IfIndex)
	}
	return n, nil
}

func (c *Command) putSysHead(dst []byte) {
	hdr := SysHead{CmdEvent: c.ID(), Len: uint32(c.Size())}
	hdr.Put(dst)
}

func (c *Command) putUMACHeader(dst []byte) {
	hdr := MakeUMACHeader(UMACCommand(c.ID()))
	hdr.Put(dst)
}

// RxPoolParams sizes one of the RX buffer pools handed to the RPU.
type RxPoolParams struct {
	BufSize uint16
	NumBufs uint16
}

// DataConfig are the data path parameters of the system init command.
type DataConfig struct {
	RateProtectionType  uint8
	Aggregation         uint8
	WMM                 uint8
	MaxNumTxAggSessions uint8
	MaxNumRxAggSessions uint8
	MaxTxAggregation    uint8
	ReorderBufSize      uint8
	MaxRxAMPDUSize      int32
}

// TempVbatConfig configures temperature and battery voltage triggered recalibration.
type TempVbatConfig struct {
	TempBasedCalibEn  uint32
	TempCalibBitmap   uint32
	VbatCalibBitmap   uint32
	TempVbatMonPeriod uint32
	VthVeryLow        int32
	VthLow            int32
	VthHigh           int32
	TempThreshold     int32
	VbatThreshold     int32
}

// SysInit is the payload of the system init command.
//
//	offset  field
//	0       sys_head
//	8       wdev_id
//	12      sys_params {sleep_enable, hw_bringup_time, sw_bringup_time,
//	        bcn_time_out, calib_sleep_clk, phy_calib (uint32 each),
//	        mac_addr[6], rf_params[200], rf_params_valid}
//	243     rx_buf_pools[3] {buf_sz, num_bufs (uint16)}
//	255     data_config_params
//	266     temp_vbat_config_params
//	302     country_code[2]
//	304     op_band (uint32)
//	308     tcp_ip_checksum_offload
//	309     mgmt_buff_offload
//	310     feature_flags (uint32)
//	314     disable_beamforming
//	315     coex_disable_ptiwin_for_wifi_scan
//	316     discon_timeout (uint32)
//	320     display_scan_bss_limit (uint16)
//	322     ps_exit_strategy
//	323     watchdog_timer_val (uint32)
//	327     keep_alive_enable
//	328     keep_alive_period (uint32)
//	332     max_ps_poll_fail_cnt (uint32)
//	336     raw_scan_enable
//	337     stbc_enable_in_ht
type SysInit struct {
	WdevID        uint32
	SleepEnable   uint32
	HWBringupTime uint32
	SWBringupTime uint32
	BcnTimeout    uint32
	CalibSleepClk uint32
	PhyCalib      uint32
	MAC           [NRF_WIFI_ETH_ALEN]byte
	RFParams      [NRF_WIFI_RF_PARAMS_SIZE]byte
	RFParamsValid bool
	RxPools       [MAX_NUM_OF_RX_QUEUES]RxPoolParams
	Data          DataConfig
	TempVbat      TempVbatConfig
	Country       [NRF_WIFI_COUNTRY_CODE_LEN]byte
	OpBand        uint32

	TCPIPChecksumOffload uint8
	MgmtBuffOffload      uint8
	FeatureFlags         uint32
	DisableBeamforming   uint8
	CoexDisablePTIWin    uint8
	DisconTimeout        uint32
	DisplayScanBSSLimit  uint16
	PSExitStrategy       uint8
	WatchdogTimerVal     uint32
	KeepAliveEnable      uint8
	KeepAlivePeriod      uint32
	MaxPSPollFailCnt     uint32
	RawScanEnable        uint8
	STBCEnableInHT       uint8
}

// DefaultSysInit returns the system init parameters used by the driver with the
// given derived RF parameters.
func DefaultSysInit(rf [NRF_WIFI_RF_PARAMS_SIZE]byte) SysInit {
	pool := RxPoolParams{BufSize: RX_MAX_DATA_SIZE, NumBufs: RX_BUFS_PER_QUEUE}
	return SysInit{
		HWBringupTime: HW_DELAY,
		SWBringupTime: SW_DELAY,
		BcnTimeout:    BCN_TIMEOUT,
		CalibSleepClk: CALIB_SLEEP_CLK,
		PhyCalib:      NRF_WIFI_DEF_PHY_CALIB,
		RFParams:      rf,
		RFParamsValid: true,
		RxPools:       [MAX_NUM_OF_RX_QUEUES]RxPoolParams{pool, pool, pool},
		Data: DataConfig{
			Aggregation:         1,
			WMM:                 1,
			MaxNumTxAggSessions: 4,
			MaxNumRxAggSessions: 8,
			MaxTxAggregation:    MAX_TX_AGGREGATION,
			ReorderBufSize:      64,
			MaxRxAMPDUSize:      3,
		},
		TempVbat: TempVbatConfig{
			TempBasedCalibEn:  NRF_WIFI_TEMP_CALIB_ENABLE,
			TempCalibBitmap:   NRF_WIFI_DEF_PHY_TEMP_CALIB,
			VbatCalibBitmap:   NRF_WIFI_DEF_PHY_VBAT_CALIB,
			TempVbatMonPeriod: NRF_WIFI_TEMP_CALIB_PERIOD,
			VthVeryLow:        NRF_WIFI_VBAT_VERYLOW,
			VthLow:            NRF_WIFI_VBAT_LOW,
			VthHigh:           NRF_WIFI_VBAT_HIGH,
			TempThreshold:     NRF_WIFI_TEMP_CALIB_THRESHOLD,
		},
		OpBand:              BAND_ALL,
		DisconTimeout:       20,
		DisplayScanBSSLimit: 150,
		PSExitStrategy:      EVERY_TIM,
		WatchdogTimerVal:    0xFFFFFF,
		KeepAliveEnable:     1,
		KeepAlivePeriod:     60,
		MaxPSPollFailCnt:    10,
	}
}

// put encodes everything after the sys_head. dst must be SYS_INIT_LEN long and zeroed.
func (s *SysInit) put(dst []byte) {
	_ = dst[SYS_INIT_LEN-1]
	le.PutUint32(dst[8:], s.WdevID)
	le.PutUint32(dst[12:], s.SleepEnable)
	le.PutUint32(dst[16:], s.HWBringupTime)
	le.PutUint32(dst[20:], s.SWBringupTime)
	le.PutUint32(dst[24:], s.BcnTimeout)
	le.PutUint32(dst[28:], s.CalibSleepClk)
	le.PutUint32(dst[32:], s.PhyCalib)
	copy(dst[36:42], s.MAC[:])
	copy(dst[42:242], s.RFParams[:])
	if s.RFParamsValid {
		dst[242] = 1
	}
	for i, pool := range s.RxPools {
		le.PutUint16(dst[243+4*i:], pool.BufSize)
		le.PutUint16(dst[245+4*i:], pool.NumBufs)
	}
	d := &s.Data
	dst[255] = d.RateProtectionType
	dst[256] = d.Aggregation
	dst[257] = d.WMM
	dst[258] = d.MaxNumTxAggSessions
	dst[259] = d.MaxNumRxAggSessions
	dst[260] = d.MaxTxAggregation
	dst[261] = d.ReorderBufSize
	le.PutUint32(dst[262:], uint32(d.MaxRxAMPDUSize))
	tv := &s.TempVbat
	le.PutUint32(dst[266:], tv.TempBasedCalibEn)
	le.PutUint32(dst[270:], tv.TempCalibBitmap)
	le.PutUint32(dst[274:], tv.VbatCalibBitmap)
	le.PutUint32(dst[278:], tv.TempVbatMonPeriod)
	le.PutUint32(dst[282:], uint32(tv.VthVeryLow))
	le.PutUint32(dst[286:], uint32(tv.VthLow))
	le.PutUint32(dst[290:], uint32(tv.VthHigh))
	le.PutUint32(dst[294:], uint32(tv.TempThreshold))
	le.PutUint32(dst[298:], uint32(tv.VbatThreshold))
	copy(dst[302:304], s.Country[:])
	le.PutUint32(dst[304:], s.OpBand)
	dst[308] = s.TCPIPChecksumOffload
	dst[309] = s.MgmtBuffOffload
	le.PutUint32(dst[310:], s.FeatureFlags)
	dst[314] = s.DisableBeamforming
	dst[315] = s.CoexDisablePTIWin
	le.PutUint32(dst[316:], s.DisconTimeout)
	le.PutUint16(dst[320:], s.DisplayScanBSSLimit)
	dst[322] = s.PSExitStrategy
	le.PutUint32(dst[323:], s.WatchdogTimerVal)
	dst[327] = s.KeepAliveEnable
	le.PutUint32(dst[328:], s.KeepAlivePeriod)
	le.PutUint32(dst[332:], s.MaxPSPollFailCnt)
	dst[336] = s.RawScanEnable
	dst[337] = s.STBCEnableInHT
}

// ScanParams are the scan parameters of TRIGGER_SCAN.
//
//	offset  field
//	0       passive_scan
//	1       num_scan_ssids
//	2       scan_ssids[2] {nrf_wifi_ssid_len, nrf_wifi_ssid[32]}
//	68      no_cck
//	69      bands
//	70      ie {ie_len (uint16), ie[400]}
//	472     mac_addr[6]
//	478     dwell_time_active (uint16)
//	480     dwell_time_passive (uint16)
//	482     num_scan_channels (uint16)
//	484     skip_local_admin_macs
type ScanParams struct {
	Passive bool
	// SSIDs to probe for. At most NRF_WIFI_SCAN_MAX_NUM_SSIDS.
	SSIDs [][]byte
	NoCCK bool
	Bands uint8
	IE    []byte
	// BSSID restricts the scan to a single access point when not all zeros.
	BSSID [NRF_WIFI_ETH_ALEN]byte
	// Dwell times in milliseconds, zero selects the firmware default.
	DwellActive  uint16
	DwellPassive uint16
}

func (p *ScanParams) put(dst []byte) error {
	_ = dst[SCAN_PARAMS_LEN-1]
	if len(p.SSIDs) > NRF_WIFI_SCAN_MAX_NUM_SSIDS {
		return errTooManySSIDs
	} else if len(p.IE) > NRF_WIFI_MAX_IE_LEN {
		return errLongIE
	}
	if p.Passive {
		dst[0] = 1
	}
	dst[1] = uint8(len(p.SSIDs))
	for i, ssid := range p.SSIDs {
		if len(ssid) > NRF_WIFI_SSID_LEN {
			return errLongSSID
		}
		off := 2 + i*(1+NRF_WIFI_SSID_LEN)
		dst[off] = uint8(len(ssid))
		copy(dst[off+1:off+1+NRF_WIFI_SSID_LEN], ssid)
	}
	if p.NoCCK {
		dst[68] = 1
	}
	dst[69] = p.Bands
	le.PutUint16(dst[70:], uint16(len(p.IE)))
	copy(dst[72:472], p.IE)
	copy(dst[472:478], p.BSSID[:])
	le.PutUint16(dst[478:], p.DwellActive)
	le.PutUint16(dst[480:], p.DwellPassive)
	le.PutUint16(dst[482:], 0) // All channels.
	dst[484] = 1
	return nil
}
