// package nrfwifi implements the nRF70 series host interface: the RPU memory map,
// the firmware patch image format and the binary command/event structures shared
// with the UMAC and LMAC firmware.
package nrfwifi

// Host-RPU message header length. See HostRPUMsg.
const (
	HOST_RPU_MSG_LEN     = 12
	SYS_HEAD_LEN         = 8
	UMAC_HDR_LEN         = 36
	UMAC_HEAD_LEN        = 8
	HPQM_INFO_LEN        = 7 * 8
	UMAC_INFO_LEN        = 144
	FW_HEADER_LEN        = 16
	FW_IMAGE_HEAD_LEN    = 8
	NRF_WIFI_ETH_ALEN    = 6
	NRF_WIFI_SSID_LEN    = 32
	MAX_NUM_OF_RX_QUEUES = 3
)

// RPU address space.
const (
	RPU_ADDR_MASK_OFFSET       = 0x00FFFFFF
	RPU_MCU_CORE_INDIRECT_BASE = 0xC0000000

	RPU_ADDR_PKTRAM_START = 0xB0000000
	RPU_ADDR_PKTRAM_END   = 0xB0030FFF
	RPU_ADDR_GRAM_START   = 0xB7000000
)

// Registers in the SYSBUS and PBUS regions.
const (
	RPU_REG_INT_FROM_RPU_CTRL     = 0xA4000400
	RPU_REG_BIT_INT_FROM_RPU_CTRL = 17
	RPU_REG_INT_TO_MCU_CTRL       = 0xA4000480
	RPU_REG_INT_FROM_MCU_ACK      = 0xA4000488
	RPU_REG_BIT_INT_FROM_MCU_ACK  = 31
	RPU_REG_INT_FROM_MCU_CTRL     = 0xA4000494
	RPU_REG_BIT_INT_FROM_MCU_CTRL = 31

	RPU_REG_UCC_SLEEP_CTRL_DATA_0 = 0xA4002C2C
	RPU_REG_UCC_SLEEP_CTRL_DATA_1 = 0xA4002C30

	RPU_REG_MIPS_MCU_CONTROL             = 0xA4000000
	RPU_REG_MIPS_MCU2_CONTROL            = 0xA4000100
	RPU_REG_MIPS_MCU_UCCP_INT_STATUS     = 0xA4000004
	RPU_REG_BIT_MIPS_WATCHDOG_INT_STATUS = 1
	RPU_REG_MIPS_MCU_UCCP_INT_CLEAR      = 0xA400000C
	RPU_REG_BIT_MIPS_WATCHDOG_INT_CLEAR  = 1

	RPU_REG_MIPS_MCU_SYS_CORE_MEM_CTRL   = 0xA4000030
	RPU_REG_MIPS_MCU_SYS_CORE_MEM_WDATA  = 0xA4000034
	RPU_REG_MIPS_MCU2_SYS_CORE_MEM_CTRL  = 0xA4000130
	RPU_REG_MIPS_MCU2_SYS_CORE_MEM_WDATA = 0xA4000134

	RPU_REG_MIPS_MCU_BOOT_EXCP_INSTR_0  = 0xA4000050
	RPU_REG_MIPS_MCU_BOOT_EXCP_INSTR_1  = 0xA4000054
	RPU_REG_MIPS_MCU_BOOT_EXCP_INSTR_2  = 0xA4000058
	RPU_REG_MIPS_MCU_BOOT_EXCP_INSTR_3  = 0xA400005C
	RPU_REG_MIPS_MCU2_BOOT_EXCP_INSTR_0 = 0xA4000150
	RPU_REG_MIPS_MCU2_BOOT_EXCP_INSTR_1 = 0xA4000154
	RPU_REG_MIPS_MCU2_BOOT_EXCP_INSTR_2 = 0xA4000158
	RPU_REG_MIPS_MCU2_BOOT_EXCP_INSTR_3 = 0xA400015C

	RPU_REG_MIPS_MCU_BOOT_EXCP_READY  = 0xA4000018
	RPU_REG_MIPS_MCU2_BOOT_EXCP_READY = 0xA4000118

	// PBUS clock control, written during boot to enable the RPU clocks.
	PBUS_AGC_SYS_CLK_CTRL_OFFSET = 0x8C20
	PBUS_AGC_SYS_CLK_CTRL_VAL    = 0x0100
)

// Fixed RPU memory words.
const (
	RPU_MEM_UMAC_BOOT_SIG = 0xB0000000
	RPU_MEM_UMAC_VER      = 0xB0000004
	RPU_MEM_HPQ_INFO      = 0xB0000008
	RPU_MEM_TX_CMD_BASE   = 0xB00000B8
	RPU_MEM_OTP_INFO      = 0xB000005C

	RPU_MEM_OTP_PACKAGE_TYPE    = 0xB0004FD4
	RPU_MEM_OTP_FT_PROG_VERSION = 0xB0004FD8
	RPU_MEM_OTP_INFO_FLAGS      = 0xB0004FDC
	RPU_MEM_LMAC_IF_INFO        = 0xB0004FE0
	RPU_MEM_PKT_BASE            = 0xB0005000

	RPU_MEM_LMAC_BOOT_SIG = 0xB7000D50
	RPU_MEM_LMAC_VER      = 0xB7000D54
	RPU_MEM_RX_CMD_BASE   = 0xB7000D58

	RPU_MEM_UMAC_PATCH_BIN  = 0x8008C000
	RPU_MEM_UMAC_PATCH_BIMG = 0x80094400
	RPU_MEM_LMAC_PATCH_BIN  = 0x80044000
	RPU_MEM_LMAC_PATCH_BIMG = 0x80044400

	RPU_PKTRAM_SIZE = RPU_ADDR_PKTRAM_END - RPU_MEM_PKT_BASE + 1
)

// Boot values.
const (
	NRF_WIFI_LMAC_BOOT_SIG = 0x5A5A5A5A
	NRF_WIFI_UMAC_BOOT_SIG = 0x5A5A5A5A

	NRF_WIFI_LMAC_ROM_PATCH_OFFSET = RPU_MEM_LMAC_PATCH_BIMG - 0x80040000
	NRF_WIFI_UMAC_ROM_PATCH_OFFSET = RPU_MEM_UMAC_PATCH_BIMG - 0x80080000

	NRF_WIFI_LMAC_BOOT_EXCP_VECT_0 = 0x3c1a8000
	NRF_WIFI_LMAC_BOOT_EXCP_VECT_1 = 0x275a0000
	NRF_WIFI_LMAC_BOOT_EXCP_VECT_2 = 0x03400008
	NRF_WIFI_LMAC_BOOT_EXCP_VECT_3 = 0x00000000
	NRF_WIFI_UMAC_BOOT_EXCP_VECT_0 = 0x3c1a8000
	NRF_WIFI_UMAC_BOOT_EXCP_VECT_1 = 0x275a0000
	NRF_WIFI_UMAC_BOOT_EXCP_VECT_2 = 0x03400008
	NRF_WIFI_UMAC_BOOT_EXCP_VECT_3 = 0x00000000
)

// Hostport and buffer sizing.
const (
	RPU_CMD_START_MAGIC       = 0xDEAD
	RPU_DATA_CMD_SIZE_MAX_RX  = 8
	RPU_DATA_CMD_SIZE_MAX_TX  = 148
	RPU_EVENT_COMMON_SIZE_MAX = 128
	MAX_EVENT_POOL_LEN        = 1000
	MAX_CMD_SIZE              = 1024

	// Hostport queue sentinel returned while the RPU is updating a queue.
	HPQ_INVALID = 0xAAAAAAAA

	RX_MAX_DATA_SIZE  = 1600
	RX_BUF_HEADROOM   = 4
	RX_BUFS_PER_QUEUE = 5

	TX_MAX_DATA_SIZE = 1600
	TX_BUF_HEADROOM  = 52
	MAX_TX_TOKENS    = 4
)

// OTP and calibration.
const (
	FT_PROG_VER_MASK   = 0xF0000
	CALIB_XO_FLAG_MASK = 0x1000
	OTP_OFF_CALIB_XO   = 0

	QFN_PACKAGE_INFO = 0x5146 // "QF"
	CSP_PACKAGE_INFO = 0x4353 // "CS"
)

// MsgType is the host-RPU message domain carried in every message header.
type MsgType int32

const (
	MsgTypeSystem     MsgType = 0
	MsgTypeSupplicant MsgType = 1
	MsgTypeData       MsgType = 2
	MsgTypeUMAC       MsgType = 3
)

func (m MsgType) String() (s string) {
	switch m {
	case MsgTypeSystem:
		s = "system"
	case MsgTypeSupplicant:
		s = "supplicant"
	case MsgTypeData:
		s = "data"
	case MsgTypeUMAC:
		s = "umac"
	default:
		s = "unknown"
	}
	return s
}

// SysCommand are system domain commands.
type SysCommand uint32

const (
	SysCmdINIT             SysCommand = 0
	SysCmdTX               SysCommand = 1
	SysCmdIF_TYPE          SysCommand = 2
	SysCmdMODE             SysCommand = 3
	SysCmdGET_STATS        SysCommand = 4
	SysCmdCLEAR_STATS      SysCommand = 5
	SysCmdRX               SysCommand = 6
	SysCmdPWR              SysCommand = 7
	SysCmdDEINIT           SysCommand = 8
	SysCmdBTCOEX           SysCommand = 9
	SysCmdRF_TEST          SysCommand = 10
	SysCmdHE_GI_LTF_CONFIG SysCommand = 11
	SysCmdUMAC_INT_STATS   SysCommand = 12
	SysCmdRADIO_TEST_INIT  SysCommand = 13
)

// SysEvent are system domain events.
type SysEvent uint32

const (
	SysEvPWR_DATA               SysEvent = 0
	SysEvINIT_DONE              SysEvent = 1
	SysEvSTATS                  SysEvent = 2
	SysEvDEINIT_DONE            SysEvent = 3
	SysEvRF_TEST                SysEvent = 4
	SysEvCOEX_CONFIG            SysEvent = 5
	SysEvINT_UMAC_STATS         SysEvent = 6
	SysEvRADIOCMD_STATUS        SysEvent = 7
	SysEvCHANNEL_SET_DONE       SysEvent = 8
	SysEvMODE_SET_DONE          SysEvent = 9
	SysEvFILTER_SET_DONE        SysEvent = 10
	SysEvRAW_TX_DONE            SysEvent = 11
	SysEvOFFLOADED_RAWTX_STATUS SysEvent = 12
)

func (e SysEvent) String() string {
	switch e {
	case SysEvPWR_DATA:
		return "PWR_DATA"
	case SysEvINIT_DONE:
		return "INIT_DONE"
	case SysEvSTATS:
		return "STATS"
	case SysEvDEINIT_DONE:
		return "DEINIT_DONE"
	case SysEvRF_TEST:
		return "RF_TEST"
	case SysEvCOEX_CONFIG:
		return "COEX_CONFIG"
	case SysEvINT_UMAC_STATS:
		return "INT_UMAC_STATS"
	case SysEvRADIOCMD_STATUS:
		return "RADIOCMD_STATUS"
	case SysEvCHANNEL_SET_DONE:
		return "CHANNEL_SET_DONE"
	case SysEvMODE_SET_DONE:
		return "MODE_SET_DONE"
	case SysEvFILTER_SET_DONE:
		return "FILTER_SET_DONE"
	case SysEvRAW_TX_DONE:
		return "RAW_TX_DONE"
	case SysEvOFFLOADED_RAWTX_STATUS:
		return "OFFLOADED_RAWTX_STATUS"
	}
	return "SysEvent(?)"
}

// UMACCommand are UMAC domain commands.
type UMACCommand uint32

const (
	UmacCmdTRIGGER_SCAN        UMACCommand = 0
	UmacCmdGET_SCAN_RESULTS    UMACCommand = 1
	UmacCmdAUTHENTICATE        UMACCommand = 2
	UmacCmdASSOCIATE           UMACCommand = 3
	UmacCmdDEAUTHENTICATE      UMACCommand = 4
	UmacCmdNEW_INTERFACE       UMACCommand = 15
	UmacCmdSET_IFFLAGS         UMACCommand = 18
	UmacCmdABORT_SCAN          UMACCommand = 50
	UmacCmdCHANGE_MACADDR      UMACCommand = 52
	UmacCmdGET_CONNECTION_INFO UMACCommand = 54
)

func (c UMACCommand) String() string {
	switch c {
	case UmacCmdTRIGGER_SCAN:
		return "TRIGGER_SCAN"
	case UmacCmdGET_SCAN_RESULTS:
		return "GET_SCAN_RESULTS"
	case UmacCmdAUTHENTICATE:
		return "AUTHENTICATE"
	case UmacCmdASSOCIATE:
		return "ASSOCIATE"
	case UmacCmdDEAUTHENTICATE:
		return "DEAUTHENTICATE"
	case UmacCmdNEW_INTERFACE:
		return "NEW_INTERFACE"
	case UmacCmdSET_IFFLAGS:
		return "SET_IFFLAGS"
	case UmacCmdABORT_SCAN:
		return "ABORT_SCAN"
	case UmacCmdCHANGE_MACADDR:
		return "CHANGE_MACADDR"
	case UmacCmdGET_CONNECTION_INFO:
		return "GET_CONNECTION_INFO"
	}
	return "UMACCommand(?)"
}

// UMACEvent are UMAC domain events.
type UMACEvent uint32

const (
	UmacEvUNSPECIFIED         UMACEvent = 256
	UmacEvTRIGGER_SCAN_START  UMACEvent = 257
	UmacEvSCAN_ABORTED        UMACEvent = 258
	UmacEvSCAN_DONE           UMACEvent = 259
	UmacEvSCAN_RESULT         UMACEvent = 260
	UmacEvAUTHENTICATE        UMACEvent = 261
	UmacEvASSOCIATE           UMACEvent = 262
	UmacEvCONNECT             UMACEvent = 263
	UmacEvDEAUTHENTICATE      UMACEvent = 264
	UmacEvDISASSOCIATE        UMACEvent = 265
	UmacEvIFFLAGS_STATUS      UMACEvent = 275
	UmacEvNEW_INTERFACE       UMACEvent = 279
	UmacEvSCAN_DISPLAY_RESULT UMACEvent = 290
	UmacEvCMD_STATUS          UMACEvent = 291
	UmacEvGET_IFHWADDR        UMACEvent = 295
)

func (e UMACEvent) String() string {
	switch e {
	case UmacEvUNSPECIFIED:
		return "UNSPECIFIED"
	case UmacEvTRIGGER_SCAN_START:
		return "TRIGGER_SCAN_START"
	case UmacEvSCAN_ABORTED:
		return "SCAN_ABORTED"
	case UmacEvSCAN_DONE:
		return "SCAN_DONE"
	case UmacEvSCAN_RESULT:
		return "SCAN_RESULT"
	case UmacEvAUTHENTICATE:
		return "AUTHENTICATE"
	case UmacEvASSOCIATE:
		return "ASSOCIATE"
	case UmacEvCONNECT:
		return "CONNECT"
	case UmacEvDEAUTHENTICATE:
		return "DEAUTHENTICATE"
	case UmacEvDISASSOCIATE:
		return "DISASSOCIATE"
	case UmacEvIFFLAGS_STATUS:
		return "IFFLAGS_STATUS"
	case UmacEvNEW_INTERFACE:
		return "NEW_INTERFACE"
	case UmacEvSCAN_DISPLAY_RESULT:
		return "SCAN_DISPLAY_RESULT"
	case UmacEvCMD_STATUS:
		return "CMD_STATUS"
	case UmacEvGET_IFHWADDR:
		return "GET_IFHWADDR"
	}
	return "UMACEvent(?)"
}

// DataCommand are data domain commands and events. The RPU reuses the
// command identifiers for the events it sends on the data path.
type DataCommand uint32

const (
	DataCmdMGMT_BUFF_CONFIG DataCommand = 0
	DataCmdTX_BUFF          DataCommand = 1
	DataCmdTX_BUFF_DONE     DataCommand = 2
	DataCmdRX_BUFF          DataCommand = 3
	DataCmdCARRIER_ON       DataCommand = 4
	DataCmdCARRIER_OFF      DataCommand = 5
	DataCmdPM_MODE          DataCommand = 6
	DataCmdPS_GET_FRAMES    DataCommand = 7
)

func (c DataCommand) String() string {
	switch c {
	case DataCmdMGMT_BUFF_CONFIG:
		return "MGMT_BUFF_CONFIG"
	case DataCmdTX_BUFF:
		return "TX_BUFF"
	case DataCmdTX_BUFF_DONE:
		return "TX_BUFF_DONE"
	case DataCmdRX_BUFF:
		return "RX_BUFF"
	case DataCmdCARRIER_ON:
		return "CARRIER_ON"
	case DataCmdCARRIER_OFF:
		return "CARRIER_OFF"
	case DataCmdPM_MODE:
		return "PM_MODE"
	case DataCmdPS_GET_FRAMES:
		return "PS_GET_FRAMES"
	}
	return "DataCommand(?)"
}

// Scan reasons for TRIGGER_SCAN and GET_SCAN_RESULTS.
const (
	SCAN_DISPLAY = 0
	SCAN_CONNECT = 1
)

// Stats types for GET_STATS.
const (
	RPU_STATS_TYPE_ALL  = 0
	RPU_STATS_TYPE_HOST = 1
	RPU_STATS_TYPE_UMAC = 2
	RPU_STATS_TYPE_LMAC = 3
	RPU_STATS_TYPE_PHY  = 4
)

// Index ids valid fields for UMACHeader.IDs.
const (
	NRF_WIFI_INDEX_IDS_WDEV_ID_VALID   = 1 << 0
	NRF_WIFI_INDEX_IDS_IFINDEX_VALID   = 1 << 1
	NRF_WIFI_INDEX_IDS_WIPHY_IDX_VALID = 1 << 2
)

// Power save exit strategies.
const (
	EVERY_TIM   = 0
	INTELLIGENT = 1
)

// Operating bands.
const (
	BAND_ALL = 0
	BAND_24G = 1
)

// RX packet types in the RX buffer summary.
const (
	NRF_WIFI_RX_PKT_DATA        = 0
	NRF_WIFI_RX_PKT_BCN_PRB_RSP = 1
	NRF_WIFI_RAW_RX_PKT         = 2
)

// Per descriptor packet types.
const (
	PKT_TYPE_MPDU          = 0
	PKT_TYPE_MSDU_WITH_MAC = 1
	PKT_TYPE_MSDU          = 2
)

// Interface states for SET_IFFLAGS.
const (
	NRF_WIFI_IFACE_DOWN = 0
	NRF_WIFI_IFACE_UP   = 1
)

// System init defaults.
const (
	HW_DELAY                     = 7000
	SW_DELAY                     = 5000
	BCN_TIMEOUT                  = 40000
	CALIB_SLEEP_CLK              = 1
	NRF_WIFI_RF_PARAMS_SIZE      = 200
	NRF_WIFI_RF_PARAMS_CONF_SIZE = 42
	NRF_WIFI_COUNTRY_CODE_LEN    = 2
	NRF_WIFI_SCAN_MAX_NUM_SSIDS  = 2
	NRF_WIFI_MAX_IE_LEN          = 400
	NRF_WIFI_MAX_SR_DISPLAY      = 8
)

// PHY calibration flags.
const (
	NRF_WIFI_PHY_CALIB_FLAG_RXDC          = 1
	NRF_WIFI_PHY_CALIB_FLAG_TXDC          = 2
	NRF_WIFI_PHY_CALIB_FLAG_TXPOW         = 0
	NRF_WIFI_PHY_CALIB_FLAG_TXIQ          = 8
	NRF_WIFI_PHY_CALIB_FLAG_RXIQ          = 16
	NRF_WIFI_PHY_CALIB_FLAG_DPD           = 32
	NRF_WIFI_PHY_CALIB_FLAG_ENHANCED_TXDC = 64

	NRF_WIFI_DEF_PHY_CALIB = NRF_WIFI_PHY_CALIB_FLAG_RXDC | NRF_WIFI_PHY_CALIB_FLAG_TXDC |
		NRF_WIFI_PHY_CALIB_FLAG_RXIQ | NRF_WIFI_PHY_CALIB_FLAG_TXIQ |
		NRF_WIFI_PHY_CALIB_FLAG_TXPOW | NRF_WIFI_PHY_CALIB_FLAG_DPD |
		NRF_WIFI_PHY_CALIB_FLAG_ENHANCED_TXDC
	NRF_WIFI_DEF_PHY_TEMP_CALIB = NRF_WIFI_PHY_CALIB_FLAG_RXDC | NRF_WIFI_PHY_CALIB_FLAG_TXDC |
		NRF_WIFI_PHY_CALIB_FLAG_RXIQ | NRF_WIFI_PHY_CALIB_FLAG_TXIQ |
		NRF_WIFI_PHY_CALIB_FLAG_TXPOW | NRF_WIFI_PHY_CALIB_FLAG_DPD
	NRF_WIFI_DEF_PHY_VBAT_CALIB = NRF_WIFI_PHY_CALIB_FLAG_DPD

	NRF_WIFI_TEMP_CALIB_ENABLE    = 1
	NRF_WIFI_TEMP_CALIB_PERIOD    = 1024 * 1024
	NRF_WIFI_TEMP_CALIB_THRESHOLD = 40
	NRF_WIFI_VBAT_VERYLOW         = 8
	NRF_WIFI_VBAT_LOW             = 12
	NRF_WIFI_VBAT_HIGH            = 14

	MAX_TX_AGGREGATION = 6
)

// Signal types in scan results.
const (
	NRF_WIFI_SIGNAL_TYPE_NONE   = 0
	NRF_WIFI_SIGNAL_TYPE_MBM    = 1
	NRF_WIFI_SIGNAL_TYPE_UNSPEC = 2
)
