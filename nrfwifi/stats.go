package nrfwifi

// Statistic block sizes as laid out in the STATS system event.
const (
	PHY_STATS_LEN       = 18
	LMAC_STATS_WORDS    = 37
	UMAC_TX_STATS_WORDS = 34
	UMAC_RX_STATS_WORDS = 38
	UMAC_CMD_EVNT_WORDS = 40
	IFACE_STATS_WORDS   = 12

	FW_STATS_LEN = PHY_STATS_LEN + 4*(LMAC_STATS_WORDS+UMAC_TX_STATS_WORDS+
		UMAC_RX_STATS_WORDS+UMAC_CMD_EVNT_WORDS+IFACE_STATS_WORDS)
)

// PhyStats are the PHY counters of the STATS event.
type PhyStats struct {
	RSSIAvg          int8
	PdoutVal         uint8
	OFDMCRC32PassCnt uint32
	OFDMCRC32FailCnt uint32
	DSSSCRC32PassCnt uint32
	DSSSCRC32FailCnt uint32
}

// InterfaceStats are the per interface counters kept by the UMAC.
type InterfaceStats struct {
	TxUnicastPkts     uint32
	TxMulticastPkts   uint32
	TxBroadcastPkts   uint32
	TxBytes           uint32
	RxUnicastPkts     uint32
	RxMulticastPkts   uint32
	RxBroadcastPkts   uint32
	RxBeaconSuccess   uint32
	RxBeaconMiss      uint32
	RxBytes           uint32
	RxChecksumErrors  uint32
	ReplayAttackDrops uint32
}

// FWStats is the body of the STATS system event that follows the SysHead.
// The LMAC and UMAC debug counters are kept as raw words since their meaning
// changes between firmware releases.
type FWStats struct {
	Phy       PhyStats
	LMAC      [LMAC_STATS_WORDS]uint32
	UMACTx    [UMAC_TX_STATS_WORDS]uint32
	UMACRx    [UMAC_RX_STATS_WORDS]uint32
	UMACCmdEv [UMAC_CMD_EVNT_WORDS]uint32
	Interface InterfaceStats
}

// DecodeFWStats decodes the body of a STATS event, the SysHead already stripped.
func DecodeFWStats(b []byte) (st FWStats, err error) {
	if len(b) < FW_STATS_LEN {
		return st, errShortBuffer
	}
	st.Phy.RSSIAvg = int8(b[0])
	st.Phy.PdoutVal = b[1]
	st.Phy.OFDMCRC32PassCnt = le.Uint32(b[2:])
	st.Phy.OFDMCRC32FailCnt = le.Uint32(b[6:])
	st.Phy.DSSSCRC32PassCnt = le.Uint32(b[10:])
	st.Phy.DSSSCRC32FailCnt = le.Uint32(b[14:])
	off := PHY_STATS_LEN
	off = decodeWords(st.LMAC[:], b, off)
	off = decodeWords(st.UMACTx[:], b, off)
	off = decodeWords(st.UMACRx[:], b, off)
	off = decodeWords(st.UMACCmdEv[:], b, off)
	var iface [IFACE_STATS_WORDS]uint32
	decodeWords(iface[:], b, off)
	st.Interface = InterfaceStats{
		TxUnicastPkts:     iface[0],
		TxMulticastPkts:   iface[1],
		TxBroadcastPkts:   iface[2],
		TxBytes:           iface[3],
		RxUnicastPkts:     iface[4],
		RxMulticastPkts:   iface[5],
		RxBroadcastPkts:   iface[6],
		RxBeaconSuccess:   iface[7],
		RxBeaconMiss:      iface[8],
		RxBytes:           iface[9],
		RxChecksumErrors:  iface[10],
		ReplayAttackDrops: iface[11],
	}
	return st, nil
}

func decodeWords(dst []uint32, b []byte, off int) int {
	for i := range dst {
		dst[i] = le.Uint32(b[off:])
		off += 4
	}
	return off
}
