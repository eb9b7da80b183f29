package nrfwifi

// Data path structure sizes.
const (
	RX_BUFF_SUMMARY_LEN = 24
	RX_BUF_INFO_LEN     = 5
	TX_BUFF_HEAD_LEN    = 28
	TX_BUFF_INFO_LEN    = 6
	TX_BUFF_DONE_LEN    = 10
	CARRIER_STATE_LEN   = 12
)

// UMAC event sizes.
const (
	EVENT_CMD_STATUS_LEN     = UMAC_HDR_LEN + 8
	EVENT_IFFLAGS_STATUS_LEN = UMAC_HDR_LEN + 4
	EVENT_SCAN_DONE_LEN      = UMAC_HDR_LEN + 8
	DISPLAY_RESULT_LEN       = 71
	EVENT_DISPLAY_HEAD_LEN   = UMAC_HDR_LEN + 1
)

// RxBuffSummary heads an RX_BUFF data event. It is followed by PktCount
// descriptors of RX_BUF_INFO_LEN bytes each.
//
//	offset  field
//	0       umac_head
//	8       rx_pkt_type (int32)
//	12      rx_pkt_cnt (uint16)
//	14      reserved
//	15      wdev_id
//	16      frequency (uint16)
//	18      signal (int16)
//	20      rate_flags
//	21      rate
//	22      mac_header_len (uint16)
//	24      rx_buf_info[rx_pkt_cnt]
type RxBuffSummary struct {
	Head         UMACHead
	RxPktType    int32
	PktCount     uint16
	WdevID       uint8
	Frequency    uint16
	Signal       int16
	RateFlags    uint8
	Rate         uint8
	MACHeaderLen uint16
}

// RxBufInfo describes one filled RX buffer of an RX_BUFF event.
type RxBufInfo struct {
	DescID  uint16
	Len     uint16
	PktType uint8
}

// DecodeRxBuff decodes an RX_BUFF event payload. The returned descriptors
// alias b's backing storage through RxBufInfos.
func DecodeRxBuff(b []byte) (summary RxBuffSummary, infos RxBufInfos, err error) {
	if len(b) < RX_BUFF_SUMMARY_LEN {
		return summary, infos, errShortBuffer
	}
	summary.Head = DecodeUMACHead(b)
	summary.RxPktType = int32(le.Uint32(b[8:]))
	summary.PktCount = le.Uint16(b[12:])
	summary.WdevID = b[15]
	summary.Frequency = le.Uint16(b[16:])
	summary.Signal = int16(le.Uint16(b[18:]))
	summary.RateFlags = b[20]
	summary.Rate = b[21]
	summary.MACHeaderLen = le.Uint16(b[22:])
	end := RX_BUFF_SUMMARY_LEN + int(summary.PktCount)*RX_BUF_INFO_LEN
	if len(b) < end {
		return summary, infos, errShortBuffer
	}
	return summary, RxBufInfos(b[RX_BUFF_SUMMARY_LEN:end]), nil
}

func (s *RxBuffSummary) Put(dst []byte) {
	_ = dst[RX_BUFF_SUMMARY_LEN-1]
	s.Head.Put(dst)
	le.PutUint32(dst[8:], uint32(s.RxPktType))
	le.PutUint16(dst[12:], s.PktCount)
	dst[14] = 0
	dst[15] = s.WdevID
	le.PutUint16(dst[16:], s.Frequency)
	le.PutUint16(dst[18:], uint16(s.Signal))
	dst[20] = s.RateFlags
	dst[21] = s.Rate
	le.PutUint16(dst[22:], s.MACHeaderLen)
}

// RxBufInfos is the packed descriptor array of an RX_BUFF event.
type RxBufInfos []byte

func (r RxBufInfos) Len() int { return len(r) / RX_BUF_INFO_LEN }

func (r RxBufInfos) At(i int) RxBufInfo {
	b := r[i*RX_BUF_INFO_LEN : (i+1)*RX_BUF_INFO_LEN]
	return RxBufInfo{
		DescID:  le.Uint16(b),
		Len:     le.Uint16(b[2:]),
		PktType: b[4],
	}
}

func (info *RxBufInfo) Put(dst []byte) {
	_ = dst[RX_BUF_INFO_LEN-1]
	le.PutUint16(dst, info.DescID)
	le.PutUint16(dst[2:], info.Len)
	dst[4] = info.PktType
}

// TxBuff is the TX_BUFF data command carrying a single frame.
//
//	offset  field
//	0       umac_head
//	8       wdev_id
//	9       tx_desc_num
//	10      mac_hdr_info.dest
//	16      mac_hdr_info.src
//	22      mac_hdr_info.etype (big endian)
//	24      mac_hdr_info.tx_flags
//	25      mac_hdr_info.more_data
//	26      mac_hdr_info.eosp
//	27      num_tx_pkts
//	28      tx_buff_info[num_tx_pkts] {pkt_length uint16, ddr_ptr uint32}
type TxBuff struct {
	WdevID    uint8
	DescNum   uint8
	Dest      [6]byte
	Src       [6]byte
	EtherType uint16
	Flags     uint8
	MoreData  uint8
	EOSP      uint8
	PktLen    uint16
	DDRPtr    uint32
}

// Size returns the encoded size of the command with one packet.
func (tx *TxBuff) Size() int { return TX_BUFF_HEAD_LEN + TX_BUFF_INFO_LEN }

func (tx *TxBuff) Put(dst []byte) {
	_ = dst[TX_BUFF_HEAD_LEN+TX_BUFF_INFO_LEN-1]
	head := UMACHead{Cmd: DataCmdTX_BUFF, Len: uint32(tx.Size())}
	head.Put(dst)
	dst[8] = tx.WdevID
	dst[9] = tx.DescNum
	copy(dst[10:16], tx.Dest[:])
	copy(dst[16:22], tx.Src[:])
	dst[22] = byte(tx.EtherType >> 8)
	dst[23] = byte(tx.EtherType)
	dst[24] = tx.Flags
	dst[25] = tx.MoreData
	dst[26] = tx.EOSP
	dst[27] = 1
	le.PutUint16(dst[28:], tx.PktLen)
	le.PutUint32(dst[30:], tx.DDRPtr)
}

// TxBuffDone is the TX_BUFF_DONE data event returning a TX descriptor to the host.
type TxBuffDone struct {
	Head      UMACHead
	DescNum   uint8
	NumStatus uint8
	// Status is the first status code, zero on success.
	Status uint8
}

func DecodeTxBuffDone(b []byte) (done TxBuffDone, err error) {
	if len(b) < TX_BUFF_DONE_LEN {
		return done, errShortBuffer
	}
	done.Head = DecodeUMACHead(b)
	done.DescNum = b[8]
	done.NumStatus = b[9]
	if done.NumStatus > 0 && len(b) > TX_BUFF_DONE_LEN {
		done.Status = b[TX_BUFF_DONE_LEN]
	}
	return done, nil
}

// CarrierState is the CARRIER_ON/CARRIER_OFF data event.
type CarrierState struct {
	Head   UMACHead
	WdevID uint32
}

func DecodeCarrierState(b []byte) (cs CarrierState, err error) {
	if len(b) < CARRIER_STATE_LEN {
		return cs, errShortBuffer
	}
	cs.Head = DecodeUMACHead(b)
	cs.WdevID = le.Uint32(b[8:])
	return cs, nil
}

// CmdStatus is the CMD_STATUS UMAC event reporting the outcome of a command.
type CmdStatus struct {
	Header UMACHeader
	CmdID  UMACCommand
	Status int32
}

func DecodeCmdStatus(b []byte) (ev CmdStatus, err error) {
	if len(b) < EVENT_CMD_STATUS_LEN {
		return ev, errShortBuffer
	}
	ev.Header = DecodeUMACHeader(b)
	ev.CmdID = UMACCommand(le.Uint32(b[UMAC_HDR_LEN:]))
	ev.Status = int32(le.Uint32(b[UMAC_HDR_LEN+4:]))
	return ev, nil
}

// IfFlagsStatus is the IFFLAGS_STATUS UMAC event answering SET_IFFLAGS.
type IfFlagsStatus struct {
	Header UMACHeader
	Status int32
}

func DecodeIfFlagsStatus(b []byte) (ev IfFlagsStatus, err error) {
	if len(b) < EVENT_IFFLAGS_STATUS_LEN {
		return ev, errShortBuffer
	}
	ev.Header = DecodeUMACHeader(b)
	ev.Status = int32(le.Uint32(b[UMAC_HDR_LEN:]))
	return ev, nil
}

// ScanDone is the SCAN_DONE and SCAN_ABORTED UMAC event.
type ScanDone struct {
	Header   UMACHeader
	Status   int32
	ScanType uint32
}

func DecodeScanDone(b []byte) (ev ScanDone, err error) {
	if len(b) < EVENT_SCAN_DONE_LEN {
		return ev, errShortBuffer
	}
	ev.Header = DecodeUMACHeader(b)
	ev.Status = int32(le.Uint32(b[UMAC_HDR_LEN:]))
	ev.ScanType = le.Uint32(b[UMAC_HDR_LEN+4:])
	return ev, nil
}

// DisplayResult is one BSS of a SCAN_DISPLAY_RESULT event.
//
//	offset  field
//	0       ssid_len
//	1       ssid[32]
//	33      mac_addr[6]
//	39      nwk_band (int32)
//	43      nwk_channel (uint32)
//	47      protocol_flags
//	48      security_type (int32)
//	52      beacon_interval (uint16)
//	54      capab (int32)
//	58      signal.signal_type (uint32)
//	62      signal.value (uint32)
//	66      twt_support
//	67      reserved[4]
type DisplayResult struct {
	SSIDLen        uint8
	SSID           [NRF_WIFI_SSID_LEN]byte
	BSSID          [6]byte
	Band           int32
	Channel        uint32
	ProtocolFlags  uint8
	SecurityType   int32
	BeaconInterval uint16
	Capability     int32
	SignalType     uint32
	Signal         uint32
	TWTSupport     uint8
}

func DecodeDisplayResult(b []byte) (r DisplayResult) {
	_ = b[DISPLAY_RESULT_LEN-1]
	r.SSIDLen = b[0]
	copy(r.SSID[:], b[1:33])
	copy(r.BSSID[:], b[33:39])
	r.Band = int32(le.Uint32(b[39:]))
	r.Channel = le.Uint32(b[43:])
	r.ProtocolFlags = b[47]
	r.SecurityType = int32(le.Uint32(b[48:]))
	r.BeaconInterval = le.Uint16(b[52:])
	r.Capability = int32(le.Uint32(b[54:]))
	r.SignalType = le.Uint32(b[58:])
	r.Signal = le.Uint32(b[62:])
	r.TWTSupport = b[66]
	return r
}

func (r *DisplayResult) Put(dst []byte) {
	_ = dst[DISPLAY_RESULT_LEN-1]
	dst[0] = r.SSIDLen
	copy(dst[1:33], r.SSID[:])
	copy(dst[33:39], r.BSSID[:])
	le.PutUint32(dst[39:], uint32(r.Band))
	le.PutUint32(dst[43:], r.Channel)
	dst[47] = r.ProtocolFlags
	le.PutUint32(dst[48:], uint32(r.SecurityType))
	le.PutUint16(dst[52:], r.BeaconInterval)
	le.PutUint32(dst[54:], uint32(r.Capability))
	le.PutUint32(dst[58:], r.SignalType)
	le.PutUint32(dst[62:], r.Signal)
	dst[66] = r.TWTSupport
	clear(dst[67:DISPLAY_RESULT_LEN])
}

// SSIDString returns the SSID clamped to its declared length.
func (r *DisplayResult) SSIDString() string {
	n := min(int(r.SSIDLen), len(r.SSID))
	return string(r.SSID[:n])
}

// SignalDBm returns the signal strength in dBm. Unspecified signals are
// reported on a 0..100 scale by the firmware and returned as is.
func (r *DisplayResult) SignalDBm() int {
	switch r.SignalType {
	case NRF_WIFI_SIGNAL_TYPE_MBM:
		return int(int32(r.Signal)) / 100
	case NRF_WIFI_SIGNAL_TYPE_UNSPEC:
		return int(uint8(r.Signal))
	}
	return 0
}

// DisplayResults is the SCAN_DISPLAY_RESULT event: a UMAC header, a BSS count
// and that many packed DisplayResult entries.
type DisplayResults struct {
	Header  UMACHeader
	Count   uint8
	Results []byte
}

func DecodeDisplayResults(b []byte) (ev DisplayResults, err error) {
	if len(b) < EVENT_DISPLAY_HEAD_LEN {
		return ev, errShortBuffer
	}
	ev.Header = DecodeUMACHeader(b)
	ev.Count = b[UMAC_HDR_LEN]
	end := EVENT_DISPLAY_HEAD_LEN + int(ev.Count)*DISPLAY_RESULT_LEN
	if len(b) < end {
		return ev, errShortBuffer
	}
	ev.Results = b[EVENT_DISPLAY_HEAD_LEN:end]
	return ev, nil
}

// More reports whether the firmware will send further display result events.
func (ev *DisplayResults) More() bool { return ev.Header.Seq != 0 }
