package nrfwifi

import (
	"encoding/binary"
	"errors"
	"strconv"
)

var le = binary.LittleEndian

var (
	errShortBuffer = errors.New("nrfwifi: buffer too short")
)

// HostRPUMsg prefixes every command and event exchanged with the RPU.
type HostRPUMsg struct {
	// Len is the total message length including the 12 byte header.
	Len      uint32
	Resubmit uint32
	Type     MsgType
}

func DecodeHostRPUMsg(b []byte) (hdr HostRPUMsg) {
	_ = b[HOST_RPU_MSG_LEN-1]
	hdr.Len = le.Uint32(b)
	hdr.Resubmit = le.Uint32(b[4:])
	hdr.Type = MsgType(le.Uint32(b[8:]))
	return hdr
}

// Put puts all 12 bytes of the header in dst. Panics if dst is shorter than 12 bytes.
func (hdr *HostRPUMsg) Put(dst []byte) {
	_ = dst[HOST_RPU_MSG_LEN-1]
	le.PutUint32(dst, hdr.Len)
	le.PutUint32(dst[4:], hdr.Resubmit)
	le.PutUint32(dst[8:], uint32(hdr.Type))
}

// PayloadLen returns the length of the message body that follows the header.
func (hdr *HostRPUMsg) PayloadLen() int {
	if hdr.Len < HOST_RPU_MSG_LEN {
		return 0
	}
	return int(hdr.Len) - HOST_RPU_MSG_LEN
}

// SysHead is the header of system domain commands and events.
type SysHead struct {
	CmdEvent uint32
	Len      uint32
}

func DecodeSysHead(b []byte) (hdr SysHead) {
	_ = b[SYS_HEAD_LEN-1]
	hdr.CmdEvent = le.Uint32(b)
	hdr.Len = le.Uint32(b[4:])
	return hdr
}

func (hdr *SysHead) Put(dst []byte) {
	_ = dst[SYS_HEAD_LEN-1]
	le.PutUint32(dst, hdr.CmdEvent)
	le.PutUint32(dst[4:], hdr.Len)
}

// UMACIDs selects the interface or wireless device a UMAC command targets.
type UMACIDs struct {
	ValidFields uint32
	IfaceIndex  int32
	WiphyIdx    int32
	WdevID      uint64
}

// UMACHeader is the 36 byte header of UMAC domain commands and events.
type UMACHeader struct {
	PortID   uint32
	Seq      uint32
	CmdEvent uint32
	// RPURetVal is set by the RPU on events.
	RPURetVal int32
	IDs       UMACIDs
}

// MakeUMACHeader returns a header for cmd targeting wireless device 0.
func MakeUMACHeader(cmd UMACCommand) UMACHeader {
	return UMACHeader{
		CmdEvent: uint32(cmd),
		IDs:      UMACIDs{ValidFields: NRF_WIFI_INDEX_IDS_WDEV_ID_VALID},
	}
}

func DecodeUMACHeader(b []byte) (hdr UMACHeader) {
	_ = b[UMAC_HDR_LEN-1]
	hdr.PortID = le.Uint32(b)
	hdr.Seq = le.Uint32(b[4:])
	hdr.CmdEvent = le.Uint32(b[8:])
	hdr.RPURetVal = int32(le.Uint32(b[12:]))
	hdr.IDs.ValidFields = le.Uint32(b[16:])
	hdr.IDs.IfaceIndex = int32(le.Uint32(b[20:]))
	hdr.IDs.WiphyIdx = int32(le.Uint32(b[24:]))
	hdr.IDs.WdevID = le.Uint64(b[28:])
	return hdr
}

func (hdr *UMACHeader) Put(dst []byte) {
	_ = dst[UMAC_HDR_LEN-1]
	le.PutUint32(dst, hdr.PortID)
	le.PutUint32(dst[4:], hdr.Seq)
	le.PutUint32(dst[8:], hdr.CmdEvent)
	le.PutUint32(dst[12:], uint32(hdr.RPURetVal))
	le.PutUint32(dst[16:], hdr.IDs.ValidFields)
	le.PutUint32(dst[20:], uint32(hdr.IDs.IfaceIndex))
	le.PutUint32(dst[24:], uint32(hdr.IDs.WiphyIdx))
	le.PutUint64(dst[28:], hdr.IDs.WdevID)
}

// UMACHead is the 8 byte header of data domain commands and events.
type UMACHead struct {
	Cmd DataCommand
	Len uint32
}

func DecodeUMACHead(b []byte) (hdr UMACHead) {
	_ = b[UMAC_HEAD_LEN-1]
	hdr.Cmd = DataCommand(le.Uint32(b))
	hdr.Len = le.Uint32(b[4:])
	return hdr
}

func (hdr *UMACHead) Put(dst []byte) {
	_ = dst[UMAC_HEAD_LEN-1]
	le.PutUint32(dst, uint32(hdr.Cmd))
	le.PutUint32(dst[4:], hdr.Len)
}

// HPQ is a hostport queue: a pair of RPU addresses used to pass buffer
// addresses between host and RPU.
type HPQ struct {
	Enqueue uint32
	Dequeue uint32
}

// HPQMInfo holds the hostport queues published by the UMAC after boot.
type HPQMInfo struct {
	EventBusy HPQ
	EventAvl  HPQ
	CmdBusy   HPQ
	CmdAvl    HPQ
	RxBufBusy [MAX_NUM_OF_RX_QUEUES]HPQ
}

func DecodeHPQMInfo(b []byte) (info HPQMInfo) {
	_ = b[HPQM_INFO_LEN-1]
	dec := func(off int) HPQ {
		return HPQ{Enqueue: le.Uint32(b[off:]), Dequeue: le.Uint32(b[off+4:])}
	}
	info.EventBusy = dec(0)
	info.EventAvl = dec(8)
	info.CmdBusy = dec(16)
	info.CmdAvl = dec(24)
	for i := range info.RxBufBusy {
		info.RxBufBusy[i] = dec(32 + 8*i)
	}
	return info
}

// UMACInfo is the identity and OTP block published by the UMAC at RPU_MEM_UMAC_BOOT_SIG.
type UMACInfo struct {
	BootStatus  uint32
	Version     uint32
	HPQM        HPQMInfo
	Part        uint32
	Variant     uint32
	LROMVersion uint32
	UROMVersion uint32
	UMACVersion uint32
	LMACVersion uint32
	InfoVer     uint32
	MACAddress0 [2]uint32
	MACAddress1 [2]uint32
	Calib       [9]uint32
}

func DecodeUMACInfo(b []byte) (info UMACInfo) {
	_ = b[UMAC_INFO_LEN-1]
	info.BootStatus = le.Uint32(b)
	info.Version = le.Uint32(b[4:])
	info.HPQM = DecodeHPQMInfo(b[8:])
	info.Part = le.Uint32(b[64:])
	info.Variant = le.Uint32(b[68:])
	info.LROMVersion = le.Uint32(b[72:])
	info.UROMVersion = le.Uint32(b[76:])
	info.UMACVersion = le.Uint32(b[80:])
	info.LMACVersion = le.Uint32(b[84:])
	info.InfoVer = le.Uint32(b[88:])
	info.MACAddress0[0] = le.Uint32(b[92:])
	info.MACAddress0[1] = le.Uint32(b[96:])
	info.MACAddress1[0] = le.Uint32(b[100:])
	info.MACAddress1[1] = le.Uint32(b[104:])
	for i := range info.Calib {
		info.Calib[i] = le.Uint32(b[108+4*i:])
	}
	return info
}

// HardwareAddr0 returns the first OTP MAC address. OTP words are stored little endian.
func (info *UMACInfo) HardwareAddr0() (mac [6]byte) {
	var buf [8]byte
	le.PutUint32(buf[:], info.MACAddress0[0])
	le.PutUint32(buf[4:], info.MACAddress0[1])
	copy(mac[:], buf[:6])
	return mac
}

// Version is the UMAC firmware version as packed in RPU_MEM_UMAC_VER.
type Version struct {
	Version uint8
	Major   uint8
	Minor   uint8
	Extra   uint8
}

func DecodeVersion(v uint32) Version {
	return Version{
		Version: uint8(v >> 24),
		Major:   uint8(v >> 16),
		Minor:   uint8(v >> 8),
		Extra:   uint8(v),
	}
}

func (v Version) String() string {
	return strconv.Itoa(int(v.Version)) + "." + strconv.Itoa(int(v.Major)) + "." +
		strconv.Itoa(int(v.Minor)) + "." + strconv.Itoa(int(v.Extra))
}
