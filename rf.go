package nrf70

import (
	"encoding/hex"
	"errors"

	"github.com/soypat/nrf70/nrfwifi"
)

// Offsets into the RF parameter block sent with system init.
const (
	rfOffXO         = 6
	rfOffPDAdjust   = 7
	rfOffSystOffset = 11
	rfOffMaxPwrCeil = 15
	rfOffRxGain     = 24
	rfOffTempVolt   = 28
	rfOffPhyParams  = 42
	// Board configuration bytes within the PHY parameters.
	rfOffConf = rfOffPhyParams + 113
	rfConfLen = 34
)

// Indices into the max power ceiling array of the RF parameter block.
const (
	pwrDSSS = iota
	pwrLBMCS7
	pwrLBMCS0
	pwrHBLowMCS7
	pwrHBMidMCS7
	pwrHBHighMCS7
	pwrHBLowMCS0
	pwrHBMidMCS0
	pwrHBHighMCS0
	numPwrCeil
)

// defaultPhyParams is the vendor default PHY parameter prefix.
const defaultPhyParams = "0000000000002a0000000003030303545440403434343030303c3c3c" +
	"0100000043070303020403020104000000000000000000000000000050ec000050"

// chipRFDefaults are per package RF defaults. Values are in the firmware's units.
type chipRFDefaults struct {
	xo         uint8
	pdAdjust   [4]int8
	systOffset [4]int8
	maxPwr     [numPwrCeil]int8
	rxGain     [4]int8
	tempVolt   [10]int8
}

var (
	qfnRFDefaults = chipRFDefaults{
		xo:         0x2A,
		systOffset: [4]int8{3, 3, 3, 3},
		maxPwr:     [numPwrCeil]int8{0x54, 0x40, 0x40, 0x34, 0x34, 0x30, 0x3C, 0x3C, 0x38},
		rxGain:     [4]int8{1, 0, 0, 0},
		tempVolt:   [10]int8{0x43, 0x07, 0x03, 0x03, 0x02, 0x04, 0x03, 0x02, 0x01, 0x04},
	}
	cspRFDefaults = chipRFDefaults{
		xo:         0x2A,
		systOffset: [4]int8{3, 3, 3, 3},
		maxPwr:     [numPwrCeil]int8{0x50, 0x3C, 0x3C, 0x30, 0x30, 0x2C, 0x38, 0x38, 0x34},
		rxGain:     [4]int8{1, 0, 0, 0},
		tempVolt:   [10]int8{0x43, 0x07, 0x03, 0x03, 0x02, 0x04, 0x03, 0x02, 0x01, 0x04},
	}
)

// txCeilBackoff are the manufacturing test program dependent backoffs.
type txCeilBackoff struct {
	dsss2G, ofdm2G, low5G, mid5G, high5G int8
}

func ftProgBackoff(ftProg uint32) txCeilBackoff {
	switch ftProg {
	case 1:
		return txCeilBackoff{}
	case 2:
		return txCeilBackoff{mid5G: 4, high5G: 4}
	case 3:
		return txCeilBackoff{low5G: 4, mid5G: 4, high5G: 8}
	}
	return txCeilBackoff{}
}

// EdgeBackoff2G are the transmit power backoffs in dB applied at one edge
// of the 2.4GHz band.
type EdgeBackoff2G struct {
	DSSS, HT, HE uint8
}

// EdgeBackoff5G are the transmit power backoffs in dB applied at the edges
// of a 5GHz UNII band.
type EdgeBackoff5G struct {
	LowerHT, LowerHE uint8
	UpperHT, UpperHE uint8
}

// RFConfig holds board specific RF calibration values. Backoffs are in
// range 0..10, antenna gains 0..6 and PCB losses 0..4, all in dB.
// 5GHz bands are 5150-5350MHz, 5470-5730MHz and 5730-5895MHz.
type RFConfig struct {
	Lower2G, Upper2G EdgeBackoff2G
	// UNII-1, UNII-2A, UNII-2C, UNII-3 and UNII-4 edge backoffs.
	UNII      [5]EdgeBackoff5G
	AntGain2G uint8
	AntGain5G [3]uint8
	PCBLoss2G uint8
	PCBLoss5G [3]uint8
}

var (
	errEdgeBackoff = errors.New("edge backoff out of range 0..10")
	errAntGain     = errors.New("antenna gain out of range 0..6")
	errPCBLoss     = errors.New("PCB loss out of range 0..4")
)

// Validate checks every value is within its allowed range.
func (c *RFConfig) Validate() error {
	var buf [rfConfLen]byte
	c.put(buf[:])
	for i, v := range buf {
		switch {
		case i < 26 && v > 10:
			return errjoin(ErrInvalidArgument, errEdgeBackoff)
		case i >= 26 && i < 30 && v > 6:
			return errjoin(ErrInvalidArgument, errAntGain)
		case i >= 30 && v > 4:
			return errjoin(ErrInvalidArgument, errPCBLoss)
		}
	}
	return nil
}

// put encodes the 34 configuration bytes in firmware order.
func (c *RFConfig) put(dst []byte) {
	_ = dst[rfConfLen-1]
	dst[0] = c.Lower2G.DSSS
	dst[1] = c.Lower2G.HT
	dst[2] = c.Lower2G.HE
	dst[3] = c.Upper2G.DSSS
	dst[4] = c.Upper2G.HT
	dst[5] = c.Upper2G.HE
	for i, b := range c.UNII {
		dst[6+4*i] = b.LowerHT
		dst[7+4*i] = b.LowerHE
		dst[8+4*i] = b.UpperHT
		dst[9+4*i] = b.UpperHE
	}
	dst[26] = c.AntGain2G
	copy(dst[27:30], c.AntGain5G[:])
	dst[30] = c.PCBLoss2G
	copy(dst[31:34], c.PCBLoss5G[:])
}

// TxPowerCeiling are the configured maximum transmit powers in quarter dBm.
// The lower of the configured and chip ceilings is used.
type TxPowerCeiling struct {
	DSSS2G   uint8
	MCS7_2G  uint8
	MCS0_2G  uint8
	MCS7Low  uint8
	MCS7Mid  uint8
	MCS7High uint8
	MCS0Low  uint8
	MCS0Mid  uint8
	MCS0High uint8
}

// DefaultTxPowerCeiling returns the regulatory ceilings used when none are configured.
func DefaultTxPowerCeiling() TxPowerCeiling {
	return TxPowerCeiling{
		DSSS2G:   84,
		MCS7_2G:  64,
		MCS0_2G:  64,
		MCS7Low:  36,
		MCS7Mid:  44,
		MCS7High: 52,
		MCS0Low:  36,
		MCS0Mid:  44,
		MCS0High: 52,
	}
}

func (t *TxPowerCeiling) array() [numPwrCeil]uint8 {
	return [numPwrCeil]uint8{
		pwrDSSS:       t.DSSS2G,
		pwrLBMCS7:     t.MCS7_2G,
		pwrLBMCS0:     t.MCS0_2G,
		pwrHBLowMCS7:  t.MCS7Low,
		pwrHBMidMCS7:  t.MCS7Mid,
		pwrHBHighMCS7: t.MCS7High,
		pwrHBLowMCS0:  t.MCS0Low,
		pwrHBMidMCS0:  t.MCS0Mid,
		pwrHBHighMCS0: t.MCS0High,
	}
}

// otpParams are the values read from the RPU that the RF parameters depend on.
type otpParams struct {
	packageType uint32
	ftProg      uint32
	flags       uint32
	calib       [9]uint32
}

// deriveRFParams builds the RF parameter block for system init.
func deriveRFParams(otp otpParams, cfg *RFConfig, ceil *TxPowerCeiling) (rf [nrfwifi.NRF_WIFI_RF_PARAMS_SIZE]byte) {
	chip := &qfnRFDefaults
	if otp.packageType == nrfwifi.CSP_PACKAGE_INFO {
		chip = &cspRFDefaults
	}
	phy := rf[rfOffPhyParams:]
	n := hex.DecodedLen(len(defaultPhyParams))
	hex.Decode(phy[:n], []byte(defaultPhyParams))
	cfg.put(rf[rfOffConf:])

	rf[rfOffXO] = chip.xo
	putInt8s(rf[rfOffPDAdjust:], chip.pdAdjust[:])
	putInt8s(rf[rfOffSystOffset:], chip.systOffset[:])
	putInt8s(rf[rfOffRxGain:], chip.rxGain[:])
	putInt8s(rf[rfOffTempVolt:], chip.tempVolt[:])

	if otp.flags&^nrfwifi.CALIB_XO_FLAG_MASK != 0 {
		rf[rfOffXO] = uint8(otp.calib[nrfwifi.OTP_OFF_CALIB_XO])
	}

	bk := ftProgBackoff(otp.ftProg)
	backoffs := [numPwrCeil]int8{
		pwrDSSS:       bk.dsss2G,
		pwrLBMCS7:     bk.ofdm2G,
		pwrLBMCS0:     bk.ofdm2G,
		pwrHBLowMCS7:  bk.low5G,
		pwrHBMidMCS7:  bk.mid5G,
		pwrHBHighMCS7: bk.high5G,
		pwrHBLowMCS0:  bk.low5G,
		pwrHBMidMCS0:  bk.mid5G,
		pwrHBHighMCS0: bk.high5G,
	}
	configured := ceil.array()
	for i := range configured {
		v := min(int8(configured[i]), chip.maxPwr[i]) - backoffs[i]
		rf[rfOffMaxPwrCeil+i] = uint8(v)
	}
	return rf
}

func putInt8s(dst []byte, src []int8) {
	for i, v := range src {
		dst[i] = uint8(v)
	}
}
