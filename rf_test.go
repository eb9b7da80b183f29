package nrf70

import (
	"errors"
	"testing"

	"github.com/soypat/nrf70/nrfwifi"
)

func TestDeriveRFCeilings(t *testing.T) {
	ceil := DefaultTxPowerCeiling()
	var cfg RFConfig
	// Program 3 backs off every 5GHz band.
	otp := otpParams{packageType: 0, ftProg: 3, flags: nrfwifi.CALIB_XO_FLAG_MASK}
	rf := deriveRFParams(otp, &cfg, &ceil)
	want := [numPwrCeil]uint8{
		pwrDSSS:       min(84, 0x54) - 0,
		pwrLBMCS7:     min(64, 0x40) - 0,
		pwrLBMCS0:     min(64, 0x40) - 0,
		pwrHBLowMCS7:  min(36, 0x34) - 4,
		pwrHBMidMCS7:  min(44, 0x34) - 4,
		pwrHBHighMCS7: min(52, 0x30) - 8,
		pwrHBLowMCS0:  min(36, 0x3C) - 4,
		pwrHBMidMCS0:  min(44, 0x3C) - 4,
		pwrHBHighMCS0: min(52, 0x38) - 8,
	}
	for i, w := range want {
		if got := rf[rfOffMaxPwrCeil+i]; got != w {
			t.Errorf("ceiling %d: got %d, want %d", i, got, w)
		}
	}

	// CSP package chip ceilings are lower than the configured ones.
	ceil = TxPowerCeiling{DSSS2G: 0x7f, MCS7High: 0x7f}
	otp = otpParams{packageType: nrfwifi.CSP_PACKAGE_INFO, ftProg: 2}
	rf = deriveRFParams(otp, &cfg, &ceil)
	if got := rf[rfOffMaxPwrCeil+pwrDSSS]; got != 0x50 {
		t.Errorf("csp dsss: got %#x", got)
	}
	if got := rf[rfOffMaxPwrCeil+pwrHBHighMCS7]; got != 0x2C-4 {
		t.Errorf("csp 5G high mcs7: got %#x", got)
	}
}

func TestDeriveRFXO(t *testing.T) {
	var cfg RFConfig
	ceil := DefaultTxPowerCeiling()
	otp := otpParams{flags: nrfwifi.CALIB_XO_FLAG_MASK}
	otp.calib[nrfwifi.OTP_OFF_CALIB_XO] = 0x33
	rf := deriveRFParams(otp, &cfg, &ceil)
	if rf[rfOffXO] != qfnRFDefaults.xo {
		t.Errorf("unprogrammed OTP: got xo %#x", rf[rfOffXO])
	}
	otp.flags = ^uint32(0)
	rf = deriveRFParams(otp, &cfg, &ceil)
	if rf[rfOffXO] != 0x33 {
		t.Errorf("programmed OTP: got xo %#x", rf[rfOffXO])
	}
}

func TestDeriveRFConfigBytes(t *testing.T) {
	cfg := RFConfig{
		Lower2G:   EdgeBackoff2G{DSSS: 1, HT: 2, HE: 3},
		AntGain2G: 4,
		PCBLoss5G: [3]uint8{1, 2, 3},
	}
	ceil := DefaultTxPowerCeiling()
	rf := deriveRFParams(otpParams{}, &cfg, &ceil)
	conf := rf[rfOffConf : rfOffConf+rfConfLen]
	if conf[0] != 1 || conf[1] != 2 || conf[2] != 3 {
		t.Errorf("2G backoffs: %v", conf[:3])
	}
	if conf[26] != 4 || conf[31] != 1 || conf[33] != 3 {
		t.Errorf("gains and losses: %v", conf[26:])
	}
	// PHY parameter prefix precedes the configuration bytes.
	if rf[rfOffPhyParams+6] != 0x2a {
		t.Errorf("phy params not copied: %#x", rf[rfOffPhyParams+6])
	}
}

func TestRFConfigValidate(t *testing.T) {
	var cfg RFConfig
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		mod  func(*RFConfig)
		want error
	}{
		{func(c *RFConfig) { c.Upper2G.HE = 11 }, errEdgeBackoff},
		{func(c *RFConfig) { c.UNII[4].UpperHE = 11 }, errEdgeBackoff},
		{func(c *RFConfig) { c.AntGain5G[2] = 7 }, errAntGain},
		{func(c *RFConfig) { c.PCBLoss2G = 5 }, errPCBLoss},
	}
	for i, tt := range tests {
		c := RFConfig{}
		tt.mod(&c)
		err := c.Validate()
		if !errors.Is(err, ErrInvalidArgument) || !errors.Is(err, tt.want) {
			t.Errorf("case %d: got %v", i, err)
		}
	}
	ok := RFConfig{AntGain2G: 6, PCBLoss2G: 4, Lower2G: EdgeBackoff2G{DSSS: 10}}
	if err := ok.Validate(); err != nil {
		t.Errorf("limits rejected: %v", err)
	}
}
