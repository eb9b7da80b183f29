package nrfwifi

import "strconv"

// Firmware blob layout.
const (
	FW_SIGNATURE  = 0xDEAD1EAF
	FW_NUM_IMAGES = 4
)

// Firmware feature flags advertised in the blob header. A blob carries
// exactly one of them.
const (
	FW_FEAT_SYSTEM_MODE           = 1 << 0
	FW_FEAT_RADIO_TEST            = 1 << 1
	FW_FEAT_SCAN_ONLY             = 1 << 2
	FW_FEAT_SYSTEM_WITH_RAW_MODES = 1 << 3
	FW_FEAT_OFFLOADED_RAW_TX      = 1 << 4
)

func validFeatureFlags(flags uint32) bool {
	switch flags {
	case FW_FEAT_SYSTEM_MODE, FW_FEAT_RADIO_TEST, FW_FEAT_SCAN_ONLY,
		FW_FEAT_SYSTEM_WITH_RAW_MODES, FW_FEAT_OFFLOADED_RAW_TX:
		return true
	}
	return false
}

// ImageKind identifies a firmware patch image.
type ImageKind uint32

const (
	ImageUMACPri ImageKind = 0
	ImageUMACSec ImageKind = 1
	ImageLMACPri ImageKind = 2
	ImageLMACSec ImageKind = 3
)

func (k ImageKind) String() (s string) {
	switch k {
	case ImageUMACPri:
		s = "umac-pri"
	case ImageUMACSec:
		s = "umac-sec"
	case ImageLMACPri:
		s = "lmac-pri"
	case ImageLMACSec:
		s = "lmac-sec"
	default:
		s = "image(" + strconv.Itoa(int(k)) + ")"
	}
	return s
}

// IsUMAC reports whether the image runs on the UMAC processor.
func (k ImageKind) IsUMAC() bool { return k == ImageUMACPri || k == ImageUMACSec }

// Dest returns the RPU address the image is loaded at.
func (k ImageKind) Dest() uint32 {
	switch k {
	case ImageUMACPri:
		return RPU_MEM_UMAC_PATCH_BIMG
	case ImageUMACSec:
		return RPU_MEM_UMAC_PATCH_BIN
	case ImageLMACPri:
		return RPU_MEM_LMAC_PATCH_BIMG
	case ImageLMACSec:
		return RPU_MEM_LMAC_PATCH_BIN
	}
	return 0
}

// FirmwareErrorKind classifies firmware blob validation failures.
type FirmwareErrorKind uint8

const (
	_ FirmwareErrorKind = iota
	FwErrBufferTooSmall
	FwErrInvalidSignature
	FwErrNotEnoughImages
	FwErrInvalidImageType
	FwErrInvalidFeatureFlags
	FwErrInvalidDataLength
)

// FirmwareError is returned by ParseFirmware. Value carries the offending
// field when relevant: the signature, image count, image type or feature flags.
type FirmwareError struct {
	Kind  FirmwareErrorKind
	Value uint32
}

func (e *FirmwareError) Error() string {
	var msg string
	switch e.Kind {
	case FwErrBufferTooSmall:
		msg = "buffer too small"
	case FwErrInvalidSignature:
		msg = "invalid signature 0x" + strconv.FormatUint(uint64(e.Value), 16)
	case FwErrNotEnoughImages:
		msg = "expected 4 images, got " + strconv.FormatUint(uint64(e.Value), 10)
	case FwErrInvalidImageType:
		msg = "invalid image type " + strconv.FormatUint(uint64(e.Value), 10)
	case FwErrInvalidFeatureFlags:
		msg = "invalid feature flags 0x" + strconv.FormatUint(uint64(e.Value), 16)
	case FwErrInvalidDataLength:
		msg = "image lengths do not match payload length"
	default:
		msg = "unknown error"
	}
	return "nrfwifi: firmware: " + msg
}

// Is makes errors.Is match any FirmwareError of the same kind.
func (e *FirmwareError) Is(target error) bool {
	t, ok := target.(*FirmwareError)
	return ok && t.Kind == e.Kind
}

// Image is a firmware patch image. Data aliases the parsed blob.
type Image struct {
	Kind ImageKind
	Data []byte
}

// Firmware is a parsed firmware blob.
type Firmware struct {
	FeatureFlags uint32
	// Images indexed by ImageKind.
	Images [FW_NUM_IMAGES]Image
	// Order holds the image kinds in the order they appear in the blob.
	Order [FW_NUM_IMAGES]ImageKind
}

// ParseFirmware validates the blob and splits it into its patch images.
// The returned images reference blob, which must outlive the Firmware.
//
//	header: signature, num_images, payload_len, feature_flags (uint32 each)
//	images: type (uint32), len (uint32), data[len]
func ParseFirmware(blob []byte) (fw Firmware, err error) {
	if len(blob) < FW_HEADER_LEN {
		return fw, &FirmwareError{Kind: FwErrBufferTooSmall}
	}
	sig := le.Uint32(blob)
	if sig != FW_SIGNATURE {
		return fw, &FirmwareError{Kind: FwErrInvalidSignature, Value: sig}
	}
	numImages := le.Uint32(blob[4:])
	if numImages != FW_NUM_IMAGES {
		return fw, &FirmwareError{Kind: FwErrNotEnoughImages, Value: numImages}
	}
	payloadLen := le.Uint32(blob[8:])
	flags := le.Uint32(blob[12:])

	payload := blob[FW_HEADER_LEN:]
	off := 0
	total := 0
	var seen [FW_NUM_IMAGES]bool
	for i := 0; i < FW_NUM_IMAGES; i++ {
		if len(payload)-off < FW_IMAGE_HEAD_LEN {
			return fw, &FirmwareError{Kind: FwErrInvalidDataLength}
		}
		typ := le.Uint32(payload[off:])
		size := int(le.Uint32(payload[off+4:]))
		if typ >= FW_NUM_IMAGES || seen[typ] {
			return fw, &FirmwareError{Kind: FwErrInvalidImageType, Value: typ}
		}
		off += FW_IMAGE_HEAD_LEN
		if size < 0 || size > len(payload)-off {
			return fw, &FirmwareError{Kind: FwErrInvalidDataLength}
		}
		seen[typ] = true
		fw.Order[i] = ImageKind(typ)
		fw.Images[typ] = Image{Kind: ImageKind(typ), Data: payload[off : off+size : off+size]}
		off += size
		total += FW_IMAGE_HEAD_LEN + size
	}
	if total != int(payloadLen) {
		return fw, &FirmwareError{Kind: FwErrInvalidDataLength}
	}
	if !validFeatureFlags(flags) {
		return fw, &FirmwareError{Kind: FwErrInvalidFeatureFlags, Value: flags}
	}
	fw.FeatureFlags = flags
	return fw, nil
}

// AppendFirmware appends a blob containing the given images to dst in the
// format accepted by ParseFirmware. Images are written in Kind order.
func AppendFirmware(dst []byte, featureFlags uint32, images [FW_NUM_IMAGES][]byte) []byte {
	payloadLen := 0
	for _, img := range images {
		payloadLen += FW_IMAGE_HEAD_LEN + len(img)
	}
	dst = le.AppendUint32(dst, FW_SIGNATURE)
	dst = le.AppendUint32(dst, FW_NUM_IMAGES)
	dst = le.AppendUint32(dst, uint32(payloadLen))
	dst = le.AppendUint32(dst, featureFlags)
	for kind, img := range images {
		dst = le.AppendUint32(dst, uint32(kind))
		dst = le.AppendUint32(dst, uint32(len(img)))
		dst = append(dst, img...)
	}
	return dst
}
