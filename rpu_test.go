package nrf70

import (
	"testing"

	"github.com/soypat/nrf70/nrfwifi"
)

func TestLoadFirmwareBlobOrder(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	order := [nrfwifi.FW_NUM_IMAGES]nrfwifi.ImageKind{
		nrfwifi.ImageLMACSec, nrfwifi.ImageUMACPri, nrfwifi.ImageLMACPri, nrfwifi.ImageUMACSec,
	}
	fw := nrfwifi.Firmware{FeatureFlags: nrfwifi.FW_FEAT_SYSTEM_MODE, Order: order}
	for _, kind := range order {
		fw.Images[kind] = nrfwifi.Image{Kind: kind, Data: []byte{byte(kind), 0xaa, 0xbb, 0xcc}}
	}
	if err := r.loadFirmware(&fw); err != nil {
		t.Fatal(err)
	}
	bus.mu.Lock()
	writes := append([]busWrite(nil), bus.writes...)
	bus.mu.Unlock()
	if len(writes) != len(order) {
		t.Fatalf("got %d writes, want %d", len(writes), len(order))
	}
	for i, kind := range order {
		proc := procLMAC
		if kind.IsUMAC() {
			proc = procUMAC
		}
		if want := busAddr(kind.Dest(), proc); writes[i].addr != want {
			t.Errorf("write %d: %v loaded at %#x, want %#x", i, kind, writes[i].addr, want)
		}
	}
}

func TestLoadFirmwareSkipsEmptyImages(t *testing.T) {
	bus := newFakeBus()
	r := newTestRPU(bus)
	fw := nrfwifi.Firmware{Order: [nrfwifi.FW_NUM_IMAGES]nrfwifi.ImageKind{0, 1, 2, 3}}
	fw.Images[nrfwifi.ImageUMACSec] = nrfwifi.Image{Kind: nrfwifi.ImageUMACSec, Data: make([]byte, 8)}
	if err := r.loadFirmware(&fw); err != nil {
		t.Fatal(err)
	}
	if n := bus.numWrites(); n != 1 {
		t.Errorf("got %d writes for a single non-empty image", n)
	}
}
