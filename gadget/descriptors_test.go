package gadget_test

import (
	"testing"

	"github.com/nasa-jpl/ptpgadget/gadget"
)

func TestStringsIndexing(t *testing.T) {
	strs := gadget.NewStrings()

	lang := strs.Descriptor(0)
	if len(lang) != 4 {
		t.Fatalf("lang-ID descriptor length = %d, want 4", len(lang))
	}
	if lang[0] != 4 || lang[1] != 3 {
		t.Errorf("lang-ID descriptor header = % x, want length=4 type=3", lang[:2])
	}

	idx := strs.AddString("NASA JPL")
	if idx != 1 {
		t.Fatalf("first AddString index = %d, want 1", idx)
	}
	idx2 := strs.AddString("PTPGadget")
	if idx2 != 2 {
		t.Fatalf("second AddString index = %d, want 2", idx2)
	}

	d := strs.Descriptor(1)
	if d == nil || d[1] != 3 {
		t.Fatalf("string descriptor at index 1 missing or wrong type: % x", d)
	}
	if int(d[0]) != len(d) {
		t.Errorf("string descriptor bLength = %d, want %d", d[0], len(d))
	}

	if strs.Descriptor(99) != nil {
		t.Error("out-of-range Descriptor should return nil")
	}
}

func TestStandardDescriptorsTopology(t *testing.T) {
	strs := gadget.NewStrings()
	dev, cfgFull, cfg := gadget.StandardDescriptors(strs, "NASA JPL", "PTPGadget", "PTP", "Still Image Capture")

	devBytes := dev.Bytes()
	if len(devBytes) != 18 {
		t.Fatalf("device descriptor length = %d, want 18", len(devBytes))
	}
	if devBytes[0] != 18 || devBytes[1] != 1 {
		t.Errorf("device descriptor header = % x, want bLength=18 bDescriptorType=1", devBytes[:2])
	}

	if len(cfg.Interfaces) != 1 {
		t.Fatalf("len(Interfaces) = %d, want 1", len(cfg.Interfaces))
	}
	iface := cfg.Interfaces[0]
	if len(iface.Endpoints) != 3 {
		t.Fatalf("len(Endpoints) = %d, want 3", len(iface.Endpoints))
	}
	for i, ep := range iface.Endpoints {
		if ep.MaxPacketSize != 512 && ep.Attributes != 0x03 {
			t.Errorf("endpoint %d MaxPacketSize = %d, want 512", i, ep.MaxPacketSize)
		}
	}
	for i, ep := range cfgFull.Interfaces[0].Endpoints {
		if ep.Attributes == 0x02 && ep.MaxPacketSize != 64 {
			t.Errorf("full-speed bulk endpoint %d MaxPacketSize = %d, want 64", i, ep.MaxPacketSize)
		}
	}
	if cfgFull.ConfigurationIdx != cfg.ConfigurationIdx {
		t.Error("full- and high-speed configs must share string indices")
	}

	cfgBytes := cfg.Bytes()
	if cfgBytes[0] != 9 || cfgBytes[1] != 2 {
		t.Errorf("config descriptor header = % x, want bLength=9 bDescriptorType=2", cfgBytes[:2])
	}
	totalLen := uint16(cfgBytes[2]) | uint16(cfgBytes[3])<<8
	if int(totalLen) != len(cfgBytes) {
		t.Errorf("wTotalLength = %d, want %d", totalLen, len(cfgBytes))
	}

	if dev.ManufacturerIdx == dev.ProductIdx {
		t.Error("manufacturer and product string indices must differ")
	}
}
