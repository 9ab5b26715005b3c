package util_test

import (
	"testing"

	"github.com/nasa-jpl/ptpgadget/util"
)

func TestGetBit(t *testing.T) {
	b := util.SetBit(0, 3, true)
	if !util.GetBit(b, 3) {
		t.Errorf("expected bit 3 to be set in %08b", b)
	}
	if util.GetBit(b, 2) {
		t.Errorf("expected bit 2 to be clear in %08b", b)
	}
}
