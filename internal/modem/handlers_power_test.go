package modem

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aleksander0m/ravemodemfactory-sub000/internal/qmi"
)

func TestCollapseOperatingMode(t *testing.T) {
	cases := []struct {
		mode qmi.OperatingMode
		want PowerStatus
		ok   bool
	}{
		{qmi.OperatingModeOnline, PowerStatusFull, true},
		{qmi.OperatingModeLowPower, PowerStatusLow, true},
		{qmi.OperatingModePersistentLowPower, PowerStatusLow, true},
		{qmi.OperatingModeModeOnlyLowPower, PowerStatusLow, true},
		{qmi.OperatingModeOffline, PowerStatusLow, true},
		{qmi.OperatingModeReset, PowerStatusUnknown, false},
	}
	for _, c := range cases {
		got, ok := collapseOperatingMode(c.mode)
		assert.Equal(t, c.ok, ok)
		assert.Equal(t, c.want, got)
	}
}

func TestDBmToPercentClamps(t *testing.T) {
	assert.Equal(t, uint32(0), dBmToPercent(-120))
	assert.Equal(t, uint32(100), dBmToPercent(-40))
	assert.Equal(t, uint32(0), dBmToPercent(-113))
	assert.Equal(t, uint32(100), dBmToPercent(-51))
}

func TestDBmToPercentMidpoint(t *testing.T) {
	got := dBmToPercent(-82) // halfway between -113 and -51
	assert.InDelta(t, 50, got, 2)
}
