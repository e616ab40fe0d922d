package dbfacade

import (
	"testing"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/remotedb"
	"github.com/cartomix/prolink/internal/status"
	"github.com/stretchr/testify/assert"
)

// TestSelectStrategy covers spec.md §4.8's routing table.
func TestSelectStrategy(t *testing.T) {
	cases := []struct {
		name      string
		devType   device.Type
		trackType status.TrackType
		vcdjID    device.ID
		want      Strategy
	}{
		{"rekordbox device always remote", device.TypeRekordbox, status.TrackTypeRB, 0, StrategyRemote},
		{"cdj rb track is local", device.TypeCDJ, status.TrackTypeRB, 1, StrategyLocal},
		{"cdj audio cd with player vcdj is remote", device.TypeCDJ, status.TrackTypeAudioCD, 3, StrategyRemote},
		{"cdj unanalyzed with player vcdj is remote", device.TypeCDJ, status.TrackTypeUnanalyzed, 6, StrategyRemote},
		{"cdj audio cd with observer vcdj is none", device.TypeCDJ, status.TrackTypeAudioCD, 7, StrategyNone},
		{"mixer is none", device.TypeMixer, status.TrackTypeRB, 1, StrategyNone},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := &Facade{vcdjID: c.vcdjID}
			got := f.selectStrategy(device.Device{Type: c.devType}, c.trackType)
			assert.Equal(t, c.want, got)
		})
	}
}

// TestSelectPlaylistStrategy covers spec.md §4.8's parallel slot-keyed rule.
func TestSelectPlaylistStrategy(t *testing.T) {
	cases := []struct {
		name    string
		devType device.Type
		slot    status.SlotTag
		want    Strategy
	}{
		{"rekordbox rb slot is remote", device.TypeRekordbox, status.SlotRB, StrategyRemote},
		{"rekordbox other slot is none", device.TypeRekordbox, status.SlotUSB, StrategyNone},
		{"cdj is always local", device.TypeCDJ, status.SlotUSB, StrategyLocal},
		{"mixer is none", device.TypeMixer, status.SlotRB, StrategyNone},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			f := &Facade{}
			got := f.selectPlaylistStrategy(device.Device{Type: c.devType}, c.slot)
			assert.Equal(t, c.want, got)
		})
	}
}

func TestSliceIteratorExhausts(t *testing.T) {
	entries := []remotedb.Entry{{ID: 1}, {ID: 2}}
	next := sliceIterator(entries)

	e, ok := next()
	assert.True(t, ok)
	assert.EqualValues(t, 1, e.ID)

	e, ok = next()
	assert.True(t, ok)
	assert.EqualValues(t, 2, e.ID)

	_, ok = next()
	assert.False(t, ok)
}
