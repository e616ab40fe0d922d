package localdb

import (
	"testing"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/status"
	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

// TestFingerprintDeterministic covers spec.md §8 invariant #3: fingerprint
// is a pure function of the media descriptor.
func TestFingerprintDeterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		dev := device.ID(rapid.IntRange(1, 6).Draw(rt, "device"))
		slot := status.SlotTag(rapid.IntRange(0, 4).Draw(rt, "slot"))
		name := rapid.StringN(0, 40, 40).Draw(rt, "name")
		free := rapid.Uint64().Draw(rt, "free")
		total := rapid.Uint64().Draw(rt, "total")
		count := uint16(rapid.IntRange(0, 65535).Draw(rt, "count"))
		created := rapid.StringN(0, 24, 24).Draw(rt, "created")

		desc := status.MediaSlotInfo{
			Name: name, FreeBytes: free, TotalBytes: total,
			TrackCount: count, CreatedDate: created,
		}

		a := Fingerprint(dev, slot, desc)
		b := Fingerprint(dev, slot, desc)
		assert.Equal(t, a, b)
	})
}

func TestFingerprintDiffersOnDescriptorChange(t *testing.T) {
	base := status.MediaSlotInfo{Name: "USB1", FreeBytes: 10, TotalBytes: 100, TrackCount: 5, CreatedDate: "2024-01-01"}
	changed := base
	changed.TrackCount = 6

	fp1 := Fingerprint(device.ID(1), status.SlotUSB, base)
	fp2 := Fingerprint(device.ID(1), status.SlotUSB, changed)
	assert.NotEqual(t, fp1, fp2)
}
