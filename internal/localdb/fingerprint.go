package localdb

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/cartomix/prolink/internal/device"
	"github.com/cartomix/prolink/internal/status"
)

// Fingerprint identifies a specific piece of media in a specific slot well
// enough to key a cache: it is a function of the media descriptor alone, so
// identical descriptors produce identical fingerprints across runs
// (spec.md §8 invariant #3).
func Fingerprint(deviceID device.ID, slot status.SlotTag, info status.MediaSlotInfo) string {
	material := fmt.Sprintf("%d·%d·%s·%d·%d·%d·%s",
		deviceID, slot, info.Name, info.FreeBytes, info.TotalBytes, info.TrackCount, info.CreatedDate)
	sum := sha256.Sum256([]byte(material))
	return hex.EncodeToString(sum[:])
}
