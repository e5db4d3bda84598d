package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"gifsmith/internal/overlay"
)

// Key digests everything that influences the encoded output: the exact
// source bytes, the overlay set in z-order, and the natural dimensions. The
// transient drag flag is excluded so previews and final renders share
// entries.
func Key(sourceBytes []byte, overlays []overlay.TextOverlay, naturalWidth, naturalHeight int) string {
	hasher := sha256.New()
	hasher.Write(sourceBytes)
	fmt.Fprintf(hasher, "|%dx%d|", naturalWidth, naturalHeight)

	for _, o := range overlays {
		o.Dragging = false
		o.ID = ""
		encoded, err := json.Marshal(o)
		if err != nil {
			// Marshal of a plain value struct cannot fail; keep the key
			// stable anyway.
			continue
		}
		hasher.Write(encoded)
		hasher.Write([]byte{0})
	}
	return hex.EncodeToString(hasher.Sum(nil))
}
