package stack

import (
	"encoding/binary"

	"github.com/google/uuid"
)

// RandomIEEEAddress returns a locally administered extended address for
// nodes without a factory-assigned one.
func RandomIEEEAddress() uint64 {
	u := uuid.New()
	addr := binary.BigEndian.Uint64(u[:8])
	// Locally administered, unicast.
	addr |= 0x0200000000000000
	addr &^= 0x0100000000000000
	return addr
}
