package storage

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("storage: CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("storage: CBOR decoder mode: %v", err))
	}
}

// EncodeNetwork serializes n as deterministic CBOR.
func EncodeNetwork(n *Network) ([]byte, error) {
	return encMode.Marshal(n)
}

// DecodeNetwork parses a blob written by EncodeNetwork.
func DecodeNetwork(data []byte) (*Network, error) {
	var n Network
	if err := decMode.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("storage: decode network: %w", err)
	}
	return &n, nil
}
