package state

import "apexcore/crypto"

// Key layout. Single-entity records live under fixed keys; per-account records
// append the 20-byte address to a module prefix.
var (
	poolKey          = []byte("amm/pool")
	lendingTotalsKey = []byte("lending/totals")

	liquidityPositionPrefix = []byte("amm/position/")
	lendingPositionPrefix   = []byte("lending/position/")
)

func liquidityPositionKey(addr crypto.Address) []byte {
	key := append([]byte(nil), liquidityPositionPrefix...)
	return append(key, addr.Bytes()...)
}

func lendingPositionKey(addr crypto.Address) []byte {
	key := append([]byte(nil), lendingPositionPrefix...)
	return append(key, addr.Bytes()...)
}
