package util

import "strings"

// bech32 charset, excluding "1" which separates prefix and data.
const bech32Charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

// NormalizeAddress trims and lowercases a wallet address for comparison.
// Addresses are bech32 and case-insensitive; all internal state stores the
// normalized form.
func NormalizeAddress(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

// LooksLikeAddress performs a cheap shape check on a bech32 wallet address
// (hrp + "1" + data part). It does not verify the checksum; the chain and
// the remote authority remain the source of truth.
func LooksLikeAddress(addr string) bool {
	addr = NormalizeAddress(addr)
	sep := strings.LastIndex(addr, "1")
	if sep < 1 || sep+7 > len(addr) {
		return false
	}
	for _, c := range addr[sep+1:] {
		if !strings.ContainsRune(bech32Charset, c) {
			return false
		}
	}
	return true
}
