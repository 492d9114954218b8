package common

import (
	"crypto/md5"
	"encoding/hex"
)

// Md5Hex returns the MD5 digest of the input encoded as lowercase hex.
func Md5Hex(input string) string {
	sum := md5.Sum([]byte(input))
	return hex.EncodeToString(sum[:])
}
