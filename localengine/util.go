package localengine

import (
	"encoding/hex"
	"strconv"
)

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}

func hexstr(b []byte) string {
	if b == nil {
		return "<nil>"
	}
	if len(b) == 0 {
		return "<empty>"
	}
	return hex.EncodeToString(b)
}
