// Package hexid implements the external identifier codec: user-facing ids
// are lowercase hexadecimal encodings of internal 64-bit database keys, and
// temp-file handles carry a fixed ASCII prefix in front of the hex id.
package hexid

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/blockstudio/server/internal/common"
)

// TempFilePrefix marks an external temp-file handle. Any caller-supplied
// name lacking this prefix is rejected before the database is touched.
const TempFilePrefix = "__TEMP__"

// Encode returns the lowercase hex form of an internal numeric key.
func Encode(id int64) string {
	return strconv.FormatInt(id, 16)
}

// Decode parses an external hex id back to the internal numeric key.
// Malformed input yields common.ErrorBadArgument.
func Decode(s string) (int64, error) {
	if s == "" || strings.ToLower(s) != s {
		return 0, fmt.Errorf("%w: malformed id %q", common.ErrorBadArgument, s)
	}
	id, err := strconv.ParseInt(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed id %q", common.ErrorBadArgument, s)
	}
	return id, nil
}

// EncodeTempHandle builds the external handle for a temp-file row.
func EncodeTempHandle(id int64) string {
	return TempFilePrefix + Encode(id)
}

// DecodeTempHandle validates the handle prefix and returns the internal id.
// The check is pure: invalid handles fail before any database access.
func DecodeTempHandle(handle string) (int64, error) {
	rest, ok := strings.CutPrefix(handle, TempFilePrefix)
	if !ok {
		return 0, fmt.Errorf("%w: not a temp file handle: %q", common.ErrorBadArgument, handle)
	}
	return Decode(rest)
}
