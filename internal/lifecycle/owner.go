package lifecycle

import (
	"path/filepath"
	"strconv"
	"strings"
)

// ParseOwnerID extracts the user id from a leading "{digits}_" prefix, as in
// "123_vacation.jpg". Ids never start with 0, so "0_x.jpg" and "012_x.jpg"
// carry no owner.
func ParseOwnerID(filename string) (int64, bool) {
	name := filepath.Base(filename)

	prefix, _, found := strings.Cut(name, "_")
	if !found || prefix == "" || prefix[0] == '0' {
		return 0, false
	}

	for _, r := range prefix {
		if r < '0' || r > '9' {
			return 0, false
		}
	}

	id, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
