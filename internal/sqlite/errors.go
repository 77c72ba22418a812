package sqlite

import "strings"

// constraintViolation reports whether err carries the driver's message for
// the named constraint failure ("UNIQUE", "FOREIGN KEY"). modernc.org/sqlite
// surfaces constraint errors as text only, so string matching is the hook.
func constraintViolation(err error, kind string) bool {
	return err != nil && strings.Contains(err.Error(), kind+" constraint failed")
}
