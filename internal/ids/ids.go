// Package ids generates the identifiers used for entities and audit rows.
package ids

import "github.com/oklog/ulid/v2"

// New returns a ULID string. ULIDs sort by creation time, which keeps audit
// rows naturally ordered without a separate sequence.
func New() string {
	return ulid.Make().String()
}
