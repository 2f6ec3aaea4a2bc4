// Package record implements the fixed {id, username, email} schema's
// wire encoding: a 291-byte slot with the id as a little-endian u32
// followed by two zero-padded, non-null-terminated string fields.
package record

import (
	"encoding/binary"
	"fmt"

	"kvengine/internal/layout"
)

// Record is the single row schema the engine stores: a u32 primary
// key plus two UTF-8 strings bounded by layout.UsernameSize and
// layout.EmailSize.
type Record struct {
	ID       uint32
	Username string
	Email    string
}

// Validate reports whether r's strings fit the fixed-width slots.
// Callers (Table.Insert, Table.Update) check this before touching the
// tree, matching spec §7's INVALID_ARGUMENT for a malformed record.
func (r Record) Validate() error {
	if len(r.Username) > layout.UsernameSize {
		return fmt.Errorf("username %q exceeds %d bytes", r.Username, layout.UsernameSize)
	}
	if len(r.Email) > layout.EmailSize {
		return fmt.Errorf("email %q exceeds %d bytes", r.Email, layout.EmailSize)
	}
	return nil
}

// Serialize writes r into slot, which must be at least layout.RecordSize
// bytes. Strings are copied without a trailing null and the remainder
// of their field is zeroed.
func Serialize(r Record, slot []byte) {
	_ = slot[:layout.RecordSize] // bounds check hint, like the teacher's fixed-offset accessors

	binary.LittleEndian.PutUint32(slot[0:4], r.ID)

	usernameSlot := slot[4 : 4+layout.UsernameSize]
	zero(usernameSlot)
	copy(usernameSlot, r.Username)

	emailSlot := slot[4+layout.UsernameSize : 4+layout.UsernameSize+layout.EmailSize]
	zero(emailSlot)
	copy(emailSlot, r.Email)
}

// Deserialize reads a Record out of slot. Each string is cut at the
// first zero byte, recovering the logical string from its zero-padded
// field.
func Deserialize(slot []byte) Record {
	_ = slot[:layout.RecordSize]

	id := binary.LittleEndian.Uint32(slot[0:4])
	username := cstring(slot[4 : 4+layout.UsernameSize])
	email := cstring(slot[4+layout.UsernameSize : 4+layout.UsernameSize+layout.EmailSize])

	return Record{ID: id, Username: username, Email: email}
}

// cstring trims a zero-padded byte field at its first zero byte.
func cstring(field []byte) string {
	for i, b := range field {
		if b == 0 {
			return string(field[:i])
		}
	}
	return string(field)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
