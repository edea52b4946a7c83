// Package row implements the variable-length wire codec for table rows.
//
// Wire format:
//
//	[0-3]   uint32  id
//	[4-5]   uint16  username length
//	[6+]    []byte  username
//	[..+2]  uint16  email length
//	[..+]   []byte  email
//
// Min size: 4+2+0+2+0 = 8 bytes.  Max size: 4+2+31+2+254 = 293 bytes.
package row

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

const (
	MaxUsername = 31
	MaxEmail    = 254

	MinEncoded = 4 + 2 + 2
	MaxEncoded = 4 + 2 + MaxUsername + 2 + MaxEmail
)

// Row is a single fixed-schema record keyed by ID.
type Row struct {
	ID       uint32
	Username string
	Email    string
}

// Validate checks the documented field length bounds.
func (r Row) Validate() error {
	if len(r.Username) > MaxUsername {
		return errors.Newf("username exceeds %d bytes", MaxUsername)
	}
	if len(r.Email) > MaxEmail {
		return errors.Newf("email exceeds %d bytes", MaxEmail)
	}
	return nil
}

// Size returns the encoded length of r.
func Size(r Row) int {
	return 4 + 2 + len(r.Username) + 2 + len(r.Email)
}

// Serialize writes r into dst and returns the number of bytes written.
// dst must hold at least Size(r) bytes.
func Serialize(r Row, dst []byte) int {
	off := 0
	binary.LittleEndian.PutUint32(dst[off:], r.ID)
	off += 4
	binary.LittleEndian.PutUint16(dst[off:], uint16(len(r.Username)))
	off += 2
	off += copy(dst[off:], r.Username)
	binary.LittleEndian.PutUint16(dst[off:], uint16(len(r.Email)))
	off += 2
	off += copy(dst[off:], r.Email)
	return off
}

// Deserialize is the inverse of Serialize.
func Deserialize(src []byte) Row {
	var r Row
	off := 0
	r.ID = binary.LittleEndian.Uint32(src[off:])
	off += 4
	ulen := int(binary.LittleEndian.Uint16(src[off:]))
	off += 2
	r.Username = string(src[off : off+ulen])
	off += ulen
	elen := int(binary.LittleEndian.Uint16(src[off:]))
	off += 2
	r.Email = string(src[off : off+elen])
	return r
}
