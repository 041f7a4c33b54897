// Package verify runs one identity verification: OCR extraction of the
// document followed by independent matching of each claimed field.
package verify

import (
	"github.com/joseph-ayodele/idverify/internal/common"
)

// maxFieldLength caps claimed values; real names, dates and IDs are far shorter.
const maxFieldLength = 256

// Request is the immutable input of a verification.
type Request struct {
	Image     []byte
	Filename  string // for logs only
	LastName  string
	Birthday  string
	StudentID string
}

// Validate rejects requests that must never reach the queue.
func (r Request) Validate() error {
	v := common.NewValidator()
	v.Field("last_name", r.LastName, common.Required, common.MaxLength(maxFieldLength))
	v.Field("birthday", r.Birthday, common.Required, common.MaxLength(maxFieldLength))
	v.Field("student_id", r.StudentID, common.Required, common.MaxLength(maxFieldLength))
	if len(r.Image) == 0 {
		v.Field("file", nil, common.Required)
	}
	if r.Filename != "" {
		v.Field("file", r.Filename, common.AllowedExtension)
	}
	return v.Err()
}
