package dispatcher

import (
	"bytes"
	"encoding/json"

	"github.com/agentmaild/agentmail/internal/errs"
)

// decodeArgs unmarshals raw into dst, rejecting any field not present in
// dst's struct tags (spec §4.7 "unknown fields rejected as
// InvalidArgument"). An empty/absent raw payload decodes to dst's zero
// value.
func decodeArgs(raw json.RawMessage, dst any) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return errs.Newf(errs.InvalidArgument, "invalid arguments: %v", err)
	}
	return nil
}
