package mail

import "github.com/google/uuid"

// newThreadID mints an external thread id for send_message calls that
// didn't supply one (spec §4.4 "if absent, mint a new id").
func newThreadID() string {
	return uuid.NewString()
}
