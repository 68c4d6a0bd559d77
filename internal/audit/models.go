package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action names a sensitive operation worth a compliance trail.
type Action string

const (
	ActionUserRegistered     Action = "USER_REGISTERED"
	ActionLoginSucceeded     Action = "LOGIN_SUCCEEDED"
	ActionLoginFailed        Action = "LOGIN_FAILED"
	ActionAccountLocked      Action = "ACCOUNT_LOCKED"
	ActionUserLoggedOut      Action = "USER_LOGGED_OUT"
	ActionShareCodeCreated   Action = "SHARE_CODE_CREATED"
	ActionShareRevoked       Action = "SHARE_REVOKED"
	ActionShareClaimed       Action = "SHARE_CLAIMED"
	ActionShareClaimRejected Action = "SHARE_CLAIM_REJECTED"
	ActionJournalCreated     Action = "JOURNAL_CREATED"
	ActionMoodLogged         Action = "MOOD_LOGGED"
	ActionVoiceLogged        Action = "VOICE_LOGGED"
	ActionMedicationLogged   Action = "MEDICATION_LOGGED"
)

// Entry is an append-only record of a sensitive action. Entries are never
// updated or deleted; the store interface deliberately has no mutators.
type Entry struct {
	ID           uuid.UUID
	ActorID      *uuid.UUID // nil for unauthenticated actions (failed logins)
	Action       Action
	ResourceType string
	ResourceID   string
	IP           string
	UserAgent    string
	Timestamp    time.Time
}
