package credentials

import "time"

// Persisted keys. The Store prefixes each of these with its namespace.
const (
	KeyToken        = "TOKEN"
	KeyRefreshToken = "REFRESH_TOKEN"
	KeyUserData     = "USER_DATA"
	KeySessionID    = "SESSION_ID"
	KeyLastActivity = "LAST_ACTIVITY"
)

// legacyKeys come from the unscoped storage scheme used before namespacing
// and are only ever deleted.
var legacyKeys = []string{"token", "user"}

var ownedKeys = []string{KeyToken, KeyRefreshToken, KeyUserData, KeySessionID, KeyLastActivity}

// UserData is the user payload saved at login. It is trusted as supplied
// and never verified.
type UserData struct {
	Email     string `json:"email"`
	LoginTime int64  `json:"loginTime"` // epoch milliseconds
}

// Record is a point-in-time view of everything the Store holds.
type Record struct {
	AccessToken  string
	RefreshToken string
	User         *UserData
	SessionID    string
	LastActivity time.Time
}

// Complete reports whether the record carries enough to attempt
// authenticated calls.
func (r Record) Complete() bool {
	return r.AccessToken != "" && !r.LastActivity.IsZero()
}
