package domain

import "strconv"

// Identity is the user resolved from a verified credential.
type Identity struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
}

// Correlation scopes agent memory for one top-level request. Every agent
// call made on behalf of that request carries the same pair.
type Correlation struct {
	SessionID string
	UserID    string
}

// NewCorrelation binds a session to the authenticated identity. The user id
// never comes from the request body.
func NewCorrelation(sessionID string, id Identity) Correlation {
	return Correlation{
		SessionID: sessionID,
		UserID:    strconv.FormatInt(id.UserID, 10),
	}
}
