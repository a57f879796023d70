package authcode

import "time"

// Lifetime is how long an issued authorization code remains redeemable.
const Lifetime = 5 * time.Minute

// AuthorizationCode is the one-shot record binding an issued code to the
// client, user and PKCE material of the authorization request. The code
// value itself is the document id, so a single FindOneAndDelete both looks
// it up and burns it.
type AuthorizationCode struct {
	Code                string    `json:"code" bson:"_id"`
	ClientID            string    `json:"clientId" bson:"client_id"`
	RedirectURI         string    `json:"redirectUri" bson:"redirect_uri"`
	UserID              string    `json:"userId" bson:"user_id"`
	Scope               string    `json:"scope" bson:"scope"`
	State               string    `json:"state,omitempty" bson:"state,omitempty"`
	CodeChallenge       string    `json:"codeChallenge,omitempty" bson:"code_challenge,omitempty"`
	CodeChallengeMethod string    `json:"codeChallengeMethod,omitempty" bson:"code_challenge_method,omitempty"`
	CreatedAt           time.Time `json:"createdAt" bson:"created_at"`
	ExpiresAt           time.Time `json:"expiresAt" bson:"expires_at"`
}

func (a *AuthorizationCode) Expired(now time.Time) bool {
	return now.After(a.ExpiresAt)
}

// IssueParams carries everything the authorization endpoint binds into a
// new code.
type IssueParams struct {
	ClientID            string
	RedirectURI         string
	UserID              string
	Scope               string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
}
