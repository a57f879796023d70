package client

import (
	"crypto/subtle"
	"time"
)

// Source tells the protocol layer where a client record came from. Bootstrap
// clients are synthesized from environment configuration for first-run setups
// and are validated more loosely than registered ones.
type Source string

const (
	SourceRegistered Source = "registered"
	SourceBootstrap  Source = "bootstrap"
)

type Client struct {
	ClientID     string    `json:"clientId" bson:"client_id" validate:"required"`
	ClientSecret string    `json:"clientSecret,omitempty" bson:"client_secret" validate:"required"`
	Name         string    `json:"name" bson:"name"`
	RedirectURIs []string  `json:"redirectUris" bson:"redirect_uris" validate:"required,min=1,dive,uri"`
	GrantTypes   []string  `json:"grantTypes" bson:"grant_types"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" bson:"updated_at"`
}

// AllowsRedirect reports whether uri exactly matches a registered redirect
// URI. No prefix or wildcard matching.
func (c *Client) AllowsRedirect(uri string) bool {
	for _, registered := range c.RedirectURIs {
		if registered == uri {
			return true
		}
	}
	return false
}

// AllowsAuthorizationCode reports whether the client may use the
// authorization_code grant. An empty grant list permits it.
func (c *Client) AllowsAuthorizationCode() bool {
	if len(c.GrantTypes) == 0 {
		return true
	}
	for _, g := range c.GrantTypes {
		if g == "authorization_code" {
			return true
		}
	}
	return false
}

// SecretMatches compares the presented secret in constant time.
func (c *Client) SecretMatches(secret string) bool {
	return subtle.ConstantTimeCompare([]byte(c.ClientSecret), []byte(secret)) == 1
}
