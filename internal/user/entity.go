package user

import (
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Profile is the identity record token claims are derived from. Passwords
// are bcrypt hashes and are projected out of every read except the login
// lookup.
type Profile struct {
	ID            string    `json:"id" bson:"_id"`
	Username      string    `json:"username" bson:"username"`
	Email         string    `json:"email" bson:"email"`
	Password      string    `json:"-" bson:"password,omitempty"`
	Name          string    `json:"name,omitempty" bson:"name,omitempty"`
	FirstName     string    `json:"firstName,omitempty" bson:"first_name,omitempty"`
	LastName      string    `json:"lastName,omitempty" bson:"last_name,omitempty"`
	EmailVerified bool      `json:"emailVerified" bson:"email_verified"`
	Role          string    `json:"role" bson:"role"`
	CreatedAt     time.Time `json:"createdAt" bson:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" bson:"updated_at"`
}

// DisplayName prefers the stored full name, then first+last, then username.
func (p *Profile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	full := strings.TrimSpace(p.FirstName + " " + p.LastName)
	if full != "" {
		return full
	}
	return p.Username
}

func (p *Profile) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(p.Password), []byte(plain)) == nil
}
