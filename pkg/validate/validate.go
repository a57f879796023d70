package validate

import "github.com/go-playground/validator/v10"

var v = validator.New()

// IsEmail reports whether s is a syntactically valid email address. Used to
// decide whether a login identifier is looked up by email or username.
func IsEmail(s string) bool {
	return v.Var(s, "email") == nil
}
