package logger

import (
	"encoding/json"
	"fmt"
	"strings"
)

type MaskingType string

const (
	MaskingTypeFull    MaskingType = "full"    // "***"
	MaskingTypePartial MaskingType = "partial" // "a*****z"
	MaskingTypeEmail   MaskingType = "email"   // "a***@example.com"
	MaskingTypeCard    MaskingType = "card"    // "****-****-****-1234"
)

// MaskingRule selects a field by dot path ("body.client_secret",
// "data.*.email") and the masking applied to it.
type MaskingRule struct {
	Field   string
	Type    MaskingType
	IsArray bool
}

// MaskData returns a copy of data with the rules applied. The value is run
// through JSON so struct fields are addressed by their json tags; anything
// that fails to marshal is returned untouched.
func MaskData(data any, rules []MaskingRule) any {
	if len(rules) == 0 {
		return data
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return data
	}
	var tree map[string]any
	if err := json.Unmarshal(raw, &tree); err != nil {
		return data
	}

	for _, rule := range rules {
		maskPath(tree, strings.Split(rule.Field, "."), rule.Type, rule.IsArray)
	}
	return tree
}

func maskPath(node any, path []string, maskType MaskingType, isArray bool) {
	if len(path) == 0 {
		return
	}
	head, rest := path[0], path[1:]

	switch v := node.(type) {
	case map[string]any:
		if head == "*" {
			for key := range v {
				if len(rest) == 0 {
					v[key] = maskValue(v[key], maskType)
				} else {
					maskPath(v[key], rest, maskType, isArray)
				}
			}
			return
		}
		val, ok := v[head]
		if !ok {
			return
		}
		if len(rest) == 0 {
			if arr, isArr := val.([]any); isArr && isArray {
				for i := range arr {
					arr[i] = maskValue(arr[i], maskType)
				}
				v[head] = arr
			} else {
				v[head] = maskValue(val, maskType)
			}
			return
		}
		if arr, isArr := val.([]any); isArr {
			for i := range arr {
				maskPath(arr[i], rest, maskType, isArray)
			}
		} else {
			maskPath(val, rest, maskType, isArray)
		}

	case []any:
		for i := range v {
			maskPath(v[i], path, maskType, isArray)
		}
	}
}

func maskValue(value any, maskType MaskingType) any {
	s, ok := value.(string)
	if !ok {
		s = valueToString(value)
	}
	if s == "" {
		return value
	}

	switch maskType {
	case MaskingTypePartial:
		return maskPartial(s)
	case MaskingTypeEmail:
		return maskEmail(s)
	case MaskingTypeCard:
		return maskCard(s)
	default:
		return "***"
	}
}

func maskPartial(s string) string {
	switch {
	case len(s) <= 3:
		return "***"
	case len(s) <= 6:
		return s[:1] + "***"
	default:
		return s[:1] + strings.Repeat("*", len(s)-2) + s[len(s)-1:]
	}
}

func maskEmail(email string) string {
	at := strings.Index(email, "@")
	if at < 0 {
		return "***"
	}
	local, domain := email[:at], email[at+1:]
	if len(local) <= 1 {
		return "*@" + domain
	}
	stars := len(local) - 1
	if stars < 3 {
		stars = 3
	}
	return local[:1] + strings.Repeat("*", stars) + "@" + domain
}

func maskCard(card string) string {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(card)
	if len(cleaned) < 4 {
		return "****"
	}
	return "****-****-****-" + cleaned[len(cleaned)-4:]
}

func valueToString(value any) string {
	if value == nil {
		return ""
	}
	switch v := value.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	default:
		b, _ := json.Marshal(value)
		return string(b)
	}
}
