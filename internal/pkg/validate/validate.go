package validate

import "strings"

func Required(value string) bool {
	return strings.TrimSpace(value) != ""
}

func AllRequired(values ...string) bool {
	for _, v := range values {
		if !Required(v) {
			return false
		}
	}
	return true
}
