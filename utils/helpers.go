package utils

// IsValidAttributeKey reports whether a segment attribute key is a plain
// identifier: letters, digits and underscores, starting with a letter or
// underscore. Attribute keys are open-ended (new keys may appear in the
// data), so this is the only validation applied.
func IsValidAttributeKey(key string) bool {
	if key == "" {
		return false
	}
	for i, r := range key {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
