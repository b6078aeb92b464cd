package privacy

// Log output must never leak who is talking to whom. Identifiers are masked
// down to a recognizable tail so an operator can still correlate log lines
// for one user or endpoint without seeing the full value.

const (
	visibleTail = 4
	maskRune    = '*'
)

// MaskUserID keeps the last few characters of a user identifier.
func MaskUserID(userID string) string {
	return maskString(userID, visibleTail)
}

// MaskRoomID keeps the last few characters of a room identifier.
func MaskRoomID(roomID string) string {
	return maskString(roomID, visibleTail)
}

// MaskEndpoint shortens a push endpoint URL to its tail. Push endpoints embed
// per-subscription capability tokens and must not appear whole in logs.
func MaskEndpoint(endpoint string) string {
	if len(endpoint) <= 16 {
		return maskString(endpoint, visibleTail)
	}
	return "..." + endpoint[len(endpoint)-12:]
}

// MaskSensitiveFields returns a copy of the fields map with known sensitive
// keys masked. Unknown keys pass through untouched.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		str, ok := value.(string)
		if !ok {
			masked[key] = value
			continue
		}
		switch key {
		case "user_id", "author_id":
			masked[key] = MaskUserID(str)
		case "room", "room_id":
			masked[key] = MaskRoomID(str)
		case "endpoint":
			masked[key] = MaskEndpoint(str)
		case "body":
			masked[key] = "***"
		default:
			masked[key] = value
		}
	}
	return masked
}

func maskString(s string, tail int) string {
	if s == "" {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= tail {
		return repeat(maskRune, len(runes))
	}
	return repeat(maskRune, len(runes)-tail) + string(runes[len(runes)-tail:])
}

func repeat(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}
