package common

import "strconv"

// GetUserFromArgs extracts the invoking chat user from tool arguments.
// Tool schemas declare "user" as a string, but lenient clients may send
// a JSON number, so both forms are accepted. Zero and malformed values
// are rejected.
func GetUserFromArgs(args map[string]interface{}) (int64, bool) {
	switch v := args["user"].(type) {
	case string:
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id == 0 {
			return 0, false
		}
		return id, true
	case float64:
		if v == 0 {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}
