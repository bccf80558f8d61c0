package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// String returns the platform string for key, or def when absent or malformed.
func String(ctx context.Context, p Provider, key, def string) string {
	if p == nil {
		return def
	}
	raw, ok := p.AdminValue(ctx, key)
	if !ok {
		return def
	}
	if parsed, okParse := ParseString(raw); okParse && parsed != "" {
		return parsed
	}
	return def
}

// Int returns the platform non-negative integer for key, or def.
func Int(ctx context.Context, p Provider, key string, def int) int {
	if p == nil {
		return def
	}
	raw, ok := p.AdminValue(ctx, key)
	if !ok {
		return def
	}
	if parsed, okParse := ParseNonNegativeInt(raw); okParse {
		return parsed
	}
	return def
}

// Bool returns the platform boolean for key, or def.
func Bool(ctx context.Context, p Provider, key string, def bool) bool {
	if p == nil {
		return def
	}
	raw, ok := p.AdminValue(ctx, key)
	if !ok {
		return def
	}
	if parsed, okParse := ParseBool(raw); okParse {
		return parsed
	}
	return def
}

// CompanyString returns the tenant string for key, falling back to the platform value and then def.
func CompanyString(ctx context.Context, p Provider, tenantID uint64, key, def string) string {
	if p == nil {
		return def
	}
	raw, ok := p.CompanyValue(ctx, tenantID, key)
	if !ok {
		return def
	}
	if parsed, okParse := ParseString(raw); okParse && parsed != "" {
		return parsed
	}
	return def
}

// ParseBool accepts JSON booleans, 0/1 numbers and common string spellings.
func ParseBool(raw json.RawMessage) (bool, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, false
	}
	var parsedBool bool
	if errUnmarshalBool := json.Unmarshal(raw, &parsedBool); errUnmarshalBool == nil {
		return parsedBool, true
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		switch strings.ToLower(strings.TrimSpace(parsedString)) {
		case "1", "true", "yes", "y", "on":
			return true, true
		case "0", "false", "no", "n", "off":
			return false, true
		default:
			return false, false
		}
	}
	var parsedFloat float64
	if errUnmarshalFloat := json.Unmarshal(raw, &parsedFloat); errUnmarshalFloat == nil {
		if math.IsNaN(parsedFloat) || math.IsInf(parsedFloat, 0) {
			return false, false
		}
		if parsedFloat == 1 {
			return true, true
		}
		if parsedFloat == 0 {
			return false, true
		}
	}
	return false, false
}

// ParseString accepts a JSON string value.
func ParseString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return "", false
	}
	var parsedString string
	if errUnmarshal := json.Unmarshal(raw, &parsedString); errUnmarshal == nil {
		return strings.TrimSpace(parsedString), true
	}
	return "", false
}

// ParseNonNegativeInt accepts JSON integers, integral floats and numeric strings.
func ParseNonNegativeInt(raw json.RawMessage) (int, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var parsedInt int
	if errUnmarshalInt := json.Unmarshal(raw, &parsedInt); errUnmarshalInt == nil {
		return parsedInt, parsedInt >= 0
	}
	var parsedString string
	if errUnmarshalString := json.Unmarshal(raw, &parsedString); errUnmarshalString == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(parsedString))
		if errParse != nil {
			return 0, false
		}
		return parsed, parsed >= 0
	}
	var parsedFloat float64
	if errUnmarshalFloat := json.Unmarshal(raw, &parsedFloat); errUnmarshalFloat == nil {
		if math.IsNaN(parsedFloat) || math.IsInf(parsedFloat, 0) {
			return 0, false
		}
		if parsedFloat < 0 || parsedFloat != math.Trunc(parsedFloat) {
			return 0, false
		}
		return int(parsedFloat), true
	}
	return 0, false
}
