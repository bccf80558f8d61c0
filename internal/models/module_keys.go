package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// ModuleKeys stores an ordered list of add-on module keys as a JSON array.
type ModuleKeys []string

// Value implements driver.Valuer for database serialization.
func (keys ModuleKeys) Value() (driver.Value, error) {
	data, errMarshal := json.Marshal([]string(keys.Clean()))
	if errMarshal != nil {
		return nil, fmt.Errorf("module keys marshal: %w", errMarshal)
	}
	return string(data), nil
}

// Scan implements sql.Scanner for database deserialization.
func (keys *ModuleKeys) Scan(value any) error {
	if keys == nil {
		return fmt.Errorf("module keys scan: nil receiver")
	}
	if value == nil {
		*keys = ModuleKeys{}
		return nil
	}
	switch typed := value.(type) {
	case []byte:
		return parseModuleKeys(keys, typed)
	case string:
		return parseModuleKeys(keys, []byte(typed))
	default:
		return fmt.Errorf("module keys scan: unsupported type %T", value)
	}
}

func parseModuleKeys(target *ModuleKeys, data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*target = ModuleKeys{}
		return nil
	}
	var list []string
	if errList := json.Unmarshal([]byte(trimmed), &list); errList == nil {
		*target = ModuleKeys(list).Clean()
		return nil
	}
	// Legacy rows store a comma separated string.
	*target = ParseModuleKeys(trimmed)
	return nil
}

// Clean trims entries and removes empty or duplicated keys, preserving order.
func (keys ModuleKeys) Clean() ModuleKeys {
	out := make(ModuleKeys, 0, len(keys))
	seen := make(map[string]struct{}, len(keys))
	for _, key := range keys {
		trimmed := strings.TrimSpace(key)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// Contains reports whether key is present in the list.
func (keys ModuleKeys) Contains(key string) bool {
	key = strings.TrimSpace(key)
	for _, k := range keys {
		if k == key {
			return true
		}
	}
	return false
}

// CSV renders the keys as a comma separated string.
func (keys ModuleKeys) CSV() string {
	return strings.Join(keys.Clean(), ",")
}

// ParseModuleKeys splits a comma separated module list.
func ParseModuleKeys(csv string) ModuleKeys {
	if strings.TrimSpace(csv) == "" {
		return ModuleKeys{}
	}
	return ModuleKeys(strings.Split(csv, ",")).Clean()
}
