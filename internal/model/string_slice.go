package model

import (
	"database/sql/driver"
	"fmt"
	"strings"
)

// StringSlice stores a []string in a single text column. Elements are
// wrapped in commas (",a,b,") so a single element can be matched with
// LIKE '%,a,%'. No element may contain a comma.
type StringSlice []string

// Value implements the driver.Valuer interface.
func (s StringSlice) Value() (driver.Value, error) {
	if len(s) == 0 {
		return "", nil
	}

	for _, v := range s {
		if strings.Contains(v, ",") {
			return "", fmt.Errorf("unsafe string, %s", v)
		}
	}

	return "," + strings.Join(s, ",") + ",", nil
}

// Scan implements the sql.Scanner interface.
func (s *StringSlice) Scan(value any) error {
	if value == nil {
		*s = StringSlice{}
		return nil
	}

	str, ok := value.(string)
	if !ok {
		b, ok := value.([]byte)
		if !ok {
			return fmt.Errorf("failed to scan StringSlice, %v", value)
		}

		str = string(b)
	}

	str = strings.TrimPrefix(strings.TrimSuffix(str, ","), ",")
	if str == "" {
		*s = StringSlice{}
	} else {
		*s = strings.Split(str, ",")
	}

	return nil
}

// ContainsPattern returns a LIKE pattern matching rows whose slice contains
// tag. The caller is responsible for escaping LIKE metacharacters in tag.
func ContainsPattern(tag string) string {
	return "%," + tag + ",%"
}
