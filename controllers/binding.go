package controllers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

const dateLayout = "2006-01-02"

// flexibleID accepts an id sent either as a JSON string or a number
type flexibleID string

func (f *flexibleID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexibleID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or a number")
	}
	*f = flexibleID(n.String())
	return nil
}

func (f *flexibleID) ptr() *string {
	if f == nil || *f == "" {
		return nil
	}
	s := string(*f)
	return &s
}

// parseDate reads an optional YYYY-MM-DD value
func parseDate(value *string) (*time.Time, error) {
	if value == nil || strings.TrimSpace(*value) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*value))
	if err != nil {
		return nil, fmt.Errorf("must be a date in YYYY-MM-DD format")
	}
	return &t, nil
}

func parseUintParam(value string) (uint, bool) {
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}
