package format

import (
	"testing"
	"time"
)

func TestUnixMilliZero(t *testing.T) {
	result := UnixMilli(0, "Never", false)
	if result != "Never" {
		t.Errorf("expected zero time to return zero message; got %q", result)
	}
}

func TestDuration(t *testing.T) {
	now := time.Now()

	tests := map[string]struct {
		start    uint64
		end      uint64
		expected string
	}{
		"not_started": {start: 0, end: 0, expected: "0s"},
		"finished":    {start: uint64(now.UnixMilli()), end: uint64(now.Add(time.Second * 90).UnixMilli()), expected: "1m30s"},
		"sub_second":  {start: uint64(now.UnixMilli()), end: uint64(now.Add(time.Millisecond * 420).UnixMilli()), expected: "420ms"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			result := Duration(test.start, test.end)
			if result != test.expected {
				t.Errorf("incorrect duration; want %s got %s", test.expected, result)
			}
		})
	}
}

func TestNormalizeEnumValue(t *testing.T) {
	tests := map[string]struct {
		value    string
		expected string
	}{
		"single_word":  {value: "RUNNING", expected: "Running"},
		"mixed_casing": {value: "cOmPlEtE", expected: "Complete"},
		"empty":        {value: "", expected: "Unknown"},
		"unknown":      {value: "UNKNOWN", expected: "Unknown"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			result := NormalizeEnumValue(test.value, "Unknown")
			if result != test.expected {
				t.Errorf("incorrect normalized value; want %s got %s", test.expected, result)
			}
		})
	}
}
