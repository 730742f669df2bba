package at_test

import (
	"testing"

	"i4.energy/across/espgw/at"
)

func TestResponses(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		expected     at.Status
		wantConsumed int
	}{
		{name: "OK response", input: "OK", expected: at.StatusOK, wantConsumed: 2},
		{name: "Ready after reset", input: "ready", expected: at.StatusReady, wantConsumed: 5},
		{name: "Join failure", input: "FAIL", expected: at.StatusFail, wantConsumed: 4},
		{name: "Mode unchanged", input: "no change", expected: at.StatusNoChange, wantConsumed: 9},
		{name: "Connection linked", input: "Linked", expected: at.StatusLinked, wantConsumed: 6},
		{name: "Connection unlinked", input: "Unlink", expected: at.StatusUnlink, wantConsumed: 6},
		{name: "Leading garbage", input: "garbageOK", expected: at.StatusOK, wantConsumed: 9},
		{name: "Echoed command before OK", input: "AT+CWMODE=1\r\r\n\r\nOK\r\n", expected: at.StatusOK, wantConsumed: 18},
		{name: "Boot log before ready", input: "\x00\xfe ets Jan  8 2013,rst cause:2\r\nready\r\n", expected: at.StatusReady, wantConsumed: 37},
		{name: "First complete literal wins", input: "UnlinkOK", expected: at.StatusUnlink, wantConsumed: 6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, consumed := feed(at.Responses, tt.input)
			if got := at.StatusOf(idx); got != tt.expected {
				t.Errorf("expected %v, got %v for input %q", tt.expected, got, tt.input)
			}
			if consumed != tt.wantConsumed {
				t.Errorf("expected %d bytes consumed, got %d", tt.wantConsumed, consumed)
			}
		})
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status   at.Status
		expected string
	}{
		{at.StatusOK, "OK"},
		{at.StatusReady, "ready"},
		{at.StatusFail, "FAIL"},
		{at.StatusNoChange, "no change"},
		{at.StatusLinked, "Linked"},
		{at.StatusUnlink, "Unlink"},
		{at.StatusUnknown, "unknown"},
	}

	for _, tt := range tests {
		if got := tt.status.String(); got != tt.expected {
			t.Errorf("Status(%d).String() = %q, expected %q", tt.status, got, tt.expected)
		}
	}

	if at.StatusOf(-1) != at.StatusUnknown || at.StatusOf(42) != at.StatusUnknown {
		t.Error("out of range index should map to StatusUnknown")
	}
}
