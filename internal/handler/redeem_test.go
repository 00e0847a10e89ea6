package handler

import "testing"

func TestParseCommand(t *testing.T) {
	cases := []struct {
		content string
		kind    commandKind
		code    string
	}{
		{"activate abc-123", cmdActivate, "abc-123"},
		{"ACTIVATE abc-123", cmdActivate, "abc-123"},
		{"aktivasi abc-123", cmdActivate, "abc-123"},
		{"  activate   abc-123  ", cmdActivate, "abc-123"},
		{"activate", cmdUnknown, ""},
		{"check membership", cmdCheck, ""},
		{"cek membership", cmdCheck, ""},
		{"CEK EXPIRY", cmdCheck, ""},
		{"check expiry", cmdCheck, ""},
		{"check balance", cmdUnknown, ""},
		{"hello there", cmdUnknown, ""},
		{"", cmdUnknown, ""},
	}
	for _, tc := range cases {
		kind, code := parseCommand(tc.content)
		if kind != tc.kind || code != tc.code {
			t.Errorf("parseCommand(%q) = (%v, %q), want (%v, %q)",
				tc.content, kind, code, tc.kind, tc.code)
		}
	}
}
