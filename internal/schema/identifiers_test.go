package schema

import "testing"

func TestHandleValid(t *testing.T) {
	cases := []struct {
		handle string
		valid  bool
	}{
		{"alice.roomy.space", true},
		{"a.b", true},
		{"no-dots", false},
		{"UPPER.case", false},
		{".leadingdot.com", false},
		{"", false},
	}
	for _, tc := range cases {
		got := Handle(tc.handle).Valid()
		if got != tc.valid {
			t.Errorf("Handle(%q).Valid() = %v, want %v", tc.handle, got, tc.valid)
		}
	}
}
