package util

import "testing"

func TestSanitizeText(t *testing.T) {
	cases := map[string]struct {
		in, want string
	}{
		"nul and controls": {in: "ab\x00cd\x01\x02\n\txy", want: "abcd\n\txy"},
		"line endings":     {in: "a\r\nb\rc", want: "a\nb\nc"},
		"french spaces":    {in: "1\u202f234\u00a0567 \u20ac", want: "1 234 567 \u20ac"},
		"ligatures":        {in: "\ufb01nancement pro\ufb01t", want: "financement profit"},
		"soft hyphen":      {in: "exer\u00adcice", want: "exercice"},
		"blank":            {in: " \x00 \n", want: ""},
	}
	for name, tc := range cases {
		if got := SanitizeText(tc.in); got != tc.want {
			t.Fatalf("%s: got %q want %q", name, got, tc.want)
		}
	}
}
