package judge

import "testing"

func TestLanguageID(t *testing.T) {
	cases := []struct {
		language string
		wantID   int
		wantOK   bool
	}{
		{"cpp", 54, true},
		{"c++", 54, true},
		{"CPP", 54, true},
		{"java", 62, true},
		{"Java", 62, true},
		{"javascript", 63, true},
		{"js", 63, true},
		{" javascript ", 63, true},
		{"python", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		id, ok := LanguageID(tc.language)
		if id != tc.wantID || ok != tc.wantOK {
			t.Fatalf("LanguageID(%q) = (%d, %v), want (%d, %v)",
				tc.language, id, ok, tc.wantID, tc.wantOK)
		}
	}
}
