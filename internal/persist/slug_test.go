package persist

import (
	"strings"
	"testing"
)

func TestValidateSlug(t *testing.T) {
	cases := []struct {
		slug   string
		wantOK bool
	}{
		{"my-page-2", true},
		{"abc", true},
		{"thank-you", true},
		{strings.Repeat("a", 50), true},
		{"", false},
		{"ab", false},
		{"My Page!", false},
		{"UPPER", false},
		{"with_underscore", false},
		{"héllo-page", false},
		{strings.Repeat("a", 51), false},
	}
	for _, tc := range cases {
		err := ValidateSlug(tc.slug)
		if tc.wantOK && err != nil {
			t.Fatalf("ValidateSlug(%q) = %v, want nil", tc.slug, err)
		}
		if !tc.wantOK && err == nil {
			t.Fatalf("ValidateSlug(%q) = nil, want error", tc.slug)
		}
	}
}
