package bot

import (
	"strconv"
	"strings"
	"testing"

	"bundlebot/bundle"
)

func TestStatusToggledText(t *testing.T) {
	cases := []struct {
		name string
		res  bundle.ToggleResult
		want string
	}{
		{"offline", bundle.ToggleResult{Online: false}, "Bot is now OFFLINE."},
		{"online empty queue", bundle.ToggleResult{Online: true}, "Bot is now ONLINE."},
		{"online drained", bundle.ToggleResult{Online: true, Notified: 3},
			"Bot is now ONLINE. Notified 3 users who tried when offline."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := statusToggledText(tc.res); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestQuantityTooLargeTextNamesTheLimit(t *testing.T) {
	if !strings.Contains(quantityTooLargeText, strconv.Itoa(bundle.MaxQuantity)) {
		t.Fatalf("prompt %q does not name the limit", quantityTooLargeText)
	}
}
