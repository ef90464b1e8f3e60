package utils

import "testing"

func TestDeviceType(t *testing.T) {
	t.Parallel()

	cases := []struct {
		width int
		want  string
	}{
		{320, "mobile"},
		{767, "mobile"},
		{768, "tablet"},
		{1023, "tablet"},
		{1024, "desktop"},
		{1920, "desktop"},
	}
	for _, tc := range cases {
		if got := DeviceType(tc.width); got != tc.want {
			t.Errorf("DeviceType(%d) = %q, want %q", tc.width, got, tc.want)
		}
	}
}

func TestScrollPercent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name         string
		scrollTop    float64
		windowHeight float64
		docHeight    float64
		want         int
	}{
		{"top of a long page", 0, 800, 2400, 0},
		{"halfway", 800, 800, 2400, 50},
		{"bottom", 1600, 800, 2400, 100},
		{"rounding", 500, 800, 2400, 31},
		{"document fits the viewport", 0, 800, 800, 0},
		{"document shorter than viewport", 100, 800, 600, 0},
		{"overscroll clamps to 100", 1700, 800, 2400, 100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ScrollPercent(tc.scrollTop, tc.windowHeight, tc.docHeight); got != tc.want {
				t.Errorf("ScrollPercent(%v, %v, %v) = %d, want %d",
					tc.scrollTop, tc.windowHeight, tc.docHeight, got, tc.want)
			}
		})
	}
}
