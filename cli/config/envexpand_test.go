package config

import "testing"

func TestExpandEnv(t *testing.T) {
	t.Setenv("HBF_DETECTOR", "tpc")
	t.Setenv("HBF_LINK", "l3")
	t.Setenv("HBF_EMPTY", "")

	tests := []struct {
		name, in, want string
	}{
		{"set", "detector: ${HBF_DETECTOR}", "detector: tpc"},
		{"unset", "detector: ${HBF_UNSET_12345}", "detector: "},
		{"fallback when unset", "detector: ${HBF_UNSET_12345:-its}", "detector: its"},
		{"fallback ignored when set", "detector: ${HBF_DETECTOR:-its}", "detector: tpc"},
		{"fallback when empty", "detector: ${HBF_EMPTY:-its}", "detector: its"},
		{"empty fallback", "detector: ${HBF_UNSET_12345:-}", "detector: "},
		{"several", "${HBF_DETECTOR}_${HBF_LINK}.ipc", "tpc_l3.ipc"},
		{"escaped", "path: $${HBF_DETECTOR}/x", "path: ${HBF_DETECTOR}/x"},
		{"bare dollar untouched", "cost: $HBF_DETECTOR $5", "cost: $HBF_DETECTOR $5"},
		{"invalid name untouched", "${1BAD}", "${1BAD}"},
		{"no refs", "plain text", "plain text"},
		{
			"yaml document",
			"links:\n  - name: ${HBF_LINK}\n    fee_id: ${HBF_FEE:-7}\n",
			"links:\n  - name: l3\n    fee_id: 7\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandEnv(tt.in); got != tt.want {
				t.Errorf("ExpandEnv(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
