package update

import (
	"strings"
	"testing"
)

func TestNormalizeVersion(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{"v0.2.5", "0.2.5", true},
		{"0.2.5", "0.2.5", true},
		{"v1.0.0", "1.0.0", true},
		{"1.0.0", "1.0.0", true},
		{"v10.20.30", "10.20.30", true},
		{"v0.1", "0.1", true},
		{"1.2", "1.2", true},
		{"v0.2.5-rc1", "0.2.5-rc1", true},
		{"v1.0.0+build123", "1.0.0+build123", true},

		{"dev", "", false},
		{"0.0.0-dev", "", false},
		{"", "", false},
		{"   ", "", false},
		{"v", "", false},
		{"vx.y.z", "", false},
		{"not-a-version", "", false},
		{"1", "", false},
		{"v1", "", false},
		{"abc.def.ghi", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := NormalizeVersion(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("NormalizeVersion(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Fatalf("NormalizeVersion(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestCompareSemver(t *testing.T) {
	tests := []struct {
		a       string
		b       string
		want    int
		wantErr bool
	}{
		{"0.2.5", "0.2.5", 0, false},
		{"1.0.0", "1.0.0", 0, false},
		{"10.20.30", "10.20.30", 0, false},

		{"0.2.4", "0.2.5", -1, false},
		{"0.2.5", "0.3.0", -1, false},
		{"0.2.5", "1.0.0", -1, false},
		{"1.0.0", "1.0.1", -1, false},
		{"1.0.0", "1.1.0", -1, false},
		{"1.0.0", "2.0.0", -1, false},

		{"0.2.5", "0.2.4", 1, false},
		{"0.3.0", "0.2.5", 1, false},
		{"1.0.0", "0.2.5", 1, false},
		{"1.0.1", "1.0.0", 1, false},
		{"1.1.0", "1.0.0", 1, false},
		{"2.0.0", "1.0.0", 1, false},

		{"1.0", "1.0.0", 0, false},
		{"1.0", "1.0.1", -1, false},
		{"1.1", "1.0.0", 1, false},

		{"0.2.5-rc1", "0.2.5", -1, false},
		{"0.2.5", "0.2.5-beta", 1, false},
		{"0.2.5-rc1", "0.2.5-rc2", -1, false},
		{"0.2.5-rc.10", "0.2.5-rc.2", 1, false},

		{"invalid", "0.2.5", 0, true},
		{"0.2.5", "invalid", 0, true},
		{"1", "1.0.0", 0, true},
	}

	for _, tt := range tests {
		name := tt.a + "_vs_" + tt.b
		t.Run(name, func(t *testing.T) {
			got, err := CompareSemver(tt.a, tt.b)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("CompareSemver(%q, %q) expected error, got nil", tt.a, tt.b)
				}
				return
			}
			if err != nil {
				t.Fatalf("CompareSemver(%q, %q) unexpected error: %v", tt.a, tt.b, err)
			}
			if got != tt.want {
				t.Fatalf("CompareSemver(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestIsBelowMinimum(t *testing.T) {
	tests := []struct {
		current string
		minimum string
		want    bool
	}{
		{"1.9.0", "2.0.0", true},
		{"2.0.0", "2.0.0", false},
		{"2.1.0", "2.0.0", false},
		{"1.9.0", "", false},
		{"dev", "2.0.0", false},
		{"1.9.0", "garbage", false},
	}

	for _, tt := range tests {
		t.Run(tt.current+"_min_"+tt.minimum, func(t *testing.T) {
			if got := IsBelowMinimum(tt.current, tt.minimum); got != tt.want {
				t.Fatalf("IsBelowMinimum(%q, %q) = %v, want %v", tt.current, tt.minimum, got, tt.want)
			}
		})
	}
}

func TestDecide(t *testing.T) {
	tests := []struct {
		name           string
		current        string
		target         string
		minimum        string
		explicitTarget bool
		force          bool
		wantDec        Decision
	}{
		{"same version skips", "0.2.5", "v0.2.5", "", false, false, DecisionSkip},
		{"same version with force reinstalls", "0.2.5", "v0.2.5", "", false, true, DecisionReinstall},

		{"upgrade available proceeds", "0.2.4", "v0.2.5", "", false, false, DecisionProceed},
		{"major upgrade refused without force", "0.2.5", "v1.0.0", "", false, false, DecisionRefuse},
		{"major upgrade allowed with force", "0.2.5", "v1.0.0", "", false, true, DecisionProceed},

		{"below minimum is mandatory", "1.9.0", "v2.0.0", "2.0.0", false, false, DecisionMandatory},
		{"mandatory overrides cross-major refusal", "1.9.0", "v2.0.0", "2.0.0", false, false, DecisionMandatory},
		{"at minimum follows normal path", "2.0.0", "v2.0.0", "2.0.0", false, false, DecisionSkip},

		{"downgrade when pinned", "0.2.5", "v0.2.3", "", true, false, DecisionDowngrade},
		{"downgrade without pin skips", "0.2.5", "v0.2.3", "", false, false, DecisionSkip},
		{"major downgrade refused without force", "1.0.0", "v0.2.5", "", true, false, DecisionRefuse},
		{"major downgrade allowed with force", "1.0.0", "v0.2.5", "", true, true, DecisionDowngrade},

		{"nothing installed is fresh install", "", "v0.2.5", "", false, false, DecisionInstall},
		{"dev build proceeds", "dev", "v0.2.5", "", false, false, DecisionProceed},

		{"unparseable target proceeds with warning", "0.2.5", "not-a-version", "", false, false, DecisionProceed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec, msg := Decide(tt.current, tt.target, tt.minimum, tt.explicitTarget, tt.force)
			if dec != tt.wantDec {
				t.Fatalf("decision = %v, want %v (msg: %s)", dec, tt.wantDec, msg)
			}
			if msg == "" {
				t.Fatal("message should not be empty")
			}
		})
	}
}

func TestFormatVersionDisplay(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0.2.5", "v0.2.5"},
		{"v0.2.5", "v0.2.5"},
		{"dev", "dev"},
		{"", ""},
		{"0.0.0-dev", "0.0.0-dev"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := FormatVersionDisplay(tt.input)
			if got != tt.want {
				t.Fatalf("FormatVersionDisplay(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDescribeDecision(t *testing.T) {
	tests := []struct {
		decision     Decision
		wantContains string
	}{
		{DecisionSkip, "latest"},
		{DecisionRefuse, "refused"},
		{DecisionProceed, "available"},
		{DecisionMandatory, "mandatory"},
		{DecisionReinstall, "reinstall"},
		{DecisionDowngrade, "downgrade"},
		{DecisionInstall, "install"},
	}

	for _, tt := range tests {
		t.Run(string(tt.decision), func(t *testing.T) {
			got := DescribeDecision(tt.decision)
			if !strings.Contains(strings.ToLower(got), strings.ToLower(tt.wantContains)) {
				t.Fatalf("DescribeDecision(%v) = %q, want to contain %q", tt.decision, got, tt.wantContains)
			}
		})
	}
}
