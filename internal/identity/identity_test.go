package identity

import "testing"

func TestNaturalKey(t *testing.T) {
	tests := []struct {
		name string
		code string
		date string
		want string
	}{
		{"plain", "GIAPA1", "2026-02-04", "GIAPA1|2026-02-04"},
		{"trims whitespace", " GIAPA1 ", " 2026-02-04", "GIAPA1|2026-02-04"},
		{"strips separator", "GIA|PA1", "2026-02-04", "GIAPA1|2026-02-04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NaturalKey(tt.code, tt.date); got != tt.want {
				t.Errorf("NaturalKey(%q, %q) = %q, want %q", tt.code, tt.date, got, tt.want)
			}
		})
	}
}

func TestDeriveID_Stable(t *testing.T) {
	a := DeriveID("GIAPA1", "2026-02-04")
	b := DeriveID("GIAPA1", "2026-02-04")
	if a != b {
		t.Errorf("DeriveID not stable: %q vs %q", a, b)
	}
	if a == "" {
		t.Fatal("DeriveID returned empty id")
	}
}

func TestDeriveID_DistinctPairs(t *testing.T) {
	ids := map[string]string{}
	pairs := [][2]string{
		{"GIAPA1", "2026-02-04"},
		{"GIAPA1", "2026-02-05"},
		{"GIAPA2", "2026-02-04"},
		{"GIAPA", "12026-02-04"}, // would collide under naive concatenation
	}
	for _, p := range pairs {
		id := DeriveID(p[0], p[1])
		if prev, ok := ids[id]; ok {
			t.Errorf("id collision between %q and (%q,%q)", prev, p[0], p[1])
		}
		ids[id] = p[0] + "/" + p[1]
	}
}

func TestComplete(t *testing.T) {
	tests := []struct {
		code string
		date string
		want bool
	}{
		{"GIAPA1", "2026-02-04", true},
		{"", "2026-02-04", false},
		{"GIAPA1", "", false},
		{"", "", false},
		{"  ", "2026-02-04", false},
		{"|", "2026-02-04", false},
	}
	for _, tt := range tests {
		if got := Complete(tt.code, tt.date); got != tt.want {
			t.Errorf("Complete(%q, %q) = %v, want %v", tt.code, tt.date, got, tt.want)
		}
	}
}
