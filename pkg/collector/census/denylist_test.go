package census

import "testing"

func TestDenylist_Denied(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		image    string
		want     bool
	}{
		{"exact match", DefaultDenylist, "containrrr/watchtower", true},
		{"exact match with tag", DefaultDenylist, "containrrr/watchtower:latest", true},
		{"fully qualified counted", DefaultDenylist, "docker.io/containrrr/watchtower", false},
		{"index domain counted", DefaultDenylist, "index.docker.io/containrrr/watchtower:latest", false},
		{"other tag not denied", DefaultDenylist, "containrrr/watchtower:1.5.3", false},
		{"other image", DefaultDenylist, "runonflux/website:latest", false},
		{"library short name", []string{"nginx"}, "docker.io/library/nginx", false},
		{"prefix wildcard", []string{"runonflux/*"}, "runonflux/kadena:latest", true},
		{"prefix wildcard miss", []string{"runonflux/*"}, "library/runonflux", false},
		{"suffix wildcard", []string{"*:dev"}, "someone/app:dev", true},
		{"contains wildcard", []string{"*miner*"}, "evil/cpuminer-opt:latest", true},
		{"no patterns", nil, "containrrr/watchtower", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDenylist(tt.patterns)
			if got := d.Denied(tt.image); got != tt.want {
				t.Errorf("Denied(%q) = %v, want %v", tt.image, got, tt.want)
			}
		})
	}
}

func TestDenylist_Nil(t *testing.T) {
	var d *Denylist
	if d.Denied("containrrr/watchtower") {
		t.Error("nil denylist should not deny")
	}
}

func TestDenylist_PatternsCopied(t *testing.T) {
	in := []string{"a", "b*"}
	d := NewDenylist(in)
	in[0] = "changed"
	in[1] = "c*"

	if !d.Denied("a") {
		t.Error("Denied(a) = false after caller mutated input")
	}
	if !d.Denied("b1") {
		t.Error("Denied(b1) = false after caller mutated input")
	}
}
