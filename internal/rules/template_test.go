package rules

import "testing"

func TestExpand(t *testing.T) {
	groups := []string{"full", "one", "two"}

	tests := []struct {
		name     string
		template string
		want     string
	}{
		{"no backrefs", `device="kitchen"`, `device="kitchen"`},
		{"single group", `device="\1"`, `device="one"`},
		{"two groups", `\1-\2`, `one-two`},
		{"full match", `\0`, `full`},
		{"out of range", `\1/\5`, `one/`},
		{"escaped backslash", `a\\1`, `a\1`},
		{"trailing backslash", `abc\`, `abc\`},
		{"non numeric escape", `a\nb`, `a\nb`},
		{"multi digit out of range", `\12`, ``},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expand(tt.template, groups); got != tt.want {
				t.Errorf("Expand(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestExpandIdempotentWithoutBackrefs(t *testing.T) {
	templates := []string{"", "plain", `room="hall",floor="2"`, "12.5"}
	for _, tmpl := range templates {
		if got := Expand(tmpl, nil); got != tmpl {
			t.Errorf("Expand(%q, nil) = %q, want unchanged", tmpl, got)
		}
	}
}

func TestExpandNilGroups(t *testing.T) {
	if got := Expand(`\1`, nil); got != "" {
		t.Errorf("Expand with nil groups = %q, want empty", got)
	}
}
