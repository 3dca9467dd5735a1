package core

import "testing"

func TestRenderName(t *testing.T) {
	tests := []struct {
		name string
		tmpl string
		vars NameVars
		want string
	}{
		{"title and year", "{title} ({year})", NameVars{Title: "Movie Title", Year: 2020}, "Movie Title (2020)"},
		{"missing year collapses", "{title} ({year})", NameVars{Title: "Movie Title"}, "Movie Title"},
		{"season padded", "Season {season}", NameVars{Season: 2}, "Season 02"},
		{"unknown variable dropped", "{title} - {rating}", NameVars{Title: "Show"}, "Show"},
		{"illegal characters", "{title} ({year})", NameVars{Title: "Mission: Impossible / Fallout", Year: 2018}, "Mission Impossible Fallout (2018)"},
		{"empty title", "{title}", NameVars{}, UnknownName},
		{"case and spacing in variables", "{ Title } [{YEAR}]", NameVars{Title: "Alien", Year: 1979}, "Alien [1979]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderName(tt.tmpl, tt.vars); got != tt.want {
				t.Errorf("RenderName(%q) = %q, want %q", tt.tmpl, got, tt.want)
			}
		})
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"normal", "normal"},
		{"a<b>c", "a b c"},
		{"tab\there", "tab here"},
		{"  many   spaces  ", "many spaces"},
		{"trailing dots...", "trailing dots"},
		{"???", UnknownName},
		{"..", UnknownName},
		{"", UnknownName},
	}
	for _, tt := range tests {
		if got := SanitizeName(tt.in); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
