package ui

import (
	"reflect"
	"testing"
)

func TestSuggest(t *testing.T) {
	tables := []string{"players", "guilds", "notes", "player_stats"}

	tests := []struct {
		target string
		limit  int
		want   []string
	}{
		{"player", 3, []string{"players"}},
		{"PLAYERS", 3, []string{"players"}},
		{"gild", 3, []string{"guilds"}},
		{"note", 1, []string{"notes"}},
		{"inventory", 3, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.target, func(t *testing.T) {
			got := Suggest(tt.target, tables, tt.limit)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Suggest(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"kitten", "sitting", 3},
		{"guilds", "guilds", 0},
		{"héros", "heros", 1},
	}

	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
