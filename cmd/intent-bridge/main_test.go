package main

import (
	"strings"
	"testing"
)

const mainTestPrefix = "cmd/intent-bridge:main_test"

func TestUsage_NonEmpty(t *testing.T) {
	if len(usage) == 0 {
		t.Fatalf("%s - usage string is empty", mainTestPrefix)
	}
}

func TestUsage_ContainsCommands(t *testing.T) {
	required := []string{"serve", "migrate", "ensure-db", "clear", "journal", "DATABASE_URL", "COMMS_URL"}
	for _, word := range required {
		if !strings.Contains(usage, word) {
			t.Errorf("%s - usage should contain %q", mainTestPrefix, word)
		}
	}
}

func TestTargetDatabaseURL(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		db      string
		want    string
		wantErr bool
	}{
		{name: "replaces path", in: "postgres://u:p@localhost:5432/postgres", db: "intent_bridge", want: "postgres://u:p@localhost:5432/intent_bridge"},
		{name: "keeps query", in: "postgres://u@db:5432/app?sslmode=disable", db: "bridge_test", want: "postgres://u@db:5432/bridge_test?sslmode=disable"},
		{name: "no path", in: "postgres://u@db:5432", db: "x", want: "postgres://u@db:5432/x"},
		{name: "invalid", in: "postgres://u@db:port/x", db: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := targetDatabaseURL(tt.in, tt.db)
			if tt.wantErr {
				if err == nil {
					t.Errorf("%s - targetDatabaseURL(%q) want error, got %q", mainTestPrefix, tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("%s - targetDatabaseURL(%q): %v", mainTestPrefix, tt.in, err)
			}
			if got != tt.want {
				t.Errorf("%s - targetDatabaseURL(%q) = %q, want %q", mainTestPrefix, tt.in, got, tt.want)
			}
		})
	}
}
