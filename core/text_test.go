package core

import (
	"reflect"
	"testing"
)

func TestNormalizeTagName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Machine Learning", "machine_learning"},
		{"  spaced   out  ", "spaced_out"},
		{"already_normal", "already_normal"},
		{"MiXeD", "mixed"},
		{"", ""},
		{"   ", ""},
		{"tabs\tand\nnewlines", "tabs_and_newlines"},
	}
	for _, tt := range tests {
		if got := NormalizeTagName(tt.in); got != tt.want {
			t.Fatalf("NormalizeTagName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeTagNameIdempotent(t *testing.T) {
	inputs := []string{"Machine Learning", "  A  B  C ", "x", "Deep  Dive"}
	for _, in := range inputs {
		once := NormalizeTagName(in)
		if twice := NormalizeTagName(once); twice != once {
			t.Fatalf("NormalizeTagName not idempotent: %q -> %q -> %q", in, once, twice)
		}
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Raft is a consensus algorithm", []string{"raft", "consensus", "algorithm"}},
		{"the and of", nil},
		{"", nil},
		{"hello, hello; HELLO!", []string{"hello", "hello", "hello"}},
		{"snake_case kebab-case", []string{"snake_case", "kebab-case"}},
	}
	for _, tt := range tests {
		got := Tokenize(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Fatalf("Tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestIsStopWord(t *testing.T) {
	for _, w := range []string{"the", "and", "with"} {
		if !IsStopWord(w) {
			t.Fatalf("IsStopWord(%q) = false, want true", w)
		}
	}
	if IsStopWord("consensus") {
		t.Fatalf("IsStopWord(consensus) = true, want false")
	}
}
