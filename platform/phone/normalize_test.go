package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	tests := map[string]string{
		"06 12345678":     "+31612345678",
		"+31 6 1234 5678": "+31612345678",
		"not a number":    "not a number",
		"  ":              "",
	}
	for input, want := range tests {
		if got := NormalizeE164(input); got != want {
			t.Fatalf("NormalizeE164(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestDigits(t *testing.T) {
	if got := Digits("06-12345678"); got != "31612345678" {
		t.Fatalf("unexpected digits %q", got)
	}
}

func TestFind(t *testing.T) {
	number, rest, ok := Find("ING bank, phone +31 6 12345678 please, 25 euro")
	if !ok {
		t.Fatal("expected a phone number to be found")
	}
	if number != "+31612345678" {
		t.Fatalf("unexpected number %q", number)
	}
	if rest != "ING bank, phone please, 25 euro" {
		t.Fatalf("unexpected rest %q", rest)
	}

	if _, _, ok := Find("order 12345 arrived"); ok {
		t.Fatal("expected short digit runs to be ignored")
	}
}
