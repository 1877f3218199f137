package orchestrator

import "testing"

func TestParseSelection(t *testing.T) {
	tests := []struct {
		text   string
		id     int64
		rest   string
		wantOK bool
	}{
		{text: "#100", id: 100, rest: "", wantOK: true},
		{text: "this is for #42 thanks", id: 42, rest: "this is for thanks", wantOK: true},
		{text: "order nr 42", rest: "order nr 42"},
		{text: "#0", rest: "#0"},
		{text: "abc#12", rest: "abc#12"},
	}
	for _, tt := range tests {
		id, rest, ok := ParseSelection(tt.text)
		if ok != tt.wantOK || id != tt.id || rest != tt.rest {
			t.Errorf("ParseSelection(%q) = (%d, %q, %v), want (%d, %q, %v)", tt.text, id, rest, ok, tt.id, tt.rest, tt.wantOK)
		}
	}
}

func TestParsePayoutDetails(t *testing.T) {
	details, ok := ParsePayoutDetails("my number is +31 6 12345678, bank: Rabobank, paid €19,99")
	if !ok {
		t.Fatal("expected details to parse")
	}
	if details.Phone != "+31612345678" || details.Bank != "Rabobank" {
		t.Fatalf("unexpected details %+v", details)
	}
	if details.Amount == nil || *details.Amount != 19 {
		t.Fatalf("expected amount 19, got %v", details.Amount)
	}

	if details, ok := ParsePayoutDetails("+31 6 12345678 ABN AMRO"); !ok || details.Amount != nil || details.Bank != "ABN AMRO" {
		t.Fatalf("expected bank without amount, got %+v ok=%v", details, ok)
	}
	banks := []struct {
		text   string
		bank   string
		amount int64
	}{
		{"+31 6 12345678 N26", "N26", 0},
		{"+31 6 12345678 bunq 2", "bunq 2", 0},
		{"+31 6 12345678 N26 amount 30", "N26", 30},
		{"+31 6 12345678 bunq 2 €10", "bunq 2", 10},
		{"+31 6 12345678 N26 15 euro", "N26", 15},
	}
	for _, tt := range banks {
		details, ok := ParsePayoutDetails(tt.text)
		if !ok || details.Bank != tt.bank {
			t.Errorf("ParsePayoutDetails(%q) bank = %q ok=%v, want %q", tt.text, details.Bank, ok, tt.bank)
			continue
		}
		switch {
		case tt.amount == 0 && details.Amount != nil:
			t.Errorf("ParsePayoutDetails(%q) amount = %d, want none", tt.text, *details.Amount)
		case tt.amount != 0 && (details.Amount == nil || *details.Amount != tt.amount):
			t.Errorf("ParsePayoutDetails(%q) amount = %v, want %d", tt.text, details.Amount, tt.amount)
		}
	}

	if _, ok := ParsePayoutDetails("ING 25 euro"); ok {
		t.Fatal("expected a missing phone number to fail")
	}
	if _, ok := ParsePayoutDetails("+31 6 12345678"); ok {
		t.Fatal("expected a missing bank to fail")
	}
}

func TestIsAffirmative(t *testing.T) {
	for _, text := range []string{"Confirm!", "correct", " klopt ", "Ja, klopt.", "that's correct"} {
		if !IsAffirmative(text) {
			t.Errorf("expected %q to be affirmative", text)
		}
	}
	for _, text := range []string{"no", "yes but the bank is wrong", "", "maybe"} {
		if IsAffirmative(text) {
			t.Errorf("expected %q not to be affirmative", text)
		}
	}
}
