package conversation

import (
	"context"
	"testing"
)

func TestKeywordClassifier_PriorityOrder(t *testing.T) {
	classifier := NewKeywordClassifier()

	tests := []struct {
		name string
		text string
		want Signal
	}{
		{"consultation keyword", "can we schedule a viewing?", SignalConsultationRequest},
		{"consultation beats question mark", "could you call me?", SignalConsultationRequest},
		{"photo request", "do you have pictures of the place", SignalPhotoRequest},
		{"consultation beats photo", "send photos before our appointment", SignalConsultationRequest},
		{"email is a qualifying answer", "reach me on jane@example.com", SignalQualifyingAnswer},
		{"budget is a qualifying answer", "budget around 500k", SignalQualifyingAnswer},
		{"qualifier beats question mark", "is a budget of 500k enough?", SignalQualifyingAnswer},
		{"bare question", "is it still available?", SignalQuestion},
		{"plain chatter", "sounds good, thanks", SignalGeneric},
		{"empty message", "", SignalGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := classifier.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if c.Signal != tt.want {
				t.Fatalf("expected %s, got %s", tt.want, c.Signal)
			}
		})
	}
}

func TestKeywordClassifier_ExtractsQualifiers(t *testing.T) {
	classifier := NewKeywordClassifier()

	tests := []struct {
		name       string
		text       string
		wantEmail  string
		wantBudget int
	}{
		{"plain number", "my budget is max 750000", "", 750_000},
		{"thousands suffix", "around 500k would work", "", 500_000},
		{"millions suffix", "up to 2.5m", "", 2_500_000},
		{"email only", "it's jane.doe+leads@example.co.uk", "jane.doe+leads@example.co.uk", 0},
		{"email and budget together", "jane@example.com, budget around 300k", "jane@example.com", 300_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := classifier.Classify(context.Background(), tt.text)
			if err != nil {
				t.Fatalf("classify: %v", err)
			}
			if c.Signal != SignalQualifyingAnswer {
				t.Fatalf("expected qualifying answer, got %s", c.Signal)
			}
			if c.Email != tt.wantEmail {
				t.Fatalf("expected email %q, got %q", tt.wantEmail, c.Email)
			}
			if tt.wantBudget == 0 {
				if c.BudgetMax != nil {
					t.Fatalf("expected no budget, got %d", *c.BudgetMax)
				}
				return
			}
			if c.BudgetMax == nil || *c.BudgetMax != tt.wantBudget {
				t.Fatalf("expected budget %d, got %v", tt.wantBudget, c.BudgetMax)
			}
		})
	}
}

func TestNormalize_UnknownSignalFallsBackToGeneric(t *testing.T) {
	if got := Normalize(Signal("SOMETHING_NEW")); got != SignalGeneric {
		t.Fatalf("expected GENERIC, got %s", got)
	}
	if got := Normalize(SignalQuestion); got != SignalQuestion {
		t.Fatalf("known signals must pass through, got %s", got)
	}
}
