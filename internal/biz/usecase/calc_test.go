package usecase

import (
	"math"
	"testing"
)

func TestEvalExpression(t *testing.T) {
	tests := []struct {
		input    string
		expected float64
	}{
		{"2+2", 4},
		{"2 + 3 * 4", 14},
		{"(2 + 3) * 4", 20},
		{"10 / 4", 2.5},
		{"-5 + 3", -2},
		{"2 * -3", -6},
		{"1.5 + 2.25", 3.75},
		{"((1))", 1},
		{"100", 100},
		{"(2+3)*(4-1)/3", 5},
	}

	for _, tt := range tests {
		result, err := evalExpression(tt.input)
		if err != nil {
			t.Errorf("evalExpression(%q) error: %v", tt.input, err)
			continue
		}
		if math.Abs(result-tt.expected) > 1e-9 {
			t.Errorf("evalExpression(%q) = %v, want %v", tt.input, result, tt.expected)
		}
	}
}

func TestEvalExpressionErrors(t *testing.T) {
	inputs := []string{
		"",
		"2+",
		"(2+3",
		"2 ** 3",
		"1/0",
		"abc",
		"2 + x",
		"os.exit(1)",
		"1;2",
	}

	for _, input := range inputs {
		if _, err := evalExpression(input); err == nil {
			t.Errorf("evalExpression(%q) should fail", input)
		}
	}
}

func TestFormatCalcResult(t *testing.T) {
	tests := []struct {
		input    float64
		expected string
	}{
		{4, "4"},
		{2.5, "2.5"},
		{-6, "-6"},
		{0.333333, "0.333333"},
		{0, "0"},
	}

	for _, tt := range tests {
		if got := formatCalcResult(tt.input); got != tt.expected {
			t.Errorf("formatCalcResult(%v) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}
