package repl

import (
	"slices"
	"strings"
	"testing"
)

func TestDetectFunctionCall(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		cursor     int
		wantName   string
		wantIndex  int
		wantInCall bool
	}{
		{name: "no function call", input: "x", cursor: 1},
		{
			name:       "first arg",
			input:      "str(",
			cursor:     4,
			wantName:   "str",
			wantInCall: true,
		},
		{
			name:       "second arg",
			input:      "range(1, 2",
			cursor:     10,
			wantName:   "range",
			wantIndex:  1,
			wantInCall: true,
		},
		{
			name:       "namespace function",
			input:      "np.round(1.5, ",
			cursor:     14,
			wantName:   "np.round",
			wantIndex:  1,
			wantInCall: true,
		},
		{
			name:       "column method",
			input:      "${a}.round(",
			cursor:     11,
			wantName:   "${a}.round",
			wantInCall: true,
		},
		{
			name:       "comma in string",
			input:      "str('a, b'",
			cursor:     10,
			wantName:   "str",
			wantInCall: true,
		},
		{
			name:       "after nested call",
			input:      "range(int(1), ",
			cursor:     14,
			wantName:   "range",
			wantIndex:  1,
			wantInCall: true,
		},
		{
			name:       "inside nested call",
			input:      "range(1, int(",
			cursor:     13,
			wantName:   "int",
			wantInCall: true,
		},
		{name: "closed call", input: "str(1)", cursor: 6},
		{name: "grouping paren", input: "x + (1", cursor: 6},
		{
			name:       "cursor before close",
			input:      "str(1)",
			cursor:     5,
			wantName:   "str",
			wantInCall: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := detectFunctionCall(tt.input, tt.cursor)
			if got.name != tt.wantName || got.argIndex != tt.wantIndex || got.inCall != tt.wantInCall {
				t.Errorf("detectFunctionCall(%q, %d) = %+v, want {name:%s argIndex:%d inCall:%t}",
					tt.input, tt.cursor, got, tt.wantName, tt.wantIndex, tt.wantInCall)
			}
		})
	}
}

func TestSignature(t *testing.T) {
	tests := []struct {
		name       string
		callee     string
		wantSig    string
		wantParams []string
		wantOK     bool
	}{
		{"builtin", "str", "str(object)", []string{"object"}, true},
		{"numeric", "np.round", "np.round(a, decimals)", []string{"a", "decimals"}, true},
		{"pandas", "pd.to_numeric", "pd.to_numeric(arg, errors)", []string{"arg", "errors"}, true},
		{"column method", "${a}.round", "round(decimals)", []string{"decimals"}, true},
		{"accessor method", "${b}.str.upper", "upper()", nil, true},
		{"scalar method", "x.bit_length", "bit_length(...)", nil, true},
		{"lambda local", "f", "", nil, false},
		{"unknown", "nope", "", nil, false},
		{"unknown method", "${a}.nope", "", nil, false},
	}

	s := testSession(t)
	if _, err := s.Set(t.Context(), "f", "lambda v: v + 1"); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, params, ok := s.signature(t.Context(), tt.callee)
			if ok != tt.wantOK || sig != tt.wantSig {
				t.Errorf("signature(%q) = (%q, %t), want (%q, %t)",
					tt.callee, sig, ok, tt.wantSig, tt.wantOK)
			}

			if len(params) != len(tt.wantParams) || !slices.Equal(params, tt.wantParams) {
				t.Errorf("signature(%q) params = %v, want %v", tt.callee, params, tt.wantParams)
			}
		})
	}
}

func TestRenderSignatureHint(t *testing.T) {
	tests := []struct {
		name       string
		signature  string
		params     []string
		currentArg int
		want       []string
	}{
		{"no params", "upper()", nil, 0, []string{"upper()"}},
		{"first param", "range(start, stop, step)", []string{"start", "stop", "step"}, 0, []string{"range", "start", "stop"}},
		{"past last param", "str(object)", []string{"object"}, 3, []string{"str", "object"}},
		{"unknown params", "bit_length(...)", nil, 1, []string{"bit_length(...)"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := renderSignatureHint(tt.signature, tt.params, tt.currentArg)

			for _, want := range tt.want {
				if !strings.Contains(got, want) {
					t.Errorf("renderSignatureHint(%q) = %q, missing %q", tt.signature, got, want)
				}
			}
		})
	}
}

func TestFormatSignature(t *testing.T) {
	if got := formatSignature("f", []string{"a", "b"}); got != "f(a, b)" {
		t.Errorf("formatSignature() = %q, want f(a, b)", got)
	}

	if got := formatSignature("g", nil); got != "g()" {
		t.Errorf("formatSignature() = %q, want g()", got)
	}
}
