package frame_test

import (
	"errors"
	"testing"
	"time"

	"github.com/ardnew/safeval/frame"
	"github.com/ardnew/safeval/lang"
)

// testTable returns the seven-row table most expression tests run against.
func testTable(t *testing.T) *frame.Table {
	t.Helper()

	ints := func(xs ...int64) []lang.Value {
		out := make([]lang.Value, len(xs))
		for i, x := range xs {
			out[i] = lang.Int(x)
		}

		return out
	}

	dates := make([]lang.Value, 7)
	for i := range dates {
		dates[i] = lang.Time(time.Date(2022, time.November, 11+i, 0, 0, 0, 0, time.UTC))
	}

	words := []lang.Value{
		lang.String("dq"), lang.String("QW"), lang.String("Gh"), lang.String("Jh"),
		lang.String("67"), lang.String("-="), lang.String(".,"),
	}

	tab, err := frame.NewTable(
		frame.NewColumn("col1", ints(1, 1, 2, 2, 3, 3, 4)),
		frame.NewColumn("col2", ints(1, 1, 1, 2, 2, 2, 3)),
		frame.NewColumn("col3", dates),
		frame.NewColumn("col4", words),
		frame.NewColumn("target", ints(1, 2, 3, 4, 5, 6, 7)),
	)
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	return tab
}

func newEvaluator() *lang.Evaluator {
	return lang.New(frame.Options()...)
}

func TestEvaluate_Table(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want string
	}{
		{"column", "${col1}", "[1, 1, 2, 2, 3, 3, 4]"},
		{"column arithmetic", "${col1} + ${target}", "[2, 3, 5, 6, 8, 9, 11]"},
		{"column scalar", "${col1} * 2", "[2, 2, 4, 4, 6, 6, 8]"},
		{"apply ternary", "${col1}.apply(lambda x: 0 if x < 2 else (1 if x < 3 else 2))", "[0, 0, 1, 1, 2, 2, 2]"},
		{"apply keyword", "${col1}.apply(func = lambda v: v <= 2)", "[True, True, True, True, False, False, False]"},
		{"map", "${col2}.map(lambda x: x * 10)", "[10, 10, 10, 20, 20, 20, 30]"},
		{"dayofweek", "${col3}.dt.dayofweek", "[4, 5, 6, 0, 1, 2, 3]"},
		{"day", "${col3}.dt.day", "[11, 12, 13, 14, 15, 16, 17]"},
		{"quantile", "${col1}.quantile(0.7)", "3.0"},
		{"median", "${col1}.median()", "2.0"},
		{"max", "${col1}.max()", "4"},
		{"min", "${target}.min()", "1"},
		{"sum", "${target}.sum()", "28"},
		{"mean", "${target}.mean()", "4.0"},
		{"count", "${col4}.count()", "7"},
		{"nunique", "${col2}.nunique()", "3"},
		{"unique", "${col1}.unique()", "[1, 2, 3, 4]"},
		{"isin", "${col1}.isin([1, 4])", "[True, True, False, False, False, False, True]"},
		{"between", "${target}.between(2, 4)", "[False, True, True, True, False, False, False]"},
		{"cumsum", "${col2}.cumsum()", "[1, 2, 3, 5, 7, 9, 12]"},
		{"head", "${target}.head(3)", "[1, 2, 3]"},
		{"tail", "${target}.tail(2)", "[6, 7]"},
		{"astype float", "${col1}.astype(float)", "[1.0, 1.0, 2.0, 2.0, 3.0, 3.0, 4.0]"},
		{"astype bool", "${col2}.astype(bool)", "[True, True, True, True, True, True, True]"},
		{"astype str", "${col2}.astype('str')", "['1', '1', '1', '2', '2', '2', '3']"},
		{"astype int", "${col4}.str.len().astype(int)", "[2, 2, 2, 2, 2, 2, 2]"},
		{"str upper", "${col4}.str.upper()", "['DQ', 'QW', 'GH', 'JH', '67', '-=', '.,']"},
		{"str contains", "${col4}.str.contains('h')", "[False, False, True, True, False, False, False]"},
		{"str contains literal", "${col4}.str.contains('.', regex=False)", "[False, False, False, False, False, False, True]"},
		{"dtype", "${col3}.dtype", "'datetime64[ns]'"},
		{"shape", "${__df}.shape", "[7, 5]"},
		{"columns", "${__df}.columns", "['col1', 'col2', 'col3', 'col4', 'target']"},
		{"table property", "${__df}.target.sum()", "28"},
		{"apply row", "${__df}.apply(lambda row: row.col1 * 2, axis=1)", "[2, 2, 4, 4, 6, 6, 8]"},
		{"apply columns", "${__df}.apply(lambda col1, col2: col1 + col2, axis=1)", "[2, 2, 3, 4, 5, 5, 7]"},
		{
			"sort by two keys",
			"${__df}.sort_values(by=['col2', 'target'], ascending=[False, True]).target",
			"[7, 4, 5, 6, 1, 2, 3]",
		},
		{
			"sort index",
			"${__df}.sort_values('target', ascending=False).index",
			"[6, 5, 4, 3, 2, 1, 0]",
		},
		{
			"sort ignore index",
			"${__df}.sort_values('target', ascending=False, ignore_index=True).index",
			"[0, 1, 2, 3, 4, 5, 6]",
		},
		{"membership", "3 in ${col1}", "True"},
		{"numeric namespace", "np.mean(${target})", "4.0"},
		{"table head", "${__df}.head(2).col4", "['dq', 'QW']"},
	}

	e := newEvaluator()
	tab := testTable(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := e.Evaluate(t.Context(), tt.expr, lang.WithTable(tab))
			if err != nil {
				t.Fatalf("Evaluate(%q) failed: %v", tt.expr, err)
			}

			if got := v.Repr(); got != tt.want {
				t.Errorf("Evaluate(%q) = %s, want %s", tt.expr, got, tt.want)
			}
		})
	}
}

func TestEvaluate_TableErrors(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want error
	}{
		{"unknown column", "${nope}", lang.ErrUnknownColumn},
		{"unknown method", "${col1}.frobnicate()", lang.ErrUnknownCapability},
		{"unknown accessor method", "${col4}.str.frobnicate()", lang.ErrUnknownCapability},
		{"apply on scalar", "(1).apply(lambda x: x)", lang.ErrInvalidReceiverType},
		{"quantile range", "${col1}.quantile(2)", lang.ErrOperandType},
		{"unexpected keyword", "${col1}.head(rows=2)", lang.ErrArgumentCount},
		{"bad dtype", "${col1}.astype('widget')", lang.ErrOperandType},
		{"sort unknown column", "${__df}.sort_values('nope')", lang.ErrUnknownColumn},
		{"vector condition", "1 if ${col1} else 2", lang.ErrOperandType},
	}

	e := newEvaluator()
	tab := testTable(t)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Evaluate(t.Context(), tt.expr, lang.WithTable(tab))
			if !errors.Is(err, tt.want) {
				t.Errorf("Evaluate(%q) error = %v, want %v", tt.expr, err, tt.want)
			}
		})
	}
}

func TestEvaluate_NoTable(t *testing.T) {
	_, err := newEvaluator().Evaluate(t.Context(), "${col1}.max()")
	if !errors.Is(err, lang.ErrNoTable) {
		t.Errorf("expected ErrNoTable, got %v", err)
	}
}

func TestEvaluate_DateRange(t *testing.T) {
	e := newEvaluator()

	for _, prefix := range []string{"pd", "pandas"} {
		t.Run(prefix, func(t *testing.T) {
			expr := prefix + ".date_range(start='2021-02-05', end='2021-03-05', freq='1D')"

			v, err := e.Evaluate(t.Context(), expr)
			if err != nil {
				t.Fatalf("Evaluate failed: %v", err)
			}

			col, ok := v.AsColumn()
			if !ok {
				t.Fatalf("expected column, got %s", v.TypeName())
			}

			if col.Len() != 29 {
				t.Errorf("expected 29 timestamps, got %d", col.Len())
			}
		})
	}
}

func TestEvaluate_Policy(t *testing.T) {
	p, err := lang.PolicyConfig{Forbidden: []string{"pd.date_range"}}.Policy()
	if err != nil {
		t.Fatalf("Policy failed: %v", err)
	}

	e := lang.New(append(frame.Options(), lang.WithPolicy(p))...)

	_, err = e.Evaluate(t.Context(), "pd.date_range('2021-01-01', periods=3)")
	if !errors.Is(err, lang.ErrUnsupportedFunction) {
		t.Errorf("expected ErrUnsupportedFunction, got %v", err)
	}

	v, err := e.Evaluate(t.Context(), "pd.to_numeric('12')")
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	if v.Repr() != "12" {
		t.Errorf("expected 12, got %s", v.Repr())
	}
}
