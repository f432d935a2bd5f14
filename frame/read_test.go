package frame

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ardnew/safeval/lang"
)

func TestReadYAML(t *testing.T) {
	src := `
b: [3, 1, 2]
a: ["x", "y", null]
when: ["2022-11-11", "2022-11-12", "2022-11-13"]
ratio: [0.5, 1.5, .nan]
`

	tab, err := ReadYAML(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadYAML failed: %v", err)
	}

	if got := strings.Join(tab.Columns(), ","); got != "b,a,when,ratio" {
		t.Errorf("expected document column order, got %q", got)
	}

	if tab.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", tab.Len())
	}

	when, _ := tab.Series("when")
	if got := DType(when.Values()); got != "datetime64[ns]" {
		t.Errorf("expected dates to be parsed, got dtype %s", got)
	}

	a, _ := tab.Series("a")
	if !a.At(2).IsNull() {
		t.Errorf("expected null cell, got %s", a.At(2).Repr())
	}

	ratio, _ := tab.Series("ratio")
	if !lang.IsMissing(ratio.At(2)) {
		t.Errorf("expected NaN cell, got %s", ratio.At(2).Repr())
	}
}

func TestReadYAML_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"scalar column", "a: 1\n"},
		{"ragged", "a: [1, 2]\nb: [1]\n"},
		{"nested", "a: [{x: 1}]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadYAML(strings.NewReader(tt.src))
			if !errors.Is(err, ErrRead) {
				t.Errorf("expected ErrRead, got %v", err)
			}
		})
	}
}

func TestReadYAML_Empty(t *testing.T) {
	tab, err := ReadYAML(strings.NewReader(""))
	if err != nil {
		t.Fatalf("ReadYAML failed: %v", err)
	}

	if tab.Len() != 0 || len(tab.Columns()) != 0 {
		t.Errorf("expected empty table, got %d x %d", tab.Len(), len(tab.Columns()))
	}
}

func TestReadCSV(t *testing.T) {
	src := "id,name,score,day,ok\n1,ann,1.5,2022-11-11,True\n2,bob,,2022-11-12,false\n"

	tab, err := ReadCSV(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	want := map[string]string{
		"id":    "int64",
		"name":  "object",
		"score": "float64",
		"day":   "datetime64[ns]",
		"ok":    "bool",
	}

	for name, dtype := range want {
		c, ok := tab.Series(name)
		if !ok {
			t.Fatalf("missing column %q", name)
		}

		if got := DType(c.Values()); got != dtype {
			t.Errorf("column %q: expected dtype %s, got %s", name, dtype, got)
		}
	}

	score, _ := tab.Series("score")
	if !score.At(1).IsNull() {
		t.Errorf("expected empty cell to be None, got %s", score.At(1).Repr())
	}
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in   string
		want lang.Value
	}{
		{"", lang.Null()},
		{"42", lang.Int(42)},
		{"-1.25", lang.Float(-1.25)},
		{"True", lang.Bool(true)},
		{"2022-11-11", lang.Time(time.Date(2022, 11, 11, 0, 0, 0, 0, time.UTC))},
		{"2022-11-11 08:30:00", lang.Time(time.Date(2022, 11, 11, 8, 30, 0, 0, time.UTC))},
		{"hello", lang.String("hello")},
		{"1234", lang.Int(1234)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseCell(tt.in); !got.Equal(tt.want) || got.Kind() != tt.want.Kind() {
				t.Errorf("ParseCell(%q) = %s, want %s", tt.in, got.Repr(), tt.want.Repr())
			}
		})
	}
}

func TestRead_Format(t *testing.T) {
	if _, err := Read(strings.NewReader("a\n1\n"), ".csv"); err != nil {
		t.Errorf("Read(csv) failed: %v", err)
	}

	if _, err := Read(strings.NewReader("a: [1]\n"), "yml"); err != nil {
		t.Errorf("Read(yml) failed: %v", err)
	}

	if _, err := Read(strings.NewReader(""), "xlsx"); !errors.Is(err, ErrRead) {
		t.Errorf("expected ErrRead for unknown format, got %v", err)
	}
}

func TestWriteYAML(t *testing.T) {
	tab, err := ReadYAML(strings.NewReader("z: [1, 2]\na: [x, y]\n"))
	if err != nil {
		t.Fatalf("ReadYAML failed: %v", err)
	}

	var buf bytes.Buffer
	if err := WriteYAML(&buf, tab); err != nil {
		t.Fatalf("WriteYAML failed: %v", err)
	}

	out := buf.String()
	if zi, ai := strings.Index(out, "z:"), strings.Index(out, "a:"); zi < 0 || ai < 0 || zi > ai {
		t.Errorf("expected column order to be preserved, got:\n%s", out)
	}

	again, err := ReadYAML(&buf)
	if err != nil {
		t.Fatalf("ReadYAML of output failed: %v", err)
	}

	a, _ := again.Series("a")
	if got := lang.Seq(a.Values()...).Repr(); got != "['x', 'y']" {
		t.Errorf("expected ['x', 'y'], got %s", got)
	}
}

func TestEncodeYAML(t *testing.T) {
	tab, err := ReadCSV(strings.NewReader("a,b\n1,x\n2,y\n"))
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}

	col, _ := tab.Series("b")

	tests := []struct {
		name string
		v    lang.Value
		want string
	}{
		{"scalar", lang.Int(3), "3\n"},
		{"string", lang.String("hi"), "hi\n"},
		{"complex", lang.Complex(1 + 2i), "(1+2j)\n"},
		{"sequence", lang.Seq(lang.Int(1), lang.Bool(true)), "- 1\n- true\n"},
		{"column", lang.ColumnValue(col), "b:\n- x\n- \"y\"\n"},
		{"table", lang.TableValue(tab), "a:\n- 1\n- 2\nb:\n- x\n- \"y\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := EncodeYAML(&buf, tt.v); err != nil {
				t.Fatalf("EncodeYAML failed: %v", err)
			}

			if got := buf.String(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
