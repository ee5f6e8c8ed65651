package crypto

import (
	"encoding/json"
	"testing"
	"time"
)

func TestCanonicalizeJSONSortsKeysAndStripsWhitespace(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`{ "b": [1, 2.50, "x"], "a": {"z": null, "y": true} }`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":{"y":true,"z":null},"b":[1,2.5,"x"]}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalizeNumbers(t *testing.T) {
	cases := map[string]string{
		`0`:        `0`,
		`-0`:       `0`,
		`100`:      `100`,
		`1e21`:     `1e+21`,
		`1e20`:     `100000000000000000000`,
		`0.000001`: `0.000001`,
		`1e-7`:     `1e-7`,
		`-12.340`:  `-12.34`,
		`1.5e300`:  `1.5e+300`,
	}
	for in, want := range cases {
		got, err := CanonicalizeJSON([]byte(in))
		if err != nil {
			t.Fatalf("canonicalize %s: %v", in, err)
		}
		if string(got) != want {
			t.Fatalf("%s: got %s want %s", in, got, want)
		}
	}
}

func TestCanonicalizeEscapes(t *testing.T) {
	got, err := CanonicalizeJSON([]byte(`"a\"b\\c\n\u0001é"`))
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	if want := `"a\"b\\c\n\u0001é"`; string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
}

func TestCanonicalizeRejectsTrailingData(t *testing.T) {
	if _, err := CanonicalizeJSON([]byte(`{} {}`)); err == nil {
		t.Fatalf("expected trailing data error")
	}
	if _, err := CanonicalizeJSON([]byte(`{`)); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestCanonicalizeAnyStruct(t *testing.T) {
	type doc struct {
		Z       string    `json:"z"`
		A       int       `json:"a"`
		Created time.Time `json:"created"`
	}
	got, err := CanonicalizeAny(doc{Z: "last", A: 7, Created: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)})
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	want := `{"a":7,"created":"2026-03-01T00:00:00Z","z":"last"}`
	if string(got) != want {
		t.Fatalf("got %s want %s", got, want)
	}
	raw, err := CanonicalizeAny(json.RawMessage(`{"b":1,"a":2}`))
	if err != nil || string(raw) != `{"a":2,"b":1}` {
		t.Fatalf("raw canonicalize: %s %v", raw, err)
	}
}
