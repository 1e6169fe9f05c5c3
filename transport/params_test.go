package transport

import "testing"

func TestParams_CopyOnWrite(t *testing.T) {
	original := Params{"jwt": "abc", "private": "thingy"}

	without := original.Without("jwt")
	if _, ok := without["jwt"]; ok {
		t.Fatalf("Without() kept jwt: %v", without)
	}
	if original["jwt"] != "abc" {
		t.Fatalf("Without() mutated receiver: %v", original)
	}

	with := original.With("jwt", "fresh")
	if with["jwt"] != "fresh" || original["jwt"] != "abc" {
		t.Fatalf("With() = %v, original = %v", with, original)
	}
}

func TestParams_String(t *testing.T) {
	p := Params{"jwt": "abc", "empty": "", "list": []string{"x"}}
	if got, ok := p.String("jwt"); !ok || got != "abc" {
		t.Fatalf("String(jwt) = %q, %v", got, ok)
	}
	if _, ok := p.String("empty"); ok {
		t.Fatalf("String(empty) ok = true")
	}
	if _, ok := p.String("list"); ok {
		t.Fatalf("String(list) ok = true")
	}
	if _, ok := Params(nil).String("jwt"); ok {
		t.Fatalf("String on nil params ok = true")
	}
	if got := Params(nil).With("a", 1); got["a"] != 1 {
		t.Fatalf("With on nil params = %v", got)
	}
}
