package ussd

import "testing"

func TestParseInput(t *testing.T) {
	in := ParseInput(" 2**1* 3 ")
	if in.Len() != 3 || in.First() != "2" || in.Last() != "3" {
		t.Fatalf("unexpected parse %+v", in)
	}
	if n, ok := in.LastInt(); !ok || n != 3 {
		t.Fatalf("LastInt = %d, %v", n, ok)
	}
	if in.IsReset() {
		t.Fatalf("trail without back marker should not reset")
	}
}

func TestInputReset(t *testing.T) {
	for _, text := range []string{"", "   ", "2*1*0", "0"} {
		if !ParseInput(text).IsReset() {
			t.Fatalf("%q should reset", text)
		}
	}
	if ParseInput("2*10").IsReset() {
		t.Fatalf("10 is not the back marker")
	}
}

func TestReplyString(t *testing.T) {
	if got := Conf("Pick %d", 1).String(); got != "CON Pick 1" {
		t.Fatalf("got %q", got)
	}
	if got := End("100% done").String(); got != "END 100% done" {
		t.Fatalf("got %q", got)
	}
}
