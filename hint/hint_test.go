package hint

import "testing"

func TestOptSlot(t *testing.T) {
	if !NoHint.IsNoHint() {
		t.Error("NoHint is present")
	}
	if _, ok := NoHint.Get(); ok {
		t.Error("NoHint.Get reported present")
	}

	// a zero SlotType is still a hint once wrapped
	zero := Some(SlotType{})
	if zero.IsNoHint() {
		t.Error("Some(zero) is absent")
	}
	if zero == NoHint {
		t.Error("Some(zero) equals NoHint")
	}

	want := SlotType{Kind: SlotMethodArray, Outer: 4, Index: 9}
	got, ok := Some(want).Get()
	if !ok || got != want {
		t.Errorf("Get = %v, %v; want %v, true", got, ok, want)
	}
}

func TestStrings(t *testing.T) {
	tests := []struct {
		got  string
		want string
	}{
		{NoHint.String(), "NO_HINT"},
		{Some(SlotType{Kind: SlotClass, Index: 7}).String(), "K#7"},
		{SlotType{Kind: SlotClassArray, Outer: 2, Index: 3}.String(), "k#3(outer=2)"},
		{Int.String(), "I"},
		{ClassArg(12).String(), "K#12"},
		{MethodArg(1).String(), "M#1"},
		{ArgKind(0).String(), "ArgKind(0)"},
		{SlotHint{Offset: 5, Type: SlotType{Kind: SlotMethod, Index: 1}}.String(), "@5 M#1"},
		{ArgHint{Offset: 2, Types: []ArgType{Long, ClassArg(3)}}.String(), "@2 [J K#3]"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestKinds(t *testing.T) {
	for _, a := range []ArgType{Byte, Char, Double, Float, Int, Long, Short, Boolean} {
		if !a.Kind.IsPrimitive() || a.Kind.IsPoolRef() || a.Index != 0 {
			t.Errorf("%v: primitive=%v poolref=%v index=%d", a, a.Kind.IsPrimitive(), a.Kind.IsPoolRef(), a.Index)
		}
	}
	if Reference.Kind.IsPrimitive() || Reference.Kind.IsPoolRef() {
		t.Error("L classified wrongly")
	}
	if !ArgClass.IsPoolRef() || !ArgMethod.IsPoolRef() {
		t.Error("K and M must be pool references")
	}
	if SlotClass.IsArray() || SlotMethod.IsArray() || !SlotClassArray.IsArray() || !SlotMethodArray.IsArray() {
		t.Error("array slot kinds classified wrongly")
	}
}
