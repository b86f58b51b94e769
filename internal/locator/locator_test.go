package locator

import "testing"

func TestToW3C(t *testing.T) {
	cases := []struct {
		using, value string
		wantUsing    string
		wantValue    string
	}{
		{ID, "foo", CSSSelector, "#foo"},
		{ClassName, "bar", CSSSelector, ".bar"},
		{Name, "q", CSSSelector, `[name="q"]`},
		{TagName, "input", CSSSelector, "input"},
		{CSSSelector, ".x", CSSSelector, ".x"},
		{XPath, "//div", XPath, "//div"},
		{LinkText, "Click me", LinkText, "Click me"},
	}
	for _, c := range cases {
		gotUsing, gotValue := ToW3C(c.using, c.value)
		if gotUsing != c.wantUsing || gotValue != c.wantValue {
			t.Errorf("ToW3C(%q, %q) = (%q, %q), want (%q, %q)", c.using, c.value, gotUsing, gotValue, c.wantUsing, c.wantValue)
		}
	}
}

func TestToW3C_EscapesSpecialCharsInID(t *testing.T) {
	_, value := ToW3C(ID, "foo:bar")
	if value != `#foo\:bar` {
		t.Errorf("got %q, want escaped colon", value)
	}
}

func TestSuffix(t *testing.T) {
	for _, strategy := range Strategies {
		if Suffix(strategy) == "" {
			t.Errorf("Suffix(%q) returned empty string", strategy)
		}
	}
}

func TestIsLinkText(t *testing.T) {
	if !IsLinkText(LinkText) || !IsLinkText(PartialLinkText) {
		t.Fatal("expected both link-text strategies to report true")
	}
	if IsLinkText(CSSSelector) {
		t.Fatal("css selector should not be treated as link text")
	}
}
