package webdriver

import "testing"

func TestKnownDefects_FirefoxModern(t *testing.T) {
	caps := Capabilities{CapBrowserName: "firefox", CapBrowserVersion: "60.0"}
	out := knownDefects(caps)
	if out[CapSupportsKeysCommand] != false {
		t.Errorf("expected supportsKeysCommand=false for firefox 60")
	}
	if out[CapUsesWebDriverWindowCmds] != true {
		t.Errorf("expected usesWebDriverWindowCommands=true for firefox >=53")
	}
}

func TestKnownDefects_SafariNative(t *testing.T) {
	caps := Capabilities{CapBrowserName: "safari", CapBrowserVersion: "1200"}
	out := knownDefects(caps)
	if out[CapBrokenLinkTextLocator] != true {
		t.Errorf("expected brokenLinkTextLocator for native safaridriver")
	}
	if out[CapShortcutKey] != "COMMAND" {
		t.Errorf("expected shortcutKey COMMAND for safari, got %v", out[CapShortcutKey])
	}
}

func TestShortcutKeyFromPlatform(t *testing.T) {
	caps := Capabilities{CapBrowserName: "chrome", CapPlatformName: "Linux"}
	out := knownDefects(caps)
	if out[CapShortcutKey] != "CONTROL" {
		t.Errorf("shortcutKey = %v, want CONTROL", out[CapShortcutKey])
	}
}

func TestVersionAtMost(t *testing.T) {
	ok, valid := versionAtMost("25.10586", "25.10586")
	if !valid || !ok {
		t.Fatal("expected equal versions to compare <=")
	}
	ok, valid = versionAtMost("26.0", "25.10586")
	if !valid || ok {
		t.Fatal("expected 26.0 > 25.10586")
	}
}
