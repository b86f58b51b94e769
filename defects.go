package webdriver

import "strconv"

// knownDefects is the static half of the capability filler: a pure function
// of {browserName, browserVersion, platformName} returning the flags every
// driver of that shape is known to need, before any probe ever runs. It is
// always applied, even when detect=false.
func knownDefects(caps Capabilities) map[string]interface{} {
	out := map[string]interface{}{}
	browser := caps.BrowserName()
	version := caps.BrowserVersion()
	platform := caps.PlatformName()

	switch {
	case browser == "safari":
		out[CapBrokenWindowSwitch] = true
		out[CapBrokenSubmitElement] = true
		out[CapBrokenCookies] = true
		out[CapShortcutKey] = "COMMAND"
		if n, ok := versionMajor(version); ok && n == 10 {
			out[CapSupportsExecuteAsync] = false
		}
		if n, ok := versionMajor(version); ok && n >= 1000 {
			out[CapBrokenLinkTextLocator] = true
			out[CapBrokenOptionSelect] = true
			out[CapBrokenWhitespaceNormalization] = true
			out[CapFixedLogTypes] = []string{}
			out["usesWebDriverActiveElement"] = true
		}

	case browser == "firefox":
		if n, ok := versionMajor(version); ok && n >= 49 {
			out[CapSupportsKeysCommand] = false
			out[CapUsesWebDriverLocators] = true
			out[CapUsesFlatKeysArray] = true
			out[CapBrokenEmptyPost] = true
			out[CapBrokenMouseEvents] = true
			out[CapFixedLogTypes] = []string{}
		}
		if n, ok := versionMajor(version); ok && n >= 49 && n < 53 {
			out[CapBrokenWindowSwitch] = true
		}
		if n, ok := versionMajor(version); ok && n >= 53 {
			out[CapUsesWebDriverWindowCmds] = true
		}

	case browser == "internet explorer":
		if n, ok := versionMajor(version); ok && n == 11 {
			out[CapTakesScreenshot] = true
			out[CapBrokenSubmitElement] = true
		}
		if n, ok := versionMajor(version); ok && n >= 11 {
			out[CapBrokenOptionSelect] = false
		}
		if n, ok := versionMajor(version); ok && n <= 9 {
			out[CapScriptedParentFrameCrash] = true
		}

	case browser == "microsoftedge" || browser == "msedge" || browser == "edge":
		out[CapReturnsFromClickImmediately] = true
		out[CapBrokenDeleteCookie] = true
		out[CapBrokenClick] = true
		out[CapRemoteFiles] = false
		if cmp, ok := versionAtMost(version, "25.10586"); ok && cmp {
			out[CapBrokenWindowClose] = true
		}
		if cmp, ok := versionAtMost(version, "38.14366"); ok && cmp {
			out[CapBrokenFileSendKeys] = true
		}
		if cmp, ok := versionAtMost(version, "37.14316"); ok && cmp {
			out["assumeAlertsHandled"] = true
		}
	}

	out[CapShortcutKey] = shortcutKeyFor(platform, out)

	return out
}

// shortcutKeyFor derives the platform-dependent chord modifier key, unless a
// browser-specific rule above already forced one.
func shortcutKeyFor(platform string, already map[string]interface{}) interface{} {
	if v, ok := already[CapShortcutKey]; ok {
		return v
	}
	switch normalizePlatform(platform) {
	case "darwin", "mac", "macos":
		return "COMMAND"
	case "ios":
		return nil
	default:
		return "CONTROL"
	}
}

func normalizePlatform(p string) string {
	out := make([]byte, 0, len(p))
	for i := 0; i < len(p); i++ {
		c := p[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		out = append(out, c)
	}
	return string(out)
}

// versionMajor extracts the leading integer component of a version string
// like "60.0.1" or "11".
func versionMajor(v string) (int, bool) {
	i := 0
	for i < len(v) && v[i] >= '0' && v[i] <= '9' {
		i++
	}
	if i == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(v[:i])
	if err != nil {
		return 0, false
	}
	return n, true
}

// versionAtMost compares dotted version strings component-wise and reports
// whether v <= bound.
func versionAtMost(v, bound string) (bool, bool) {
	vp, ok1 := splitVersion(v)
	bp, ok2 := splitVersion(bound)
	if !ok1 || !ok2 {
		return false, false
	}
	for i := 0; i < len(vp) || i < len(bp); i++ {
		var a, b int
		if i < len(vp) {
			a = vp[i]
		}
		if i < len(bp) {
			b = bp[i]
		}
		if a != b {
			return a < b, true
		}
	}
	return true, true
}

func splitVersion(v string) ([]int, bool) {
	var parts []int
	start := 0
	for i := 0; i <= len(v); i++ {
		if i == len(v) || v[i] == '.' {
			if i == start {
				return nil, false
			}
			n, err := strconv.Atoi(v[start:i])
			if err != nil {
				return nil, false
			}
			parts = append(parts, n)
			start = i + 1
		}
	}
	return parts, len(parts) > 0
}
