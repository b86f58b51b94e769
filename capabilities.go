package webdriver

import "strings"

// Capabilities is the open string-keyed map a driver reports (or a caller
// requests): positive feature flags, broken-defect flags, and browser
// identity fields. It is filled in two passes by Server.CreateSession — a
// static known-defects table keyed on browser/version/platform, then an
// optional dynamic probe phase — after which Filled() reports true.
type Capabilities map[string]interface{}

// filledKey is the bookkeeping sentinel. Go maps have no non-enumerable
// property concept, so unlike the source environment this key is an
// ordinary map entry: it is not stripped when the map is serialized.
const filledKey = "_filled"

// Filled reports whether the capability filler has completed for this map.
func (c Capabilities) Filled() bool {
	v, _ := c[filledKey].(bool)
	return v
}

func (c Capabilities) setFilled() { c[filledKey] = true }

func (c Capabilities) Bool(key string) bool {
	v, _ := c[key].(bool)
	return v
}

func (c Capabilities) String(key string) string {
	v, _ := c[key].(string)
	return v
}

// BrowserName returns the normalized browser name, lower-cased.
func (c Capabilities) BrowserName() string {
	return strings.ToLower(c.String("browserName"))
}

// BrowserVersion returns browserVersion, falling back to the legacy
// "version" key some drivers still report.
func (c Capabilities) BrowserVersion() string {
	if v := c.String("browserVersion"); v != "" {
		return v
	}
	return c.String("version")
}

// PlatformName returns platformName, falling back to the legacy "platform"
// key.
func (c Capabilities) PlatformName() string {
	if v := c.String("platformName"); v != "" {
		return v
	}
	return c.String("platform")
}

// mirrorLegacyIdentity copies version/browserVersion and platform/
// platformName onto each other so callers can read either spelling,
// matching S1's expectation that capabilities.browserVersion is mirrored
// from a response that only carried "version".
func (c Capabilities) mirrorLegacyIdentity() {
	if v, ok := c["version"]; ok {
		if _, has := c["browserVersion"]; !has {
			c["browserVersion"] = v
		}
	}
	if v, ok := c["browserVersion"]; ok {
		if _, has := c["version"]; !has {
			c["version"] = v
		}
	}
	if v, ok := c["platform"]; ok {
		if _, has := c["platformName"]; !has {
			c["platformName"] = v
		}
	}
	if v, ok := c["platformName"]; ok {
		if _, has := c["platform"]; !has {
			c["platform"] = v
		}
	}
}

// merge copies every key from other into c, overwriting existing keys. Used
// to fold the known-defects table and the probe results into the session's
// capability map.
func (c Capabilities) merge(other map[string]interface{}) {
	for k, v := range other {
		c[k] = v
	}
}

// Positive feature keys named in the data model.
const (
	CapTouchEnabled               = "touchEnabled"
	CapRotatable                  = "rotatable"
	CapSupportsCssTransforms      = "supportsCssTransforms"
	CapSupportsExecuteAsync       = "supportsExecuteAsync"
	CapDynamicViewport            = "dynamicViewport"
	CapSupportsNavigationDataUris = "supportsNavigationDataUris"
	CapSupportsKeysCommand        = "supportsKeysCommand"
	CapSupportsWindowRectCommand  = "supportsWindowRectCommand"
	CapUsesWebDriverTimeouts      = "usesWebDriverTimeouts"
	CapUsesWebDriverWindowCmds    = "usesWebDriverWindowCommands"
	CapUsesWebDriverLocators      = "usesWebDriverLocators"
	CapUsesHandleParameter        = "usesHandleParameter"
	CapUsesFlatKeysArray          = "usesFlatKeysArray"
	CapIsWebDriver                = "isWebDriver"
	CapTakesScreenshot            = "takesScreenshot"
)

// Broken-defect keys named in the data model.
const (
	CapBrokenActiveElement             = "brokenActiveElement"
	CapBrokenCookies                   = "brokenCookies"
	CapBrokenDeleteCookie              = "brokenDeleteCookie"
	CapBrokenDeleteWindow              = "brokenDeleteWindow"
	CapBrokenDoubleClick               = "brokenDoubleClick"
	CapBrokenExecuteUndefinedReturn    = "brokenExecuteUndefinedReturn"
	CapBrokenExecuteElementReturn      = "brokenExecuteElementReturn"
	CapBrokenElementDisplayedOffscreen = "brokenElementDisplayedOffscreen"
	CapBrokenElementDisplayedOpacity   = "brokenElementDisplayedOpacity"
	CapBrokenFileSendKeys              = "brokenFileSendKeys"
	CapBrokenFlickFinger               = "brokenFlickFinger"
	CapBrokenHtmlMouseMove             = "brokenHtmlMouseMove"
	CapBrokenHtmlTagName               = "brokenHtmlTagName"
	CapBrokenLinkTextLocator           = "brokenLinkTextLocator"
	CapBrokenLongTap                   = "brokenLongTap"
	CapBrokenMouseEvents               = "brokenMouseEvents"
	CapBrokenMoveFinger                = "brokenMoveFinger"
	CapBrokenNavigation                = "brokenNavigation"
	CapBrokenNullGetSpecAttribute      = "brokenNullGetSpecAttribute"
	CapBrokenOptionSelect              = "brokenOptionSelect"
	CapBrokenPageSource                = "brokenPageSource"
	CapBrokenParentFrameSwitch         = "brokenParentFrameSwitch"
	CapBrokenRefresh                   = "brokenRefresh"
	CapBrokenSendKeys                  = "brokenSendKeys"
	CapBrokenSubmitElement             = "brokenSubmitElement"
	CapBrokenTouchScroll               = "brokenTouchScroll"
	CapBrokenWhitespaceNormalization   = "brokenWhitespaceNormalization"
	CapBrokenWindowClose               = "brokenWindowClose"
	CapBrokenWindowMaximize            = "brokenWindowMaximize"
	CapBrokenWindowPosition            = "brokenWindowPosition"
	CapBrokenWindowSize                = "brokenWindowSize"
	CapBrokenWindowSwitch              = "brokenWindowSwitch"
	CapBrokenZeroTimeout               = "brokenZeroTimeout"
	CapBrokenEmptyPost                 = "brokenEmptyPost"
	CapBrokenComputedStyles            = "brokenComputedStyles"
	CapBrokenCssTransformedSize        = "brokenCssTransformedSize"
	CapBrokenElementPosition           = "brokenElementPosition"
	CapBrokenElementSerialization      = "brokenElementSerialization"
	CapBrokenExecuteForNonHttpUrl      = "brokenExecuteForNonHttpUrl"
	CapBrokenClick                     = "brokenClick"
	CapFixedLogTypes                   = "fixedLogTypes"
	CapImplicitWindowHandles           = "implicitWindowHandles"
	CapScriptedParentFrameCrash        = "scriptedParentFrameCrashesBrowser"
	CapReturnsFromClickImmediately     = "returnsFromClickImmediately"
	CapRemoteFiles                     = "remoteFiles"
)

// Identity keys named in the data model.
const (
	CapBrowserName     = "browserName"
	CapBrowserVersion  = "browserVersion"
	CapPlatformName    = "platformName"
	CapDeviceName      = "deviceName"
	CapShortcutKey     = "shortcutKey"
	CapInitialBrowser  = "initialBrowserUrl"
)
