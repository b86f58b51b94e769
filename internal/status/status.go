// Package status holds the fixed WebDriver wire-status registry: the numeric
// codes a driver returns on error, and the name/message pair each maps to.
package status

// Code is a WebDriver wire protocol status code.
type Code int

// Known status codes from the JsonWireProtocol / early W3C draft. 0 is success.
const (
	Success                     Code = 0
	NoSuchDriver                Code = 6
	NoSuchElement               Code = 7
	NoSuchFrame                 Code = 8
	UnknownCommand              Code = 9
	StaleElementReference       Code = 10
	ElementNotVisible           Code = 11
	InvalidElementState         Code = 12
	UnknownError                Code = 13
	ElementIsNotSelectable      Code = 15
	JavaScriptError             Code = 17
	XPathLookupError            Code = 19
	Timeout                     Code = 21
	NoSuchWindow                Code = 23
	InvalidCookieDomain         Code = 24
	UnableToSetCookie           Code = 25
	UnexpectedAlertOpen         Code = 26
	NoAlertOpenError            Code = 27
	ScriptTimeout               Code = 28
	InvalidElementCoordinates   Code = 29
	IMENotAvailable             Code = 30
	IMEEngineActivationFailed   Code = 31
	InvalidSelector             Code = 32
	SessionNotCreatedException  Code = 33
	MoveTargetOutOfBounds       Code = 34
)

// entry is the {name, message} pair a code resolves to.
type entry struct {
	name    string
	message string
}

var registry = map[Code]entry{
	Success:                    {"Success", "The command executed successfully."},
	NoSuchDriver:               {"NoSuchDriver", "A session is either terminated or not started."},
	NoSuchElement:              {"NoSuchElement", "An element could not be located on the page using the given search parameters."},
	NoSuchFrame:                {"NoSuchFrame", "A request to switch to a frame could not be satisfied because the frame could not be found."},
	UnknownCommand:             {"UnknownCommand", "The requested resource could not be found, or a request was received using an HTTP method that is not supported by the mapped resource."},
	StaleElementReference:      {"StaleElementReference", "An element command failed because the referenced element is no longer attached to the DOM."},
	ElementNotVisible:          {"ElementNotVisible", "An element command could not be completed because the element is not visible on the page."},
	InvalidElementState:        {"InvalidElementState", "An element command could not be completed because the element is in an invalid state (e.g. attempting to click a disabled element)."},
	UnknownError:               {"UnknownError", "An unknown server-side error occurred while processing the command."},
	ElementIsNotSelectable:     {"ElementIsNotSelectable", "An attempt was made to select an element that cannot be selected."},
	JavaScriptError:            {"JavaScriptError", "An error occurred while executing user supplied JavaScript."},
	XPathLookupError:           {"XPathLookupError", "An error occurred while searching for an element by XPath."},
	Timeout:                    {"Timeout", "An operation did not complete before its timeout expired."},
	NoSuchWindow:               {"NoSuchWindow", "A request to switch to a different window could not be satisfied because the window could not be found."},
	InvalidCookieDomain:        {"InvalidCookieDomain", "An illegal attempt was made to set a cookie under a different domain than the current page."},
	UnableToSetCookie:          {"UnableToSetCookie", "A request to set a cookie's value could not be satisfied."},
	UnexpectedAlertOpen:        {"UnexpectedAlertOpen", "A modal dialog was open, blocking this operation."},
	NoAlertOpenError:           {"NoAlertOpenError", "An attempt was made to operate on a modal dialog when one was not open."},
	ScriptTimeout:              {"ScriptTimeout", "A script did not complete before its timeout expired."},
	InvalidElementCoordinates:  {"InvalidElementCoordinates", "The coordinates provided to an interactions operation are invalid."},
	IMENotAvailable:            {"IMENotAvailable", "IME was not available."},
	IMEEngineActivationFailed:  {"IMEEngineActivationFailed", "An IME engine could not be started."},
	InvalidSelector:            {"InvalidSelector", "Argument was an invalid selector."},
	SessionNotCreatedException: {"SessionNotCreatedException", "A new session could not be created."},
	MoveTargetOutOfBounds:      {"MoveTargetOutOfBounds", "The target for mouse interaction is not in the browser's viewport."},
}

// Name returns the registry name for code, or "" if unknown.
func Name(code int) string {
	if e, ok := registry[Code(code)]; ok {
		return e.name
	}
	return ""
}

// Message returns the default human message for code, or a generic fallback.
func Message(code int) string {
	if e, ok := registry[Code(code)]; ok {
		return e.message
	}
	return "An unrecognized status code was returned by the driver."
}
