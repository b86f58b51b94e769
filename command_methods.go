package webdriver

import (
	"context"
	"time"
)

// methodMeta tags a chain-installable method the way addSessionMethod/
// addElementMethod read function metadata in the source design:
// usesElement means the context element(s) are implicitly prepended as the
// receiver when the context is non-empty; createsContext means the
// resolved value replaces the chain's context going forward.
type methodMeta struct {
	usesElement    bool
	createsContext bool
}

// methodMetadata only needs entries for methods whose default (no special
// handling) dispatch isn't already correct — i.e. element-scoped methods
// and anything that produces a new context. Everything else installed via
// Call falls through to the plain session-level call.
var methodMetadata = map[string]methodMeta{
	"Click":             {usesElement: true},
	"Submit":            {usesElement: true},
	"GetVisibleText":    {usesElement: true},
	"Type":              {usesElement: true},
	"GetTagName":        {usesElement: true},
	"ClearValue":        {usesElement: true},
	"IsSelected":        {usesElement: true},
	"IsEnabled":         {usesElement: true},
	"IsDisplayed":       {usesElement: true},
	"GetSpecAttribute":  {usesElement: true},
	"GetAttribute":      {usesElement: true},
	"GetProperty":       {usesElement: true},
	"Equals":            {usesElement: true},
	"GetPosition":       {usesElement: true},
	"GetSize":           {usesElement: true},
	"GetComputedStyle":  {usesElement: true},

	"Find":           {createsContext: true},
	"FindAll":        {createsContext: true},
	"FindDisplayed":  {createsContext: true},
	"GetActiveElement": {createsContext: true},
}

// Sleep schedules a plain delay before the next step runs.
func (c *Command) Sleep(ctx context.Context, d time.Duration) *Command {
	return c.Then(ctx, func(ctxx context.Context, setContext func(interface{}), value interface{}) (interface{}, error) {
		select {
		case <-time.After(d):
		case <-ctxx.Done():
			return nil, ctxx.Err()
		}
		return value, nil
	}, nil)
}
