package webdriver

import (
	"context"
	"time"

	"github.com/vibium/webdrive/internal/status"
	"github.com/vibium/webdrive/internal/wderrors"
)

// defaultPollInterval is pollUntil's default spacing between retries.
const defaultPollInterval = 67 * time.Millisecond

// Poller is a callback invoked on each pollUntil tick. It returns a non-nil
// result to stop polling, or (nil, nil) to keep going.
type Poller func(ctx context.Context) (interface{}, error)

// PollUntil runs poller repeatedly until it returns a non-nil result,
// timeout elapses, or it returns an error. The session's script/async
// timeout is saved and temporarily set to timeout for the duration of the
// poll, then restored unconditionally on every exit path, matching §4.5 and
// the invariant that getExecuteAsyncTimeout() is unchanged afterward.
func (s *Session) PollUntil(ctx context.Context, poller Poller, timeout time.Duration, pollInterval time.Duration) (interface{}, error) {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}

	original := s.GetTimeout("script")
	_ = s.SetTimeout(ctx, "script", float64(timeout/time.Millisecond))
	defer func() {
		_ = s.SetTimeout(ctx, "script", float64(original))
	}()

	deadline := time.Now().Add(timeout)
	for {
		result, err := poller(ctx)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}
		if time.Now().After(deadline) {
			return nil, &wderrors.ProtocolError{
				Status:  int(status.ScriptTimeout),
				Name:    "ScriptTimeout",
				Message: "Polling timed out with no result",
			}
		}
		select {
		case <-ctx.Done():
			return nil, &wderrors.CancelError{}
		case <-time.After(pollInterval):
		}
	}
}

// FindDisplayed polls findAll for (using, value), scanning results one by
// one — deliberately never in parallel, a requirement of older ChromeDriver
// releases — and returns the first element that reports displayed. If the
// implicit-timeout budget elapses with some matches seen but none
// displayed, it throws ElementNotVisible; if no matches were ever seen, it
// throws NoSuchElement.
func (s *Session) FindDisplayed(ctx context.Context, using, value string) (*Element, error) {
	budget := time.Duration(s.GetTimeout("implicit")) * time.Millisecond
	if budget <= 0 {
		budget = 0
	}
	deadline := time.Now().Add(budget)
	sawAny := false

	for {
		elements, err := s.FindAll(ctx, using, value)
		if err != nil {
			return nil, err
		}
		if len(elements) > 0 {
			sawAny = true
		}
		for _, el := range elements {
			displayed, derr := el.IsDisplayed(ctx)
			if derr != nil {
				return nil, derr
			}
			if displayed {
				return el, nil
			}
		}

		if time.Now().After(deadline) {
			if sawAny {
				return nil, &wderrors.ProtocolError{
					Status:  int(status.ElementNotVisible),
					Name:    status.Name(int(status.ElementNotVisible)),
					Message: status.Message(int(status.ElementNotVisible)),
				}
			}
			return nil, &wderrors.ProtocolError{
				Status:  int(status.NoSuchElement),
				Name:    status.Name(int(status.NoSuchElement)),
				Message: status.Message(int(status.NoSuchElement)),
			}
		}

		select {
		case <-ctx.Done():
			return nil, &wderrors.CancelError{}
		case <-time.After(defaultPollInterval):
		}
	}
}

// WaitForDeleted polls find(using, value) until it stops matching (a
// NoSuchElement response) or the implicit-timeout budget elapses. The
// implicit timeout is saved and zeroed for the duration of the poll (so
// each individual find call fails fast instead of itself retrying), then
// restored on every exit path — success, failure, or timeout — with any
// restore error swallowed.
func (s *Session) WaitForDeleted(ctx context.Context, using, value string) error {
	budget := time.Duration(s.GetTimeout("implicit")) * time.Millisecond
	original := s.GetTimeout("implicit")

	_ = s.SetTimeout(ctx, "implicit", 0)
	restore := func() {
		_ = s.SetTimeout(ctx, "implicit", float64(original))
	}

	deadline := time.Now().Add(budget)
	for {
		_, err := s.Find(ctx, using, value)
		if err != nil {
			if wderrors.StatusOf(err) == int(status.NoSuchElement) {
				restore()
				return nil
			}
			restore()
			return err
		}

		if time.Now().After(deadline) {
			restore()
			return &wderrors.ProtocolError{
				Status:  int(status.Timeout),
				Name:    status.Name(int(status.Timeout)),
				Message: status.Message(int(status.Timeout)),
			}
		}

		select {
		case <-ctx.Done():
			restore()
			return &wderrors.CancelError{}
		case <-time.After(defaultPollInterval):
		}
	}
}

// Strategy-suffixed findDisplayedBy* / waitForDeletedBy* shortcuts, per the
// strategy mixin in §4.3.
func (s *Session) FindDisplayedById(ctx context.Context, v string) (*Element, error) {
	return s.FindDisplayed(ctx, "id", v)
}
func (s *Session) FindDisplayedByCssSelector(ctx context.Context, v string) (*Element, error) {
	return s.FindDisplayed(ctx, "css selector", v)
}
func (s *Session) FindDisplayedByXPath(ctx context.Context, v string) (*Element, error) {
	return s.FindDisplayed(ctx, "xpath", v)
}

func (s *Session) WaitForDeletedById(ctx context.Context, v string) error {
	return s.WaitForDeleted(ctx, "id", v)
}
func (s *Session) WaitForDeletedByCssSelector(ctx context.Context, v string) error {
	return s.WaitForDeleted(ctx, "css selector", v)
}
func (s *Session) WaitForDeletedByXPath(ctx context.Context, v string) error {
	return s.WaitForDeleted(ctx, "xpath", v)
}
