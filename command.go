package webdriver

import (
	"context"
	"fmt"
	"reflect"
	"runtime"
	"sync"

	"github.com/vibium/webdrive/internal/locator"
	"github.com/vibium/webdrive/internal/wderrors"
)

// commandContext is the ordered sequence of Elements a chain node carries,
// plus the two side attributes spec.md's data model names: IsSingle
// (scalar- vs array-shaped result) and Depth (chain level, used by End).
type commandContext struct {
	elements []*Element
	isSingle bool
	depth    int
}

// Command is a fluent chain node: a lazy, cancellable future carrying a
// filtered element context. Each node is created from a parent — either
// another Command or the Session that roots the chain — and only runs its
// work once the parent settles. Method calls that look like
// `cmd.Call("Click")` dispatch, via reflection, onto whichever Session or
// Element method matches by name, the same role spec.md's "auto-installed"
// session/element methods play.
type Command struct {
	parent   *Command
	session  *Session
	ctx      commandContext
	stack    string

	mu     sync.Mutex
	done   chan struct{}
	value  interface{}
	err    error
	cancel chan struct{}
}

// NewCommand creates the root of a chain bound to session. The root context
// is the empty sequence at depth 0, marked single, and is considered
// already settled with a nil value (there is nothing to wait for).
func NewCommand(session *Session) *Command {
	c := &Command{
		session: session,
		ctx:     commandContext{isSingle: true, depth: 0},
		done:    make(chan struct{}),
		cancel:  make(chan struct{}),
	}
	close(c.done)
	return c
}

// Session returns the Session every node in this chain shares.
func (c *Command) Session() *Session { return c.session }

// Cancel marks this node (and, transitively, anything still waiting on it)
// as cancelled.
func (c *Command) Cancel() {
	select {
	case <-c.cancel:
	default:
		close(c.cancel)
	}
}

// Wait blocks until c settles and returns its value/error.
func (c *Command) Wait(ctx context.Context) (interface{}, error) {
	select {
	case <-c.done:
		c.mu.Lock()
		defer c.mu.Unlock()
		return c.value, c.err
	case <-ctx.Done():
		return nil, &wderrors.CancelError{}
	case <-c.cancel:
		return nil, &wderrors.CancelError{}
	}
}

// setContext is the callback handed to initializers; x is normalized to a
// sequence, IsSingle is set if a scalar was passed, and Depth is the
// parent's depth + 1 unless the caller explicitly preserved a depth (as End
// does via withContext).
func (c *Command) setContext(x interface{}) {
	switch v := x.(type) {
	case nil:
		c.ctx = commandContext{elements: nil, isSingle: c.ctx.isSingle, depth: c.ctx.depth}
	case *Element:
		c.ctx = commandContext{elements: []*Element{v}, isSingle: true, depth: c.ctx.depth}
	case []*Element:
		c.ctx = commandContext{elements: v, isSingle: false, depth: c.ctx.depth}
	default:
		// Non-element results leave the context unchanged.
	}
}

// withContext installs ctx verbatim (used by End, which preserves an
// ancestor's depth rather than incrementing).
func (c *Command) withContext(ctx commandContext) *Command {
	c.ctx = ctx
	return c
}

// Initializer runs once the parent has settled successfully; Errback runs
// once it has settled with an error. Both receive setContext and may return
// a plain value, another *Command to chain onto, or an error.
type Initializer func(ctx context.Context, setContext func(interface{}), value interface{}) (interface{}, error)
type Errback func(ctx context.Context, setContext func(interface{}), err error) (interface{}, error)

// Then appends a child that runs init on success and eb on failure. If init
// (or eb) returns an error, or the value chain produces one, it propagates
// decorated with this node's captured caller stack.
func (c *Command) Then(ctx context.Context, init Initializer, eb Errback) *Command {
	child := &Command{
		parent: c,
		session: c.session,
		ctx:    commandContext{depth: c.ctx.depth + 1, isSingle: true},
		stack:  captureCommandStack(),
		done:   make(chan struct{}),
		cancel: make(chan struct{}),
	}

	go func() {
		defer close(child.done)

		parentValue, parentErr := c.Wait(ctx)

		select {
		case <-child.cancel:
			child.settle(nil, &wderrors.CancelError{})
			return
		default:
		}

		var result interface{}
		var err error
		if parentErr != nil {
			if eb != nil {
				result, err = eb(ctx, child.setContext, parentErr)
			} else {
				err = parentErr
			}
		} else {
			if init != nil {
				result, err = init(ctx, child.setContext, parentValue)
			} else {
				result = parentValue
				child.ctx = c.ctx
				child.ctx.depth = c.ctx.depth + 1
			}
		}

		if nested, ok := result.(*Command); ok {
			if isAncestor(nested, child) || nested == child {
				child.settle(nil, &wderrors.DeadlockError{})
				return
			}
			nv, nerr := nested.Wait(ctx)
			child.ctx = nested.ctx
			result, err = nv, nerr
		}

		if err != nil && child.stack != "" {
			err = decorateWithStack(err, child.stack)
		}
		child.settle(result, err)
	}()

	return child
}

func (c *Command) settle(value interface{}, err error) {
	c.mu.Lock()
	c.value, c.err = value, err
	c.mu.Unlock()
}

// isAncestor reports whether target is an ancestor of node (walking
// node.parent), the deadlock condition `return this` would otherwise cause.
func isAncestor(target, node *Command) bool {
	for p := node.parent; p != nil; p = p.parent {
		if p == target {
			return true
		}
	}
	return false
}

func decorateWithStack(err error, stack string) error {
	return fmt.Errorf("%w\n%s", err, stack)
}

func captureCommandStack() string {
	var pcs [16]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])
	frame, _ := frames.Next()
	return fmt.Sprintf("\t%s\n\t\t%s:%d", frame.Function, frame.File, frame.Line)
}

// Catch is Then with no success initializer.
func (c *Command) Catch(ctx context.Context, eb Errback) *Command {
	return c.Then(ctx, nil, eb)
}

// Finally is Then with the same callback used for both outcomes, ignoring
// the distinction between value and error in the callback's own signature.
func (c *Command) Finally(ctx context.Context, cb func(ctx context.Context) error) *Command {
	wrap := func(ctxx context.Context, setContext func(interface{}), value interface{}) (interface{}, error) {
		return value, cb(ctxx)
	}
	wrapErr := func(ctxx context.Context, setContext func(interface{}), err error) (interface{}, error) {
		if cerr := cb(ctxx); cerr != nil {
			return nil, cerr
		}
		return nil, err
	}
	return c.Then(ctx, wrap, wrapErr)
}

// End walks up the Command tree, decrementing n each time the parent's
// depth is strictly less than the current depth, and sets the resulting
// child's context to that ancestor's — preserving its depth, not
// incrementing it, so repeated End calls compose.
func (c *Command) End(ctx context.Context, n int) *Command {
	if n <= 0 {
		n = 1
	}
	node := c
	for node.parent != nil && n > 0 {
		if node.parent.ctx.depth < node.ctx.depth {
			n--
		}
		node = node.parent
	}

	child := &Command{
		parent:  c,
		session: c.session,
		ctx:     node.ctx,
		done:    make(chan struct{}),
		cancel:  make(chan struct{}),
	}
	go func() {
		defer close(child.done)
		_, err := c.Wait(ctx)
		child.settle(node.ctx.elements, err)
	}()
	return child
}

// Find and FindAll implement the chain semantics from §4.3: empty context
// dispatches to the Session; a single-element context dispatches to that
// Element; a multi-element context runs the call on every element, flattening
// one level for FindAll (order within each sub-result preserved, relative
// order across sub-results following context order, no document-order
// resort). Find queries the context elements in parallel; FindAll queries
// them one after another. FindDisplayed does not use the context at all: it
// always searches through Session.FindDisplayed, never under an element.
func (c *Command) Find(ctx context.Context, using, value string) *Command {
	return c.Then(ctx, func(ctxx context.Context, setContext func(interface{}), _ interface{}) (interface{}, error) {
		switch {
		case len(c.ctx.elements) == 0:
			el, err := c.session.Find(ctxx, using, value)
			if err != nil {
				return nil, err
			}
			setContext(el)
			return el, nil
		case c.ctx.isSingle:
			el, err := c.ctx.elements[0].Find(ctxx, using, value)
			if err != nil {
				return nil, err
			}
			setContext(el)
			return el, nil
		default:
			results, err := parallelFind(ctxx, c.ctx.elements, using, value)
			if err != nil {
				return nil, err
			}
			setContext(results)
			return results, nil
		}
	}, nil)
}

func (c *Command) FindAll(ctx context.Context, using, value string) *Command {
	return c.Then(ctx, func(ctxx context.Context, setContext func(interface{}), _ interface{}) (interface{}, error) {
		switch {
		case len(c.ctx.elements) == 0:
			els, err := c.session.FindAll(ctxx, using, value)
			if err != nil {
				return nil, err
			}
			setContext(els)
			return els, nil
		case c.ctx.isSingle:
			els, err := c.ctx.elements[0].FindAll(ctxx, using, value)
			if err != nil {
				return nil, err
			}
			setContext(els)
			return els, nil
		default:
			var flattened []*Element
			for _, el := range c.ctx.elements {
				sub, err := el.FindAll(ctxx, using, value)
				if err != nil {
					return nil, err
				}
				flattened = append(flattened, sub...)
			}
			setContext(flattened)
			return flattened, nil
		}
	}, nil)
}

func (c *Command) FindDisplayed(ctx context.Context, using, value string) *Command {
	return c.Then(ctx, func(ctxx context.Context, setContext func(interface{}), _ interface{}) (interface{}, error) {
		el, err := c.session.FindDisplayed(ctxx, using, value)
		if err != nil {
			return nil, err
		}
		setContext(el)
		return el, nil
	}, nil)
}

func parallelFind(ctx context.Context, elements []*Element, using, value string) ([]*Element, error) {
	results := make([]*Element, len(elements))
	errs := make([]error, len(elements))
	var wg sync.WaitGroup
	for i, el := range elements {
		wg.Add(1)
		go func(i int, el *Element) {
			defer wg.Done()
			r, err := el.Find(ctx, using, value)
			results[i], errs[i] = r, err
		}(i, el)
	}
	wg.Wait()
	for _, e := range errs {
		if e != nil {
			return nil, e
		}
	}
	return results, nil
}

// Call is the generic method-installation step: it looks up name by
// reflection on the Session (and, for a non-empty context, the Element)
// method sets, the way addSessionMethod/addElementMethod install
// chain steps in the source design. usesElement/createsContext are
// resolved from the small registry in command_methods.go; when a method is
// tagged usesElement and the parent context is non-empty, the context
// element(s) become the receiver (run per-element in parallel for
// multi-element contexts) and args are passed through unchanged — this
// holds even when an argument is itself an *Element, as with
// Equals(ctx, other *Element): the context element is still the receiver,
// other is just the method's own argument.
func (c *Command) Call(ctx context.Context, name string, args ...interface{}) *Command {
	return c.Then(ctx, func(ctxx context.Context, setContext func(interface{}), _ interface{}) (interface{}, error) {
		meta := methodMetadata[name]

		if len(c.ctx.elements) > 0 && meta.usesElement {
			if c.ctx.isSingle {
				result, err := invokeByName(ctxx, c.ctx.elements[0], c.session, name, args)
				if err != nil {
					return nil, err
				}
				if meta.createsContext {
					setContext(result)
				}
				return result, nil
			}
			out := make([]interface{}, len(c.ctx.elements))
			errs := make([]error, len(c.ctx.elements))
			var wg sync.WaitGroup
			for i, el := range c.ctx.elements {
				wg.Add(1)
				go func(i int, el *Element) {
					defer wg.Done()
					out[i], errs[i] = invokeByName(ctxx, el, c.session, name, args)
				}(i, el)
			}
			wg.Wait()
			for _, e := range errs {
				if e != nil {
					return nil, e
				}
			}
			if meta.createsContext {
				setContext(flattenElementResults(out))
			}
			return out, nil
		}

		result, err := invokeByName(ctxx, nil, c.session, name, args)
		if err != nil {
			return nil, err
		}
		if meta.createsContext {
			setContext(result)
		}
		return result, nil
	}, nil)
}

func flattenElementResults(results []interface{}) []*Element {
	var out []*Element
	for _, r := range results {
		switch v := r.(type) {
		case *Element:
			out = append(out, v)
		case []*Element:
			out = append(out, v...)
		}
	}
	return out
}

// invokeByName reflects on target (an *Element, if non-nil) or session,
// finds a method named name, and calls it with ctx prepended to args. It is
// a thin reflective shim, not a hand-maintained per-method switch, which is
// what lets Call dispatch to any exported Session/Element method without
// the registry growing a case per method — only the usesElement/
// createsContext tags need registering, in command_methods.go.
func invokeByName(ctx context.Context, target *Element, session *Session, name string, args []interface{}) (interface{}, error) {
	var recv interface{} = session
	if target != nil {
		recv = target
	}
	rv := reflect.ValueOf(recv)
	m := rv.MethodByName(name)
	if !m.IsValid() {
		return nil, &wderrors.ValidationError{Field: "method", Reason: fmt.Sprintf("%q is not a recognized chain step", name)}
	}

	in := make([]reflect.Value, 0, len(args)+1)
	in = append(in, reflect.ValueOf(ctx))
	mt := m.Type()
	for i, a := range args {
		if a == nil {
			in = append(in, reflect.Zero(mt.In(i+1)))
			continue
		}
		in = append(in, reflect.ValueOf(a))
	}

	out := m.Call(in)
	return splitCallResult(out)
}

func splitCallResult(out []reflect.Value) (interface{}, error) {
	if len(out) == 0 {
		return nil, nil
	}
	last := out[len(out)-1]
	var err error
	if last.Type().Implements(errType) {
		if !last.IsNil() {
			err = last.Interface().(error)
		}
		out = out[:len(out)-1]
	}
	if len(out) == 0 {
		return nil, err
	}
	if len(out) == 1 {
		return out[0].Interface(), err
	}
	vals := make([]interface{}, len(out))
	for i, v := range out {
		vals[i] = v.Interface()
	}
	return vals, err
}

var errType = reflect.TypeOf((*error)(nil)).Elem()

// Strategy-suffixed chain shortcuts per §4.3's strategy mixin.
func (c *Command) FindByClassName(ctx context.Context, v string) *Command { return c.Find(ctx, locator.ClassName, v) }
func (c *Command) FindByCssSelector(ctx context.Context, v string) *Command {
	return c.Find(ctx, locator.CSSSelector, v)
}
func (c *Command) FindById(ctx context.Context, v string) *Command { return c.Find(ctx, locator.ID, v) }
func (c *Command) FindByName(ctx context.Context, v string) *Command { return c.Find(ctx, locator.Name, v) }
func (c *Command) FindByLinkText(ctx context.Context, v string) *Command {
	return c.Find(ctx, locator.LinkText, v)
}
func (c *Command) FindByPartialLinkText(ctx context.Context, v string) *Command {
	return c.Find(ctx, locator.PartialLinkText, v)
}
func (c *Command) FindByTagName(ctx context.Context, v string) *Command { return c.Find(ctx, locator.TagName, v) }
func (c *Command) FindByXPath(ctx context.Context, v string) *Command  { return c.Find(ctx, locator.XPath, v) }

func (c *Command) FindAllByClassName(ctx context.Context, v string) *Command {
	return c.FindAll(ctx, locator.ClassName, v)
}
func (c *Command) FindAllByCssSelector(ctx context.Context, v string) *Command {
	return c.FindAll(ctx, locator.CSSSelector, v)
}
func (c *Command) FindAllById(ctx context.Context, v string) *Command { return c.FindAll(ctx, locator.ID, v) }
func (c *Command) FindAllByXPath(ctx context.Context, v string) *Command {
	return c.FindAll(ctx, locator.XPath, v)
}

func (c *Command) FindDisplayedById(ctx context.Context, v string) *Command {
	return c.FindDisplayed(ctx, locator.ID, v)
}
func (c *Command) FindDisplayedByCssSelector(ctx context.Context, v string) *Command {
	return c.FindDisplayed(ctx, locator.CSSSelector, v)
}
func (c *Command) FindDisplayedByXPath(ctx context.Context, v string) *Command {
	return c.FindDisplayed(ctx, locator.XPath, v)
}
