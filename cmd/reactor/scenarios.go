package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/reactor/pkg/deps"
	"github.com/vango-dev/reactor/pkg/portal"
	"github.com/vango-dev/reactor/pkg/reactor"
)

// scenario is a scripted demo. Each run builds its own runtime from opts.
type scenario struct {
	name        string
	description string
	run         func(ctx context.Context, w io.Writer, opts ...reactor.Option) error
}

var scenarios = []scenario{
	{"counter", "batched updates and dependency-gated effects", runCounter},
	{"debounce", "timer effect with cleanup validating a login form", runDebounce},
	{"portal", "modal routed to backdrop and overlay targets", runPortal},
	{"users", "updater functions and a mount-only effect", runUsers},
}

func findScenario(name string) (scenario, bool) {
	for _, s := range scenarios {
		if s.name == name {
			return s, true
		}
	}
	return scenario{}, false
}

func scenarioNames() []string {
	names := make([]string, len(scenarios))
	for i, s := range scenarios {
		names[i] = s.name
	}
	return names
}

// printCommits returns a committer that prints each commit to w.
func printCommits(w io.Writer) reactor.Option {
	return reactor.WithCommitter(reactor.CommitterFunc(func(ctx context.Context, c reactor.Commit) error {
		fmt.Fprintf(w, "  commit  tick=%d instance=%d render=%v\n", c.Tick, c.Instance, c.Render)
		for _, r := range c.Redirects {
			fmt.Fprintf(w, "          %s -> %v: %v\n", r.Key, r.Target, r.Output)
		}
		for _, m := range c.Unresolved {
			fmt.Fprintf(w, "          %s unresolved\n", m.Key)
		}
		return nil
	}))
}

func newScenarioRuntime(w io.Writer, opts []reactor.Option) *reactor.Runtime {
	return reactor.New(append([]reactor.Option{printCommits(w)}, opts...)...)
}

func step(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "\n> %s\n", fmt.Sprintf(format, args...))
}

func runCounter(ctx context.Context, w io.Writer, opts ...reactor.Option) error {
	rt := newScenarioRuntime(w, opts)
	defer rt.Shutdown(context.Background())

	step(w, "mount counter with an effect on every pass")
	counter, err := rt.Mount(ctx, reactor.Named("counter", reactor.EvaluableFunc(
		func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
			n, _ := reactor.UseState(inst, 0)
			return n, []reactor.EffectDescriptor{
				reactor.Effect(func() reactor.Cleanup {
					fmt.Fprintf(w, "  effect  ran (count=%d)\n", n)
					return nil
				}, deps.Always()),
			}, nil
		})))
	if err != nil {
		return err
	}

	step(w, "two increments before the next tick")
	inc := reactor.Apply(func(prev any) any { return prev.(int) + 1 })
	for i := 0; i < 2; i++ {
		if err := rt.Update(counter, 0, inc); err != nil {
			return err
		}
	}
	if err := rt.Flush(ctx); err != nil {
		return err
	}

	step(w, "mount watcher with an effect on [count]")
	watcher, err := rt.Mount(ctx, reactor.Named("watcher", reactor.EvaluableFunc(
		func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
			n, _ := reactor.UseState(inst, 0)
			return n, []reactor.EffectDescriptor{
				reactor.Effect(func() reactor.Cleanup {
					fmt.Fprintf(w, "  effect  e%d\n", n)
					return func() { fmt.Fprintf(w, "  cleanup c%d\n", n) }
				}, deps.On(n)),
			}, nil
		})))
	if err != nil {
		return err
	}

	step(w, "set watcher to the same value")
	if err := rt.Update(watcher, 0, reactor.Set(0)); err != nil {
		return err
	}
	if err := rt.Flush(ctx); err != nil {
		return err
	}

	step(w, "set watcher to 1")
	if err := rt.Update(watcher, 0, reactor.Set(1)); err != nil {
		return err
	}
	if err := rt.Flush(ctx); err != nil {
		return err
	}

	step(w, "unmount watcher")
	return rt.Unmount(ctx, watcher)
}

// loginForm validates its fields after they stop changing for delay.
type loginForm struct {
	delay time.Duration
	out   io.Writer
	mu    sync.Mutex
}

func (f *loginForm) printf(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fmt.Fprintf(f.out, format, args...)
}

// Write makes loginForm an io.Writer so scenario output shares its lock
// with timer goroutines.
func (f *loginForm) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.out.Write(p)
}

const (
	slotEmail = iota
	slotPassword
	slotValid
)

func (f *loginForm) Evaluate(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
	email, _ := reactor.UseState(inst, "")
	password, _ := reactor.UseState(inst, "")
	valid, setValid := reactor.UseState(inst, false)

	render := fmt.Sprintf("email=%q password=%s valid=%t", email, strings.Repeat("*", len(password)), valid)
	return render, []reactor.EffectDescriptor{
		reactor.Effect(func() reactor.Cleanup {
			f.printf("  effect  validation scheduled for %q\n", email)
			timer := time.AfterFunc(f.delay, func() {
				ok := strings.Contains(email, "@") && len(password) >= 8
				f.printf("  timer   %q valid=%t\n", email, ok)
				_ = setValid.Set(ok)
			})
			return func() {
				if timer.Stop() {
					f.printf("  cleanup validation canceled for %q\n", email)
				}
			}
		}, deps.On(email, password), reactor.EffectName("validate")),
	}, nil
}

func runDebounce(ctx context.Context, w io.Writer, opts ...reactor.Option) error {
	form := &loginForm{delay: 50 * time.Millisecond, out: w}
	rt := newScenarioRuntime(form, opts)
	defer rt.Shutdown(context.Background())

	step(form, "mount login form")
	id, err := rt.Mount(ctx, reactor.Named("login", form))
	if err != nil {
		return err
	}

	step(form, "type an email faster than the debounce delay")
	for _, v := range []string{"a", "ad", "ada@", "ada@example.com"} {
		if err := rt.Update(id, slotEmail, reactor.Set(v)); err != nil {
			return err
		}
		if err := rt.Flush(ctx); err != nil {
			return err
		}
	}
	if err := rt.Update(id, slotPassword, reactor.Set("correct horse")); err != nil {
		return err
	}
	if err := rt.Flush(ctx); err != nil {
		return err
	}

	step(form, "wait for the timer")
	deadline := time.After(10 * form.delay)
	for {
		if r, ok := rt.LastRender(id); ok && strings.HasSuffix(r.(string), "valid=true") {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline:
			return fmt.Errorf("login form did not validate")
		case <-time.After(form.delay / 5):
		}
		if err := rt.Flush(ctx); err != nil {
			return err
		}
	}
}

const (
	keyBackdrop portal.Key = "root-backdrop"
	keyOverlay  portal.Key = "root-overlay"
)

// modal renders a button and, when open, routes its backdrop and dialog
// to the root portal targets.
func modal(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
	open, _ := reactor.UseState(inst, false)
	if !open {
		return "button[open]", nil, nil
	}
	backdrop, err := inst.Portal(keyBackdrop, "backdrop")
	if err != nil {
		return nil, nil, err
	}
	dialog, err := inst.Portal(keyOverlay, "dialog[close]")
	if err != nil {
		return nil, nil, err
	}
	return []any{"button[open]", backdrop.Key, dialog.Key}, nil, nil
}

func runPortal(ctx context.Context, w io.Writer, opts ...reactor.Option) error {
	rt := newScenarioRuntime(w, opts)
	defer rt.Shutdown(context.Background())

	step(w, "bind root targets")
	for _, k := range []portal.Key{keyBackdrop, keyOverlay} {
		if err := rt.BindPortalTarget(k, "#"+string(k)); err != nil {
			return err
		}
		fmt.Fprintf(w, "  bind    %s\n", k)
	}

	step(w, "mount closed modal")
	id, err := rt.Mount(ctx, reactor.Named("modal", reactor.EvaluableFunc(modal)))
	if err != nil {
		return err
	}

	step(w, "open modal")
	if err := rt.Update(id, 0, reactor.Set(true)); err != nil {
		return err
	}
	if err := rt.Flush(ctx); err != nil {
		return err
	}
	for _, b := range rt.Portals().Bindings() {
		fmt.Fprintf(w, "  binding %s references=%d\n", b.Key, b.References)
	}

	step(w, "close modal")
	if err := rt.Update(id, 0, reactor.Set(false)); err != nil {
		return err
	}
	return rt.Flush(ctx)
}

// slotUsers is the slot index of the users list.
const slotUsers = 0

// storedLogin stands in for persisted session storage.
var storedLogin = map[string]string{"user": "ada"}

func runUsers(ctx context.Context, w io.Writer, opts ...reactor.Option) error {
	rt := newScenarioRuntime(w, opts)
	defer rt.Shutdown(context.Background())

	var nameInput *reactor.Ref[string]

	step(w, "mount users list with a mount-only login effect")
	id, err := rt.Mount(ctx, reactor.Named("users", reactor.EvaluableFunc(
		func(inst *reactor.Instance) (reactor.Render, []reactor.EffectDescriptor, error) {
			users, _ := reactor.UseState(inst, []string(nil))
			loggedIn, setLoggedIn := reactor.UseState(inst, "")
			nameInput = reactor.UseRef(inst, "")

			return fmt.Sprintf("user=%q users=%v", loggedIn, users), []reactor.EffectDescriptor{
				reactor.Effect(func() reactor.Cleanup {
					if u, ok := storedLogin["user"]; ok {
						fmt.Fprintf(w, "  effect  restored login %q\n", u)
						_ = setLoggedIn.Set(u)
					}
					return nil
				}, deps.Once(), reactor.EffectName("restore-login")),
				reactor.Effect(func() reactor.Cleanup {
					fmt.Fprintf(w, "  effect  %d users\n", len(users))
					return nil
				}, deps.On(len(users)), reactor.EffectName("count")),
			}, nil
		})))
	if err != nil {
		return err
	}
	if err := rt.Flush(ctx); err != nil {
		return err
	}

	step(w, "submit two names typed into the input ref")
	for _, name := range []string{"grace", "linus"} {
		nameInput.Set(name)
		submitted := nameInput.Current()
		nameInput.Set("")
		if err := rt.Update(id, slotUsers, reactor.Apply(func(prev any) any {
			list, _ := prev.([]string)
			return append(append([]string(nil), list...), submitted)
		})); err != nil {
			return err
		}
	}
	return rt.Flush(ctx)
}
