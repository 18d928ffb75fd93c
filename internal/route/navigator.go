package route

import "sync"

// Navigator is the navigation abstraction the pages hang off: it tracks the
// current location, resolves every change through the Resolver, and notifies
// subscribers in registration order. It replaces the original's pattern of
// dispatching synthetic location events at the platform.
type Navigator struct {
	resolver *Resolver

	mu      sync.Mutex
	current Resolution
	subs    []func(Resolution)
}

// NewNavigator resolves the initial path and returns a navigator positioned
// there.
func NewNavigator(resolver *Resolver, initialPath string) (*Navigator, error) {
	res, err := resolver.Resolve(initialPath)
	if err != nil {
		return nil, err
	}
	return &Navigator{resolver: resolver, current: res}, nil
}

// Current returns the last resolution.
func (n *Navigator) Current() Resolution {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.current
}

// Subscribe registers fn to run after every completed navigation. The
// resolution passed to fn is always fully computed before any subscriber
// sees it.
func (n *Navigator) Subscribe(fn func(Resolution)) {
	n.mu.Lock()
	n.subs = append(n.subs, fn)
	n.mu.Unlock()
}

// Go navigates to path. Navigating to the current canonical path is a no-op
// and notifies nobody.
func (n *Navigator) Go(path string) (Resolution, error) {
	res, err := n.resolver.Resolve(path)
	if err != nil {
		return Resolution{}, err
	}

	n.mu.Lock()
	if res.Path == n.current.Path && res.Page == n.current.Page {
		n.mu.Unlock()
		return res, nil
	}
	n.current = res
	subs := make([]func(Resolution), len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	for _, fn := range subs {
		fn(res)
	}
	return res, nil
}

// Home navigates to the session's canonical home route.
func (n *Navigator) Home() (Resolution, error) {
	return n.Go(n.resolver.HomePath())
}

// SignOut clears the present credential groups and lands on Public.
func (n *Navigator) SignOut() (Resolution, error) {
	res, err := n.resolver.SignOut()
	if err != nil {
		return Resolution{}, err
	}

	n.mu.Lock()
	changed := res.Path != n.current.Path || res.Page != n.current.Page
	n.current = res
	subs := make([]func(Resolution), len(n.subs))
	copy(subs, n.subs)
	n.mu.Unlock()

	if changed {
		for _, fn := range subs {
			fn(res)
		}
	}
	return res, nil
}
