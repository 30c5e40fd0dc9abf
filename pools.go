package netreq

// pools holds the two disjoint connection pools of a dispatcher, split by
// whether requests carry credentials.
type pools struct {
	authenticated   *Pool
	unauthenticated *Pool
	subs            []*Subscription
}

func (ps *pools) forRequest(req *Request) *Pool {
	if req.RequiresAuth {
		return ps.authenticated
	}
	return ps.unauthenticated
}

// watch invalidates both pools on proxy and circumvention changes.
func (ps *pools) watch(bus *Bus) {
	invalidate := func(Event) {
		ps.authenticated.Invalidate()
		ps.unauthenticated.Invalidate()
	}
	ps.subs = append(ps.subs,
		bus.Subscribe(EventProxyReadinessChanged, invalidate),
		bus.Subscribe(EventCensorshipCircumventionChanged, invalidate),
	)
}

func (ps *pools) close() {
	for _, s := range ps.subs {
		s.Cancel()
	}
	ps.subs = nil
	ps.authenticated.Close()
	ps.unauthenticated.Close()
}
