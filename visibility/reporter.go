package visibility

import "sync"

// Reporter is a push based Primitive. Viewer sessions report what their
// browser observed and the Reporter forwards entries for watched elements.
type Reporter struct {
	mu           sync.Mutex
	dispatch     func([]Entry)
	watched      map[string]struct{}
	disconnected bool
}

// Feed hands out Reporters to a Multiplexer and routes reports to whichever
// one is live.
type Feed struct {
	mu      sync.Mutex
	current *Reporter
}

// Factory is a PrimitiveFactory.
func (f *Feed) Factory(dispatch func([]Entry)) Primitive {
	r := NewReporter(dispatch)
	f.mu.Lock()
	f.current = r
	f.mu.Unlock()
	return r
}

// Report pushes entries into the live Reporter, if any.
func (f *Feed) Report(entries ...Entry) {
	f.mu.Lock()
	r := f.current
	f.mu.Unlock()
	if r != nil {
		r.Report(entries...)
	}
}

// NewReporter creates a Reporter delivering to dispatch.
func NewReporter(dispatch func([]Entry)) *Reporter {
	return &Reporter{
		dispatch: dispatch,
		watched:  make(map[string]struct{}),
	}
}

func (r *Reporter) Observe(element string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.disconnected {
		return
	}
	r.watched[element] = struct{}{}
}

func (r *Reporter) Unobserve(element string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.watched, element)
}

func (r *Reporter) Disconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.disconnected = true
	r.watched = make(map[string]struct{})
}

// Report forwards the entries that belong to watched elements.
func (r *Reporter) Report(entries ...Entry) {
	r.mu.Lock()
	if r.disconnected {
		r.mu.Unlock()
		return
	}
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if _, ok := r.watched[e.Element]; ok {
			kept = append(kept, e)
		}
	}
	r.mu.Unlock()

	if len(kept) > 0 {
		r.dispatch(kept)
	}
}
