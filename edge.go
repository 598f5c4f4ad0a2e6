package tickfsm

// EdgeDetector turns two level predicates into a single firing event. It
// fires when active was already true on the previous sample and condition
// has just gone from false to true. The sample on which active first becomes
// true never fires, even if condition is true at the same time.
type EdgeDetector struct {
	active    Condition
	condition Condition

	prevActive    bool
	prevCondition bool
	fired         bool
}

// NewEdgeDetector creates a detector with no history
func NewEdgeDetector(active, condition Condition) *EdgeDetector {
	return &EdgeDetector{
		active:    active,
		condition: condition,
	}
}

// Fire samples both predicates once, updates the history and reports whether
// this sample is a qualifying edge. Call it exactly once per tick.
func (d *EdgeDetector) Fire() bool {
	active := d.active()
	condition := d.condition()

	d.fired = d.prevActive && !d.prevCondition && active && condition

	d.prevActive = active
	d.prevCondition = condition

	return d.fired
}

// Fired returns the result of the most recent Fire call without sampling
func (d *EdgeDetector) Fired() bool {
	return d.fired
}
