package timeline

import (
	"errors"
	"fmt"
)

// Trigger is a one-shot action keyed on narration time.
//
// A latched trigger fires the first time When holds and never again, even
// if the clock later seeks back before it. An unlatched trigger fires each
// time When becomes true and re-arms once When turns false.
type Trigger struct {
	ID    string
	When  func(t float64) bool
	Fire  Hook
	Latch bool
}

// After returns a condition that holds for t > at.
func After(at float64) func(float64) bool {
	return func(t float64) bool { return t > at }
}

// AtSecond returns a condition that holds while floor(t) == second.
func AtSecond(second int) func(float64) bool {
	return func(t float64) bool { return t >= float64(second) && t < float64(second+1) }
}

type triggerEntry struct {
	Trigger
	fired bool // latched triggers only
	armed bool
}

// AddTrigger registers a trigger. Triggers are evaluated after annotations.
func (d *Driver) AddTrigger(tr Trigger) error {
	if tr.ID == "" {
		return errors.New("trigger id is empty")
	}
	if tr.When == nil {
		return fmt.Errorf("trigger %q has no condition", tr.ID)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, existing := range d.triggers {
		if existing.ID == tr.ID {
			return fmt.Errorf("trigger %q already registered", tr.ID)
		}
	}
	d.triggers = append(d.triggers, &triggerEntry{Trigger: tr, armed: true})
	return nil
}

// Fired reports whether a latched trigger has fired.
func (d *Driver) Fired(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, tr := range d.triggers {
		if tr.ID == id {
			return tr.fired
		}
	}
	return false
}

// evaluate fires the trigger if due. A failed Fire leaves the trigger
// armed so the next poll retries it.
func (tr *triggerEntry) evaluate(t float64) (bool, error) {
	if tr.Latch && tr.fired {
		return false, nil
	}
	if !tr.When(t) {
		tr.armed = true
		return false, nil
	}
	if !tr.armed {
		return false, nil
	}
	if err := call(tr.Fire); err != nil {
		return false, err
	}
	tr.armed = false
	if tr.Latch {
		tr.fired = true
	}
	return true, nil
}
