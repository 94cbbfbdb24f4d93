package xkb

import (
	"github.com/charmbracelet/log"
)

// Policy says how a CommitPlan handles a target that fails.
type Policy uint8

const (
	// AllOrNothing stops at the first target that fails, and
	// reports its error. Used to validate a request against every
	// target before any of them is changed.
	AllOrNothing Policy = iota
	// BestEffort reports a failure of the primary target, and skips
	// the other targets if it fails. Failures on the other targets
	// are logged and otherwise ignored, so that devices stay in sync
	// as much as possible without rolling back the primary device.
	BestEffort
)

func (p Policy) String() string {
	if p == BestEffort {
		return "best-effort"
	}
	return "all-or-nothing"
}

// CommitPlan lists the devices a request applies to: the device the
// client named, and the slave devices a change to a core device fans
// out to.
//
// Requests that change devices run in two phases. First every target
// is checked with [CommitPlan.Validate], which mutates nothing. Only
// if all targets pass are they changed, with [CommitPlan.Commit].
type CommitPlan struct {
	Primary *Device
	Others  []*Device

	log *log.Logger
}

// Targets returns all devices of the plan, primary first.
func (p *CommitPlan) Targets() []*Device {
	return append([]*Device{p.Primary}, p.Others...)
}

// Validate runs check on every target with the AllOrNothing policy.
func (p *CommitPlan) Validate(check func(*Device) error) error {
	return p.Run(AllOrNothing, check)
}

// Commit runs apply on every target with the BestEffort policy.
func (p *CommitPlan) Commit(apply func(*Device) error) error {
	return p.Run(BestEffort, apply)
}

// Run calls fn for each target, handling failures according to pol.
func (p *CommitPlan) Run(pol Policy, fn func(*Device) error) error {
	if err := fn(p.Primary); err != nil {
		return err
	}
	for _, d := range p.Others {
		err := fn(d)
		if err == nil {
			continue
		}
		if pol == AllOrNothing {
			return err
		}
		if p.log != nil {
			p.log.Warn("slave device out of sync with master", "device", d, "master", p.Primary, "err", err)
		}
	}
	return nil
}
