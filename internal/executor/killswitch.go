package executor

import "sync/atomic"

// KillSwitch halts live order flow when engaged. Decisions keep being
// evaluated; only submissions are blocked.
type KillSwitch struct {
	engaged atomic.Bool
}

func NewKillSwitch(engaged bool) *KillSwitch {
	k := &KillSwitch{}
	k.engaged.Store(engaged)
	return k
}

func (k *KillSwitch) Engage()       { k.engaged.Store(true) }
func (k *KillSwitch) Disengage()    { k.engaged.Store(false) }
func (k *KillSwitch) Engaged() bool { return k.engaged.Load() }
