// Copyright 2019 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package snaprealm

import "github.com/ethereum/go-ethereum/metrics"

var (
	realmsCreatedMeter   = metrics.NewRegisteredMeterForced("snaprealm/realms/created", nil)
	realmsDestroyedMeter = metrics.NewRegisteredMeterForced("snaprealm/realms/destroyed", nil)
	contextRebuildMeter  = metrics.NewRegisteredMeterForced("snaprealm/context/rebuild", nil)
	capSnapQueuedMeter   = metrics.NewRegisteredMeterForced("snaprealm/capsnap/queued", nil)
	capSnapFlushedMeter  = metrics.NewRegisteredMeterForced("snaprealm/capsnap/flushed", nil)
	malformedMeter       = metrics.NewRegisteredMeterForced("snaprealm/trace/malformed", nil)
	staleRaceMeter       = metrics.NewRegisteredMeterForced("snaprealm/split/stale_race", nil)
)

// Stats is a point-in-time snapshot of the engine's counters, exposed for
// tests and operator tooling.
type Stats struct {
	RealmsCreated   int64
	RealmsDestroyed int64
	ContextRebuilds int64
	CapSnapsQueued  int64
	CapSnapsFlushed int64
	Malformed       int64
	StaleRaces      int64
}

// Stats returns the current counter values.
func (e *Engine) Stats() Stats {
	return Stats{
		RealmsCreated:   realmsCreatedMeter.Count(),
		RealmsDestroyed: realmsDestroyedMeter.Count(),
		ContextRebuilds: contextRebuildMeter.Count(),
		CapSnapsQueued:  capSnapQueuedMeter.Count(),
		CapSnapsFlushed: capSnapFlushedMeter.Count(),
		Malformed:       malformedMeter.Count(),
		StaleRaces:      staleRaceMeter.Count(),
	}
}
