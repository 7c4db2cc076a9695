package daemonctl

import "time"

// DefaultShutdownGrace is spec §5's shutdown contract: flush the alert
// queue with a 5s grace period before exiting. cmd/simbiotad sequences
// the rest of the contract (drain the scan pipeline while the fanotify
// read loop is still running, flush alerts, then stop the read loop)
// using each component's own Stop/Shutdown
// method — there is no cross-cutting coordinator type to own, since
// every component already knows how to quiesce itself.
const DefaultShutdownGrace = 5 * time.Second
