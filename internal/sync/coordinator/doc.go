// Package coordinator runs automatic syncs in serve mode.
//
// The coordinator polls the sync Manager on a jittered ticker derived from
// autoSync.interval and asks it for a scheduler-triggered AutoSync. The
// Manager decides whether a run is due, so a tick that finds no changes,
// a pause, or a run already in progress does nothing.
//
//	coord := coordinator.New(manager, cfg)
//	go coord.Start(ctx)
//	...
//	coord.Stop()
package coordinator
