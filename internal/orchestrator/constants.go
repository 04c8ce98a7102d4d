// Package orchestrator owns the attach/detach session: one capture pipeline,
// the hook worker, the results store and the overlay layout.
package orchestrator

import "time"

const (
	// NoticeBuffer is the capacity of the notice channel.
	NoticeBuffer = 64

	// ResultsMaxEntries caps the results store.
	ResultsMaxEntries = 500

	// RestartTimeout bounds waiting for a stopped pipeline's consumer.
	RestartTimeout = 5 * time.Second
)
