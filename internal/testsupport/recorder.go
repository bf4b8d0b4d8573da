package testsupport

import (
	"fmt"
	"slices"
	"sync"

	"github.com/SoftFever/OrcaSlicer-sub043/internal/objectid"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/pipeline"
	"github.com/SoftFever/OrcaSlicer-sub043/internal/stagestate"
)

// Recorder collects status and warning callbacks from concurrent workers.
type Recorder struct {
	mu       sync.Mutex
	statuses []string
	flags    pipeline.StatusFlags
	warnings []string
}

// Status records one status update as "percent% message".
func (r *Recorder) Status(percent int, message string, flags pipeline.StatusFlags) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, fmt.Sprintf("%d%% %s", percent, message))
	if flags != 0 {
		r.flags = flags
	}
}

// Flags returns the flags of the last flagged status update.
func (r *Recorder) Flags() pipeline.StatusFlags {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags
}

// Warning records one warning as "owner/step level: message".
func (r *Recorder) Warning(owner objectid.ID, step string, level stagestate.Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warnings = append(r.warnings, fmt.Sprintf("%s/%s %s: %s", owner, step, level, message))
}

// Statuses returns the recorded status lines.
func (r *Recorder) Statuses() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.statuses)
}

// Warnings returns the recorded warning lines.
func (r *Recorder) Warnings() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.warnings)
}
