/*
Copyright © 2025 the eocube authors.
This file is part of eocube.

eocube is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

eocube is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with eocube.  If not, see <http://www.gnu.org/licenses/>.
*/

package eocube

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// WarningCode identifies a class of non-fatal conditions so that callers
// can suppress it selectively.
type WarningCode string

// Warning codes emitted while assembling a cube.
const (
	WarnCategoricalSpline WarningCode = "categorical-spline"
	WarnCategoricalAgg    WarningCode = "categorical-agg"
	WarnReprojectOverride WarningCode = "reproject-override"
	WarnMalformedID       WarningCode = "malformed-id"
	WarnCellTruncated     WarningCode = "cell-truncated"
)

// Warnings reports warnings for a single call. Each distinct message is
// logged at most once, and codes listed in the suppression set are not
// logged at all. A nil *Warnings discards everything.
type Warnings struct {
	Log logrus.FieldLogger

	mu       sync.Mutex
	suppress map[WarningCode]bool
	seen     map[string]bool
	emitted  []string
}

// NewWarnings returns a reporter logging to log, ignoring the given codes.
func NewWarnings(log logrus.FieldLogger, suppress ...WarningCode) *Warnings {
	if log == nil {
		log = logrus.StandardLogger()
	}
	w := &Warnings{
		Log:      log,
		suppress: make(map[WarningCode]bool),
		seen:     make(map[string]bool),
	}
	for _, c := range suppress {
		w.suppress[c] = true
	}
	return w
}

// Warn logs msg under code unless the code is suppressed or the same message
// has already been logged by this reporter.
func (w *Warnings) Warn(code WarningCode, msg string) {
	if w == nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.suppress[code] {
		return
	}
	key := string(code) + "\x00" + msg
	if w.seen[key] {
		return
	}
	w.seen[key] = true
	w.emitted = append(w.emitted, msg)
	w.Log.WithField("code", code).Warn(msg)
}

// Emitted returns the messages logged so far, in order.
func (w *Warnings) Emitted() []string {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.emitted...)
}
