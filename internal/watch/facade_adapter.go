// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package watch

import "github.com/dot-do/fsx/internal/fsfacade"

// FacadeEmitter adapts a Manager to fsfacade.Emitter, so fsfacade itself
// stays free of a dependency on the watch manager while callers that
// wire both together (cmd/fsxctl) get debounced delivery for free.
type FacadeEmitter struct {
	Manager *Manager
}

func (f FacadeEmitter) Emit(kind fsfacade.EventKind, path string) {
	var wk EventKind
	if kind == fsfacade.EventNamespaceChange {
		wk = EventNamespaceChange
	}
	f.Manager.Emit(wk, path)
}

var _ fsfacade.Emitter = FacadeEmitter{}
