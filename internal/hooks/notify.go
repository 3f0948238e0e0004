// SPDX-License-Identifier: MPL-2.0

package hooks

// DependencyType is the Type of every dependency notification.
const DependencyType = "dependency"

type (
	// Dependency announces that the module at Path is about to be loaded.
	Dependency struct {
		Type string `json:"type"`
		Path string `json:"path"`
	}

	// Notifier receives dependency notifications. Notify must not block.
	Notifier interface {
		Notify(Dependency)
	}

	// NotifierFunc adapts a function to a Notifier.
	NotifierFunc func(Dependency)
)

// Discard drops every notification. It stands in when no parent process
// listens.
var Discard Notifier = NotifierFunc(func(Dependency) {})

// Notify calls f.
func (f NotifierFunc) Notify(d Dependency) { f(d) }

// NewDependency returns the notification for url.
func NewDependency(url string) Dependency {
	return Dependency{Type: DependencyType, Path: url}
}
