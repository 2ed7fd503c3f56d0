package service

// Notifier receives access-control change events for fan-out: the websocket
// hub tells dashboards to re-fetch allowed modules, the permission
// middleware drops its per-role cache.
type Notifier interface {
	AccessControlChanged(action, role string)
}

// NopNotifier is the default when no fan-out is wired (tests, CLI tooling).
type NopNotifier struct{}

func (NopNotifier) AccessControlChanged(string, string) {}
