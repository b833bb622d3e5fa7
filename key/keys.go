// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Surface Locator - these keys bound the polling loop that searches the host page for a playback surface.
const (
	LocatorMaxAttempts = "locator.max_attempts"
	LocatorIntervalMS  = "locator.interval_ms"
)

// Skip Behaviour - these keys govern the intro/outro skip policy applied to the active surface.
const (
	SkipEnabled        = "skip.enabled"
	SkipGraceDelayMS   = "skip.grace_delay_ms"
	SkipOutroEpsilonMS = "skip.outro_epsilon_ms"
)

// Server Selection - these keys configure the host-page server dropdown preference side effect.
const (
	ServerPriorities = "servers.priorities"
)

// Change Monitor - these keys tune the DOM mutation coalescing pass.
const (
	MonitorDebounceMS = "monitor.debounce_ms"
)

// Control API - these keys configure the local HTTP/websocket endpoint consumed by the extension UI.
const (
	ServerListen = "server.listen"
)

// History Tracking - these keys configure the persistence of auto-advance records.
const (
	HistorySaveOnAdvance = "history.save_on_advance"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics and auditing system.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these flags and settings govern the command-line behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)

// Icons - these keys select the visual variant used for CLI feedback symbols.
const (
	IconsVariant = "icons.variant"
)
