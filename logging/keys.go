package logging

const (
	// KeyAppName represents the key for the application name.
	KeyAppName = `app`

	// KeyGitCommit represents the key for the git commit the binary was built from.
	KeyGitCommit = `git_commit`

	// KeyRuntime represents the key for the Go runtime and platform.
	KeyRuntime = `runtime`

	// KeyCommitTimestamp represents the key for the commit timestamp.
	KeyCommitTimestamp = `commit_timestamp`

	// KeyError represents the key for the error.
	KeyError = `err`

	// KeyRequestID represents the key for the request ID.
	KeyRequestID = `request_id`

	// KeyMethod represents the key for the HTTP method.
	KeyMethod = `method`

	// KeyPath represents the key for the HTTP path.
	KeyPath = `path`

	// KeyComponent represents the key for the component.
	KeyComponent = `component`

	// KeyIdentity represents the key for a leader election identity.
	KeyIdentity = `identity`

	// KeyServer represents the key for the server.
	KeyServer = `server`

	// KeyName represents the key for the name.
	KeyName = `name`

	// KeyFile represents the key for the file.
	KeyFile = `file`

	// KeyBackend represents the key for the state persistence backend.
	KeyBackend = `backend`

	// KeyDomain represents the key for the DNS record name being managed.
	KeyDomain = `domain`

	// KeyRecordType represents the key for the DNS record type.
	KeyRecordType = `record_type`

	// KeyTarget represents the key for the probed or written address.
	KeyTarget = `target`

	// KeyCurrentIP represents the key for the address the record currently points at.
	KeyCurrentIP = `current_ip`

	// KeyLatency represents the key for a probe latency in milliseconds.
	KeyLatency = `latency_ms`

	// KeyHealthy represents the key for the healthiness verdict of a probe.
	KeyHealthy = `healthy`

	// KeyAction represents the key for a failover engine action.
	KeyAction = `action`

	// KeyReason represents the key for the reason attached to a decision.
	KeyReason = `reason`

	// KeyMode represents the key for the active mode (primary or backup).
	KeyMode = `mode`

	// KeyCycle represents the key for the monitor cycle number.
	KeyCycle = `cycle`

	// KeyFailures represents the key for the consecutive failure counter.
	KeyFailures = `consecutive_failures`

	// KeySuccesses represents the key for the consecutive success counter.
	KeySuccesses = `consecutive_successes`

	// KeyInterval represents the key for the check interval.
	KeyInterval = `interval`

	// KeyEvent represents the key for a telemetry event type.
	KeyEvent = `event`

	// KeyStatus represents the key for a health check status.
	KeyStatus = `status`

	// KeyPort represents the key for a listening port.
	KeyPort = `port`

	// KeyLatencyThreshold represents the key for the latency threshold in milliseconds.
	KeyLatencyThreshold = `latency_threshold_ms`
)
