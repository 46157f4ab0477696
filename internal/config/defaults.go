package config

const (
	defaultIncomingDir         = "~/.local/share/rostersync/clients"
	defaultLogDir              = "~/.local/share/rostersync/logs"
	defaultReportsDir          = "~/.local/share/rostersync/reports"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultUpstreamTimeout     = 30
	defaultSearchLimit         = 10
	defaultAppID               = "rostersync"
	defaultPrivilegeOverride   = ""
	defaultPollIntervalSeconds = 5
	defaultSchema              = "district"

	// DefaultLoadQueue and DefaultIngestQueue name the queues clients use
	// unless they override load_queue / ingest_queue.
	DefaultLoadQueue   = "csvloader"
	DefaultIngestQueue = "ingestor"

	// QueueKindLoad and QueueKindIngest select the handler a queue runs.
	QueueKindLoad   = "load"
	QueueKindIngest = "ingest"

	defaultLoadConcurrency   = 4
	defaultIngestConcurrency = 16
	defaultIngestAttempts    = 3
	defaultRetryBackoff      = 2
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			IncomingDir: defaultIncomingDir,
			LogDir:      defaultLogDir,
			ReportsDir:  defaultReportsDir,
		},
		Upstream: Upstream{
			AppID:             defaultAppID,
			PrivilegeOverride: defaultPrivilegeOverride,
			TimeoutSeconds:    defaultUpstreamTimeout,
			SearchLimit:       defaultSearchLimit,
		},
		Ingest: Ingest{
			PollIntervalSeconds: defaultPollIntervalSeconds,
		},
		Defaults: Defaults{
			SuppressedAddress: "UNKNOWN",
		},
		Notifications: Notifications{
			RequestTimeout: 10,
			BatchCompleted: true,
			BatchFailed:    true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

func defaultQueues() []Queue {
	return []Queue{
		{Name: DefaultLoadQueue, Kind: QueueKindLoad, Concurrency: defaultLoadConcurrency, MaxAttempts: 1},
		{Name: DefaultIngestQueue, Kind: QueueKindIngest, Concurrency: defaultIngestConcurrency, MaxAttempts: defaultIngestAttempts, RetryBackoffSeconds: defaultRetryBackoff},
	}
}
