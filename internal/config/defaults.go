package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Tracker: TrackerConfig{
			TimeoutMs:      10000,
			PollIntervalMs: 20,
			IdlePolls:      3,
			Trace:          false,
		},
		Browser: BrowserConfig{
			Engine:              "rod",
			Headless:            true,
			Bin:                 "",
			DebuggerURL:         "",
			NavigationTimeoutMs: 30000,
		},
		Storage: StorageConfig{
			Path:       "~/.config/navstatus",
			SQLiteFile: "navstatus.db",
		},
		History: HistoryConfig{
			RetentionDays:  30,
			ExcludeDomains: []string{},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			File:   "",
		},
	}
}
