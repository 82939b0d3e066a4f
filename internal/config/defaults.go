package config

const (
	defaultStoreBaseURL        = "http://127.0.0.1:8790/v4"
	defaultTokenFile           = "~/.config/scrutin/token.json"
	defaultTimeoutSeconds      = 15
	defaultCacheTTLMillis      = 800
	defaultRetryAttempts       = 3
	defaultRetryBaseDelayMS    = 500
	defaultRetryMaxDelayMS     = 8000
	defaultRole                = "supervisor"
	defaultMunicipalSeats      = 35
	defaultCommunitySeats      = 10
	defaultSeatThresholdPct    = 5
	defaultRunoffAdmissionPct  = 10
	defaultAbsoluteMajorityPct = 50
	defaultServerBind          = "127.0.0.1:8790"
	defaultDatabasePath        = "~/.local/share/scrutin/store.db"
	defaultLogDir              = "~/.local/share/scrutin/logs"
	defaultStateDir            = "~/.local/share/scrutin"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
)

func defaultTurnoutHours() []int {
	return []int{9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Store: Store{
			BaseURL:          defaultStoreBaseURL,
			TokenFile:        defaultTokenFile,
			TimeoutSeconds:   defaultTimeoutSeconds,
			CacheTTLMillis:   defaultCacheTTLMillis,
			RetryAttempts:    defaultRetryAttempts,
			RetryBaseDelayMS: defaultRetryBaseDelayMS,
			RetryMaxDelayMS:  defaultRetryMaxDelayMS,
		},
		Session: Session{
			Role: defaultRole,
		},
		Election: Election{
			MunicipalSeats:      defaultMunicipalSeats,
			CommunitySeats:      defaultCommunitySeats,
			SeatThresholdPct:    defaultSeatThresholdPct,
			RunoffAdmissionPct:  defaultRunoffAdmissionPct,
			AbsoluteMajorityPct: defaultAbsoluteMajorityPct,
			TurnoutHours:        defaultTurnoutHours(),
		},
		Server: Server{
			Bind:         defaultServerBind,
			DatabasePath: defaultDatabasePath,
		},
		Paths: Paths{
			LogDir:   defaultLogDir,
			StateDir: defaultStateDir,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
