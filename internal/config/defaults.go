package config

const (
	defaultDataDir    = "~/.local/share/clipflow"
	defaultUploadsDir = "~/.local/share/clipflow/uploads"
	defaultLogDir     = "~/.local/share/clipflow/logs"

	defaultMaxConcurrent         = 3
	defaultPollInterval          = 180
	defaultClaimRetryInterval    = 20
	defaultDispatchInterval      = 20
	defaultLaunchSpacing         = 180
	defaultRestartCooldown       = 60
	defaultStartVisibilityWindow = 120
	defaultWatchInterval         = 5

	defaultClaimTTLHours      = 24
	defaultClaimSweepHours    = 48
	defaultWorkspaceLoad      = 420
	defaultTimelineReady      = 360
	defaultUploadStart        = 300
	defaultTranscodeTimeout   = 2700
	defaultIndexingTimeout    = 2400
	defaultMediaReadyTimeout  = 600
	defaultTransformTimeout   = 18000
	defaultTransformRetries   = 4
	defaultSaveTimeout        = 60
	defaultFinalizeDelay      = 25
	defaultStagePollInterval  = 5
	defaultDownloaderRetries  = 5
	defaultTrimThresholdMin   = 60
	defaultTrimMinMinutes     = 49
	defaultTrimMaxMinutes     = 63
	defaultDriverConnectSecs  = 30
	defaultDriverRequestSecs  = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			UploadsDir: defaultUploadsDir,
			LogDir:     defaultLogDir,
		},
		Scheduler: Scheduler{
			Enabled:               true,
			MaxConcurrent:         defaultMaxConcurrent,
			PollInterval:          defaultPollInterval,
			ClaimRetryInterval:    defaultClaimRetryInterval,
			DispatchInterval:      defaultDispatchInterval,
			LaunchSpacing:         defaultLaunchSpacing,
			RestartCooldown:       defaultRestartCooldown,
			StartVisibilityWindow: defaultStartVisibilityWindow,
			WatchInterval:         defaultWatchInterval,
		},
		Claims: Claims{
			TTLHours:           defaultClaimTTLHours,
			SweepIntervalHours: defaultClaimSweepHours,
		},
		Stages: Stages{
			WorkspaceLoadTimeout: defaultWorkspaceLoad,
			TimelineReadyTimeout: defaultTimelineReady,
			UploadStartTimeout:   defaultUploadStart,
			TranscodeTimeout:     defaultTranscodeTimeout,
			IndexingTimeout:      defaultIndexingTimeout,
			MediaReadyTimeout:    defaultMediaReadyTimeout,
			TransformTimeout:     defaultTransformTimeout,
			TransformRetries:     defaultTransformRetries,
			SaveTimeout:          defaultSaveTimeout,
			FinalizeDelay:        defaultFinalizeDelay,
			PollInterval:         defaultStagePollInterval,
		},
		Downloader: Downloader{
			YtdlpPath:            "yt-dlp",
			FfmpegPath:           "ffmpeg",
			Retries:              defaultDownloaderRetries,
			TrimThresholdMinutes: defaultTrimThresholdMin,
			TrimMinMinutes:       defaultTrimMinMinutes,
			TrimMaxMinutes:       defaultTrimMaxMinutes,
		},
		Driver: Driver{
			ConnectTimeout: defaultDriverConnectSecs,
			RequestTimeout: defaultDriverRequestSecs,
		},
		RunLog: RunLog{
			Enabled: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
