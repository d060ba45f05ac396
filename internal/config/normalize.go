package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScheduler()
	c.normalizeStages()
	if err := c.normalizeDownloader(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.UploadsDir) == "" {
		c.Paths.UploadsDir = defaultUploadsDir
	}
	if c.Paths.UploadsDir, err = expandPath(c.Paths.UploadsDir); err != nil {
		return fmt.Errorf("paths.uploads_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeScheduler() {
	s := &c.Scheduler
	if s.MaxConcurrent <= 0 {
		s.MaxConcurrent = defaultMaxConcurrent
	}
	if s.PollInterval <= 0 {
		s.PollInterval = defaultPollInterval
	}
	if s.ClaimRetryInterval <= 0 {
		s.ClaimRetryInterval = defaultClaimRetryInterval
	}
	if s.DispatchInterval <= 0 {
		s.DispatchInterval = defaultDispatchInterval
	}
	if s.LaunchSpacing < 0 {
		s.LaunchSpacing = defaultLaunchSpacing
	}
	if s.RestartCooldown <= 0 {
		s.RestartCooldown = defaultRestartCooldown
	}
	if s.StartVisibilityWindow <= 0 {
		s.StartVisibilityWindow = defaultStartVisibilityWindow
	}
	if s.WatchInterval <= 0 {
		s.WatchInterval = defaultWatchInterval
	}
	if s.MaxAttempts < 0 {
		s.MaxAttempts = 0
	}
	if c.Claims.TTLHours <= 0 {
		c.Claims.TTLHours = defaultClaimTTLHours
	}
	if c.Claims.SweepIntervalHours <= 0 {
		c.Claims.SweepIntervalHours = defaultClaimSweepHours
	}
}

func (c *Config) normalizeStages() {
	st := &c.Stages
	setDefault := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	setDefault(&st.WorkspaceLoadTimeout, defaultWorkspaceLoad)
	setDefault(&st.TimelineReadyTimeout, defaultTimelineReady)
	setDefault(&st.UploadStartTimeout, defaultUploadStart)
	setDefault(&st.TranscodeTimeout, defaultTranscodeTimeout)
	setDefault(&st.IndexingTimeout, defaultIndexingTimeout)
	setDefault(&st.MediaReadyTimeout, defaultMediaReadyTimeout)
	setDefault(&st.TransformTimeout, defaultTransformTimeout)
	setDefault(&st.SaveTimeout, defaultSaveTimeout)
	setDefault(&st.PollInterval, defaultStagePollInterval)
	if st.TransformRetries < 0 {
		st.TransformRetries = defaultTransformRetries
	}
	if st.FinalizeDelay < 0 {
		st.FinalizeDelay = defaultFinalizeDelay
	}
}

func (c *Config) normalizeDownloader() error {
	d := &c.Downloader
	if strings.TrimSpace(d.YtdlpPath) == "" {
		d.YtdlpPath = "yt-dlp"
	}
	if strings.TrimSpace(d.FfmpegPath) == "" {
		d.FfmpegPath = "ffmpeg"
	}
	if d.CookiesFile != "" {
		expanded, err := expandPath(d.CookiesFile)
		if err != nil {
			return fmt.Errorf("downloader.cookies_file: %w", err)
		}
		d.CookiesFile = expanded
	}
	if d.Retries <= 0 {
		d.Retries = defaultDownloaderRetries
	}
	if d.TrimThresholdMinutes <= 0 {
		d.TrimThresholdMinutes = defaultTrimThresholdMin
	}
	if d.TrimMinMinutes <= 0 {
		d.TrimMinMinutes = defaultTrimMinMinutes
	}
	if d.TrimMaxMinutes < d.TrimMinMinutes {
		d.TrimMaxMinutes = d.TrimMinMinutes
	}
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
