package config

const (
	defaultWorkDir           = "~/.local/share/gifsmith/work"
	defaultCacheDir          = "~/.cache/gifsmith"
	defaultLogDir            = "~/.local/share/gifsmith/logs"
	defaultBackend           = "ffmpeg"
	defaultFFmpegBinary      = "ffmpeg"
	defaultEngineTimeout     = 120
	defaultMemoryCeilingMiB  = 1024
	defaultProbeTimeout      = 30
	defaultRetryBackoffMs    = 250
	defaultRetryBackoffMaxMs = 5000
	defaultMaxOverlays       = 4
	defaultCacheMaxMiB       = 512
	defaultHTTPBind          = "127.0.0.1:8675"
	defaultRequestTimeout    = 300
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkDir:  defaultWorkDir,
			CacheDir: defaultCacheDir,
			LogDir:   defaultLogDir,
		},
		Engine: Engine{
			Backend:           defaultBackend,
			FFmpegBinary:      defaultFFmpegBinary,
			TimeoutSeconds:    defaultEngineTimeout,
			MemoryCeilingMiB:  defaultMemoryCeilingMiB,
			ProbeTimeoutSecs:  defaultProbeTimeout,
			RetryBackoffMs:    defaultRetryBackoffMs,
			RetryBackoffMaxMs: defaultRetryBackoffMaxMs,
		},
		Overlays: Overlays{
			MaxCount: defaultMaxOverlays,
		},
		Cache: Cache{
			Enabled: true,
			MaxMiB:  defaultCacheMaxMiB,
		},
		HTTP: HTTP{
			Bind:                  defaultHTTPBind,
			RequestTimeoutSeconds: defaultRequestTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
