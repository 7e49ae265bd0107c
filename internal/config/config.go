package config

type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Log       LogConfig
	Retention RetentionConfig
	Insights  InsightsConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

type RetentionConfig struct {
	Days int
}

type InsightsConfig struct {
	Window int
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4400,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Retention: RetentionConfig{
			Days: 180,
		},
		Insights: InsightsConfig{
			Window: 500,
		},
	}
}

// Load reads configuration from the platform-native backend, then applies
// environment overrides.
//
// On macOS the backend is UserDefaults (domain: com.improver.app).
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/improver/config.json.
//
// Environment variables (IMPROVER_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}
