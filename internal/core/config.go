package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const ConfigFileName = ".iosrun"

const (
	configFileHint   = "Fix the YAML in .iosrun.yaml, or pass --config with a readable file."
	configValuesHint = "Check the value types in the config file and IOSRUN_* environment variables."
	portHint         = "Use a bundler port between 1 and 65535 (--port or RCT_METRO_PORT)."
)

// Config is the merged view of defaults, the optional .iosrun.yaml, the
// environment and command-line flags, in increasing precedence.
type Config struct {
	ProjectPath     string `mapstructure:"project_path"`
	Scheme          string `mapstructure:"scheme"`
	Configuration   string `mapstructure:"configuration"`
	Simulator       string `mapstructure:"simulator"`
	Device          string `mapstructure:"device"`
	UDID            string `mapstructure:"udid"`
	DerivedDataPath string `mapstructure:"derived_data_path"`

	NoPackager bool   `mapstructure:"no_packager"`
	Port       int    `mapstructure:"port"`
	Terminal   string `mapstructure:"terminal"`

	LogFormat string `mapstructure:"log_format"`
	Verbose   bool   `mapstructure:"verbose"`
}

func DefaultConfig() Config {
	return Config{
		ProjectPath:   DefaultProjectPath,
		Configuration: DefaultConfiguration,
		Simulator:     DefaultSimulator,
		Port:          DefaultBundlerPort,
		LogFormat:     string(LogFormatAuto),
	}
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"project-path":      "project_path",
	"scheme":            "scheme",
	"configuration":     "configuration",
	"simulator":         "simulator",
	"device":            "device",
	"udid":              "udid",
	"derived-data-path": "derived_data_path",
	"no-packager":       "no_packager",
	"port":              "port",
	"terminal":          "terminal",
	"log-format":        "log_format",
	"verbose":           "verbose",
}

// LoadConfig builds the run configuration. configFile overrides the
// .iosrun.yaml lookup in the working directory; a missing default file is
// not an error. flags may be nil.
func LoadConfig(configFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(ConfigFileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("IOSRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("port", "RCT_METRO_PORT", "IOSRUN_PORT")
	_ = v.BindEnv("terminal", "REACT_TERMINAL", "TERM_PROGRAM", "IOSRUN_TERMINAL")

	def := DefaultConfig()
	v.SetDefault("project_path", def.ProjectPath)
	v.SetDefault("configuration", def.Configuration)
	v.SetDefault("simulator", def.Simulator)
	v.SetDefault("port", def.Port)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("no_packager", false)
	v.SetDefault("verbose", false)
	for _, key := range []string{"scheme", "device", "udid", "derived_data_path", "terminal"} {
		v.SetDefault(key, "")
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return Config{}, &ConfigurationError{Msg: "read config file", Err: err, Suggestion: configFileHint}
		}
	}

	cfg := def
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, &ConfigurationError{Msg: "decode config", Err: err, Suggestion: configValuesHint}
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, &ConfigurationError{Msg: fmt.Sprintf("invalid bundler port %d", cfg.Port), Suggestion: portHint}
	}
	return cfg, nil
}

func (c Config) RunOptions() RunOptions {
	return RunOptions{
		ProjectPath:     c.ProjectPath,
		Scheme:          c.Scheme,
		Configuration:   c.Configuration,
		DerivedDataPath: c.DerivedDataPath,
		Simulator:       c.Simulator,
		DeviceSet:       c.Device != "",
		Device:          c.Device,
		UDID:            c.UDID,
		Packager:        !c.NoPackager,
		Port:            c.Port,
		Terminal:        c.Terminal,
	}
}
