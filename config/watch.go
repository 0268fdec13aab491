package config

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/jacobbrewer1/cloudflare-failover/logging"
)

// Watch reloads the config file on every change and passes the new,
// validated configuration to onChange. Invalid files are logged and ignored.
func Watch(l *slog.Logger, vip *viper.Viper, base *Config, onChange func(*Config)) {
	vip.OnConfigChange(func(e fsnotify.Event) {
		l.Info("config file changed", slog.String(logging.KeyFile, e.Name))

		next, err := reload(vip, base)
		if err != nil {
			l.Error("ignoring invalid config change", slog.Any(logging.KeyError, err))
			return
		}
		onChange(next)
	})
	vip.WatchConfig()
}

func reload(vip *viper.Viper, base *Config) (*Config, error) {
	next := base.Clone()
	if err := vip.Unmarshal(next, decodeOptions()); err != nil {
		return nil, err
	}
	if err := next.Validate(); err != nil {
		return nil, err
	}
	return next, nil
}
