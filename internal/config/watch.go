package config

import (
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// WatchLogLevel applies changes of log.level in the config file to level
// without a restart. It is a no-op when no config file is in use.
func WatchLogLevel(v *viper.Viper, level zap.AtomicLevel, log *zap.Logger) {
	if v.ConfigFileUsed() == "" {
		return
	}

	log = log.Named("config")
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		applyLogLevel(v.GetString("log.level"), level, log)
	})
	v.WatchConfig()
}

func applyLogLevel(raw string, level zap.AtomicLevel, log *zap.Logger) {
	next, err := zapcore.ParseLevel(raw)
	if err != nil {
		log.Warn("ignoring invalid log level", zap.String("level", raw), zap.Error(err))
		return
	}
	if next == level.Level() {
		return
	}
	level.SetLevel(next)
	log.Info("log level changed", zap.String("level", next.String()))
}
