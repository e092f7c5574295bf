// Package settings loads and writes the optional runtime settings file.
// Credentials never pass through here; they arrive exclusively as flags.
package settings

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ekamcp/internal/domain"
)

type Loader struct {
	logger *zap.Logger
}

func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		return &Loader{logger: zap.NewNop()}
	}
	return &Loader{logger: logger.Named("settings")}
}

func newSettingsViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("upstream.requestTimeoutSeconds", domain.DefaultRequestTimeoutSeconds)
	v.SetDefault("upstream.maxConnections", domain.DefaultMaxConnections)
	v.SetDefault("upstream.maxIdleConnections", domain.DefaultMaxIdleConnections)
	v.SetDefault("upstream.tokenRefreshLeewaySeconds", domain.DefaultTokenRefreshLeewaySeconds)
	v.SetDefault("workflow.maxSessions", domain.DefaultMaxSessions)
	v.SetDefault("workflow.sessionTTLSeconds", domain.DefaultSessionTTLSeconds)
	v.SetDefault("workflow.tagCacheTTLSeconds", domain.DefaultTagCacheTTLSeconds)
	v.SetDefault("logging.level", domain.DefaultLogLevel)
}

// Load reads the settings file at path. An empty path yields the defaults
// so the server runs without any file on disk.
func (l *Loader) Load(path string) (domain.Settings, error) {
	if path == "" {
		return domain.DefaultSettings(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("read settings: %w", err)
	}

	expanded, missing := expandEnv(string(data))
	if len(missing) > 0 {
		l.logger.Warn("missing environment variables in settings file",
			zap.String("path", path),
			zap.Strings("missing", missing),
		)
	}

	v := newSettingsViper()
	if err := v.ReadConfig(strings.NewReader(expanded)); err != nil {
		return domain.Settings{}, fmt.Errorf("parse settings: %w", err)
	}

	var cfg domain.Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return domain.Settings{}, fmt.Errorf("decode settings: %w", err)
	}

	cfg.Normalize()
	if issues := cfg.Validate(); len(issues) > 0 {
		return domain.Settings{}, errors.New(strings.Join(issues, "; "))
	}
	return cfg, nil
}

// expandEnv substitutes ${VAR} references, tracking names that are unset.
func expandEnv(raw string) (string, []string) {
	missing := make(map[string]struct{})
	expanded := os.Expand(raw, func(key string) string {
		if val, ok := os.LookupEnv(key); ok {
			return val
		}
		missing[key] = struct{}{}
		return ""
	})
	if len(missing) == 0 {
		return expanded, nil
	}
	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)
	return expanded, names
}
