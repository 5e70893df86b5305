// Package config layers configuration for the jsongit CLI through a
// viper singleton, grounded on the layered-lookup strategy of a
// git-adjacent configuration system: walk up from the working directory
// looking for a project file. No user-level config directory is read.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the resolved configuration for a jsongit invocation.
type Config struct {
	StorePath     string
	IdentityName  string
	IdentityEmail string
	LogLevel      string
	LogFile       string
}

// Load resolves configuration from, in precedence order: an explicit
// --store/--memory flag override (applied by the caller after Load
// returns), environment variables prefixed JSONGIT_, a project
// .jsongit/config.yaml (or .toml) found by walking up from cwd, and
// built-in defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JSONGIT")
	v.AutomaticEnv()

	v.SetDefault("store.path", ".jsongit/objects.db")
	v.SetDefault("identity.name", "")
	v.SetDefault("identity.email", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	if path, ok := findProjectConfig(); ok {
		if filepath.Ext(path) == ".toml" {
			if err := loadTOML(v, path); err != nil {
				return nil, err
			}
		} else {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{
		StorePath:     v.GetString("store.path"),
		IdentityName:  v.GetString("identity.name"),
		IdentityEmail: v.GetString("identity.email"),
		LogLevel:      v.GetString("log.level"),
		LogFile:       v.GetString("log.file"),
	}

	if cfg.IdentityName == "" || cfg.IdentityEmail == "" {
		if name, email, ok := identityFromGitConfig(); ok {
			if cfg.IdentityName == "" {
				cfg.IdentityName = name
			}
			if cfg.IdentityEmail == "" {
				cfg.IdentityEmail = email
			}
		}
	}

	return cfg, nil
}

// findProjectConfig walks up from the working directory looking for
// .jsongit/config.yaml, then .jsongit/config.toml.
func findProjectConfig() (string, bool) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", false
	}
	for dir := cwd; ; dir = filepath.Dir(dir) {
		for _, name := range []string{"config.yaml", "config.toml"} {
			path := filepath.Join(dir, ".jsongit", name)
			if _, err := os.Stat(path); err == nil {
				return path, true
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false
		}
	}
}

func loadTOML(v *viper.Viper, path string) error {
	var data map[string]any
	if _, err := toml.DecodeFile(path, &data); err != nil {
		return err
	}
	return v.MergeConfigMap(data)
}

// WatchFile watches a project config file for writes and invokes onChange
// after each one, so a long-running command (watch) can notice an edit.
// It reloads nothing itself; onChange decides what to do. It returns a
// stop function that closes the underlying watcher; callers that start no
// watch (no config file present) get a no-op stop function.
func WatchFile(onChange func()) (stop func(), err error) {
	path, ok := findProjectConfig()
	if !ok {
		return func() {}, nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		_ = watcher.Close()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Name == path && event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
					onChange()
				}
			case _, ok := <-watcher.Errors:
				if !ok {
					return
				}
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		_ = watcher.Close()
	}, nil
}
