// Package config loads the aql command configuration from .aql.yaml, AQL_* environment
// variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// AppFs is the filesystem configuration, env files and catalogs are read from.
var AppFs = afero.NewOsFs()

// FileName is the base name of the configuration file.
const FileName = ".aql"

// Config holds the application configuration
type Config struct {
	Provider      string
	DatabaseURL   string
	CatalogPath   string
	Debug         bool
	LogFormat     string
	Substitutions map[string]string
	// Constants are read from the YAML document at constants_path.
	Constants map[string]any

	PlanCacheSize  int
	QueryCacheSize int
	FetchSize      int
	TimeoutSeconds int

	// File is the configuration file that was read, empty when none was found.
	File string
}

// Load reads the configuration. An explicit path must exist; otherwise .aql.yaml is
// searched in the working directory, $HOME and $HOME/.config/aql.
func Load(explicit string) (*Config, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigType("yaml")

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName(FileName)
		v.AddConfigPath(".")
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
			v.AddConfigPath(filepath.Join(home, ".config", "aql"))
		}
	}

	v.SetEnvPrefix("AQL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("catalog_path", "catalog.yaml")
	v.SetDefault("debug", false)
	v.SetDefault("log_format", "text")
	v.SetDefault("plan_cache_size", 256)
	v.SetDefault("query_cache_size", 128)
	v.SetDefault("fetch_size", 0)
	v.SetDefault("timeout_seconds", 0)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// .env.local overrides .env; neither overrides the process environment.
	env := map[string]string{}
	for _, name := range []string{".env", ".env.local"} {
		vals, err := readEnvFile(name)
		if err != nil {
			return nil, err
		}
		for k, val := range vals {
			env[k] = val
		}
	}
	for k, val := range env {
		if _, set := os.LookupEnv(k); !set {
			_ = os.Setenv(k, val)
		}
	}

	cfg := &Config{
		Provider:       v.GetString("provider"),
		DatabaseURL:    v.GetString("database_url"),
		CatalogPath:    v.GetString("catalog_path"),
		Debug:          v.GetBool("debug"),
		LogFormat:      v.GetString("log_format"),
		Substitutions:  v.GetStringMapString("substitutions"),
		PlanCacheSize:  v.GetInt("plan_cache_size"),
		QueryCacheSize: v.GetInt("query_cache_size"),
		FetchSize:      v.GetInt("fetch_size"),
		TimeoutSeconds: v.GetInt("timeout_seconds"),
		File:           v.ConfigFileUsed(),
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	// viper folds key case, so constants live in their own document.
	if path := v.GetString("constants_path"); path != "" {
		consts, err := readConstants(path)
		if err != nil {
			return nil, err
		}
		cfg.Constants = consts
	}
	return cfg, nil
}

// readEnvFile parses a dotenv file on AppFs; a missing file yields no values.
func readEnvFile(name string) (map[string]string, error) {
	f, err := AppFs.Open(name)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()
	vals, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return vals, nil
}

func readConstants(path string) (map[string]any, error) {
	data, err := afero.ReadFile(AppFs, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read constants: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse constants %s: %w", path, err)
	}
	return flatten("", doc), nil
}

// flatten turns nested constant groups into dotted names: {Status: {ACTIVE: 1}} becomes
// Status.ACTIVE.
func flatten(prefix string, m map[string]any) map[string]any {
	out := map[string]any{}
	for k, val := range m {
		name := k
		if prefix != "" {
			name = prefix + "." + k
		}
		if nested, ok := val.(map[string]any); ok {
			for nk, nv := range flatten(name, nested) {
				out[nk] = nv
			}
			continue
		}
		out[name] = val
	}
	return out
}

// Save writes cfg as .aql.yaml into dir.
func Save(cfg *Config, dir string) (string, error) {
	v := viper.New()
	v.SetFs(AppFs)
	v.Set("provider", cfg.Provider)
	v.Set("catalog_path", cfg.CatalogPath)
	v.Set("debug", cfg.Debug)
	if cfg.DatabaseURL != "" {
		v.Set("database_url", cfg.DatabaseURL)
	}
	if len(cfg.Substitutions) > 0 {
		v.Set("substitutions", cfg.Substitutions)
	}

	if err := AppFs.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, FileName+".yaml")
	return path, v.WriteConfigAs(path)
}
