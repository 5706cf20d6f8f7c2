// Package config loads the tool configuration. Layering, lowest to
// highest precedence: built-in defaults, an optional lakebench.yaml,
// LAKEBENCH_* environment variables, then explicitly set CLI flags.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config file names searched in the working directory.
const (
	ConfigFileName    = "lakebench.yaml"
	ConfigFileNameAlt = "lakebench.yml"
)

// Default values.
const (
	DefaultFixturesDir = "fixtures"
	DefaultResultsDir  = "results"
	DefaultLabel       = "local"
	DefaultBackend     = "local"
	DefaultStorePath   = "results/lakebench.db"
)

// Config is the resolved tool configuration.
type Config struct {
	FixturesDir    string   `koanf:"fixtures_dir"`
	ResultsDir     string   `koanf:"results_dir"`
	Label          string   `koanf:"label"`
	GitSHA         string   `koanf:"git_sha"`
	StorageBackend string   `koanf:"storage_backend"`
	StorageOptions []string `koanf:"storage_options"`
	BackendProfile string   `koanf:"backend_profile"`
	StorePath      string   `koanf:"store_path"`

	// Manifest overrides; empty means the embedded defaults.
	NativeManifest string `koanf:"native_manifest"`
	PythonManifest string `koanf:"python_manifest"`
}

// Load builds the configuration. cfgFile overrides the config file search;
// flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"fixtures_dir":    DefaultFixturesDir,
		"results_dir":     DefaultResultsDir,
		"label":           DefaultLabel,
		"storage_backend": DefaultBackend,
		"store_path":      DefaultStorePath,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile == "" {
		cfgFile = findConfigFile(".")
	}
	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// LAKEBENCH_FIXTURES_DIR -> fixtures_dir. The LAKEBENCH_INTEROP_* and
	// fidelity variables are read where they are used, not here.
	if err := k.Load(env.Provider("LAKEBENCH_", ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, "LAKEBENCH_"))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if key == "storage_option" {
				return "storage_options", posflag.FlagVal(flags, f)
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	return &cfg, nil
}

func findConfigFile(dir string) string {
	for _, name := range []string{ConfigFileName, ConfigFileNameAlt} {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ValidateLabel rejects labels unusable as a results directory component.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("label must not be empty")
	}
	if label == "." || label == ".." {
		return fmt.Errorf("label '%s' is not allowed", label)
	}
	for _, ch := range label {
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9',
			ch == '.', ch == '-', ch == '_':
		default:
			return fmt.Errorf("label contains invalid characters; allowed: [A-Za-z0-9._-]")
		}
	}
	return nil
}

// ParseStorageOptions turns repeated KEY=VALUE flag values into a map.
func ParseStorageOptions(entries []string) (map[string]string, error) {
	options := make(map[string]string, len(entries))
	for _, entry := range entries {
		key, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("invalid storage option '%s'; expected KEY=VALUE", entry)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("invalid storage option '%s'; key must not be empty", entry)
		}
		options[key] = value
	}
	return options, nil
}

// Dataset scenario ids mapped onto the supported scales.
var datasetScales = map[string]string{
	"tiny_smoke":       "sf1",
	"medium_selective": "sf10",
	"small_files":      "sf1",
	"many_versions":    "sf1",
}

// ResolveScale returns the effective scale: the dataset id's scale when one
// is given, the explicit scale otherwise.
func ResolveScale(scale, datasetID string) (string, error) {
	if datasetID == "" {
		return scale, nil
	}
	resolved, ok := datasetScales[datasetID]
	if !ok {
		return "", fmt.Errorf(
			"unknown dataset_id '%s' (expected one of: tiny_smoke, medium_selective, small_files, many_versions)",
			datasetID)
	}
	return resolved, nil
}
