package loader

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/petal-labs/commandry/command"
)

const (
	projectConfigName = "commandry.yaml"
	homeConfigName    = "config.yaml"

	// EnvConfigPath overrides config discovery when no explicit path is given.
	EnvConfigPath = "COMMANDRY_CONFIG"
)

// File is the declarative shape of a commands file.
type File struct {
	Commands map[string]Declaration `yaml:"commands" toml:"commands" json:"commands"`
}

// Declaration defines one subprocess-backed command.
type Declaration struct {
	Title       string                       `yaml:"title,omitempty" toml:"title,omitempty" json:"title,omitempty"`
	Description string                       `yaml:"description,omitempty" toml:"description,omitempty" json:"description,omitempty"`
	Exec        string                       `yaml:"exec" toml:"exec" json:"exec"`
	Args        []string                     `yaml:"args,omitempty" toml:"args,omitempty" json:"args,omitempty"`
	Env         map[string]string            `yaml:"env,omitempty" toml:"env,omitempty" json:"env,omitempty"`
	Dir         string                       `yaml:"dir,omitempty" toml:"dir,omitempty" json:"dir,omitempty"`
	Timeout     string                       `yaml:"timeout,omitempty" toml:"timeout,omitempty" json:"timeout,omitempty"`
	Tool        bool                         `yaml:"tool,omitempty" toml:"tool,omitempty" json:"tool,omitempty"`
	Name        string                       `yaml:"name,omitempty" toml:"name,omitempty" json:"name,omitempty"`
	Hints       Hints                        `yaml:"hints,omitempty" toml:"hints,omitempty" json:"hints,omitempty"`
	Properties  map[string][]string          `yaml:"properties,omitempty" toml:"properties,omitempty" json:"properties,omitempty"`
	Parameters  map[string]command.FieldSpec `yaml:"parameters,omitempty" toml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Hints are the behavioral hints advertised with a tool. Nil hints are left
// unset.
type Hints struct {
	ReadOnly    *bool `yaml:"read_only,omitempty" toml:"read_only,omitempty" json:"read_only,omitempty"`
	Destructive *bool `yaml:"destructive,omitempty" toml:"destructive,omitempty" json:"destructive,omitempty"`
	Idempotent  *bool `yaml:"idempotent,omitempty" toml:"idempotent,omitempty" json:"idempotent,omitempty"`
	OpenWorld   *bool `yaml:"open_world,omitempty" toml:"open_world,omitempty" json:"open_world,omitempty"`
}

// DiscoverConfigPath resolves the config location with first-match semantics:
// explicit path, then $COMMANDRY_CONFIG, then ./commandry.yaml, then
// ~/.commandry/config.yaml.
func DiscoverConfigPath(explicitPath string) (string, bool, error) {
	if strings.TrimSpace(explicitPath) == "" {
		explicitPath = os.Getenv(EnvConfigPath)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", false, fmt.Errorf("resolve working directory: %w", err)
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", false, fmt.Errorf("resolve user home: %w", err)
	}
	return DiscoverConfigPathFrom(explicitPath, cwd, homeDir)
}

// DiscoverConfigPathFrom is a testable variant of DiscoverConfigPath that
// ignores the environment.
func DiscoverConfigPathFrom(explicitPath, cwd, homeDir string) (string, bool, error) {
	candidates := make([]string, 0, 2)
	if clean := strings.TrimSpace(explicitPath); clean != "" {
		candidates = append(candidates, filepath.Clean(clean))
	} else {
		candidates = append(candidates, filepath.Join(cwd, projectConfigName))
		candidates = append(candidates, filepath.Join(homeDir, ".commandry", homeConfigName))
	}

	for i, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil && !info.IsDir() {
			return candidate, true, nil
		}
		if errors.Is(err, os.ErrNotExist) {
			// An explicit path that does not exist is an error.
			if i == 0 && strings.TrimSpace(explicitPath) != "" {
				return "", false, fmt.Errorf("config file %q not found", candidate)
			}
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("checking config path %q: %w", candidate, err)
		}
	}
	return "", false, nil
}

// LoadFile reads and decodes a commands file.
func LoadFile(path string) (File, error) {
	file, _, err := loadFile(path)
	return file, err
}

func loadFile(path string) (File, string, error) {
	format, err := DetectFormat(path)
	if err != nil {
		return File{}, "", err
	}
	// #nosec G304 -- path resolved from explicit local config discovery.
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, "", fmt.Errorf("reading config %q: %w", path, err)
	}
	var file File
	if err := decode(format, data, &file); err != nil {
		return File{}, "", fmt.Errorf("config %q: %w", path, err)
	}
	return file, fingerprint(data), nil
}

func fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// BuildCommands builds one exec command per declaration, sorted by name. Relative
// dir values resolve against baseDir.
func (f File) BuildCommands(baseDir string) ([]command.Command, error) {
	names := make([]string, 0, len(f.Commands))
	for name := range f.Commands {
		names = append(names, name)
	}
	sort.Strings(names)

	cmds := make([]command.Command, 0, len(names))
	for _, name := range names {
		cmd, err := f.Commands[name].build(strings.TrimSpace(name), baseDir)
		if err != nil {
			return nil, fmt.Errorf("command %q: %w", name, err)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, nil
}

func (d Declaration) build(name, baseDir string) (*command.Exec, error) {
	if name == "" {
		return nil, errors.New("name is required")
	}
	executable := strings.TrimSpace(expandEnvValue(d.Exec))
	if executable == "" {
		return nil, errors.New("exec is required")
	}

	var timeout time.Duration
	if clean := strings.TrimSpace(d.Timeout); clean != "" {
		parsed, err := time.ParseDuration(clean)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", d.Timeout, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("timeout must be positive, got %q", d.Timeout)
		}
		timeout = parsed
	}

	args := make([]string, 0, len(d.Args))
	for _, arg := range d.Args {
		args = append(args, expandEnvValue(arg))
	}

	dir := strings.TrimSpace(expandEnvValue(d.Dir))
	if dir != "" {
		dir = resolveConfigRelative(baseDir, dir)
	}

	return command.NewExec(command.ExecSpec{
		Metadata: command.Metadata{
			Name:        name,
			Title:       strings.TrimSpace(d.Title),
			Description: strings.TrimSpace(d.Description),
			Properties:  d.properties(),
			Schema:      command.Schema{Parameters: d.Parameters},
		},
		Command: executable,
		Args:    args,
		Env:     expandStringMap(d.Env),
		Dir:     dir,
		Timeout: timeout,
	})
}

// properties folds the typed declaration fields into the property bag. Typed
// fields win over free-form entries with the same key.
func (d Declaration) properties() command.Properties {
	props := command.Properties{}
	for key, values := range d.Properties {
		if clean := strings.TrimSpace(key); clean != "" {
			props.Set(clean, values...)
		}
	}
	if d.Tool && !props.Has(command.PropertyRole, command.RoleMCPTool) {
		props.Add(command.PropertyRole, command.RoleMCPTool)
	}
	if name := strings.TrimSpace(d.Name); name != "" {
		props.Set(command.PropertyName, name)
	}
	setHint(props, command.PropertyReadOnlyHint, d.Hints.ReadOnly)
	setHint(props, command.PropertyDestructiveHint, d.Hints.Destructive)
	setHint(props, command.PropertyIdempotentHint, d.Hints.Idempotent)
	setHint(props, command.PropertyOpenWorldHint, d.Hints.OpenWorld)
	return props
}

func setHint(props command.Properties, key string, value *bool) {
	if value == nil {
		return
	}
	if *value {
		props.Set(key, "True")
		return
	}
	props.Set(key, "False")
}

func expandStringMap(values map[string]string) map[string]string {
	if len(values) == 0 {
		return nil
	}
	out := make(map[string]string, len(values))
	for key, value := range values {
		out[key] = expandEnvValue(value)
	}
	return out
}

func expandEnvValue(value string) string {
	return os.ExpandEnv(value)
}

func resolveConfigRelative(baseDir, p string) string {
	clean := filepath.Clean(p)
	if filepath.IsAbs(clean) || baseDir == "" {
		return clean
	}
	return filepath.Join(baseDir, clean)
}
