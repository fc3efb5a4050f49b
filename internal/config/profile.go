// Package config loads the launch profile: the container name, image,
// published ports, volume directories, credential and plugin settings that
// make up a launch.
//
// With no profile file the built-in defaults reproduce the standard
// launch exactly. A profile file only needs to name the fields it changes;
// everything else keeps its default.
//
// Profile files may be YAML (gopkg.in/yaml.v3), JSON with comments
// (github.com/tidwall/jsonc) or TOML (github.com/pelletier/go-toml/v2).
// The format is chosen by file extension.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/shinji-kodama/neo4japanese/internal/model"
)

// Default values of the launch profile.
const (
	DefaultRuntime   = "docker"
	DefaultBackend   = BackendCLI
	DefaultName      = "neo4japanese"
	DefaultImage     = "neo4j:4.4"
	DefaultBaseDir   = "~/neo4j"
	DefaultHTTPPort  = 7474
	DefaultBoltPort  = 7687
	DefaultUser      = "neo4j"
	DefaultPassword  = "japanese"
	defaultHomeToken = "~"
)

// DefaultPlugins lists the bundled extensions enabled in the container, in
// the order they are passed to the image.
var DefaultPlugins = []string{"apoc", "graph-data-science"}

// Backend values select how the launch is issued.
const (
	// BackendCLI shells out to the runtime binary ("docker run ...").
	BackendCLI = "cli"

	// BackendAPI talks to the Docker Engine API directly.
	BackendAPI = "api"
)

// Environment variable names understood by the Neo4j image.
const (
	EnvAuth                 = "NEO4J_AUTH"
	EnvPlugins              = "NEO4JLABS_PLUGINS"
	EnvAPOCExportFile       = "NEO4J_apoc_export_file_enabled"
	EnvAPOCImportFile       = "NEO4J_apoc_import_file_enabled"
	EnvAPOCImportUseNeo4jCf = "NEO4J_apoc_import_file_use__neo4j__config"
)

// Container-side mount targets of the Neo4j image.
const (
	ContainerDataDir    = "/data"
	ContainerLogsDir    = "/logs"
	ContainerImportDir  = "/var/lib/neo4j/import"
	ContainerPluginsDir = "/plugins"
)

// Container-side ports of the Neo4j image.
const (
	ContainerHTTPPort = 7474
	ContainerBoltPort = 7687
)

// Profile is the user-facing launch configuration.
//
// Struct tags cover all three accepted file formats. Field names use
// camelCase in every format so a profile can be converted between formats
// without renaming keys.
type Profile struct {
	// Runtime is the container runtime binary used by the CLI backend
	// ("docker" or a compatible CLI such as "podman").
	Runtime string `yaml:"runtime" json:"runtime" toml:"runtime"`

	// Backend selects the launch backend: "cli" (default) or "api".
	Backend string `yaml:"backend" json:"backend" toml:"backend"`

	// Name is the container name.
	Name string `yaml:"name" json:"name" toml:"name"`

	// Image is the image reference.
	Image string `yaml:"image" json:"image" toml:"image"`

	// BaseDir is the host directory under which the data, logs, import
	// and plugins directories live. A leading "~" expands to the user's
	// home directory.
	BaseDir string `yaml:"baseDir" json:"baseDir" toml:"baseDir"`

	// Volumes optionally overrides individual host directories.
	Volumes VolumePaths `yaml:"volumes" json:"volumes" toml:"volumes"`

	// Ports holds the host-side port numbers.
	Ports Ports `yaml:"ports" json:"ports" toml:"ports"`

	// Auth is the initial username/password pair.
	Auth Auth `yaml:"auth" json:"auth" toml:"auth"`

	// Plugins lists the bundled extensions to enable, order preserved.
	Plugins []string `yaml:"plugins" json:"plugins" toml:"plugins"`

	// APOC holds the file import/export feature flags.
	APOC APOC `yaml:"apoc" json:"apoc" toml:"apoc"`
}

// VolumePaths holds optional per-directory overrides. Empty fields fall
// back to BaseDir joined with the directory's name.
type VolumePaths struct {
	Data    string `yaml:"data" json:"data" toml:"data"`
	Logs    string `yaml:"logs" json:"logs" toml:"logs"`
	Import  string `yaml:"import" json:"import" toml:"import"`
	Plugins string `yaml:"plugins" json:"plugins" toml:"plugins"`
}

// Ports holds the host-side ports for the two database listeners.
type Ports struct {
	HTTP int `yaml:"http" json:"http" toml:"http"`
	Bolt int `yaml:"bolt" json:"bolt" toml:"bolt"`
}

// Auth is the initial database credential. It is passed to the container
// as a literal; no secret store is involved.
type Auth struct {
	User     string `yaml:"user" json:"user" toml:"user"`
	Password string `yaml:"password" json:"password" toml:"password"`
}

// APOC holds the APOC file feature flags.
type APOC struct {
	ExportFile           bool `yaml:"exportFile" json:"exportFile" toml:"exportFile"`
	ImportFile           bool `yaml:"importFile" json:"importFile" toml:"importFile"`
	ImportUseNeo4jConfig bool `yaml:"importUseNeo4jConfig" json:"importUseNeo4jConfig" toml:"importUseNeo4jConfig"`
}

// Default returns the built-in profile with BaseDir resolved against the
// current user's home directory.
func Default() (*Profile, error) {
	p := defaults()
	if err := p.normalize(); err != nil {
		return nil, err
	}
	return p, nil
}

// defaults returns the literal default profile without resolving paths.
func defaults() *Profile {
	return &Profile{
		Runtime: DefaultRuntime,
		Backend: DefaultBackend,
		Name:    DefaultName,
		Image:   DefaultImage,
		BaseDir: DefaultBaseDir,
		Ports: Ports{
			HTTP: DefaultHTTPPort,
			Bolt: DefaultBoltPort,
		},
		Auth: Auth{
			User:     DefaultUser,
			Password: DefaultPassword,
		},
		Plugins: append([]string(nil), DefaultPlugins...),
		APOC: APOC{
			ExportFile:           true,
			ImportFile:           true,
			ImportUseNeo4jConfig: true,
		},
	}
}

// Load reads the profile file at path and overlays it onto the defaults.
// Fields absent from the file keep their default values.
//
// Returns a CLIError with ExitConfigInvalid if the file cannot be read,
// has an unknown extension, or fails to parse.
func Load(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("failed to read profile %s", path), err)
	}

	p := defaults()
	if err := decode(path, data, p); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("failed to parse profile %s", path), err)
	}

	if err := p.normalize(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid,
			fmt.Sprintf("invalid profile %s", path), err)
	}
	return p, nil
}

// decode unmarshals data into p according to the file extension.
// Decoding into a pre-populated struct is what gives overlay semantics:
// all three decoders leave fields alone when the key is absent.
func decode(path string, data []byte, p *Profile) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yaml.Unmarshal(data, p)
	case ".json", ".jsonc":
		// Strip comments and trailing commas before handing off to encoding/json.
		return json.Unmarshal(jsonc.ToJSON(data), p)
	case ".toml":
		return toml.Unmarshal(data, p)
	default:
		return fmt.Errorf("unsupported profile format %q (use .yaml, .yml, .json, .jsonc or .toml)", filepath.Ext(path))
	}
}

// normalize fills empty fields with defaults and resolves BaseDir to an
// absolute path.
func (p *Profile) normalize() error {
	if p.Runtime == "" {
		p.Runtime = DefaultRuntime
	}
	if p.Backend == "" {
		p.Backend = DefaultBackend
	}
	if p.Backend != BackendCLI && p.Backend != BackendAPI {
		return fmt.Errorf("unknown backend %q (valid: %s, %s)", p.Backend, BackendCLI, BackendAPI)
	}
	if p.BaseDir == "" {
		p.BaseDir = DefaultBaseDir
	}

	base, err := expandPath(p.BaseDir)
	if err != nil {
		return err
	}
	p.BaseDir = base

	for _, v := range []*string{&p.Volumes.Data, &p.Volumes.Logs, &p.Volumes.Import, &p.Volumes.Plugins} {
		if *v == "" {
			continue
		}
		expanded, err := expandPath(*v)
		if err != nil {
			return err
		}
		*v = expanded
	}
	return nil
}

// expandPath expands a leading "~" and makes the path absolute.
func expandPath(path string) (string, error) {
	if path == defaultHomeToken || strings.HasPrefix(path, defaultHomeToken+"/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, defaultHomeToken))
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %q: %w", path, err)
	}
	return abs, nil
}

// hostDir returns the override if set, otherwise BaseDir/name.
func (p *Profile) hostDir(override, name string) string {
	if override != "" {
		return override
	}
	return filepath.Join(p.BaseDir, name)
}

// AuthValue renders the credential in the image's "user/password" form.
// An empty credential disables authentication ("none").
func (p *Profile) AuthValue() string {
	if p.Auth.User == "" && p.Auth.Password == "" {
		return "none"
	}
	return p.Auth.User + "/" + p.Auth.Password
}

// PluginsValue renders the plugin list as a JSON array, order preserved.
// The second return value is false when no plugins are configured, in
// which case the variable is left out of the launch entirely.
func (p *Profile) PluginsValue() (string, bool, error) {
	if len(p.Plugins) == 0 {
		return "", false, nil
	}
	data, err := json.Marshal(p.Plugins)
	if err != nil {
		return "", false, fmt.Errorf("failed to serialize plugin list: %w", err)
	}
	return string(data), true, nil
}

// LaunchSpec converts the profile into the ordered launch request: two
// port mappings, four volume mounts and the environment assignments,
// followed by validation.
func (p *Profile) LaunchSpec() (*model.LaunchSpec, error) {
	spec := &model.LaunchSpec{
		Name:  p.Name,
		Image: p.Image,
		Ports: []model.PortMapping{
			{HostPort: p.Ports.HTTP, ContainerPort: ContainerHTTPPort, Protocol: "tcp", Label: "http"},
			{HostPort: p.Ports.Bolt, ContainerPort: ContainerBoltPort, Protocol: "tcp", Label: "bolt"},
		},
		Volumes: []model.VolumeMount{
			{HostPath: p.hostDir(p.Volumes.Data, "data"), ContainerPath: ContainerDataDir, Label: "data"},
			{HostPath: p.hostDir(p.Volumes.Logs, "logs"), ContainerPath: ContainerLogsDir, Label: "logs"},
			{HostPath: p.hostDir(p.Volumes.Import, "import"), ContainerPath: ContainerImportDir, Label: "import"},
			{HostPath: p.hostDir(p.Volumes.Plugins, "plugins"), ContainerPath: ContainerPluginsDir, Label: "plugins"},
		},
	}

	spec.Env = append(spec.Env, model.EnvVar{Name: EnvAuth, Value: p.AuthValue()})

	plugins, ok, err := p.PluginsValue()
	if err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid plugin list", err)
	}
	if ok {
		spec.Env = append(spec.Env, model.EnvVar{Name: EnvPlugins, Value: plugins})
	}

	spec.Env = append(spec.Env,
		model.EnvVar{Name: EnvAPOCExportFile, Value: strconv.FormatBool(p.APOC.ExportFile)},
		model.EnvVar{Name: EnvAPOCImportFile, Value: strconv.FormatBool(p.APOC.ImportFile)},
		model.EnvVar{Name: EnvAPOCImportUseNeo4jCf, Value: strconv.FormatBool(p.APOC.ImportUseNeo4jConfig)},
	)

	if err := spec.Validate(); err != nil {
		return nil, model.WrapCLIError(model.ExitConfigInvalid, "invalid launch profile", err)
	}
	return spec, nil
}

// BoltURI returns the Bolt URI at which the launched database is reachable
// from the host.
func (p *Profile) BoltURI() string {
	return fmt.Sprintf("neo4j://localhost:%d", p.Ports.Bolt)
}

// HTTPURL returns the browser URL of the launched database.
func (p *Profile) HTTPURL() string {
	return fmt.Sprintf("http://localhost:%d", p.Ports.HTTP)
}
