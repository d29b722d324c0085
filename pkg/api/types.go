package api

const (
	DefaultConfigFilename = "deployctl.yaml"

	DefaultClusterBinary = "minikube"
	DefaultKubectl       = "kubectl"
)

// Config is the deployctl.yaml configuration format.
type Config struct {
	Project      ProjectConfig                `yaml:"project"`
	Image        ImageConfig                  `yaml:"image"`
	Cluster      ClusterConfig                `yaml:"cluster"`
	Namespaces   []string                     `yaml:"namespaces"`
	Environments map[string]EnvironmentConfig `yaml:"environments"`
	Monitoring   MonitoringConfig             `yaml:"monitoring"`
	Deploy       DeployConfig                 `yaml:"deploy"`
	PortForwards []PortForwardConfig          `yaml:"portForwards"`
	Hooks        HooksConfig                  `yaml:"hooks"`
	History      HistoryConfig                `yaml:"history"`

	// Context is template data available to rendered manifests.
	Context map[string]any `yaml:"context"`

	// Set by the loader, not from YAML.
	Dir      string `yaml:"-"`
	FilePath string `yaml:"-"`
}

// ProjectConfig locates the project directories, relative to the config
// file unless absolute.
type ProjectConfig struct {
	AppDir        string `yaml:"appDir"`
	ManifestsDir  string `yaml:"manifestsDir"`
	MonitoringDir string `yaml:"monitoringDir"`
}

// ImageConfig names the container image built and loaded into the cluster.
type ImageConfig struct {
	Name string `yaml:"name"`
	Tag  string `yaml:"tag"`
}

// Ref returns the full image reference.
func (i ImageConfig) Ref() string {
	tag := i.Tag
	if tag == "" {
		tag = "latest"
	}
	return i.Name + ":" + tag
}

// ClusterConfig configures the cluster runtime commands.
type ClusterConfig struct {
	Binary       string   `yaml:"binary"`
	Kubectl      string   `yaml:"kubectl"`
	StartArgs    []string `yaml:"startArgs"`
	StartTimeout Duration `yaml:"startTimeout"`
	WaitDeadline Duration `yaml:"waitDeadline"`
}

// EnvironmentConfig is one deployment target overlay.
type EnvironmentConfig struct {
	Overlay   string `yaml:"overlay"`   // kustomize overlay dir
	Namespace string `yaml:"namespace"` // workload namespace
	Selector  string `yaml:"selector"`  // pod label selector
}

// FileFilter defines include/exclude glob patterns.
type FileFilter struct {
	Include []string `yaml:"include"`
	Exclude []string `yaml:"exclude"`
}

// MonitoringConfig configures the optional monitoring stack stage.
type MonitoringConfig struct {
	Namespace string           `yaml:"namespace"`
	Manifests FileFilter       `yaml:"manifests"`
	Services  []MonitoredCheck `yaml:"services"`
}

// MonitoredCheck is one service whose pods are awaited independently.
type MonitoredCheck struct {
	Name     string `yaml:"name"`
	Selector string `yaml:"selector"`
}

// DeployConfig holds the deployment timing knobs.
type DeployConfig struct {
	Timeout      Duration `yaml:"timeout"`      // overall readiness deadline
	PollInterval Duration `yaml:"pollInterval"` // readiness poll interval
	ApplyRetries int      `yaml:"applyRetries"` // attempts for apply commands
	BuildTimeout Duration `yaml:"buildTimeout"` // npm/docker build commands
	LoadTimeout  Duration `yaml:"loadTimeout"`  // image load into the cluster
}

// PortForwardConfig is one background port-forward session.
type PortForwardConfig struct {
	Name      string `yaml:"name"`
	Resource  string `yaml:"resource"` // e.g. svc/grafana
	Ports     string `yaml:"ports"`    // local:remote
	Namespace string `yaml:"namespace"`
}

// HooksConfig holds optional shell command lines run around the pipeline.
// These are the only shell-interpreted commands; everything else uses
// structured argument lists.
type HooksConfig struct {
	PreDeploy  string `yaml:"preDeploy"`
	PostDeploy string `yaml:"postDeploy"`
}

// HistoryConfig configures run history persistence. An empty path
// disables recording.
type HistoryConfig struct {
	Path string `yaml:"path"`
}
