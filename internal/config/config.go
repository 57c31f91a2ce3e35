package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models enviroplan.yml.
type Config struct {
	Site struct {
		ID   string `yaml:"id"`
		Name string `yaml:"name"`
	} `yaml:"site"`
	Catalog struct {
		Processes []CatalogProcess `yaml:"processes"`
	} `yaml:"catalog"`
	Cloud struct {
		URL string `yaml:"url"`
		Key string `yaml:"key"`
	} `yaml:"cloud"`
	Report struct {
		APIKey string `yaml:"api_key"`
		Model  string `yaml:"model"`
	} `yaml:"report"`
	Auth struct {
		JWTSecret string `yaml:"jwt_secret"`
	} `yaml:"auth"`
}

// CatalogProcess seeds one process and its tasks on first run.
type CatalogProcess struct {
	ID    string   `yaml:"id"`
	Name  string   `yaml:"name"`
	Tasks []string `yaml:"tasks"`
}

// CloudEnabled reports whether remote sync is configured. Both settings
// are required and the endpoint must be https.
func (c *Config) CloudEnabled() bool {
	return c.Cloud.URL != "" && c.Cloud.Key != "" && strings.HasPrefix(c.Cloud.URL, "https://")
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.Site.ID == "" {
		return fmt.Errorf("config.site.id is required")
	}
	seen := map[string]bool{}
	for _, p := range c.Catalog.Processes {
		if p.ID == "" {
			return fmt.Errorf("catalog process %q has empty id", p.Name)
		}
		if p.Name == "" {
			return fmt.Errorf("catalog process %s has empty name", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("catalog process id %s duplicated", p.ID)
		}
		seen[p.ID] = true
		for _, t := range p.Tasks {
			if strings.TrimSpace(t) == "" {
				return fmt.Errorf("process %s has empty task name", p.ID)
			}
		}
	}
	if c.Cloud.URL != "" && !strings.HasPrefix(c.Cloud.URL, "https://") {
		return fmt.Errorf("config.cloud.url must start with https://")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "enviroplan.yml")
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run ep init or create it from the default template", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns nil,nil if the config file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses and validates config from raw YAML bytes.
func FromYAML(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// FromFile reads YAML config from the given path.
func FromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromYAML(data)
}

// Default returns the default Config struct for a site.
func Default(siteID string) *Config {
	var cfg Config
	cfg.Site.ID = siteID
	_ = yaml.NewDecoder(bytes.NewBufferString(fmt.Sprintf(defaultTemplate, siteID))).Decode(&cfg)
	return &cfg
}

// GenerateDefault returns default config YAML.
func GenerateDefault(siteID string) string {
	return fmt.Sprintf(defaultTemplate, siteID)
}

const defaultTemplate = `site:
  id: %s
  name: "Main plant"

catalog:
  processes:
    - id: P1
      name: "Waste management"
      tasks:
        - "Waste collection"
        - "Plastics sorting"
    - id: P2
      name: "Water treatment"
      tasks:
        - "Treatment plant maintenance"
    - id: P3
      name: "Logistics"
      tasks:
        - "North zone route"

cloud:
  url: ""
  key: ""

report:
  api_key: ""
  model: "gemini-3-flash-preview"

auth:
  jwt_secret: ""
`
