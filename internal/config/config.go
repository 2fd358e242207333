package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"demandboard/internal/domain"
)

// Config models demandboard.yml.
type Config struct {
	Team struct {
		Name string `yaml:"name" json:"name"`
	} `yaml:"team" json:"team"`
	Board struct {
		Title               string            `yaml:"title" json:"title"`
		RequireDeliveryDate bool              `yaml:"require_delivery_date" json:"require_delivery_date"`
		Categories          map[string]string `yaml:"categories" json:"categories"`
	} `yaml:"board" json:"board"`
	Catalog struct {
		Subgroups    []string `yaml:"subgroups" json:"subgroups"`
		Responsibles []string `yaml:"responsibles" json:"responsibles"`
	} `yaml:"catalog" json:"catalog"`
	Server ServerConfig `yaml:"server" json:"server"`
}

type ServerConfig struct {
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`
	// JoinedLists makes the API emit subgroup/responsible as comma-joined
	// strings, the wire shape older clients expect.
	JoinedLists bool `yaml:"joined_lists" json:"joined_lists"`
}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with dboard config init", path)
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional falls back to the default config when the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if len(c.Catalog.Subgroups) == 0 {
		return fmt.Errorf("config.catalog.subgroups is required")
	}
	seen := map[string]bool{}
	for _, sg := range c.Catalog.Subgroups {
		if sg == "" {
			return fmt.Errorf("config.catalog.subgroups contains an empty entry")
		}
		if seen[sg] {
			return fmt.Errorf("config.catalog.subgroups lists %q twice", sg)
		}
		seen[sg] = true
	}
	seen = map[string]bool{}
	for _, p := range c.Catalog.Responsibles {
		if p == "" {
			return fmt.Errorf("config.catalog.responsibles contains an empty entry")
		}
		if seen[p] {
			return fmt.Errorf("config.catalog.responsibles lists %q twice", p)
		}
		seen[p] = true
	}
	for key := range c.Board.Categories {
		if !domain.Category(key).Valid() {
			return fmt.Errorf("config.board.categories has unknown category %s", key)
		}
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin == "" {
			return fmt.Errorf("config.server.cors_origins contains an empty entry")
		}
	}
	return nil
}

// DomainCatalog converts the config lists into the domain catalog.
func (c *Config) DomainCatalog() domain.Catalog {
	titles := make(map[domain.Category]string, len(c.Board.Categories))
	for k, v := range c.Board.Categories {
		titles[domain.Category(k)] = v
	}
	return domain.Catalog{
		Subgroups:      append([]string(nil), c.Catalog.Subgroups...),
		Responsibles:   append([]string(nil), c.Catalog.Responsibles...),
		CategoryTitles: titles,
	}
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "demandboard.yml")
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string {
	return defaultTemplate
}

// Default returns the default Config struct.
func Default() *Config {
	var cfg Config
	_ = yaml.NewDecoder(bytes.NewBufferString(defaultTemplate)).Decode(&cfg)
	return &cfg
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

const defaultTemplate = `team:
  name: Desenvolvimento de Vendas

board:
  title: Gestão de demandas semanal
  require_delivery_date: true
  categories:
    last_week: Temas Resolvidos (Semana Passada)
    this_week: Temas da Semana Atual
    stalled: Temas Parados

catalog:
  subgroups:
    - Gestão de territórios
    - BI Analytics
    - Setor Autônomos
    - Agendas e Incentivos
    - Help Desk
  # Leave empty to accept any name.
  responsibles: []

server:
  cors_origins:
    - http://localhost:3000
  joined_lists: false
`
