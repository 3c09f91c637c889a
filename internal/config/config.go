package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config models sgc.yml.
type Config struct {
	UnidadeAdmin string    `yaml:"unidade_admin" json:"unidade_admin"`
	Unidades     []Unidade `yaml:"unidades" json:"unidades"`
	Workflow     struct {
		TransicoesEstritas bool `yaml:"transicoes_estritas" json:"transicoes_estritas"`
	} `yaml:"workflow" json:"workflow"`
	RBAC struct {
		Perfis map[string]Perfil `yaml:"perfis" json:"perfis"`
	} `yaml:"rbac" json:"rbac"`
	Notificacoes struct {
		Remetente  string `yaml:"remetente" json:"remetente"`
		WebhookURL string `yaml:"webhook_url" json:"webhook_url,omitempty"`
		TimeoutSeg int    `yaml:"timeout_seg" json:"timeout_seg,omitempty"`
	} `yaml:"notificacoes" json:"notificacoes"`
	Log struct {
		Nivel   string `yaml:"nivel" json:"nivel"`
		Formato string `yaml:"formato" json:"formato"`
	} `yaml:"log" json:"log"`
	Servidor struct {
		Addr     string `yaml:"addr" json:"addr"`
		BasePath string `yaml:"base_path" json:"base_path"`
	} `yaml:"servidor" json:"servidor"`
}

// Unidade is one node of the organizational tree.
type Unidade struct {
	Sigla  string    `yaml:"sigla" json:"sigla"`
	Nome   string    `yaml:"nome,omitempty" json:"nome,omitempty"`
	Email  string    `yaml:"email,omitempty" json:"email,omitempty"`
	Filhas []Unidade `yaml:"filhas,omitempty" json:"filhas,omitempty"`
}

type Perfil struct {
	Description string   `yaml:"description" json:"description"`
	Permissions []string `yaml:"permissions" json:"permissions"`
}

var perfisValidos = map[string]bool{"ADMIN": true, "GESTOR": true, "CHEFE": true, "SERVIDOR": true}

// Load reads and validates config from workspace.
func Load(workspace string) (*Config, error) {
	path := Path(workspace)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; create one with sgc init", path)
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

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.UnidadeAdmin == "" {
		return fmt.Errorf("config.unidade_admin is required")
	}
	if len(c.Unidades) == 0 {
		return fmt.Errorf("config.unidades is required")
	}
	seen := map[string]bool{}
	var walk func(u Unidade) error
	walk = func(u Unidade) error {
		if strings.TrimSpace(u.Sigla) == "" {
			return fmt.Errorf("config.unidades contains empty sigla")
		}
		if seen[u.Sigla] {
			return fmt.Errorf("unidade %s declared twice", u.Sigla)
		}
		seen[u.Sigla] = true
		for _, f := range u.Filhas {
			if err := walk(f); err != nil {
				return err
			}
		}
		return nil
	}
	for _, u := range c.Unidades {
		if err := walk(u); err != nil {
			return err
		}
	}
	if !seen[c.UnidadeAdmin] {
		return fmt.Errorf("unidade_admin %s not declared in config.unidades", c.UnidadeAdmin)
	}
	for name, p := range c.RBAC.Perfis {
		if !perfisValidos[name] {
			return fmt.Errorf("config.rbac.perfis has unknown perfil %s", name)
		}
		for _, perm := range p.Permissions {
			if perm == "" {
				return fmt.Errorf("perfil %s has empty permission id", name)
			}
		}
	}
	switch c.Log.Formato {
	case "", "json", "text":
	default:
		return fmt.Errorf("config.log.formato must be json or text")
	}
	if c.Notificacoes.TimeoutSeg < 0 {
		return fmt.Errorf("config.notificacoes.timeout_seg must not be negative")
	}
	return nil
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "sgc.yml")
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

const defaultTemplate = `unidade_admin: SEDOC

unidades:
  - sigla: SEDOC
    nome: Seção de Desenvolvimento Organizacional e Capacitação
    email: sedoc@sgc.local
    filhas:
      - sigla: SGP
        nome: Secretaria de Gestão de Pessoas
        email: sgp@sgc.local
        filhas:
          - sigla: STIC
            nome: Secretaria de Tecnologia da Informação e Comunicações
            email: stic@sgc.local
            filhas:
              - sigla: COSIS
                nome: Coordenadoria de Sistemas
                email: cosis@sgc.local
                filhas:
                  - sigla: SESEL
                    nome: Seção de Sistemas Eleitorais
                    email: sesel@sgc.local
                  - sigla: SEDESENV
                    nome: Seção de Desenvolvimento de Sistemas
                    email: sedesenv@sgc.local
          - sigla: COEDUC
            nome: Coordenadoria de Educação Especial
            email: coeduc@sgc.local
            filhas:
              - sigla: SEMARE
                nome: Seção Magistrado e Requisitados
                email: semare@sgc.local

workflow:
  transicoes_estritas: true

rbac:
  perfis:
    ADMIN:
      description: "Administrador (SEDOC)"
      permissions:
        - processo.read
        - processo.create
        - processo.update
        - processo.delete
        - processo.start
        - processo.finish
        - subprocesso.read
        - subprocesso.deadline
        - cadastro.homologate
        - cadastro.batch
        - cadastro.reopen
        - mapa.create
        - mapa.publish
        - mapa.accept
        - mapa.reject
        - mapa.homologate
        - mapa.batch
        - processo.remind
        - workflow.force
        - alerta.read
        - events.read
    GESTOR:
      description: "Gestor de unidade intermediária"
      permissions:
        - processo.read
        - subprocesso.read
        - cadastro.accept
        - cadastro.return
        - cadastro.batch
        - mapa.accept
        - mapa.reject
        - mapa.batch
        - alerta.read
    CHEFE:
      description: "Chefe da unidade do subprocesso"
      permissions:
        - processo.read
        - subprocesso.read
        - cadastro.publish
        - mapa.suggest
        - mapa.validate
        - alerta.read
    SERVIDOR:
      description: "Servidor"
      permissions:
        - processo.read
        - subprocesso.read
        - alerta.read

notificacoes:
  remetente: sgc@sgc.local
  webhook_url: ""
  timeout_seg: 5

log:
  nivel: info
  formato: text

servidor:
  addr: 127.0.0.1:8080
  base_path: /v0
`
