// Package unidade resolves the organizational hierarchy used to route
// subprocesses between units.
package unidade

import (
	"fmt"
	"sort"

	"sgc/internal/config"
)

type Unidade struct {
	Sigla    string `json:"sigla"`
	Nome     string `json:"nome,omitempty"`
	Email    string `json:"email,omitempty"`
	Superior string `json:"superior,omitempty"`
}

// Arvore is an immutable unit tree keyed by sigla.
type Arvore struct {
	unidades map[string]Unidade
	filhas   map[string][]string
	raizes   []string
}

// New builds the tree from config nodes. Duplicate siglas are rejected.
func New(nodes []config.Unidade) (*Arvore, error) {
	a := &Arvore{
		unidades: map[string]Unidade{},
		filhas:   map[string][]string{},
	}
	var walk func(n config.Unidade, superior string) error
	walk = func(n config.Unidade, superior string) error {
		if n.Sigla == "" {
			return fmt.Errorf("unidade sem sigla (superior %q)", superior)
		}
		if _, dup := a.unidades[n.Sigla]; dup {
			return fmt.Errorf("unidade %s duplicada", n.Sigla)
		}
		a.unidades[n.Sigla] = Unidade{Sigla: n.Sigla, Nome: n.Nome, Email: n.Email, Superior: superior}
		if superior == "" {
			a.raizes = append(a.raizes, n.Sigla)
		} else {
			a.filhas[superior] = append(a.filhas[superior], n.Sigla)
		}
		for _, f := range n.Filhas {
			if err := walk(f, n.Sigla); err != nil {
				return err
			}
		}
		return nil
	}
	for _, n := range nodes {
		if err := walk(n, ""); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// FromConfig builds the tree declared in cfg.
func FromConfig(cfg *config.Config) (*Arvore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config nil")
	}
	return New(cfg.Unidades)
}

func (a *Arvore) Existe(sigla string) bool {
	_, ok := a.unidades[sigla]
	return ok
}

func (a *Arvore) Get(sigla string) (Unidade, bool) {
	u, ok := a.unidades[sigla]
	return u, ok
}

// Superior returns the immediate superior of sigla; ok is false for roots
// and unknown units.
func (a *Arvore) Superior(sigla string) (string, bool) {
	u, ok := a.unidades[sigla]
	if !ok || u.Superior == "" {
		return "", false
	}
	return u.Superior, true
}

// Ancestrais lists every superior of sigla, nearest first.
func (a *Arvore) Ancestrais(sigla string) []string {
	var res []string
	cur, ok := a.Superior(sigla)
	for ok {
		res = append(res, cur)
		cur, ok = a.Superior(cur)
	}
	return res
}

// Subordinadas returns sigla and all of its descendants in pre-order.
// Unknown units yield nil.
func (a *Arvore) Subordinadas(sigla string) []string {
	if !a.Existe(sigla) {
		return nil
	}
	res := []string{sigla}
	for _, f := range a.filhas[sigla] {
		res = append(res, a.Subordinadas(f)...)
	}
	return res
}

// Email returns the configured mailbox of the unit's responsible, or a
// descriptive placeholder when none is configured.
func (a *Arvore) Email(sigla string) string {
	if u, ok := a.unidades[sigla]; ok && u.Email != "" {
		return u.Email
	}
	return "Responsável pela unidade " + sigla
}

func (a *Arvore) Raizes() []string {
	return append([]string(nil), a.raizes...)
}

func (a *Arvore) Filhas(sigla string) []string {
	return append([]string(nil), a.filhas[sigla]...)
}

// Siglas lists every unit, sorted.
func (a *Arvore) Siglas() []string {
	res := make([]string, 0, len(a.unidades))
	for s := range a.unidades {
		res = append(res, s)
	}
	sort.Strings(res)
	return res
}
