package auth

import (
	"fmt"
	"sort"

	"sgc/internal/config"
	"sgc/internal/domain"
)

// ForbiddenError indicates missing permission.
type ForbiddenError struct {
	Perfil     domain.Perfil
	Permission string
}

func (e ForbiddenError) Error() string {
	if e.Perfil == "" {
		return fmt.Sprintf("permission %s required", e.Permission)
	}
	return fmt.Sprintf("permission %s required (perfil %s)", e.Permission, e.Perfil)
}

// Ator is the caller of an engine operation. A zero Ator is the local
// operator and bypasses permission checks.
type Ator struct {
	ID      string        `json:"id"`
	Perfil  domain.Perfil `json:"perfil"`
	Unidade string        `json:"unidade"`
}

func (a Ator) Local() bool { return a.Perfil == "" }

// Service answers perfil permission questions from the rbac config section.
type Service struct {
	Config *config.Config
}

func (s Service) Permissions(perfil domain.Perfil) []string {
	if s.Config == nil {
		return nil
	}
	p, ok := s.Config.RBAC.Perfis[string(perfil)]
	if !ok {
		return nil
	}
	perms := append([]string(nil), p.Permissions...)
	sort.Strings(perms)
	return perms
}

func (s Service) HasPermission(perfil domain.Perfil, perm string) bool {
	if s.Config == nil {
		return false
	}
	p, ok := s.Config.RBAC.Perfis[string(perfil)]
	if !ok {
		return false
	}
	for _, have := range p.Permissions {
		if have == perm {
			return true
		}
	}
	return false
}

// Require fails with ForbiddenError unless a may use perm.
func (s Service) Require(a Ator, perm string) error {
	if a.Local() || s.HasPermission(a.Perfil, perm) {
		return nil
	}
	return ForbiddenError{Perfil: a.Perfil, Permission: perm}
}
