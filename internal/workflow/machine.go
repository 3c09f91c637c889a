// Package workflow holds the subprocess state machine. Every transition is a
// pure function of the current Subprocesso: it returns the next Subprocesso
// and the side effects the caller must persist or dispatch.
package workflow

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"sgc/internal/domain"
)

// DestinoBlocoAceite is the literal destination recorded by batch cadastro
// acceptance.
const DestinoBlocoAceite = "Unidade superior hierárquica"

type Hierarquia interface {
	Superior(sigla string) (string, bool)
	Ancestrais(sigla string) []string
	Email(sigla string) string
}

type Maquina struct {
	Hierarquia   Hierarquia
	UnidadeAdmin string
	// Estrita enables the transition table. Callers may still force.
	Estrita bool
}

// Efeitos are the side effects of one transition, in application order:
// análises are cleared first, then movimentações, new análises and alertas
// are written, and notificações are dispatched after commit.
type Efeitos struct {
	LimparAnalises bool
	Movimentacoes  []domain.Movimentacao
	Analises       []domain.Analise
	Alertas        []domain.Alerta
	Notificacoes   []domain.Notificacao
}

type Resultado struct {
	Subprocesso domain.Subprocesso
	Efeitos     Efeitos
}

func (m Maquina) verificar(sp domain.Subprocesso, para domain.SituacaoSubprocesso, force bool) error {
	if !m.Estrita {
		return nil
	}
	return EnsureTransicao(sp.Situacao, para, force)
}

func (m Maquina) superior(unidade string) (string, error) {
	sup, ok := m.Hierarquia.Superior(unidade)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnidadeSuperiorNaoEncontrada, unidade)
	}
	return sup, nil
}

func novo(sp domain.Subprocesso) *Resultado {
	sp.Analises = append([]domain.Analise(nil), sp.Analises...)
	return &Resultado{Subprocesso: sp}
}

func (r *Resultado) mover(origem, destino, descricao string, now time.Time) {
	r.Efeitos.Movimentacoes = append(r.Efeitos.Movimentacoes, domain.Movimentacao{
		SubprocessoID:  r.Subprocesso.ID,
		UnidadeOrigem:  origem,
		UnidadeDestino: destino,
		Descricao:      descricao,
		DataHora:       now,
	})
}

func (r *Resultado) alertar(origem, destino, descricao string, now time.Time) {
	r.Efeitos.Alertas = append(r.Efeitos.Alertas, domain.Alerta{
		ProcessoID:     r.Subprocesso.ProcessoID,
		UnidadeOrigem:  origem,
		UnidadeDestino: destino,
		Descricao:      descricao,
		DataHora:       now,
	})
}

func (r *Resultado) notificar(destinatario, assunto, corpo string) {
	r.Efeitos.Notificacoes = append(r.Efeitos.Notificacoes, domain.Notificacao{
		ID:           uuid.NewString(),
		Assunto:      assunto,
		Destinatario: destinatario,
		Corpo:        corpo,
	})
}

func (r *Resultado) analisar(unidade string, acao domain.AcaoAnalise, obs string, now time.Time) {
	a := domain.Analise{
		SubprocessoID: r.Subprocesso.ID,
		Unidade:       unidade,
		Acao:          acao,
		Observacoes:   obs,
		DataHora:      now,
	}
	r.Subprocesso.Analises = append(r.Subprocesso.Analises, a)
	r.Efeitos.Analises = append(r.Efeitos.Analises, a)
}

func (r *Resultado) limparAnalises() {
	r.Subprocesso.Analises = []domain.Analise{}
	r.Efeitos.LimparAnalises = true
}

func (r *Resultado) encaminhar(de, para string) {
	anterior := de
	r.Subprocesso.UnidadeAnterior = &anterior
	r.Subprocesso.UnidadeAtual = para
}

func tp(t time.Time) *time.Time { return &t }

// AceitarMapa is the ADMIN homologation, or for any other perfil the
// validation routed to the superior of p.Unidade.
func (m Maquina) AceitarMapa(proc domain.Processo, sp domain.Subprocesso, p AceitarMapaParams, now time.Time) (Resultado, error) {
	if p.Perfil != domain.PerfilAdmin {
		return m.encaminharValidacao(proc, sp, p.Chave, "Mapa de competências aceito", now)
	}
	para := domain.ParaTipo(proc.Tipo, domain.MapaHomologado)
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(m.UnidadeAdmin, m.UnidadeAdmin, "Mapa de competências homologado", now)
	r.Subprocesso.Situacao = para
	if r.Subprocesso.DataFimEtapa2 == nil {
		r.Subprocesso.DataFimEtapa2 = tp(now)
	}
	r.limparAnalises()
	return *r, nil
}

// ValidarMapa shares the routine of the non-ADMIN branch of AceitarMapa.
func (m Maquina) ValidarMapa(proc domain.Processo, sp domain.Subprocesso, p ValidarMapaParams, now time.Time) (Resultado, error) {
	return m.encaminharValidacao(proc, sp, p.Chave, "Mapa de competências validado", now)
}

func (m Maquina) encaminharValidacao(proc domain.Processo, sp domain.Subprocesso, k Chave, descricao string, now time.Time) (Resultado, error) {
	sup, err := m.superior(k.Unidade)
	if err != nil {
		return Resultado{}, err
	}
	para := domain.ParaTipo(proc.Tipo, domain.MapaValidado)
	if err := m.verificar(sp, para, k.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(k.Unidade, sup, descricao, now)
	r.encaminhar(k.Unidade, sup)
	r.Subprocesso.Situacao = para
	r.Subprocesso.DataFimEtapa2 = tp(now)
	r.limparAnalises()
	r.notificar(m.Hierarquia.Email(sup),
		fmt.Sprintf("SGC: Validação do mapa de competências da unidade %s submetida para análise", sp.Unidade),
		fmt.Sprintf("A validação do mapa de competências da unidade %s no processo %s foi submetida para análise por essa unidade.", sp.Unidade, proc.Descricao))
	r.alertar(k.Unidade, sup, fmt.Sprintf("Validação do mapa de competências da unidade %s aguardando análise", sp.Unidade), now)
	return *r, nil
}

// RejeitarMapa devolves the map to unidadeAnterior. Returning to the home
// unit reopens the validation stage; returning to an intermediate unit resets
// to MAPA_CRIADO.
func (m Maquina) RejeitarMapa(proc domain.Processo, sp domain.Subprocesso, p RejeitarMapaParams, now time.Time) (Resultado, error) {
	if sp.UnidadeAnterior == nil || *sp.UnidadeAnterior == "" {
		return Resultado{}, fmt.Errorf("%w: subprocesso %d", ErrUnidadeAnteriorIndisponivel, sp.ID)
	}
	destino := *sp.UnidadeAnterior
	paraHome := destino == sp.Unidade
	para := domain.ParaTipo(proc.Tipo, domain.MapaCriado)
	if paraHome {
		para = domain.ParaTipo(proc.Tipo, domain.MapaDisponibilizado)
	}
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(p.Unidade, destino, "Devolução da validação do mapa de competências", now)
	r.analisar(p.Unidade, domain.AnaliseDevolucao, p.Observacoes, now)
	r.Subprocesso.Situacao = para
	if paraHome {
		r.Subprocesso.DataFimEtapa2 = nil
	}
	r.encaminhar(p.Unidade, destino)
	r.notificar(m.Hierarquia.Email(destino),
		fmt.Sprintf("SGC: Validação do mapa de competências da unidade %s devolvida", sp.Unidade),
		fmt.Sprintf("A validação do mapa de competências da unidade %s no processo %s foi devolvida pela unidade %s.", sp.Unidade, proc.Descricao, p.Unidade))
	r.alertar(p.Unidade, destino, fmt.Sprintf("Validação do mapa de competências da unidade %s devolvida para ajustes", sp.Unidade), now)
	return *r, nil
}

// ApresentarSugestoes routes like a validation but records the suggestions.
// No alerta is created here, unlike AceitarMapa and RejeitarMapa.
func (m Maquina) ApresentarSugestoes(proc domain.Processo, sp domain.Subprocesso, p ApresentarSugestoesParams, now time.Time) (Resultado, error) {
	sup, err := m.superior(p.Unidade)
	if err != nil {
		return Resultado{}, err
	}
	para := domain.ParaTipo(proc.Tipo, domain.MapaComSugestoes)
	if err := m.verificar(sp, para, p.Force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.mover(p.Unidade, sup, "Sugestões apresentadas para o mapa de competências", now)
	r.Subprocesso.Situacao = para
	sug := p.Sugestoes
	r.Subprocesso.Sugestoes = &sug
	r.encaminhar(p.Unidade, sup)
	r.Subprocesso.DataFimEtapa2 = tp(now)
	r.limparAnalises()
	r.notificar(m.Hierarquia.Email(sup),
		fmt.Sprintf("SGC: Sugestões apresentadas para o mapa de competências da unidade %s", sp.Unidade),
		fmt.Sprintf("A unidade %s apresentou sugestões para o mapa de competências no processo %s.", p.Unidade, proc.Descricao))
	return *r, nil
}

// AlterarDataLimite changes the deadline of etapa 1 or 2. Any other etapa
// leaves the subprocess untouched and yields no effects.
func (m Maquina) AlterarDataLimite(proc domain.Processo, sp domain.Subprocesso, p AlterarDataLimiteParams, now time.Time) (Resultado, error) {
	r := novo(sp)
	nova := p.NovaDataLimite
	switch p.Etapa {
	case 1:
		r.Subprocesso.DataLimiteEtapa1 = &nova
	case 2:
		r.Subprocesso.DataLimiteEtapa2 = &nova
	default:
		return *r, nil
	}
	data := nova.Format("02/01/2006")
	r.mover(m.UnidadeAdmin, sp.Unidade, fmt.Sprintf("Data limite da etapa %d alterada para %s", p.Etapa, data), now)
	r.notificar(m.Hierarquia.Email(sp.Unidade),
		fmt.Sprintf("SGC: Data limite da etapa %d alterada", p.Etapa),
		fmt.Sprintf("A data limite da etapa %d do processo %s para a unidade %s foi alterada para %s.", p.Etapa, proc.Descricao, sp.Unidade, data))
	return *r, nil
}

// AceitarCadastroBloco records the batch acceptance movement. Situação is
// left unchanged.
func (m Maquina) AceitarCadastroBloco(sp domain.Subprocesso, unidadeUsuario string, now time.Time) Resultado {
	r := novo(sp)
	r.mover(unidadeUsuario, DestinoBlocoAceite, "Cadastro de atividades aceito em bloco", now)
	return *r
}

// HomologarCadastroBloco homologates the cadastro, keeping the Revisão
// family when the subprocess is already in it.
func (m Maquina) HomologarCadastroBloco(sp domain.Subprocesso, force bool, now time.Time) (Resultado, error) {
	para := domain.CadastroHomologado
	if sp.Situacao.IsRevisao() {
		para = domain.RevisaoCadastroHomologada
	}
	if err := m.verificar(sp, para, force); err != nil {
		return Resultado{}, err
	}
	r := novo(sp)
	r.Subprocesso.Situacao = para
	r.mover(m.UnidadeAdmin, m.UnidadeAdmin, "Cadastro de atividades homologado em bloco", now)
	r.limparAnalises()
	return *r, nil
}

// Lembrete is the deadline reminder the admin unit sends to a participating
// unit.
func Lembrete(proc domain.Processo, origem, destino string, now time.Time) domain.Alerta {
	return domain.Alerta{
		ProcessoID:     proc.ID,
		UnidadeOrigem:  origem,
		UnidadeDestino: destino,
		Descricao:      fmt.Sprintf("Lembrete: Prazo do processo %s encerra em %s", proc.Descricao, proc.DataLimite.Format("02/01/2006")),
		DataHora:       now,
	}
}
