package unidade

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sgc/internal/config"
)

func TestDefaultTree(t *testing.T) {
	a, err := FromConfig(config.Default())
	require.NoError(t, err)

	assert.Equal(t, []string{"SEDOC"}, a.Raizes())
	sup, ok := a.Superior("SESEL")
	require.True(t, ok)
	assert.Equal(t, "COSIS", sup)
	_, ok = a.Superior("SEDOC")
	assert.False(t, ok)
	_, ok = a.Superior("NOPE")
	assert.False(t, ok)

	assert.Equal(t, []string{"COSIS", "STIC", "SGP", "SEDOC"}, a.Ancestrais("SESEL"))
	assert.Empty(t, a.Ancestrais("SEDOC"))
	assert.Equal(t, []string{"STIC", "COSIS", "SESEL", "SEDESENV"}, a.Subordinadas("STIC"))
	assert.Nil(t, a.Subordinadas("NOPE"))
	assert.Equal(t, []string{"STIC", "COEDUC"}, a.Filhas("SGP"))
	assert.Len(t, a.Siglas(), 8)
}

func TestEmailFallsBackToPlaceholder(t *testing.T) {
	a, err := New([]config.Unidade{
		{Sigla: "RAIZ", Email: "raiz@x", Filhas: []config.Unidade{{Sigla: "FOLHA"}}},
	})
	require.NoError(t, err)
	assert.Equal(t, "raiz@x", a.Email("RAIZ"))
	assert.Equal(t, "Responsável pela unidade FOLHA", a.Email("FOLHA"))
	assert.True(t, a.Existe("FOLHA"))
	u, ok := a.Get("FOLHA")
	require.True(t, ok)
	assert.Equal(t, "RAIZ", u.Superior)
}

func TestNewRejectsDuplicatesAndBlankSiglas(t *testing.T) {
	_, err := New([]config.Unidade{{Sigla: "A", Filhas: []config.Unidade{{Sigla: "A"}}}})
	assert.Error(t, err)
	_, err = New([]config.Unidade{{Sigla: "A", Filhas: []config.Unidade{{Nome: "sem sigla"}}}})
	assert.Error(t, err)
	_, err = FromConfig(nil)
	assert.Error(t, err)
}
