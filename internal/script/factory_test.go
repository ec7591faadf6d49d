package script

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// limitsEngine records the limits it receives and can refuse them.
type limitsEngine struct {
	*fakeEngine
	limits SecurityLimits
	err    error
}

func (e *limitsEngine) SetSecurityLimits(limits SecurityLimits) error {
	if e.err != nil {
		return e.err
	}
	e.limits = limits
	return nil
}

func TestFactory_SetSecurityLimits(t *testing.T) {
	factory := NewFactory(GetDefaultSecurityLimits())
	source := &Script{Path: "/scripts/gameAwake.tengo", Language: LanguageTengo, Content: `text := import("text")`}

	engine, err := factory.EngineFor(LanguageTengo)
	require.NoError(t, err)
	_, err = engine.Compile(source)
	require.NoError(t, err)

	require.NoError(t, factory.SetSecurityLimits(SecurityLimits{AllowedPackages: []string{"fmt"}}))
	_, err = engine.Compile(source)
	var scriptErr *ScriptError
	require.ErrorAs(t, err, &scriptErr)
	assert.Equal(t, ErrorTypeSyntax, scriptErr.Type)
}

func TestFactory_SetSecurityLimitsReportsEngineErrors(t *testing.T) {
	factory := NewEmptyFactory()
	accepting := &limitsEngine{fakeEngine: newFakeEngine()}
	factory.Register(languageFake, accepting, ".fake")
	require.NoError(t, factory.SetSecurityLimits(SecurityLimits{AllowedPackages: []string{"fmt"}}))
	assert.Equal(t, []string{"fmt"}, accepting.limits.AllowedPackages)

	factory.Register("refusing", &limitsEngine{fakeEngine: newFakeEngine(), err: errors.New("unsupported")}, ".refuse")
	err := factory.SetSecurityLimits(GetDefaultSecurityLimits())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing")
}
