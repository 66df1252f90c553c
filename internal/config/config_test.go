package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

const validScenario = `
endTime: 50
clientSendRate: 5
routers: [R]
clients: [C1, C2]
links:
  - {a1: C1, a2: R, p1: 0, p2: 0, c12: 10, c21: 10}
  - {a1: R, a2: C2, p1: 1, p2: 0, c12: 10, c21: 10}
correctRoutes:
  - [C1, R, C2]
  - [C2, R, C1]
`

func TestLoad_ValidScenario(t *testing.T) {
	path := writeScenario(t, validScenario)
	s, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 50, s.EndTime)
	require.Equal(t, []string{"R"}, s.Routers)
	require.Len(t, s.Links, 2)
}

func TestValidate_MissingMandatoryFields(t *testing.T) {
	s := &Scenario{}
	err := s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "endTime")
	require.Contains(t, err.Error(), "clientSendRate")
}

func TestValidate_DuplicateAddress(t *testing.T) {
	s := &Scenario{
		EndTime:        1,
		ClientSendRate: 1,
		Routers:        []string{"A"},
		Clients:        []string{"A"},
	}
	err := s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "duplicate address")
}

func TestValidate_UnknownAddressInLink(t *testing.T) {
	s := &Scenario{
		EndTime:        1,
		ClientSendRate: 1,
		Routers:        []string{"R"},
		Links:          []LinkConfig{{A1: "R", A2: "GHOST"}},
	}
	err := s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `unknown address "GHOST"`)
}

func TestValidate_CollectsMultipleErrors(t *testing.T) {
	s := &Scenario{
		Routers: []string{"A", "A"},
		Links:   []LinkConfig{{A1: "X", A2: "Y"}},
	}
	err := s.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "endTime")
	require.Contains(t, msg, "clientSendRate")
	require.Contains(t, msg, "duplicate address")
	require.Contains(t, msg, `"X"`)
	require.Contains(t, msg, `"Y"`)
}

func TestValidate_UnknownChangeKind(t *testing.T) {
	s := &Scenario{
		EndTime:        1,
		ClientSendRate: 1,
		Routers:        []string{"A", "B"},
		Changes:        []ChangeConfig{{Kind: "sideways", A1: "A", A2: "B"}},
	}
	err := s.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), `kind must be "up" or "down"`)
}
