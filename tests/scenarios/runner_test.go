package scenarios

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gatekit/gatekit/tests/protocol"
	"github.com/stretchr/testify/require"
)

func TestScenario(t *testing.T) {
	gatewayURL := os.Getenv("GATEKIT_URL")
	if gatewayURL == "" {
		t.Skip("GATEKIT_URL not set")
	}

	definitionsDir := "definitions"
	entries, err := os.ReadDir(definitionsDir)
	if os.IsNotExist(err) {
		t.Skip("no scenario definitions present")
	}
	require.NoError(t, err)

	client := protocol.NewClient(gatewayURL, "")
	runner := &ScenarioRunner{Client: client}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".yaml" {
			t.Run(entry.Name(), func(t *testing.T) {
				s, err := LoadScenario(filepath.Join(definitionsDir, entry.Name()))
				require.NoError(t, err)

				err = runner.Run(s)
				require.NoError(t, err)
			})
		}
	}
}
