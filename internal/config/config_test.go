package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/standardbeagle/docuse/internal/analysis"
)

func TestDefaultConfigurationValidates(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyBackendOrder(t *testing.T) {
	cfg := Default()
	cfg.BackendOrder = nil
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsConsensusWithOneBackend(t *testing.T) {
	cfg := Default()
	cfg.AnalyzerStrategy = analysis.ConsensusStrategyKind
	cfg.BackendOrder = []analysis.BackendSpec{{Backend: analysis.BackendKindFastSymbol}}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsNonPositiveTimeout(t *testing.T) {
	cfg := Default()
	cfg.PerTaskTimeout = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownStrategyString(t *testing.T) {
	cfg := Default()
	cfg.AnalyzerStrategy = "bogus"
	assert.Error(t, cfg.Validate())
}

func TestEffectiveWorkerCountDefaultsToGOMAXPROCS(t *testing.T) {
	cfg := Default()
	assert.Greater(t, cfg.EffectiveWorkerCount(), 0)
}

func TestEffectiveWorkerCountHonorsExplicitValue(t *testing.T) {
	cfg := Default()
	cfg.WorkerCount = 7
	assert.Equal(t, 7, cfg.EffectiveWorkerCount())
}

func TestDefaultUsesSaneTimeout(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 30*time.Second, cfg.PerTaskTimeout)
}
