package startup

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comcast-iotdm/sbmd-matter-driver/internal/common"
)

func fullConfig() *common.Config {
	return &common.Config{
		SbmdDirectory: "./res/sbmd",
		Service: common.ServiceConfig{
			ConnectRetries: 2,
			TimeoutMs:      1,
		},
		InstanceInfo: common.InstanceInfoConfig{
			VendorID:              0xFFF1,
			ProductID:             0x8000,
			VendorName:            "Example Corp",
			ProductName:           "Example Light",
			HardwareVersion:       1,
			HardwareVersionString: "rev-a",
		},
	}
}

func TestInitDependenciesSucceedsWhenReady(t *testing.T) {
	err := InitDependencies(fullConfig(), func() error { return nil })
	require.NoError(t, err)
}

func TestInitDependenciesFailsOnMissingSbmdDirectory(t *testing.T) {
	cfg := fullConfig()
	cfg.SbmdDirectory = ""
	err := InitDependencies(cfg, func() error { return nil })
	require.Error(t, err)
}

func TestInitDependenciesFailsOnMissingInstanceInfo(t *testing.T) {
	cfg := fullConfig()
	cfg.InstanceInfo = common.InstanceInfoConfig{}
	err := InitDependencies(cfg, func() error { return nil })
	require.Error(t, err)
}

func TestInitDependenciesRetriesThenSucceeds(t *testing.T) {
	attempts := 0
	ready := func() error {
		attempts++
		if attempts < 2 {
			return errors.New("not ready yet")
		}
		return nil
	}

	err := InitDependencies(fullConfig(), ready)
	require.NoError(t, err)
	require.Equal(t, 2, attempts)
}

func TestInitDependenciesTimesOutWhenNeverReady(t *testing.T) {
	err := InitDependencies(fullConfig(), func() error { return errors.New("still down") })
	require.Error(t, err)
}

func TestInitDependenciesSkipsReadinessCheckWhenReadyFuncNil(t *testing.T) {
	err := InitDependencies(fullConfig(), nil)
	require.NoError(t, err)
}
