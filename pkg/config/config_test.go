// SPDX-License-Identifier: Apache-2.0

package config_test

import (
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"

	"github.com/waypointdb/waypoint/pkg/config"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestDefaultMatchesDocumentedDefaults(t *testing.T) {
	cfg := config.Default()

	assert.Equal(t, "public", cfg.Schema)
	assert.Equal(t, "schema_history", cfg.HistoryTable)
	assert.Equal(t, "abort", cfg.OnRequireFail)
	assert.True(t, cfg.BlockOnDanger)
	assert.True(t, cfg.CleanDisabled)
	assert.Equal(t, 10, cfg.ConnectRetries)
	assert.Equal(t, 500*time.Millisecond, cfg.LockTimeout)
}

func TestFromViperPicksUpBoundFlags(t *testing.T) {
	resetViper(t)

	cmd := &cobra.Command{Use: "test"}
	config.BindFlags(cmd)

	require := assert.New(t)
	require.NoError(cmd.PersistentFlags().Set("schema", "tenants"))
	require.NoError(cmd.PersistentFlags().Set("out-of-order", "true"))
	require.NoError(cmd.PersistentFlags().Set("connect-retries", "5"))

	cfg := config.FromViper()
	assert.Equal(t, "tenants", cfg.Schema)
	assert.True(t, cfg.OutOfOrder)
	assert.Equal(t, 5, cfg.ConnectRetries)
}

func TestFromViperClampsConnectRetriesToTwenty(t *testing.T) {
	resetViper(t)

	cmd := &cobra.Command{Use: "test"}
	config.BindFlags(cmd)
	assert.NoError(t, cmd.PersistentFlags().Set("connect-retries", "50"))

	cfg := config.FromViper()
	assert.Equal(t, 20, cfg.ConnectRetries)
}
