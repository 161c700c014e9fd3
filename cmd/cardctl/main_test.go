package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const alice = "0x00000000000000000000000000000000000000A1"

func writeConfig(t *testing.T, driver string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := fmt.Sprintf("database:\n  driver: %s\n  path: %s\n", driver, filepath.Join(dir, "cards.db"))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestMintSeedAndShow(t *testing.T) {
	cfg := writeConfig(t, "sqlite")

	out, err := runCLI(t, "--config", cfg, "db", "init")
	require.NoError(t, err)
	assert.Contains(t, out, "初始化完成")

	out, err = runCLI(t, "--config", cfg, "mint", "--to", alice,
		"--element", "Water", "--power", "60", "--defense", "40", "--special", "Hydro Pump", "--rarity", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "token_id=0")

	out, err = runCLI(t, "--config", cfg, "show", "0")
	require.NoError(t, err)
	assert.Contains(t, out, `#0 Water power=60 defense=40 special="Hydro Pump" rarity=4 supply=1`)

	out, err = runCLI(t, "--config", cfg, "seed", alice)
	require.NoError(t, err)
	assert.Contains(t, out, "[1 2 3]")

	out, err = runCLI(t, "--config", cfg, "seed", alice)
	require.NoError(t, err)
	assert.Contains(t, out, "已领取")

	out, err = runCLI(t, "--config", cfg, "owner", alice)
	require.NoError(t, err)
	assert.Contains(t, out, "新手礼包: true")
	assert.Contains(t, out, "#3 x1 Grass Vine Whip")
}

func TestMintValidationFails(t *testing.T) {
	cfg := writeConfig(t, "sqlite")

	_, err := runCLI(t, "--config", cfg, "mint", "--to", alice,
		"--element", "Fire", "--power", "150", "--defense", "40", "--special", "Burn", "--rarity", "2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "power")

	_, err = runCLI(t, "--config", cfg, "show", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CARD_NOT_FOUND")
}

func TestResetRequiresConfirmation(t *testing.T) {
	cfg := writeConfig(t, "sqlite")

	_, err := runCLI(t, "--config", cfg, "mint", "--to", alice,
		"--element", "Fire", "--power", "10", "--defense", "10", "--special", "Ember", "--rarity", "1")
	require.NoError(t, err)

	_, err = runCLI(t, "--config", cfg, "db", "reset")
	require.Error(t, err)

	_, err = runCLI(t, "--config", cfg, "db", "reset", "--yes")
	require.NoError(t, err)

	_, err = runCLI(t, "--config", cfg, "show", "0")
	assert.Error(t, err)
}

func TestMemoryDriverRejected(t *testing.T) {
	cfg := writeConfig(t, "memory")

	_, err := runCLI(t, "--config", cfg, "show", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "无法持久化")
}
