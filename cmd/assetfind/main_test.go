package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/poiesic/assetfind/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
)

func findCommand(t *testing.T, app *cli.App, name string) *cli.Command {
	t.Helper()
	for _, cmd := range app.Commands {
		if cmd.Name == name {
			return cmd
		}
	}
	t.Fatalf("command %q not registered", name)
	return nil
}

func TestAppCommands(t *testing.T) {
	app := newApp()
	for _, name := range []string{"search", "related", "import", "reembed", "serve"} {
		cmd := findCommand(t, app, name)
		assert.NotNil(t, cmd.Action, name)
	}

	t.Run("config flag reads ASSETFIND_CONFIG", func(t *testing.T) {
		var configFlag *cli.StringFlag
		for _, flag := range app.Flags {
			if f, ok := flag.(*cli.StringFlag); ok && f.Name == "config" {
				configFlag = f
			}
		}
		require.NotNil(t, configFlag)
		assert.Equal(t, []string{"ASSETFIND_CONFIG"}, configFlag.EnvVars)
	})

	t.Run("import batch-size defaults to 100", func(t *testing.T) {
		cmd := findCommand(t, app, "import")
		var batchFlag *cli.IntFlag
		for _, flag := range cmd.Flags {
			if f, ok := flag.(*cli.IntFlag); ok && f.Name == "batch-size" {
				batchFlag = f
			}
		}
		require.NotNil(t, batchFlag)
		assert.Equal(t, 100, batchFlag.Value)
	})
}

func TestSetupLogger(t *testing.T) {
	for _, level := range []string{"debug", "info", "WARN", "error"} {
		t.Run(level, func(t *testing.T) {
			app := newApp()
			app.Commands = []*cli.Command{{Name: "noop", Action: func(*cli.Context) error { return nil }}}
			assert.NoError(t, app.Run([]string{"assetfind", "--log-level", level, "noop"}))
		})
	}

	t.Run("invalid level", func(t *testing.T) {
		app := newApp()
		err := app.Run([]string{"assetfind", "--log-level", "verbose", "search"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})
}

func TestReadAssets(t *testing.T) {
	input := `{"originalName":"beach.jpg","mimeType":"image/jpeg","aiData":{"tags":["beach"],"colors":["blue"]}}

{"id":"6f1c3b1e-8a2d-4c8e-9b7a-2f4d5e6a7b8c","originalName":"talk.mp4","mimeType":"video/mp4","aiData":"not an object","createdAt":"2024-05-01T12:00:00Z"}
`
	assets, err := readAssets(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, assets, 2)

	assert.Equal(t, "beach.jpg", assets[0].OriginalName)
	assert.Equal(t, []string{"beach"}, assets[0].AIData.Tags)
	assert.True(t, assets[0].CreatedAt.IsZero())

	assert.Equal(t, "6f1c3b1e-8a2d-4c8e-9b7a-2f4d5e6a7b8c", assets[1].ID.String())
	assert.True(t, assets[1].AIData.IsEmpty(), "corrupt aiData imports as empty")
	assert.Equal(t, 2024, assets[1].CreatedAt.Year())

	t.Run("malformed line", func(t *testing.T) {
		_, err := readAssets(strings.NewReader("{\"originalName\":\"a.jpg\",\"mimeType\":\"image/jpeg\"}\n{oops\n"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "line 2")
	})

	t.Run("missing name", func(t *testing.T) {
		_, err := readAssets(strings.NewReader(`{"mimeType":"image/jpeg"}`))
		assert.ErrorIs(t, err, core.ErrInvalidAsset)
	})

	t.Run("invalid id", func(t *testing.T) {
		_, err := readAssets(strings.NewReader(`{"id":"nope","originalName":"a.jpg","mimeType":"image/jpeg"}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid id")
	})
}

func TestImportSearchRelated(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "assetfind.yaml")
	config := "storage:\n  path: " + filepath.Join(dir, "db") + "\ncache:\n  driver: none\nai:\n  provider: mock\n"
	require.NoError(t, os.WriteFile(configPath, []byte(config), 0o644))

	inputPath := filepath.Join(dir, "assets.jsonl")
	input := `{"originalName":"red-car.jpg","mimeType":"image/jpeg"}
{"originalName":"blue-lake.jpg","mimeType":"image/jpeg"}
`
	require.NoError(t, os.WriteFile(inputPath, []byte(input), 0o644))

	run := func(args ...string) (string, error) {
		var out bytes.Buffer
		app := newApp()
		app.Writer = &out
		app.ErrWriter = &out
		err := app.Run(append([]string{"assetfind", "--log-level", "error", "--config", configPath}, args...))
		return out.String(), err
	}

	out, err := run("import", "--batch-size", "1", inputPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 assets")

	out, err = run("search", "--color", "red", "car")
	require.NoError(t, err)
	assert.Contains(t, out, "1: red-car.jpg (image/jpeg)")
	assert.NotContains(t, out, "blue-lake.jpg")

	out, err = run("search", "--type", "video")
	require.NoError(t, err)
	assert.Contains(t, out, "No assets found")

	_, err = run("search", "--type", "spreadsheet", "car")
	assert.ErrorIs(t, err, core.ErrInvalidMediaType)

	out, err = run("search", "car")
	require.NoError(t, err)
	id := regexp.MustCompile(`red-car\.jpg \(image/jpeg\) ([0-9a-f-]{36})`).FindStringSubmatch(out)
	require.Len(t, id, 2)

	out, err = run("related", id[1])
	require.NoError(t, err)
	assert.NotContains(t, out, "red-car.jpg")

	_, err = run("related", "not-a-uuid")
	assert.Error(t, err)

	out, err = run("reembed")
	require.NoError(t, err)
	assert.Contains(t, out, "Reembedding complete. Processed 2 assets")
}
