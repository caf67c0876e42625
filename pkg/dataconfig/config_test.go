package dataconfig

import (
	"errors"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func newTestWriter() *Writer {
	w := NewWriter()
	w.SetLogger(log.New(io.Discard, "", 0))
	return w
}

func writeClasses(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "classes.txt")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestReadClasses(t *testing.T) {
	t.Run("skips blank lines and trims", func(t *testing.T) {
		path := writeClasses(t, "cat", "", "dog", "  ", "bird")

		classes, err := ReadClasses(path)
		require.NoError(t, err)
		if diff := cmp.Diff([]string{"cat", "dog", "bird"}, classes); diff != "" {
			t.Errorf("classes mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("keeps duplicates and order", func(t *testing.T) {
		path := writeClasses(t, "  zebra\t", "apple", "zebra", "traffic light")

		classes, err := ReadClasses(path)
		require.NoError(t, err)
		if diff := cmp.Diff([]string{"zebra", "apple", "zebra", "traffic light"}, classes); diff != "" {
			t.Errorf("classes mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("windows line endings", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "classes.txt")
		require.NoError(t, os.WriteFile(path, []byte("cat\r\n\r\ndog\r\n"), 0o644))

		classes, err := ReadClasses(path)
		require.NoError(t, err)
		assert.Equal(t, []string{"cat", "dog"}, classes)
	})

	t.Run("empty file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "classes.txt")
		require.NoError(t, os.WriteFile(path, nil, 0o644))

		classes, err := ReadClasses(path)
		require.NoError(t, err)
		assert.Empty(t, classes)
	})

	t.Run("missing", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "classes.txt")

		_, err := ReadClasses(path)
		var missing *MissingClassListError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, path, missing.Path)
		assert.True(t, errors.Is(err, ErrMissingClassList))
	})
}

func TestNew(t *testing.T) {
	classes := []string{"cat", "dog"}
	cfg := New("/content/dataset", classes)

	assert.Equal(t, "/content/dataset", cfg.Path)
	assert.Equal(t, "train/images", cfg.Train)
	assert.Equal(t, "validation/images", cfg.Val)
	assert.Equal(t, 2, cfg.NC)
	assert.Equal(t, classes, cfg.Names)
	assert.Equal(t, DefaultAugmentations(), cfg.Augmentations)

	classes[0] = "mutated"
	assert.Equal(t, "cat", cfg.Names[0])
}

func TestMarshalKeyOrder(t *testing.T) {
	data, err := Marshal(New("/data", []string{"cat"}))
	require.NoError(t, err)

	topLevel := regexp.MustCompile(`(?m)^([a-z_]+):`).FindAllStringSubmatch(string(data), -1)
	var keys []string
	for _, m := range topLevel {
		keys = append(keys, m[1])
	}
	assert.Equal(t, []string{"path", "train", "val", "nc", "names", "augmentations"}, keys)

	nested := regexp.MustCompile(`(?m)^[ ]+([a-z_]+):`).FindAllStringSubmatch(string(data), -1)
	keys = keys[:0]
	for _, m := range nested {
		keys = append(keys, m[1])
	}
	assert.Equal(t, []string{
		"hsv_h", "hsv_s", "hsv_v", "degrees", "translate", "scale", "shear",
		"perspective", "flipud", "fliplr", "mosaic", "mixup", "copy_paste",
	}, keys)
}

func TestMarshalAugmentationLiterals(t *testing.T) {
	data, err := Marshal(New("/data", nil))
	require.NoError(t, err)
	doc := string(data)

	for _, line := range []string{
		"hsv_h: 0.015\n",
		"hsv_s: 0.7\n",
		"hsv_v: 0.4\n",
		"degrees: 0.0\n",
		"translate: 0.1\n",
		"scale: 0.5\n",
		"shear: 0.0\n",
		"perspective: 0.0\n",
		"flipud: 0.0\n",
		"fliplr: 0.5\n",
		"mosaic: 1.0\n",
		"mixup: 0.0\n",
		"copy_paste: 0.0\n",
	} {
		assert.Contains(t, doc, line)
	}
	assert.Contains(t, doc, "nc: 0\n")
	assert.Contains(t, doc, "names: []\n")
}

func TestMarshalAugmentationsIgnoreInput(t *testing.T) {
	a, err := Marshal(New("/a", []string{"x"}))
	require.NoError(t, err)
	b, err := Marshal(New("/b", []string{"y", "z", "w"}))
	require.NoError(t, err)

	var da, db map[string]any
	require.NoError(t, yaml.Unmarshal(a, &da))
	require.NoError(t, yaml.Unmarshal(b, &db))

	augA := da["augmentations"].(map[string]any)
	assert.Len(t, augA, 13)
	assert.Equal(t, augA, db["augmentations"])
}

func TestParamMarshal(t *testing.T) {
	tests := []struct {
		in   Param
		want string
	}{
		{0, "0.0"},
		{1, "1.0"},
		{0.015, "0.015"},
		{0.5, "0.5"},
		{10, "10.0"},
	}
	for _, tt := range tests {
		out, err := yaml.Marshal(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want+"\n", string(out))
	}
}

func TestWriteConfig(t *testing.T) {
	t.Run("writes document", func(t *testing.T) {
		classes := writeClasses(t, "cat", "", "dog", "  ", "bird")
		out := filepath.Join(t.TempDir(), "configs", "data.yaml")

		cfg, err := newTestWriter().WriteConfig(classes, out, "/content/dataset")
		require.NoError(t, err)
		assert.Equal(t, 3, cfg.NC)

		loaded, err := Load(out)
		require.NoError(t, err)
		require.NoError(t, loaded.Validate())
		assert.Equal(t, 3, loaded.NC)
		assert.Equal(t, []string{"cat", "dog", "bird"}, loaded.Names)
		assert.Equal(t, "/content/dataset", loaded.Path)
		assert.Equal(t, DefaultAugmentations(), loaded.Augmentations)
	})

	t.Run("overwrites existing file", func(t *testing.T) {
		classes := writeClasses(t, "cat")
		out := filepath.Join(t.TempDir(), "data.yaml")
		require.NoError(t, os.WriteFile(out, []byte("stale: true\nextra: 1\n"), 0o644))

		_, err := newTestWriter().WriteConfig(classes, out, "/data")
		require.NoError(t, err)

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.NotContains(t, string(data), "stale")
		assert.True(t, strings.HasPrefix(string(data), "path: /data\n"))
	})

	t.Run("missing class list leaves output alone", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "data.yaml")
		require.NoError(t, os.WriteFile(out, []byte("previous\n"), 0o644))

		_, err := newTestWriter().WriteConfig(filepath.Join(dir, "classes.txt"), out, "/data")
		assert.True(t, errors.Is(err, ErrMissingClassList))

		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, "previous\n", string(data))
	})

	t.Run("missing class list creates nothing", func(t *testing.T) {
		dir := t.TempDir()
		out := filepath.Join(dir, "data.yaml")

		_, err := newTestWriter().WriteConfig(filepath.Join(dir, "classes.txt"), out, "/data")
		require.Error(t, err)
		assert.NoFileExists(t, out)
	})
}

func TestValidate(t *testing.T) {
	cfg := New("/data", []string{"a", "b"})
	require.NoError(t, cfg.Validate())

	cfg.NC = 3
	assert.Error(t, cfg.Validate())
}
