package inference

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webglue/webglue/types"
)

func writeFile(t *testing.T, path string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("stub"), mode))
}

func TestFindServerExecutable_CandidateOrder(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "build", "server"), 0o755)
	writeFile(t, filepath.Join(dir, "build", "bin", "server"), 0o755)

	// build/bin/server 排在 build/server 之前
	path, err := FindServerExecutable(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "build", "bin", "server"), path)

	// 根目录下的 server 优先于其余全部候选
	writeFile(t, filepath.Join(dir, "server"), 0o755)
	path, err = FindServerExecutable(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "server"), path)
}

func TestFindServerExecutable_RequiresExecutableBit(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "server"), 0o644)

	_, err := FindServerExecutable(dir)
	require.Error(t, err)
	assert.Equal(t, types.ErrExecutableNotFound, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), dir)
}

func TestFindServerExecutable_MissingDir(t *testing.T) {
	t.Parallel()

	_, err := FindServerExecutable(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, types.ErrExecutableNotFound, types.GetErrorCode(err))
}

func TestFindModelPath_ExactPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	model := filepath.Join(dir, "elsewhere", "some-model.gguf")
	writeFile(t, model, 0o644)

	path, err := FindModelPath(filepath.Join(dir, "models"), model)
	require.NoError(t, err)
	assert.Equal(t, model, path)
}

func TestFindModelPath_JoinedWithModelsDir(t *testing.T) {
	t.Parallel()

	models := t.TempDir()
	writeFile(t, filepath.Join(models, "qwen2.5-7b-instruct.Q4_K_M.gguf"), 0o644)

	path, err := FindModelPath(models, "qwen2.5-7b-instruct.Q4_K_M.gguf")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(models, "qwen2.5-7b-instruct.Q4_K_M.gguf"), path)
}

func TestFindModelPath_RecursiveSubstringMatch(t *testing.T) {
	t.Parallel()

	models := t.TempDir()
	writeFile(t, filepath.Join(models, "nested", "readme.txt"), 0o644)
	writeFile(t, filepath.Join(models, "nested", "qwen2.5-7b-instruct.Q4_K_M.gguf"), 0o644)

	path, err := FindModelPath(models, "qwen2.5")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(models, "nested", "qwen2.5-7b-instruct.Q4_K_M.gguf"), path)
}

func TestFindModelPath_ExtensionFilter(t *testing.T) {
	t.Parallel()

	models := t.TempDir()
	// 名字匹配但扩展名不在允许列表内
	writeFile(t, filepath.Join(models, "qwen2.5.safetensors"), 0o644)

	_, err := FindModelPath(models, "qwen2.5")
	require.Error(t, err)
	assert.Equal(t, types.ErrModelNotFound, types.GetErrorCode(err))
	assert.Contains(t, err.Error(), "qwen2.5")
}

func TestFindModelPath_NotFound(t *testing.T) {
	t.Parallel()

	_, err := FindModelPath(t.TempDir(), "missing-model")
	require.Error(t, err)
	assert.Equal(t, types.ErrModelNotFound, types.GetErrorCode(err))
}
