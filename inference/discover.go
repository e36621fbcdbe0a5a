package inference

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/webglue/webglue/types"
)

// modelExtensions 可被识别为模型文件的扩展名
var modelExtensions = []string{".gguf", ".bin"}

// FindServerExecutable 在 serverDir 下按固定候选顺序查找 llama.cpp
// 服务器可执行文件，返回首个存在且带可执行位的常规文件。
func FindServerExecutable(serverDir string) (string, error) {
	candidates := []string{
		filepath.Join(serverDir, "server"),
		filepath.Join(serverDir, "build", "bin", "server"),
		filepath.Join(serverDir, "build", "server"),
	}
	for _, path := range candidates {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		if info.Mode()&0o111 != 0 {
			return path, nil
		}
	}
	return "", types.NewErrorf(types.ErrExecutableNotFound,
		"llama.cpp server executable not found under %s", serverDir)
}

// FindModelPath 解析模型文件位置：name 本身是存在的路径时直接使用；
// 其次尝试 <modelsDir>/<name>；最后递归扫描 modelsDir，取第一个
// 文件名包含 name 且扩展名匹配的文件。
func FindModelPath(modelsDir, name string) (string, error) {
	if name != "" {
		if info, err := os.Stat(name); err == nil && info.Mode().IsRegular() {
			return name, nil
		}
		joined := filepath.Join(modelsDir, name)
		if info, err := os.Stat(joined); err == nil && info.Mode().IsRegular() {
			return joined, nil
		}
	}

	var found string
	err := filepath.WalkDir(modelsDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		base := d.Name()
		if !strings.Contains(base, name) || !hasModelExtension(base) {
			return nil
		}
		found = path
		return fs.SkipAll
	})
	if err == nil && found != "" {
		return found, nil
	}
	return "", types.NewErrorf(types.ErrModelNotFound,
		"model %q not found under %s", name, modelsDir)
}

func hasModelExtension(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range modelExtensions {
		if ext == want {
			return true
		}
	}
	return false
}
