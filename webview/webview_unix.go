//go:build darwin || linux

package webview

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/ebitengine/purego"
)

func openLibrary() (func(name string) (uintptr, error), error) {
	execPath, _ := os.Executable()
	execDir := filepath.Dir(execPath)

	var name string
	var paths []string
	switch runtime.GOOS {
	case "darwin":
		name = "libwebview.dylib"
		paths = []string{
			os.Getenv("WEBVIEW_PATH"),
			execDir,
			filepath.Join(execDir, "..", "Frameworks"),
		}
	default:
		name = "libwebview.so"
		paths = []string{
			os.Getenv("WEBVIEW_PATH"),
			execDir,
		}
	}

	fname := name // fall back to the dynamic linker search path
	for _, v := range paths {
		if v == "" {
			continue
		}
		fn := filepath.Join(v, name)
		if _, err := os.Stat(fn); err == nil {
			fname = fn
			break
		}
	}

	handle, err := purego.Dlopen(fname, purego.RTLD_LAZY|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, err
	}
	return func(name string) (uintptr, error) {
		return purego.Dlsym(handle, name)
	}, nil
}
