package webview

import (
	"os"
	"path/filepath"
	"syscall"
)

func openLibrary() (func(name string) (uintptr, error), error) {
	execPath, _ := os.Executable()

	fname := "webview.dll"
	for _, v := range []string{os.Getenv("WEBVIEW_PATH"), filepath.Dir(execPath)} {
		if v == "" {
			continue
		}
		fn := filepath.Join(v, fname)
		if _, err := os.Stat(fn); err == nil {
			fname = fn
			break
		}
	}

	handle, err := syscall.LoadLibrary(fname)
	if err != nil {
		return nil, err
	}
	return func(name string) (uintptr, error) {
		return syscall.GetProcAddress(handle, name)
	}, nil
}
