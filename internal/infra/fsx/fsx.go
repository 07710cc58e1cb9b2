// Package fsx 提供数据目录里的文件写入：整文件替换（数据集、报告、快照）与追加（run log）。
package fsx

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

// 测试里替换它来模拟 rename 失败。
var renameFn = os.Rename

// NotAFileError：要整体替换的目标已经是一个目录。
type NotAFileError struct {
	Path string
}

func (e *NotAFileError) Error() string {
	return fmt.Sprintf("无法替换 %q：目标是目录", e.Path)
}

// CrossDeviceError：临时文件与目标不在同一文件系统，rename 无法原子完成。
type CrossDeviceError struct {
	Src, Dst string
	Err      error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("rename %q -> %q 跨文件系统：%v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// WriteFileAtomicReplace 把 data 写成 dir/name。
//
// 先写同目录下的隐藏临时文件并 Sync，再 rename 到目标；读者只会看到旧内容或新内容。
// 失败时临时文件被删除，已有目标保持不变。
func WriteFileAtomicReplace(dir, name string, data []byte) error {
	dir = filepath.Clean(dir)
	dst := filepath.Join(dir, name)
	if fi, err := os.Lstat(dst); err == nil && fi.IsDir() {
		return &NotAFileError{Path: dst}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+name+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Chmod(0o644); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := renameFn(tmpName, dst); err != nil {
		if crossDevice(err) {
			return &CrossDeviceError{Src: tmpName, Dst: dst, Err: err}
		}
		return err
	}
	committed = true

	syncDir(dir)
	return nil
}

// OpenAppend 以追加模式打开 path，文件与父目录不存在时创建。
func OpenAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
}

// syncDir 让 rename 在掉电后也可见；失败忽略。Windows 不支持目录 Sync。
func syncDir(dir string) {
	if runtime.GOOS == "windows" {
		return
	}
	f, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = f.Sync()
	_ = f.Close()
}
