package cache

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/John-Robertt/ibdbwatch/internal/infra/fsx"
)

// Store 提供 <data>/cache/pages/ 下的页面快照读写。
//
// 约束：
// - 快照只用于离线重解析/排障，run 过程中只写不读
// - ReadOnly=true 时拒绝写入（inspect 等只读命令使用）
type Store struct {
	Root     string // <data>/cache
	ReadOnly bool
}

var ErrReadOnly = errors.New("cache: read-only")

func New(root string, readOnly bool) Store {
	return Store{
		Root:     filepath.Clean(strings.TrimSpace(root)),
		ReadOnly: readOnly,
	}
}

// PagePath 返回页面快照的绝对路径：<root>/pages/<slug>.html。
func (s Store) PagePath(pageURL string) (string, error) {
	slug, err := Slug(pageURL)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.Root, "pages", slug+".html"), nil
}

func (s Store) ReadPage(pageURL string) ([]byte, bool, error) {
	path, err := s.PagePath(pageURL)
	if err != nil {
		return nil, false, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

func (s Store) WritePage(pageURL string, html []byte) error {
	if s.ReadOnly {
		return ErrReadOnly
	}
	slug, err := Slug(pageURL)
	if err != nil {
		return err
	}
	return fsx.WriteFileAtomicReplace(filepath.Join(s.Root, "pages"), slug+".html", html)
}

var unsafeRE = regexp.MustCompile(`[^a-z0-9_-]+`)

const maxSlugLen = 200

// Slug 把页面 URL 的 path（含 query）变成安全的文件名。
// 只保留 [a-z0-9_-]，其余字符折叠为 "_"，避免路径穿越。
func Slug(pageURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return "", fmt.Errorf("非法 URL：%q：%w", pageURL, err)
	}
	raw := strings.Trim(u.Path, "/")
	if u.RawQuery != "" {
		raw += "_" + u.RawQuery
	}
	slug := strings.Trim(unsafeRE.ReplaceAllString(strings.ToLower(raw), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("URL 缺少可用的 path：%q", pageURL)
	}
	if len(slug) > maxSlugLen {
		slug = slug[:maxSlugLen]
	}
	return slug, nil
}
