package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

func noEnv(string) (string, bool) { return "", false }

func envOf(m map[string]string) LookupFunc {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestLoadEffective_Defaults(t *testing.T) {
	cwd := t.TempDir()

	eff, err := LoadEffective(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != "" {
		t.Fatalf("无配置文件时 ConfigPath 应为空，实际=%q", eff.ConfigPath)
	}
	if eff.DataDir != filepath.Join(cwd, DefaultDataDir) {
		t.Fatalf("DataDir 默认值不对：%q", eff.DataDir)
	}
	if eff.Fetcher != FetcherBrowser || !eff.Headless || eff.Limit != 0 {
		t.Fatalf("默认值不对：%+v", eff)
	}
	if eff.Interval != 24*time.Hour || eff.ScrollTimes != 10 || eff.ScrollPause != 5*time.Second ||
		eff.SettleDelay != 5*time.Second || eff.WaitTimeout != 10*time.Second {
		t.Fatalf("时间类默认值不对：%+v", eff)
	}
	if eff.ListingURL != domain.ListingURL || eff.DashboardAddr != DefaultDashboardAddr {
		t.Fatalf("URL/地址默认值不对：%+v", eff)
	}
	if eff.DatasetPath() != filepath.Join(cwd, "output", "shows.csv") {
		t.Fatalf("DatasetPath 不对：%q", eff.DatasetPath())
	}
	if eff.ReportPath() != filepath.Join(cwd, "output", "dashboard.html") {
		t.Fatalf("ReportPath 不对：%q", eff.ReportPath())
	}
}

func TestLoadEffective_ExplicitConfigNotFound(t *testing.T) {
	cwd := t.TempDir()

	_, err := LoadEffective(cwd, CLIArgs{ConfigPath: "missing.json5"}, noEnv)
	if Code(err) != ErrCodeNotFound {
		t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeNotFound, err, Code(err))
	}
}

func TestLoadEffective_JSON5File(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{
  // 注释与尾逗号都允许
  data_dir: "data",
  fetcher: "http",
  headless: false,
  limit: 5,
  interval: "1h",
  wait_timeout: "3s",
  proxy: { url: "http://127.0.0.1:7890" },
}`))

	eff, err := LoadEffective(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.ConfigPath != filepath.Join(cwd, FileName) {
		t.Fatalf("ConfigPath 不对：%q", eff.ConfigPath)
	}
	if eff.DataDir != filepath.Join(cwd, "data") {
		t.Fatalf("期望 data_dir 相对 cwd 解析，实际=%q", eff.DataDir)
	}
	if eff.Fetcher != FetcherHTTP || eff.Headless || eff.Limit != 5 {
		t.Fatalf("字段未生效：%+v", eff)
	}
	if eff.Interval != time.Hour || eff.WaitTimeout != 3*time.Second {
		t.Fatalf("时长字段未生效：%+v", eff)
	}
	if eff.ProxyURL != "http://127.0.0.1:7890" {
		t.Fatalf("proxy 未生效：%q", eff.ProxyURL)
	}
}

func TestLoadEffective_LocalOverride(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{limit: 5, headless: true, fetcher: "http"}`))
	writeFile(t, filepath.Join(cwd, "ibdbwatch.local.json5"), []byte(`{limit: 2, headless: false}`))

	eff, err := LoadEffective(cwd, CLIArgs{}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Limit != 2 || eff.Headless {
		t.Fatalf("local 覆盖未生效：%+v", eff)
	}
	if eff.Fetcher != FetcherHTTP {
		t.Fatalf("local 未写的字段应保留：%q", eff.Fetcher)
	}
}

func TestLoadEffective_LocalOnlyCountsAsFound(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, "custom.local.json5"), []byte(`{limit: 7}`))

	eff, err := LoadEffective(cwd, CLIArgs{ConfigPath: "custom.json5"}, noEnv)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Limit != 7 {
		t.Fatalf("期望 limit=7，实际=%d", eff.Limit)
	}
}

func TestLoadEffective_Precedence(t *testing.T) {
	cwd := t.TempDir()
	writeFile(t, filepath.Join(cwd, FileName), []byte(`{limit: 5, headless: true, data_dir: "file"}`))

	env := envOf(map[string]string{
		"IBDBWATCH_LIMIT":    "3",
		"IBDBWATCH_HEADLESS": "false",
		"IBDBWATCH_DATA_DIR": "env",
	})

	// env 覆盖文件。
	eff, err := LoadEffective(cwd, CLIArgs{}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Limit != 3 || eff.Headless || eff.DataDir != filepath.Join(cwd, "env") {
		t.Fatalf("env 覆盖未生效：%+v", eff)
	}

	// CLI 覆盖 env（包括显式写回零值/false）。
	eff, err = LoadEffective(cwd, CLIArgs{
		Limit:       0,
		LimitSet:    true,
		Headless:    true,
		HeadlessSet: true,
		DataDir:     "/abs/cli",
	}, env)
	if err != nil {
		t.Fatalf("不期望错误：%v", err)
	}
	if eff.Limit != 0 || !eff.Headless || eff.DataDir != filepath.Clean("/abs/cli") {
		t.Fatalf("CLI 覆盖未生效：%+v", eff)
	}
}

func TestLoadEffective_Invalid(t *testing.T) {
	cases := []struct {
		name string
		file string
		env  map[string]string
		cli  CLIArgs
	}{
		{name: "broken json5", file: `{`},
		{name: "bad fetcher", file: `{fetcher: "curl"}`},
		{name: "cli bad fetcher", cli: CLIArgs{Fetcher: "wget"}},
		{name: "negative limit", file: `{limit: -1}`},
		{name: "bad interval", file: `{interval: "soon"}`},
		{name: "zero interval", file: `{interval: "0s"}`},
		{name: "zero rps", file: `{requests_per_second: 0}`},
		{name: "relative listing", file: `{listing_url: "/shows"}`},
		{name: "bad proxy", file: `{proxy: {url: "http://[::1"}}`},
		{name: "env bad bool", env: map[string]string{"IBDBWATCH_HEADLESS": "maybe"}},
		{name: "env bad limit", env: map[string]string{"IBDBWATCH_LIMIT": "ten"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cwd := t.TempDir()
			if tc.file != "" {
				writeFile(t, filepath.Join(cwd, FileName), []byte(tc.file))
			}
			_, err := LoadEffective(cwd, tc.cli, envOf(tc.env))
			if Code(err) != ErrCodeInvalid {
				t.Fatalf("期望 %q，实际 err=%v (code=%q)", ErrCodeInvalid, err, Code(err))
			}
		})
	}
}

func TestLocalPath(t *testing.T) {
	cases := map[string]string{
		"ibdbwatch.json5":      "ibdbwatch.local.json5",
		"/etc/x/conf.json5":    "/etc/x/conf.local.json5",
		"noext":                "noext.local",
		"dir.d/settings.json5": "dir.d/settings.local.json5",
	}
	for in, want := range cases {
		if got := LocalPath(in); got != want {
			t.Fatalf("LocalPath(%q)=%q，期望 %q", in, got, want)
		}
	}
}

func writeFile(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}
