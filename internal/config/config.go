package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

const (
	// ErrCodeNotFound 表示显式指定了 --config，但该文件（及其 .local 覆盖）都不存在。
	ErrCodeNotFound = domain.ErrCodeConfigNotFound
	// ErrCodeInvalid 表示配置文件/环境变量无法解析，或字段不合法。
	ErrCodeInvalid = domain.ErrCodeConfigInvalid
)

// FileName 是 cwd 下默认查找的配置文件名。
const FileName = "ibdbwatch.json5"

// EnvPrefix 是环境变量覆盖项的统一前缀。
const EnvPrefix = "IBDBWATCH_"

const (
	FetcherBrowser = "browser"
	FetcherHTTP    = "http"
)

// 内置默认值（当 CLI / env / 配置文件都未指定时）。
const (
	DefaultDataDir           = "output"
	DefaultFetcher           = FetcherBrowser
	DefaultInterval          = 24 * time.Hour
	DefaultScrollTimes       = 10
	DefaultScrollPause       = 5 * time.Second
	DefaultSettleDelay       = 5 * time.Second
	DefaultWaitTimeout       = 10 * time.Second
	DefaultRequestsPerSecond = 1.0
	DefaultDashboardAddr     = ":8080"
)

// 数据目录下的固定文件名。
const (
	DatasetFile = "shows.csv"
	ReportFile  = "dashboard.html"
	LogFile     = "scrape.log"
	LedgerFile  = "runs.db"
	CacheDir    = "cache"
)

// CLIArgs 只包含 CLI 暴露的入口，并保留“是否显式指定”的信息。
// 这能保证覆盖优先级可实现：例如 --headless=false 必须能覆盖 config.headless=true。
type CLIArgs struct {
	ConfigPath string

	DataDir string
	Fetcher string

	Headless    bool
	HeadlessSet bool

	Limit    int
	LimitSet bool

	DashboardAddr string
}

// FileConfig 对应 ibdbwatch.json5 的解析结构。
// 布尔与数值字段使用指针：区分“未写”与“写了零值”。
// 合并时必须带 mergo.WithoutDereference，否则 *bool(false) 无法覆盖 *bool(true)。
type FileConfig struct {
	DataDir           string      `json:"data_dir"`
	Fetcher           string      `json:"fetcher"`
	Headless          *bool       `json:"headless"`
	Limit             *int        `json:"limit"`
	Interval          string      `json:"interval"`
	ScrollTimes       *int        `json:"scroll_times"`
	ScrollPause       string      `json:"scroll_pause"`
	SettleDelay       string      `json:"settle_delay"`
	WaitTimeout       string      `json:"wait_timeout"`
	RequestsPerSecond *float64    `json:"requests_per_second"`
	Proxy             ProxyConfig `json:"proxy"`
	CachePages        *bool       `json:"cache_pages"`
	ListingURL        string      `json:"listing_url"`
	DashboardAddr     string      `json:"dashboard_addr"`
}

type ProxyConfig struct {
	URL string `json:"url"`
}

// EffectiveConfig 是合并并做最小规范化后的最终配置（实现层直接消费，不再做二次默认/优先级判断）。
type EffectiveConfig struct {
	// ConfigPath 是实际读取的配置文件路径；未读取到任何文件时为空。
	ConfigPath string

	DataDir string
	Fetcher string

	Headless bool
	// Limit 为 0 表示不限制处理条数。
	Limit int

	Interval    time.Duration
	ScrollTimes int
	ScrollPause time.Duration
	SettleDelay time.Duration
	WaitTimeout time.Duration

	RequestsPerSecond float64
	ProxyURL          string
	CachePages        bool

	ListingURL    string
	DashboardAddr string
}

func (e EffectiveConfig) DatasetPath() string { return filepath.Join(e.DataDir, DatasetFile) }
func (e EffectiveConfig) ReportPath() string  { return filepath.Join(e.DataDir, ReportFile) }
func (e EffectiveConfig) LogPath() string     { return filepath.Join(e.DataDir, LogFile) }
func (e EffectiveConfig) LedgerPath() string  { return filepath.Join(e.DataDir, LedgerFile) }
func (e EffectiveConfig) CachePath() string   { return filepath.Join(e.DataDir, CacheDir) }

// Error 是配置阶段的结构化错误（带 error_code）。
type Error struct {
	Code string
	Path string
	Err  error
}

func (e *Error) Error() string {
	switch e.Code {
	case ErrCodeNotFound:
		return fmt.Sprintf("%s：未找到配置文件 %q", e.Code, e.Path)
	case ErrCodeInvalid:
		if e.Err != nil {
			return fmt.Sprintf("%s：配置 %q 无效：%v", e.Code, e.Path, e.Err)
		}
		return fmt.Sprintf("%s：配置 %q 无效", e.Code, e.Path)
	default:
		if e.Err != nil {
			return fmt.Sprintf("%s：%v", e.Code, e.Err)
		}
		return e.Code
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Code 从 error 中提取 error_code；若不是 *Error 则返回空串。
func Code(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

var mergeOpts = []func(*mergo.Config){mergo.WithOverride, mergo.WithoutDereference}

// LookupFunc 与 os.LookupEnv 同签名；测试可以注入固定的环境。
type LookupFunc func(key string) (string, bool)

// LoadEffective 发现并读取配置文件，叠加环境变量与 CLI 参数，得到最终配置。
//
// 发现规则（固定）：
// 1) CLI 提供 --config：必须存在（<name>.json5 或 <name>.local.json5 至少一个）
// 2) 否则读取 <cwd>/ibdbwatch.json5（可选）
//
// 覆盖优先级（固定）：CLI > env(IBDBWATCH_*) > 配置文件 > 内置默认。
func LoadEffective(cwd string, cli CLIArgs, lookup LookupFunc) (EffectiveConfig, error) {
	cwdAbs, err := filepath.Abs(cwd)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cwd, Err: err}
	}
	if lookup == nil {
		lookup = os.LookupEnv
	}

	cfgPath := filepath.Join(cwdAbs, FileName)
	explicit := strings.TrimSpace(cli.ConfigPath) != ""
	if explicit {
		cfgPath = absCleanFrom(cwdAbs, cli.ConfigPath)
	}

	fc, exists, err := ReadConfig(cfgPath)
	if err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}
	if !exists && explicit {
		return EffectiveConfig{}, &Error{Code: ErrCodeNotFound, Path: cfgPath, Err: os.ErrNotExist}
	}
	if !exists {
		cfgPath = ""
	}

	envFC, err := fromEnv(lookup)
	if err != nil {
		return EffectiveConfig{}, err
	}
	if err := mergo.Merge(&fc, envFC, mergeOpts...); err != nil {
		return EffectiveConfig{}, &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: err}
	}

	return merge(cwdAbs, cli, fc, cfgPath)
}

func merge(cwdAbs string, cli CLIArgs, fc FileConfig, cfgPath string) (EffectiveConfig, error) {
	invalid := func(format string, args ...any) error {
		return &Error{Code: ErrCodeInvalid, Path: cfgPath, Err: fmt.Errorf(format, args...)}
	}

	eff := EffectiveConfig{
		ConfigPath:        cfgPath,
		Fetcher:           DefaultFetcher,
		Headless:          true,
		Interval:          DefaultInterval,
		ScrollTimes:       DefaultScrollTimes,
		ScrollPause:       DefaultScrollPause,
		SettleDelay:       DefaultSettleDelay,
		WaitTimeout:       DefaultWaitTimeout,
		RequestsPerSecond: DefaultRequestsPerSecond,
		ListingURL:        domain.ListingURL,
		DashboardAddr:     DefaultDashboardAddr,
	}

	// data_dir：CLI > config > 默认 <cwd>/output
	dataDir := DefaultDataDir
	if s := strings.TrimSpace(fc.DataDir); s != "" {
		dataDir = s
	}
	if s := strings.TrimSpace(cli.DataDir); s != "" {
		dataDir = s
	}
	eff.DataDir = absCleanFrom(cwdAbs, dataDir)

	if s := strings.TrimSpace(fc.Fetcher); s != "" {
		eff.Fetcher = s
	}
	if s := strings.TrimSpace(cli.Fetcher); s != "" {
		eff.Fetcher = s
	}
	eff.Fetcher = strings.ToLower(eff.Fetcher)
	if eff.Fetcher != FetcherBrowser && eff.Fetcher != FetcherHTTP {
		return EffectiveConfig{}, invalid("fetcher 只能是 browser 或 http，实际是 %q", eff.Fetcher)
	}

	if fc.Headless != nil {
		eff.Headless = *fc.Headless
	}
	if cli.HeadlessSet {
		eff.Headless = cli.Headless
	}

	if fc.Limit != nil {
		eff.Limit = *fc.Limit
	}
	if cli.LimitSet {
		eff.Limit = cli.Limit
	}
	if eff.Limit < 0 {
		return EffectiveConfig{}, invalid("limit 不能为负数：%d", eff.Limit)
	}

	var err error
	if eff.Interval, err = durationOr(fc.Interval, eff.Interval); err != nil || eff.Interval <= 0 {
		return EffectiveConfig{}, invalid("interval 无效：%q", fc.Interval)
	}
	if eff.ScrollPause, err = durationOr(fc.ScrollPause, eff.ScrollPause); err != nil || eff.ScrollPause < 0 {
		return EffectiveConfig{}, invalid("scroll_pause 无效：%q", fc.ScrollPause)
	}
	if eff.SettleDelay, err = durationOr(fc.SettleDelay, eff.SettleDelay); err != nil || eff.SettleDelay < 0 {
		return EffectiveConfig{}, invalid("settle_delay 无效：%q", fc.SettleDelay)
	}
	if eff.WaitTimeout, err = durationOr(fc.WaitTimeout, eff.WaitTimeout); err != nil || eff.WaitTimeout <= 0 {
		return EffectiveConfig{}, invalid("wait_timeout 无效：%q", fc.WaitTimeout)
	}

	if fc.ScrollTimes != nil {
		eff.ScrollTimes = *fc.ScrollTimes
	}
	if eff.ScrollTimes < 0 {
		return EffectiveConfig{}, invalid("scroll_times 不能为负数：%d", eff.ScrollTimes)
	}

	if fc.RequestsPerSecond != nil {
		eff.RequestsPerSecond = *fc.RequestsPerSecond
	}
	if eff.RequestsPerSecond <= 0 {
		return EffectiveConfig{}, invalid("requests_per_second 必须大于 0：%v", eff.RequestsPerSecond)
	}

	eff.ProxyURL = strings.TrimSpace(fc.Proxy.URL)
	if eff.ProxyURL != "" {
		if _, err := url.Parse(eff.ProxyURL); err != nil {
			return EffectiveConfig{}, invalid("proxy.url 无效：%w", err)
		}
	}

	if fc.CachePages != nil {
		eff.CachePages = *fc.CachePages
	}

	if s := strings.TrimSpace(fc.ListingURL); s != "" {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return EffectiveConfig{}, invalid("listing_url 必须是 http/https 绝对地址：%q", s)
		}
		eff.ListingURL = s
	}

	if s := strings.TrimSpace(fc.DashboardAddr); s != "" {
		eff.DashboardAddr = s
	}
	if s := strings.TrimSpace(cli.DashboardAddr); s != "" {
		eff.DashboardAddr = s
	}

	return eff, nil
}

// ReadConfig 读取 name 以及同目录下的 <base>.local.<ext>，后者按字段覆盖前者。
// 返回值 exists 表示两者中至少一个存在（都不存在不算错误）。
func ReadConfig(name string) (fc FileConfig, exists bool, err error) {
	b, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return FileConfig{}, false, err
	}
	if err == nil {
		exists = true
		if err := json5.Unmarshal(b, &fc); err != nil {
			return FileConfig{}, true, err
		}
	}

	localPath := LocalPath(name)
	lb, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return FileConfig{}, exists, err
	}
	if err == nil {
		exists = true
		var override FileConfig
		if err := json5.Unmarshal(lb, &override); err != nil {
			return FileConfig{}, true, fmt.Errorf("%s：%w", localPath, err)
		}
		if err := mergo.Merge(&fc, override, mergeOpts...); err != nil {
			return FileConfig{}, true, err
		}
		slog.Debug("合并本地覆盖配置", "local", localPath)
	}
	return fc, exists, nil
}

// LocalPath 返回 name 对应的本地覆盖文件路径：a/b.json5 -> a/b.local.json5。
func LocalPath(name string) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	if ext == "" {
		return base + ".local"
	}
	return base + ".local" + ext
}

// fromEnv 把 IBDBWATCH_* 环境变量解析为一份“只含已设置字段”的 FileConfig。
func fromEnv(lookup LookupFunc) (FileConfig, error) {
	var fc FileConfig
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
	invalid := func(key, v string, err error) error {
		return &Error{Code: ErrCodeInvalid, Path: "env:" + EnvPrefix + key, Err: fmt.Errorf("%q：%w", v, err)}
	}

	if v, ok := get("DATA_DIR"); ok {
		fc.DataDir = v
	}
	if v, ok := get("FETCHER"); ok {
		fc.Fetcher = v
	}
	if v, ok := get("HEADLESS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return FileConfig{}, invalid("HEADLESS", v, err)
		}
		fc.Headless = &b
	}
	if v, ok := get("LIMIT"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return FileConfig{}, invalid("LIMIT", v, err)
		}
		fc.Limit = &n
	}
	if v, ok := get("INTERVAL"); ok {
		fc.Interval = v
	}
	if v, ok := get("WAIT_TIMEOUT"); ok {
		fc.WaitTimeout = v
	}
	if v, ok := get("REQUESTS_PER_SECOND"); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return FileConfig{}, invalid("REQUESTS_PER_SECOND", v, err)
		}
		fc.RequestsPerSecond = &f
	}
	if v, ok := get("PROXY_URL"); ok {
		fc.Proxy.URL = v
	}
	if v, ok := get("CACHE_PAGES"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return FileConfig{}, invalid("CACHE_PAGES", v, err)
		}
		fc.CachePages = &b
	}
	if v, ok := get("DASHBOARD_ADDR"); ok {
		fc.DashboardAddr = v
	}
	return fc, nil
}

func durationOr(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

// absCleanFrom 以 base 为基准，把 p 变为 clean + absolute。
// - p 若已是绝对路径：直接 Clean
// - p 若是相对路径：Join(base, p) 后 Clean
func absCleanFrom(base, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	p = filepath.Clean(p)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(base, p))
}
