package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/John-Robertt/ibdbwatch/internal/config"
)

func main() {
	// .env 可选：不存在时忽略，已存在的环境变量优先。
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "读取 .env 失败：%v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.LookupEnv).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "错误：%v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode：配置错误 2，其它失败 1。
func exitCode(err error) int {
	if config.Code(err) != "" {
		return 2
	}
	return 1
}
