package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/filecache/internal/cache"
	"github.com/any-hub/filecache/internal/config"
	"github.com/any-hub/filecache/internal/logging"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
	exitMiss  = 3
)

var (
	stdOut io.Writer = os.Stdout
	stdErr io.Writer = os.Stderr
)

// exitCodeError 携带期望的退出码。
type exitCodeError struct {
	code int
	err  error
}

func (e *exitCodeError) Error() string { return e.err.Error() }

func (e *exitCodeError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitCodeError{code: exitUsage, err: err}
}

// usageArgs 将 cobra 参数校验失败映射为用法错误。
func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run 执行 CLI 并返回退出码，方便测试。
func run(args []string) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdOut)
	root.SetErr(stdErr)

	err := root.ExecuteContext(context.Background())
	if err == nil {
		return exitOK
	}

	var coded *exitCodeError
	if errors.As(err, &coded) {
		fmt.Fprintln(stdErr, coded.err.Error())
		return coded.code
	}
	fmt.Fprintln(stdErr, err.Error())
	return exitError
}

func newRootCmd() *cobra.Command {
	var configFlag string

	root := &cobra.Command{
		Use:           "filecache",
		Short:         "File-backed JSON key-value cache with per-entry TTL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configFlag, "config", "", "配置文件路径（默认 ./config.toml，可被 FILECACHE_CONFIG 覆盖）")
	root.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	configPath := func() string { return resolveConfigPath(configFlag) }
	root.AddCommand(
		putCmd(configPath),
		getCmd(configPath),
		deleteCmd(configPath),
		statCmd(configPath),
		sweepCmd(configPath),
		clearCmd(configPath),
		checkConfigCmd(configPath),
		versionCmd(),
	)
	return root
}

// resolveConfigPath 结合 flag 与环境变量计算最终的配置路径，flag 优先。
func resolveConfigPath(flagValue string) string {
	path := os.Getenv("FILECACHE_CONFIG")
	if flagValue != "" {
		path = flagValue
	}
	if path == "" {
		path = "config.toml"
	}
	return path
}

// cliRuntime 汇总一次子命令执行所需的配置、日志与缓存实例。
type cliRuntime struct {
	cfg     *config.Config
	logger  *logrus.Logger
	service *cache.Service
	fields  logrus.Fields
}

// bootstrap 遵循“配置 → 日志 → 缓存实例”顺序构建运行时。
func bootstrap(action, configPath string) (*cliRuntime, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}

	logger, err := logging.InitLogger(cfg.Global, stdErr)
	if err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	svc, err := cache.New(cfg.Global.StoragePath, cfg.Global.InstanceName, cache.Options{
		Logger: logging.CacheLogger(logger, cfg.Global),
	})
	if err != nil {
		return nil, fmt.Errorf("初始化缓存失败: %w", err)
	}

	return &cliRuntime{
		cfg:     cfg,
		logger:  logger,
		service: svc,
		fields:  logging.BaseFields(action, configPath),
	}, nil
}

func (r *cliRuntime) entryLog(namespace, key string, state cache.State) *logrus.Entry {
	return r.logger.WithFields(r.fields).WithFields(logging.EntryFields(namespace, key, string(state)))
}
