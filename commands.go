package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/any-hub/filecache/internal/cache"
)

var errMiss = errors.New("cache entry not found")

func putCmd(configPath func() string) *cobra.Command {
	var ttl time.Duration

	cmd := &cobra.Command{
		Use:   "put <namespace> <key> <json>",
		Short: "写入一个 JSON 值",
		Args:  usageArgs(cobra.ExactArgs(3)),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, key, raw := args[0], args[1], args[2]
			if !json.Valid([]byte(raw)) {
				return usageError(fmt.Errorf("值不是合法的 JSON: %s", raw))
			}

			rt, err := bootstrap("put", configPath())
			if err != nil {
				return err
			}
			effective := rt.cfg.EffectiveTTL(namespace)
			if cmd.Flags().Changed("ttl") {
				effective = ttl
			}

			ttlSecs := cache.TTLSeconds(effective)
			if err := rt.service.Store(cmd.Context(), namespace, key, json.RawMessage(raw), ttlSecs); err != nil {
				return err
			}
			rt.entryLog(namespace, key, cache.StateLive).WithField("ttl_secs", ttlSecs).Info("缓存写入完成")
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "条目 TTL（0 表示永不过期，默认取配置）")
	return cmd
}

func getCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <namespace> <key>",
		Short: "读取一个值；不存在或已过期时退出码为 3",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, key := args[0], args[1]
			rt, err := bootstrap("get", configPath())
			if err != nil {
				return err
			}

			var value json.RawMessage
			found, err := rt.service.Get(cmd.Context(), namespace, key, &value)
			if err != nil {
				return err
			}
			if !found {
				rt.entryLog(namespace, key, cache.StateAbsent).Info("缓存未命中")
				return &exitCodeError{code: exitMiss, err: errMiss}
			}
			fmt.Fprintln(stdOut, string(value))
			rt.entryLog(namespace, key, cache.StateLive).Debug("缓存命中")
			return nil
		},
	}
}

func deleteCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <namespace> <key>",
		Short: "删除一个条目（幂等）",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			namespace, key := args[0], args[1]
			rt, err := bootstrap("delete", configPath())
			if err != nil {
				return err
			}
			if err := rt.service.Delete(cmd.Context(), namespace, key); err != nil {
				return err
			}
			rt.entryLog(namespace, key, cache.StateAbsent).Info("缓存已删除")
			return nil
		},
	}
}

func statCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stat <namespace> <key>",
		Short: "输出条目状态与元数据",
		Args:  usageArgs(cobra.ExactArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap("stat", configPath())
			if err != nil {
				return err
			}
			info, err := rt.service.Stat(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(info)
		},
	}
}

func sweepCmd(configPath func() string) *cobra.Command {
	var opts cache.SweepOptions

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "清理已过期条目",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap("sweep", configPath())
			if err != nil {
				return err
			}
			report, err := rt.service.Sweep(cmd.Context(), opts)
			if err != nil {
				return err
			}
			rt.logger.WithFields(rt.fields).WithFields(logrus.Fields{
				"expired": report.Expired,
				"orphans": report.Orphans,
				"temp":    report.Temp,
				"corrupt": report.Corrupt,
			}).Info("清理完成")
			return printJSON(report)
		},
	}
	cmd.Flags().BoolVar(&opts.Orphans, "orphans", false, "同时清理缺少元数据的值文件")
	cmd.Flags().BoolVar(&opts.Temp, "temp", false, "同时清理残留的临时文件")
	return cmd
}

func clearCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "clear <namespace>",
		Short: "删除整个 namespace",
		Args:  usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap("clear", configPath())
			if err != nil {
				return err
			}
			if err := rt.service.Clear(cmd.Context(), args[0]); err != nil {
				return err
			}
			rt.logger.WithFields(rt.fields).WithField("namespace", args[0]).Info("namespace 已清空")
			return nil
		},
	}
}

func checkConfigCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "check-config",
		Short: "仅校验配置后退出",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap("check_config", configPath())
			if err != nil {
				return err
			}
			fields := rt.fields
			fields["storage_path"] = rt.cfg.Global.StoragePath
			fields["instance"] = rt.cfg.Global.InstanceName
			fields["namespaces"] = rt.cfg.NamespaceNames()
			fields["result"] = "ok"
			rt.logger.WithFields(fields).Info("配置校验通过")
			return nil
		},
	}
}

func printJSON(v any) error {
	body, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(stdOut, string(body))
	return nil
}
