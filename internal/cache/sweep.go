package cache

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
)

// SweepOptions 控制 Sweep 额外清理哪些文件。过期条目总是会被清理。
type SweepOptions struct {
	// Orphans 清理没有元数据的值文件（中断的写入）。
	Orphans bool
	// Temp 清理残留的 .filecache-* 临时文件。
	Temp bool
}

// SweepReport 汇总一次 Sweep 的结果。
type SweepReport struct {
	Scanned int      `json:"scanned"`
	Expired int      `json:"expired"`
	Orphans int      `json:"orphans"`
	Temp    int      `json:"temp"`
	Corrupt int      `json:"corrupt"`
	Removed []string `json:"removed,omitempty"`
}

// Sweep 由调用方显式触发，回收实例目录下所有过期条目的磁盘空间。
// 损坏的元数据只计数不删除，交给调用方决定如何处理。
func (s *Service) Sweep(ctx context.Context, opts SweepOptions) (SweepReport, error) {
	var report SweepReport

	namespaces, err := afero.ReadDir(s.fs, s.instanceDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return report, nil
		}
		return report, ioError("readdir", s.instanceDir(), err)
	}

	now := s.now()
	for _, ns := range namespaces {
		if !ns.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.sweepNamespace(ns.Name(), now, opts, &report); err != nil {
			return report, err
		}
	}

	s.logger.WithFields(logrus.Fields{
		"scanned": report.Scanned,
		"expired": report.Expired,
		"orphans": report.Orphans,
		"temp":    report.Temp,
		"corrupt": report.Corrupt,
	}).Debug("cache sweep finished")
	return report, nil
}

func (s *Service) sweepNamespace(namespace string, now time.Time, opts SweepOptions, report *SweepReport) error {
	dir := s.namespaceDir(namespace)
	entries, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return ioError("readdir", dir, err)
	}

	withMetadata := map[string]struct{}{}
	for _, entry := range entries {
		if key, ok := keyFromFile(entry.Name(), metadataSuffix); ok && !entry.IsDir() {
			withMetadata[key] = struct{}{}
		}
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch {
		case strings.HasSuffix(name, metadataSuffix):
			key, ok := keyFromFile(name, metadataSuffix)
			if !ok {
				continue
			}
			report.Scanned++
			meta, _, err := s.readMetadata(filepath.Join(dir, name))
			if err != nil {
				report.Corrupt++
				continue
			}
			if !meta.Expired(now) {
				continue
			}
			if err := s.removeSwept(filepath.Join(dir, name), report); err != nil {
				return err
			}
			if err := s.removeSwept(filepath.Join(dir, key+valueSuffix), report); err != nil {
				return err
			}
			report.Expired++
		case strings.HasSuffix(name, valueSuffix):
			key, ok := keyFromFile(name, valueSuffix)
			if !ok {
				continue
			}
			if _, paired := withMetadata[key]; paired || !opts.Orphans {
				continue
			}
			if err := s.removeSwept(filepath.Join(dir, name), report); err != nil {
				return err
			}
			report.Orphans++
		case isTempFile(name):
			if opts.Temp {
				if err := s.removeSwept(filepath.Join(dir, name), report); err != nil {
					return err
				}
				report.Temp++
			}
		}
	}
	return nil
}

func (s *Service) removeSwept(path string, report *SweepReport) error {
	if err := s.fs.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return ioError("remove", path, err)
	}
	report.Removed = append(report.Removed, path)
	return nil
}
