package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch 监听配置文件变更并回调新配置（游戏平衡参数热加载用）。
// 监听所在目录而非文件本身：编辑器保存常是改名替换，直接盯文件会丢事件。
// 解析失败只告警，保留旧配置。ctx 结束时停止。
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	if path == "" {
		return fmt.Errorf("path 不能为空")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("创建文件监控器失败: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return fmt.Errorf("获取绝对路径失败: %w", err)
	}
	if err := watcher.Add(filepath.Dir(absPath)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("添加监控路径失败: %w", err)
	}

	go func() {
		defer watcher.Close()

		// 防抖：保存动作常触发连续多个事件
		var lastReload time.Time
		const debounce = 500 * time.Millisecond

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != absPath {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if time.Since(lastReload) < debounce {
					continue
				}
				lastReload = time.Now()

				cfg, err := Load(absPath)
				if err != nil {
					slog.Warn("配置热加载失败，保留旧配置", "path", absPath, "error", err)
					continue
				}
				slog.Info("配置已热加载", "path", absPath)
				onChange(cfg)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				slog.Warn("配置监控出错", "error", err)
			}
		}
	}()

	return nil
}
