package schema

import "strings"

// 配置 blob 的键名约定。历史数据沿用原始写法（含空格、大小写不一），
// 不在此处做迁移，只收敛引用点。
const (
	ConfKeyVotes            = "votes"
	ConfKeyUses             = "Uses"
	ConfKeyMissionsUnlocked = "missions unlocked"
	ConfKeyOptions          = "classificationOptions"
)

// GetInt 从配置 blob 读取整数键，缺失或类型不符返回 0。
// JSON 反序列化后数字是 float64，这里统一收敛。
func GetInt(conf JSONMap, key string) int {
	if conf == nil {
		return 0
	}
	raw, ok := conf[key]
	if !ok || raw == nil {
		return 0
	}
	switch v := raw.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case float32:
		return int(v)
	default:
		return 0
	}
}

// SetInt 写入整数键
func SetInt(conf JSONMap, key string, v int) {
	if conf == nil {
		return
	}
	conf[key] = v
}

// GetStringSlice 读取字符串数组键，过滤空白项
func GetStringSlice(conf JSONMap, key string) []string {
	if conf == nil {
		return nil
	}
	raw, ok := conf[key]
	if !ok || raw == nil {
		return nil
	}
	switch v := raw.(type) {
	case []string:
		out := make([]string, 0, len(v))
		for _, s := range v {
			if strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, it := range v {
			if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	default:
		return nil
	}
}

// AppendString 向字符串数组键追加一项（去重）
func AppendString(conf JSONMap, key, value string) {
	if conf == nil || strings.TrimSpace(value) == "" {
		return
	}
	cur := GetStringSlice(conf, key)
	for _, s := range cur {
		if s == value {
			return
		}
	}
	conf[key] = append(cur, value)
}

// MergeShallow 浅合并：patch 的键整体覆盖 existing 的同名键（右偏），
// 嵌套结构不做深合并。返回新 map，不修改入参。
func MergeShallow(existing, patch JSONMap) JSONMap {
	out := make(JSONMap, len(existing)+len(patch))
	for k, v := range existing {
		out[k] = v
	}
	for k, v := range patch {
		out[k] = v
	}
	return out
}
