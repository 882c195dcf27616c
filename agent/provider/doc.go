// Package provider 提供按作用域读写状态的 Provider 抽象。
//
// Provider[T] 以 Scope{UserID, ThreadID} 为参数加载、保存、删除某类状态。
// CachedProvider 在任意 Provider 之前加一层带 TTL 的进程内缓存，可选再
// 接一层 Redis 分布式缓存；缓存键为 userId-threadId，线程无关时为
// userId-global。ProviderManager 是显式构造的命名注册表，不存在全局单例。
package provider
