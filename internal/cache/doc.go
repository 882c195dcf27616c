/*
包 cache 提供基于 Redis 的缓存管理能力。

# 核心类型

  - Manager：缓存管理器，提供 Get/Set/Delete/DeletePrefix 基础操作，
    以及 GetJSON/SetJSON 便捷序列化方法。可通过 NewManagerWithClient
    复用持久化层的 Redis 连接。
  - Config：地址、密码、键前缀、默认 TTL 与健康检查间隔。

# 使用场景

作为状态 Provider 缓存（agent/provider.CachedProvider）的分布式层：
本地缓存未命中时先查询 Redis，再回源到持久化存储。

# 错误语义

提供 ErrCacheMiss 哨兵错误与 IsCacheMiss 判断函数。
*/
package cache
