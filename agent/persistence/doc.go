// Package persistence 提供 agent 状态的记录存储。
//
// 每条记录由 (collection, userId, threadId, id) 定位，内容是一段 JSON。
// 线程无关的数据（例如长期记忆）使用空 threadId。
//
// 支持的后端：
//   - memory：进程内 map，默认，用于开发与测试
//   - redis：每条记录一个 hash，另用有序集合按创建时间索引
//   - sql：gorm 单表 records，复合主键，支持 postgres / mysql / sqlite
//   - mongo：单集合加唯一复合索引
//
// List 按 CreatedAt 升序返回，创建时间相同的按写入顺序。
package persistence
