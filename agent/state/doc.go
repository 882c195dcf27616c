/*
Package state 提供按关注点划分的持久状态管理器。

每个 Manager[T] 暴露 Load、Save、Update(transform) 与 Clear。Update 是先
Load 再 Save 的两次独立 I/O，不是原子操作：同一实体上的并发 Update 会
相互覆盖，后写入者生效。状态按用户、线程划分且写入冲突很少，调用方需要
更强保证时应在外部加锁。

  - MemoryManager：每个用户一条记录，跨线程共享
  - TodoManager：默认只在进程内保存，WithTodoStore 后按线程持久化
  - ArtifactManager：每个产物一行，按线程划分，报告章节按 slug 局部更新
  - MessageManager：线程消息，只追加，按创建顺序回放

持久层错误统一包装为可重试的 STATE_ERROR。
*/
package state
