// Package stateful 提供带内置状态工具的研究型智能体。
//
// 四个开关决定注册哪些工具工厂：
//
//	IncludeMemory     → updateMemory
//	IncludeTodoList   → createTodo, updateTodo
//	IncludeArtifacts  → createResearchReport, readArtifact, updateArtifact
//	IncludeWebTools   → webSearch, urlLookup（限速）
//	始终注册           → similaritySearchKnowledgeBase, answerFromKnowledgeBaseDocument
//
// 工厂在首次 GetTools 时针对线程上下文物化；上下文缺少对应管理器或能力时
// 物化失败，由注册表计数并在 HealthCheck 中体现，其余工具照常可用。
//
// 启用记忆时系统提示每轮派生：基础提示后追加 "## Current Memory" 列表。
package stateful
