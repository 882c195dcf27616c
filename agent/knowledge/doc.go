// Package knowledge 定义智能体访问用户文档知识库的能力。
//
// KnowledgeBase 提供相似度检索、针对单个文档的问答以及文档元数据查询。
// VectorKnowledgeBase 基于 Embedder + VectorStore + llm.Provider 实现，
// InMemoryVectorStore 是进程内的参考向量存储，MockKnowledgeBase 用于测试
// 以及未配置向量存储的线程上下文。
package knowledge
