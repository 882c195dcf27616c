// Package agentctx 组装智能体运行所需的上下文。
//
// BaseContext 只包含用户与外部依赖（记录存储、对象存储、向量存储）；
// Context 在其上增加线程、文件夹、知识库以及按需启用的状态管理器。
// Factory 按选项创建上下文，Builder 提供链式构造并在缺少依赖时返回
// CONFIGURATION_ERROR。
package agentctx
