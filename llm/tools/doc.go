/*
包 tools 提供模型可调用的工具、工具注册表与工具循环。

# 工具与工厂

[Tool] 是立即可用的工具；[Factory] 延迟构造工具，直到执行上下文可用。
二者对应 "静态值 | 由上下文派生" 两种形态，在 [FactoryRegistry.SetContext]
绑定上下文后统一物化并缓存，之后不再逐次判断。

# 注册表

[FactoryRegistry] 同时保存已物化工具与工厂：

  - GetTools 物化全部待处理工厂，单个工厂失败只记录日志并计数，不阻塞其他工具
  - Filter.Required 缺失时返回 TOOLS_NOT_FOUND；Filter.Exclude 排除指定工具
  - HasTool 对已物化工具和未物化工厂都返回 true
  - Clear 清空两张表（Agent 销毁时调用）

# 工具循环

[Runner] 在步数预算 MaxSteps 内驱动 "模型 -> 工具 -> 模型" 的多轮调用，
支持同步（Generate）与流式（Stream）两种模式。
*/
package tools
