// Package config 提供 superfast-ai 的配置管理。
//
// 配置按 默认值 → YAML 文件 → 环境变量 的顺序加载，最后统一校验。
// Agent 段的字段直接使用前缀（AGENT_MODEL、AGENT_MAX_STEPS），其他段
// 使用 AGENT_<SECTION>_<FIELD>。预设通过显式构造的 PresetRegistry 管理，
// 不存在全局实例。
package config
