package tokenizer

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Tokenizer 统一的 token 计数接口.
type Tokenizer interface {
	// CountTokens 返回给定文本的 token 数.
	CountTokens(text string) (int, error)

	// CountMessages 返回消息列表的总 token 数,
	// 包括每条消息的开销（角色标记、分隔符等）。
	CountMessages(messages []Message) (int, error)

	// MaxTokens 返回模型的最大上下文长度.
	MaxTokens() int

	// Name 返回分词器的名称.
	Name() string
}

// Message 是 tokenizer 使用的轻量消息结构，避免依赖 llm 包。
type Message struct {
	Role    string
	Content string
}

// ForModel 返回模型对应的分词器：OpenAI 系列模型使用 tiktoken，
// 编码数据不可用时退回估算器；其它模型直接使用估算器。
func ForModel(model string, logger *zap.Logger) Tokenizer {
	est := NewEstimator(0)
	if !isOpenAIModel(model) {
		return est
	}
	tk, _ := NewTiktokenTokenizer(model)
	return NewFallback(tk, est, logger)
}

func isOpenAIModel(model string) bool {
	for _, p := range []string{"gpt-", "o1", "o3", "o4", "text-embedding-"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

// Fallback 优先使用 primary，失败后永久切换到 secondary。
type Fallback struct {
	primary   Tokenizer
	secondary Tokenizer
	logger    *zap.Logger
}

// NewFallback 创建带回退的分词器.
func NewFallback(primary, secondary Tokenizer, logger *zap.Logger) *Fallback {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fallback{primary: primary, secondary: secondary, logger: logger}
}

func (f *Fallback) CountTokens(text string) (int, error) {
	n, err := f.primary.CountTokens(text)
	if err == nil {
		return n, nil
	}
	f.logger.Debug("primary tokenizer failed, using fallback", zap.String("primary", f.primary.Name()), zap.Error(err))
	return f.secondary.CountTokens(text)
}

func (f *Fallback) CountMessages(messages []Message) (int, error) {
	n, err := f.primary.CountMessages(messages)
	if err == nil {
		return n, nil
	}
	f.logger.Debug("primary tokenizer failed, using fallback", zap.String("primary", f.primary.Name()), zap.Error(err))
	return f.secondary.CountMessages(messages)
}

func (f *Fallback) MaxTokens() int { return f.primary.MaxTokens() }

func (f *Fallback) Name() string { return f.primary.Name() + "|" + f.secondary.Name() }

// 估算参数：表意文字约 1.5 字符/token，其余约 4 字符/token
const (
	ideographCharsPerToken = 1.5
	otherCharsPerToken     = 4.0
	perMessageOverhead     = 4
	replyPrimingOverhead   = 3
	defaultEstimatorWindow = 4096
)

// Estimator 不依赖编码数据的字符数估算，作为 Fallback 的兜底。
type Estimator struct {
	maxTokens int
}

// NewEstimator maxTokens <= 0 时使用 4096。
func NewEstimator(maxTokens int) *Estimator {
	if maxTokens <= 0 {
		maxTokens = defaultEstimatorWindow
	}
	return &Estimator{maxTokens: maxTokens}
}

// CountTokens 非空文本至少计 1 个 token
func (e *Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	var ideographs, other int
	for _, r := range text {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana, unicode.Hangul) {
			ideographs++
		} else {
			other++
		}
	}
	n := int(float64(ideographs)/ideographCharsPerToken + float64(other)/otherCharsPerToken)
	return max(n, 1), nil
}

func (e *Estimator) CountMessages(messages []Message) (int, error) {
	total := replyPrimingOverhead
	for _, m := range messages {
		n, _ := e.CountTokens(m.Content)
		total += n + perMessageOverhead
	}
	return total, nil
}

func (e *Estimator) MaxTokens() int { return e.maxTokens }

func (e *Estimator) Name() string { return "estimator" }

// TrimStart 返回保留消息的起始下标：从最旧的消息开始丢弃，直到总 token 数
// 不超过 budget。最新一条消息始终保留。budget <= 0 表示不限制。
func TrimStart(t Tokenizer, messages []Message, budget int) (int, error) {
	if budget <= 0 || len(messages) <= 1 {
		return 0, nil
	}

	counts := make([]int, len(messages))
	total := 0
	for i, m := range messages {
		n, err := t.CountMessages([]Message{m})
		if err != nil {
			return 0, err
		}
		counts[i] = n
		total += n
	}

	start := 0
	for total > budget && start < len(messages)-1 {
		total -= counts[start]
		start++
	}
	return start, nil
}
