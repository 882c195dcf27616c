package tokenizer

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TiktokenTokenizer 使用 tiktoken 为 OpenAI 系列模型精确计数。
type TiktokenTokenizer struct {
	model     string
	encoding  string
	maxTokens int
	enc       *tiktoken.Tiktoken
	once      sync.Once
	initErr   error
}

// modelEncodings 记录模型对应的编码与上下文长度，按最长前缀匹配。
var modelEncodings = map[string]struct {
	encoding  string
	maxTokens int
}{
	"gpt-4.1":                {encoding: "o200k_base", maxTokens: 1047576},
	"gpt-4o":                 {encoding: "o200k_base", maxTokens: 128000},
	"gpt-4-turbo":            {encoding: "cl100k_base", maxTokens: 128000},
	"gpt-4":                  {encoding: "cl100k_base", maxTokens: 8192},
	"gpt-3.5-turbo":          {encoding: "cl100k_base", maxTokens: 16385},
	"o1":                     {encoding: "o200k_base", maxTokens: 200000},
	"o3":                     {encoding: "o200k_base", maxTokens: 200000},
	"o4":                     {encoding: "o200k_base", maxTokens: 200000},
	"text-embedding-3-large": {encoding: "cl100k_base", maxTokens: 8191},
	"text-embedding-3-small": {encoding: "cl100k_base", maxTokens: 8191},
}

// NewTiktokenTokenizer 为给定模型创建 tiktoken 分词器，未知模型使用 cl100k_base。
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	encoding, maxTokens := "cl100k_base", 8192
	best := -1
	for prefix, info := range modelEncodings {
		if strings.HasPrefix(model, prefix) && len(prefix) > best {
			encoding, maxTokens, best = info.encoding, info.maxTokens, len(prefix)
		}
	}
	return &TiktokenTokenizer{model: model, encoding: encoding, maxTokens: maxTokens}, nil
}

// init 首次使用时加载编码（可能需要下载 BPE 数据）。
func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *TiktokenTokenizer) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	tokens := t.enc.Encode(text, nil, nil)
	return len(tokens), nil
}

func (t *TiktokenTokenizer) CountMessages(messages []Message) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}

	total := 0
	for _, msg := range messages {
		// 每条消息的开销: <|start|>role\n content<|end|>\n
		total += 4
		tokens := t.enc.Encode(msg.Content, nil, nil)
		total += len(tokens)
		roleTokens := t.enc.Encode(msg.Role, nil, nil)
		total += len(roleTokens)
	}
	total += 3 // conversation-end overhead
	return total, nil
}

func (t *TiktokenTokenizer) MaxTokens() int {
	return t.maxTokens
}

func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
