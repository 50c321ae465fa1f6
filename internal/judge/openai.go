// internal/judge/openai.go
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"hintone/internal/models"
)

// DefaultModel is used for every judging call; fast and cheap is what the
// per-submission latency budget wants.
const DefaultModel = "gpt-4.1-mini"

const generateRetries = 3

// particleRunes matches Japanese connective particles; output containing one
// above the length threshold is a phrase, not a topic.
var particleRunes = regexp.MustCompile(`[のなとや]`)

var whitespaceRunes = regexp.MustCompile(`\s`)

// OpenAIJudge implements Judge against an OpenAI-compatible chat completion
// API. API failures surface as errors; the orchestrator applies the
// fail-open policy.
type OpenAIJudge struct {
	client  *openai.Client
	model   string
	timeout time.Duration
	logger  *logrus.Logger
}

// NewOpenAIJudge builds a judge with the given credentials. model and
// timeout fall back to sensible defaults when zero.
func NewOpenAIJudge(apiKey, model string, timeout time.Duration, logger *logrus.Logger) *OpenAIJudge {
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &OpenAIJudge{
		client:  openai.NewClient(apiKey),
		model:   model,
		timeout: timeout,
		logger:  logger,
	}
}

func (j *OpenAIJudge) complete(ctx context.Context, system, user string, maxTokens int, jsonMode bool) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	req := openai.ChatCompletionRequest{
		Model: j.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		MaxTokens: maxTokens,
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	resp, err := j.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// GenerateTopic asks for a topic up to three times, rejecting outputs that
// are not a single concept, then falls back to the static word list.
func (j *OpenAIJudge) GenerateTopic(ctx context.Context, exclude []string) (string, error) {
	for attempt := 1; attempt <= generateRetries; attempt++ {
		topic, err := j.tryGenerateTopic(ctx, exclude)
		if err != nil {
			return "", err
		}
		if topic != "" && !contains(exclude, topic) {
			j.logger.WithField("topic", topic).Debug("topic generated")
			return topic, nil
		}
		j.logger.Warnf("topic generation attempt %d/%d rejected, retrying", attempt, generateRetries)
	}
	fallback := FallbackTopic(exclude)
	j.logger.Warnf("topic generation exhausted retries, using fallback %q", fallback)
	return fallback, nil
}

var topicVariations = []string{
	"定番の", "みんなが知ってる", "日常でよく見る", "子供も知ってる",
	"テレビでよく見る", "身近な", "人気の", "有名な", "", "", "",
}

func (j *OpenAIJudge) tryGenerateTopic(ctx context.Context, exclude []string) (string, error) {
	category := topicCategories[rand.Intn(len(topicCategories))]
	variation := topicVariations[rand.Intn(len(topicVariations))]

	excludeNote := ""
	if len(exclude) > 0 {
		recent := exclude
		if len(recent) > 30 {
			recent = recent[len(recent)-30:]
		}
		excludeNote = "\n使用禁止: " + strings.Join(recent, "、")
	}

	prompt := fmt.Sprintf(
		"「%s」の中から、%s単語を1つ。ただし定番すぎるもの（犬、猫、りんご、バナナ等）は避けて。専門用語・マイナーすぎるものは禁止。単語のみ出力。%s",
		category, variation, excludeNote,
	)

	content, err := j.complete(ctx, "日本語の名詞を1つだけ出力。説明不要。", prompt, 15, false)
	if err != nil {
		return "", err
	}
	if content == "" || content == "null" || content == "undefined" {
		return "", nil
	}
	if particleRunes.MatchString(content) && len([]rune(content)) > 4 {
		j.logger.Warnf("rejected phrase topic %q", content)
		return "", nil
	}
	if whitespaceRunes.MatchString(content) {
		j.logger.Warnf("rejected topic with whitespace %q", content)
		return "", nil
	}
	return content, nil
}

// ValidateHintFormat asks whether the hint is a single lexical unit.
func (j *OpenAIJudge) ValidateHintFormat(ctx context.Context, hint string) (Validation, error) {
	prompt := fmt.Sprintf(`「%s」は1単語ですか？

## OKな例（1単語として認める）
- 名詞、形容詞、動詞: 「猫」「赤い」「走る」
- 固有名詞: 「ピカチュウ」「東京タワー」「スターバックス」
- 複合語: 「目覚まし時計」「携帯電話」

## NGな例（1単語ではない）
- 助詞付き: 「猫の」「りんごは」「海へ」「友達と」
- 助動詞付き: 「赤いです」「走ります」
- 2語以上: 「とても甘い」「大きな犬」
- 文章: 「りんごは赤い」

JSON形式: {"valid":true/false,"error":"NGの場合の理由"}`, hint)

	content, err := j.complete(ctx, "1単語チェッカー。JSON出力のみ。", prompt, 60, true)
	if err != nil {
		return Validation{}, err
	}
	return parseValidation(content), nil
}

// ValidateHintAgainstTopic asks whether the hint is a translation or
// orthographic variant of the topic. The service has already run the local
// substring pre-checks.
func (j *OpenAIJudge) ValidateHintAgainstTopic(ctx context.Context, topic, hint string) (Validation, error) {
	prompt := fmt.Sprintf(`お題「%s」にヒント「%s」は有効？

無効条件（厳密にこれだけ）:
1. お題と完全に同じ/表記違い（猫=ねこ=ネコ）
2. お題の文字列を含む（山→富士山、電車→電車賃）
3. お題の一部の文字（りんご→りん、携帯電話→携帯）
4. お題の直接翻訳（犬→dog、猫→cat、海→sea/ocean）

有効な例（これらは許可）:
- 連想語: 屋根→家、瓦、建物、ホーム（直接翻訳ではない）
- 関連語: 海→波、砂浜、夏
- 同カテゴリ: 犬→柴犬、プードル

「翻訳」とは同じ意味の外国語への直訳のみ。連想や関連は翻訳ではない。
迷ったら必ず有効にする。
{"valid":true/false,"error":"無効理由"}`, topic, hint)

	content, err := j.complete(ctx, "JSON出力のみ", prompt, 60, true)
	if err != nil {
		return Validation{}, err
	}
	return parseValidation(content), nil
}

// JudgeHints checks the round's hints for duplicates. Verdicts come back
// keyed by 1-based index; anything the judge omitted stays valid.
func (j *OpenAIJudge) JudgeHints(ctx context.Context, topic string, hints []models.Hint) ([]HintVerdict, error) {
	if len(hints) == 0 {
		return nil, nil
	}

	var list strings.Builder
	for i, h := range hints {
		fmt.Fprintf(&list, "%d. %q\n", i+1, h.Text)
	}

	prompt := fmt.Sprintf(`ヒント重複チェック:
%s
重複=無効（両方消える）:
- 同じ/表記違い（猫=ねこ）
- 同義語（車=自動車）
- 翻訳（犬=dog）

重複じゃない（両方有効）:
- 派生語（王子と王女）
- 関連語（暑いと夏）

迷ったら有効。
{"results":[{"index":1,"valid":true/false,"reason":"理由"}...]}`, list.String())

	content, err := j.complete(ctx, "JSON出力のみ", prompt, 200, true)
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Results []struct {
			Index  int    `json:"index"`
			Valid  bool   `json:"valid"`
			Reason string `json:"reason"`
		} `json:"results"`
	}
	byIndex := map[int]struct {
		valid  bool
		reason string
	}{}
	if content != "" {
		if err := json.Unmarshal([]byte(content), &parsed); err != nil {
			j.logger.Warnf("unparseable hint judgment %q, marking all valid", content)
		} else {
			for _, r := range parsed.Results {
				byIndex[r.Index] = struct {
					valid  bool
					reason string
				}{r.Valid, r.Reason}
			}
		}
	}

	verdicts := make([]HintVerdict, len(hints))
	for i, h := range hints {
		verdicts[i] = HintVerdict{PlayerID: h.PlayerID, IsValid: true}
		if r, ok := byIndex[i+1]; ok {
			verdicts[i].IsValid = r.valid
			verdicts[i].Reason = r.reason
		}
	}
	return verdicts, nil
}

// JudgeAnswer decides correctness, accepting hiragana/katakana/kanji
// spelling variants of the topic.
func (j *OpenAIJudge) JudgeAnswer(ctx context.Context, topic, answer string) (AnswerVerdict, error) {
	prompt := fmt.Sprintf(`お題「%s」に回答「%s」は正解？

正解: 同じ意味（表記違い/ひらがな/カタカナ/漢字OK）
例: 財布=さいふ=サイフ、りんご=リンゴ=林檎

不正解: 別の単語

{"correct":true/false,"reason":"理由"}`, topic, answer)

	content, err := j.complete(ctx, "JSON出力のみ", prompt, 50, true)
	if err != nil {
		return AnswerVerdict{}, err
	}
	if content == "" {
		return AnswerVerdict{IsCorrect: NormalizedMatch(topic, answer)}, nil
	}
	var parsed struct {
		Correct bool   `json:"correct"`
		Reason  string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return AnswerVerdict{IsCorrect: NormalizedMatch(topic, answer)}, nil
	}
	return AnswerVerdict{IsCorrect: parsed.Correct, Reason: parsed.Reason}, nil
}

func parseValidation(content string) Validation {
	if content == "" {
		return Validation{IsValid: true}
	}
	var parsed struct {
		Valid bool   `json:"valid"`
		Error string `json:"error"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Validation{IsValid: true}
	}
	return Validation{IsValid: parsed.Valid, Error: parsed.Error}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
