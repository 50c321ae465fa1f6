// internal/judge/topics.go
package judge

import "math/rand"

// fallbackTopics is the static word list used when topic generation fails.
// Everyday Japanese nouns any player will recognize.
var fallbackTopics = []string{
	"りんご", "電車", "猫", "太陽", "学校",
	"傘", "カレー", "海", "時計", "本",
	"桜", "雨", "犬", "月", "山",
	"パン", "ドラえもん", "ピカチュウ", "アンパンマン", "サンタクロース",
}

// topicCategories steer generated topics; one is chosen at random per
// attempt.
var topicCategories = []string{
	"食べ物", "動物", "場所", "道具", "乗り物", "スポーツ",
	"体の部位", "職業", "イベント", "楽器", "服", "キャラクター",
	"家電", "植物", "お菓子", "文房具", "おもちゃ", "家具",
	"飲み物", "国", "虫", "野菜", "果物", "魚", "鳥",
	"料理", "建物", "天気", "色",
}

// FallbackTopic picks a deterministic-pool topic not present in exclude. If
// every word is excluded it falls back to an arbitrary list member rather
// than failing, so a room can always get a topic.
func FallbackTopic(exclude []string) string {
	used := make(map[string]bool, len(exclude))
	for _, t := range exclude {
		used[t] = true
	}
	var available []string
	for _, w := range fallbackTopics {
		if !used[w] {
			available = append(available, w)
		}
	}
	if len(available) == 0 {
		return fallbackTopics[rand.Intn(len(fallbackTopics))]
	}
	return available[rand.Intn(len(available))]
}
