package pipeline

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pon-1234/seo-drafter-gcp/internal/core"
	"github.com/pon-1234/seo-drafter-gcp/internal/llm"
	"github.com/pon-1234/seo-drafter-gcp/internal/persona"
)

// DefaultWriterPersona is the house writer voice used when a brief does
// not supply one.
func DefaultWriterPersona() core.WriterPersona {
	return core.WriterPersona{
		Name:      "井上あかり",
		Role:      "B2B SaaSのシニアコンテンツストラテジスト",
		Expertise: "B2Bマーケティングの戦略立案とデータドリブンなSEO改善施策に精通",
		Voice:     "共感とロジックを両立させる実務家視点",
		Qualities: []string{
			"抽象と具体を往復しながらストーリーで魅せる",
			"数字と一次情報をもとに説得力を担保する",
			"視覚・聴覚・体感のVAKで読者の想像を喚起する",
		},
		Mission: "読者の迷いを解き、行動の背中を押すコンテンツを届ける",
	}
}

// DefaultPreferredSources are the citation sources offered to the model
// when a brief does not name its own.
var DefaultPreferredSources = []string{
	"https://www.meti.go.jp/",
	"https://www.stat.go.jp/",
	"https://thinkwithgoogle.com/",
	"https://www.gartner.com/en",
	"https://hbr.org/",
}

const systemLayer = "あなたは{writer_name}として執筆するシニアSEOライターです。" +
	"読者は{reader_name}で、QUESTのフレームを用いた構成を求めています。" +
	"H1はQUESTで読者の課題に共感し、H2以降は顧客が得られるベネフィットを" +
	"明確に伝える見出しにしてください。各セクションではVAK（視覚・聴覚・体感覚）" +
	"の要素を織り交ぜ、臨場感のある表現で読者の想像を促してください。" +
	"少なくとも一つ、意外性のある事例または一次情報に基づくデータを織り込み、" +
	"平易な一般論に終わらない洞察を示してください。"

const developerLayer = "出力はMarkdown準拠のテキストで、段落ごとに明確に改行してください。" +
	"各セクションの末尾には必ず『顧客便益: 〜』という形式で一文を追加し、" +
	"読者が得られる実利を端的に示してください。" +
	"統計・引用が必要な場合は指定された優先参照メディアを第一候補とし、" +
	"出典を [Source: URL] の形式で明示してください。"

const sectionUserLayer = "見出し: {heading}\n" +
	"主キーワード: {primary_keyword}\n" +
	"読者プロフィール: {reader_profile}\n" +
	"CTA: {cta}\n" +
	"参考URL: {references}\n" +
	"出典候補: {preferred_sources}\n" +
	"記事タイプ: {article_type}\n" +
	"検索意図: {intent}\n" +
	"このセクションで伝えたい狙い: {section_goal}\n"

func writerName(brief core.Brief) string {
	if brief.WriterPersona.Name != "" {
		return brief.WriterPersona.Name
	}
	return DefaultWriterPersona().Name
}

func preferredSources(brief core.Brief) []string {
	if len(brief.PreferredSources) > 0 {
		return brief.PreferredSources
	}
	return DefaultPreferredSources
}

func layeredMessages(brief core.Brief, userContent string) []llm.Message {
	readerLabel := persona.InferLabel(brief.ReaderPersona)
	replacer := strings.NewReplacer(
		"{writer_name}", writerName(brief),
		"{reader_name}", readerLabel,
	)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: replacer.Replace(systemLayer)},
		{Role: llm.RoleDeveloper, Content: developerLayer},
		{Role: llm.RoleUser, Content: userContent},
	}
}

func intentMessages(brief core.Brief) []llm.Message {
	user := fmt.Sprintf(
		"次の検索キーワードの意図を information / comparison / transaction のいずれか1語で答えてください。\nキーワード: %s",
		brief.PrimaryKeyword)
	return []llm.Message{
		{Role: llm.RoleSystem, Content: "あなたは検索意図を分類するアナリストです。ラベルのみを出力してください。"},
		{Role: llm.RoleUser, Content: user},
	}
}

func outlineMessages(brief core.Brief, headingCount int, intent core.IntentType) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "主キーワード「%s」の記事見出し(H2)を%d個、読者の検討順に提案してください。\n", brief.PrimaryKeyword, headingCount)
	fmt.Fprintf(&b, "検索意図: %s\n記事タイプ: %s\n", intent, brief.ArticleType)
	if len(brief.SupportingKeywords) > 0 {
		fmt.Fprintf(&b, "補助キーワード: %s\n", strings.Join(brief.SupportingKeywords, ", "))
	}
	b.WriteString("出力は1行1見出しで、「見出し | このセクションの狙い」の形式にしてください。")
	return layeredMessages(brief, b.String())
}

func sectionMessages(brief core.Brief, heading core.Heading, intent core.IntentType) []llm.Message {
	readerLabel := persona.InferLabel(brief.ReaderPersona)
	goal := heading.Summary
	if goal == "" {
		goal = "読者が次の判断に進める具体情報を示す"
	}
	replacer := strings.NewReplacer(
		"{heading}", heading.Text,
		"{primary_keyword}", brief.PrimaryKeyword,
		"{reader_profile}", readerLabel,
		"{cta}", brief.IntendedCTA,
		"{references}", strings.Join(brief.ReferenceURLs, ", "),
		"{preferred_sources}", strings.Join(preferredSources(brief), ", "),
		"{article_type}", string(brief.ArticleType),
		"{intent}", string(intent),
		"{section_goal}", goal,
	)
	return layeredMessages(brief, replacer.Replace(sectionUserLayer))
}

func faqMetaMessages(brief core.Brief, body string) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "以下の記事本文をもとに、FAQとメタ情報を生成してください。\n主キーワード: %s\n", brief.PrimaryKeyword)
	if len(brief.ReaderPersona.PainPoints) > 0 {
		fmt.Fprintf(&b, "読者の悩み: %s\n", strings.Join(brief.ReaderPersona.PainPoints, ", "))
	}
	b.WriteString("出力は次のJSONのみ: {\"faq\":[{\"question\":\"...\",\"answer\":\"...\"}],")
	b.WriteString("\"title_options\":[\"...\"],\"description_options\":[\"...\"]}\n")
	b.WriteString("FAQは" + strconv.Itoa(faqEntryCount) + "件、タイトル候補と説明文候補は各2件。\n\n本文:\n")
	b.WriteString(body)
	return layeredMessages(brief, b.String())
}

const faqEntryCount = 3

// fallbackMeta keeps the bundle shape intact when meta generation
// degrades.
func fallbackMeta(keyword string) core.Meta {
	title := keyword + " 完全ガイド"
	description := keyword + " の最新情報と比較ポイントを詳しく解説"
	return core.Meta{
		TitleOptions:       []string{title, keyword + " 比較ポイントまとめ"},
		DescriptionOptions: []string{description, keyword + " の選び方と成功事例"},
		OG:                 core.OpenGraph{Title: title, Description: description},
	}
}
