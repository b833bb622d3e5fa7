package icon

// Icon identifies a UI symbol in the global registry.
type Icon int

// Registered UI symbols.
const (
	Success Icon = iota + 1
	Fail
	Progress
	Question
	Trash
	Link
)

// icons maps every registered symbol to its per-variant representations.
var icons = map[Icon]*iconDef{
	Success: {
		emoji:   "✅",
		nerd:    "",
		plain:   "[ok]",
		kaomoji: "(･ω･)b",
		squares: "🟩",
	},
	Fail: {
		emoji:   "❌",
		nerd:    "",
		plain:   "[fail]",
		kaomoji: "(╯°□°）╯",
		squares: "🟥",
	},
	Progress: {
		emoji:   "⏳",
		nerd:    "",
		plain:   "[...]",
		kaomoji: "(￣ー￣)ゞ",
		squares: "🟨",
	},
	Question: {
		emoji:   "❓",
		nerd:    "",
		plain:   "[?]",
		kaomoji: "(・・？)",
		squares: "🟦",
	},
	Trash: {
		emoji:   "🗑",
		nerd:    "",
		plain:   "[del]",
		kaomoji: "(・_・)ノ⌒●",
		squares: "🟫",
	},
	Link: {
		emoji:   "🔗",
		nerd:    "",
		plain:   "[->]",
		kaomoji: "(つ◉o◉)つ",
		squares: "🟪",
	},
}
