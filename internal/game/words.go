// internal/game/words.go
package game

import "math/rand"

// DefaultWordCount is the size of a dealt batch. At 100 words a player would
// need 200 wpm to exhaust a 30 second race.
const DefaultWordCount = 100

var dictionary = []string{
	"about", "above", "across", "after", "again", "against", "air", "all", "almost", "along",
	"also", "always", "among", "and", "animal", "another", "answer", "any", "area", "around",
	"ask", "away", "back", "base", "be", "beauty", "became", "because", "become", "been",
	"before", "began", "begin", "behind", "being", "below", "best", "better", "between", "big",
	"bird", "black", "blue", "boat", "body", "book", "both", "box", "boy", "bring",
	"brought", "build", "busy", "but", "call", "came", "can", "car", "care", "carry",
	"cause", "center", "certain", "change", "check", "children", "city", "class", "clear", "close",
	"cold", "color", "come", "common", "complete", "could", "country", "course", "cover", "cross",
	"cry", "cut", "dark", "day", "decide", "deep", "develop", "did", "differ", "direct",
	"do", "does", "dog", "done", "door", "down", "draw", "dry", "during", "each",
	"early", "earth", "ease", "east", "eat", "end", "enough", "even", "ever", "every",
	"example", "eye", "face", "fact", "fall", "family", "far", "farm", "fast", "father",
	"feel", "feet", "few", "field", "figure", "fill", "final", "find", "fine", "fire",
	"first", "fish", "five", "fly", "follow", "food", "foot", "for", "force", "form",
	"found", "four", "free", "friend", "from", "front", "full", "game", "gave", "get",
	"girl", "give", "go", "gold", "good", "got", "great", "green", "ground", "group",
	"grow", "half", "hand", "happen", "hard", "has", "have", "head", "hear", "heard",
	"heat", "help", "her", "here", "high", "him", "his", "hold", "home", "horse",
	"hot", "hour", "house", "how", "hundred", "idea", "inch", "interest", "island", "just",
	"keep", "kind", "king", "knew", "know", "land", "language", "large", "last", "late",
	"laugh", "lay", "lead", "learn", "leave", "left", "less", "let", "letter", "life",
	"light", "like", "line", "list", "listen", "little", "live", "long", "look", "made",
	"main", "make", "man", "many", "map", "mark", "may", "mean", "measure", "men",
	"might", "mile", "mind", "minute", "miss", "money", "moon", "more", "morning", "most",
	"mother", "mountain", "move", "much", "music", "must", "name", "near", "need", "never",
	"new", "next", "night", "north", "note", "nothing", "notice", "now", "number", "object",
	"ocean", "off", "often", "old", "once", "only", "open", "order", "other", "our",
	"out", "over", "own", "page", "paper", "part", "pass", "pattern", "people", "perhaps",
	"person", "picture", "piece", "place", "plain", "plan", "plant", "play", "point", "port",
	"pose", "power", "press", "problem", "produce", "product", "pull", "question", "quick", "rain",
	"ran", "reach", "read", "ready", "real", "record", "red", "remember", "rest", "right",
	"river", "road", "rock", "room", "round", "rule", "run", "said", "same", "saw",
	"say", "school", "science", "sea", "second", "see", "seem", "self", "sentence", "serve",
	"set", "several", "shape", "ship", "short", "should", "show", "side", "simple", "since",
	"sing", "size", "sleep", "slow", "small", "snow", "some", "song", "soon", "sound",
	"south", "space", "special", "spell", "stand", "star", "start", "state", "stay", "step",
	"still", "stood", "stop", "story", "street", "strong", "study", "such", "sun", "sure",
	"surface", "table", "tail", "take", "talk", "teach", "tell", "ten", "test", "than",
	"that", "the", "their", "them", "then", "there", "these", "they", "thing", "think",
	"this", "those", "though", "thought", "three", "through", "time", "told", "too", "took",
	"top", "toward", "town", "travel", "tree", "true", "try", "turn", "two", "under",
	"unit", "until", "upon", "usual", "very", "voice", "vowel", "wait", "walk", "want",
	"warm", "watch", "water", "way", "week", "weight", "well", "went", "were", "west",
	"what", "wheel", "when", "where", "which", "while", "white", "whole", "why", "wind",
	"with", "wonder", "wood", "word", "work", "world", "would", "write", "year", "young",
}

// DealWords draws count words uniformly at random, with replacement.
func DealWords(count int) []string {
	if count <= 0 {
		count = DefaultWordCount
	}
	out := make([]string, count)
	for i := range out {
		out[i] = dictionary[rand.Intn(len(dictionary))]
	}
	return out
}
