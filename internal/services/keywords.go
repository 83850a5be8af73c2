package services

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords covers Spanish and English, compared after accent folding.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		a al algo algun alguna algunas alguno algunos ante antes aqui asi aun bajo bien cada casi como con contra cual cuando de del desde donde dos el ella ellas ello ellos en entre era eran es esa esas ese eso esos esta estaba estan estar este esto estos fue fueron ha hace hacia han hasta hay la las le les lo los mas me mi mis mucho muy nada ni no nos nuestra nuestro o otra otro para pero poco por porque que quien se sea ser si sin sobre solo son su sus tambien tan te tiene tienen todo todos tu tus un una unas uno unos y ya yo
		about after all also an and any are as at be been before but by can could did do does for from had has have he her his how i if in into is it its just like me more most my no not of on one only or our out over she so some such than that the their them then there these they this to too up us very was we were what when where which while who will with would you your
	`) {
		stopWords[w] = struct{}{}
	}
}

// FoldAccents lowercases s and strips combining marks ("Canción" -> "cancion").
func FoldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}

// ExtractKeywords returns up to n content words of text ranked by frequency,
// ties broken by first appearance. Words are accent-folded and lowercased.
func ExtractKeywords(text string, n int) []string {
	folded := FoldAccents(text)
	words := strings.FieldsFunc(folded, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	counts := make(map[string]int)
	first := make(map[string]int)
	for i, w := range words {
		if len([]rune(w)) < 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, seen := first[w]; !seen {
			first[w] = i
		}
		counts[w]++
	}

	ranked := make([]string, 0, len(counts))
	for w := range counts {
		ranked = append(ranked, w)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if counts[a] != counts[b] {
			return counts[a] > counts[b]
		}
		return first[a] < first[b]
	})

	if len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}
