package utils

import (
	"strings"
)

var (
	onesMasculine = []string{"", "один", "два", "три", "четыре", "пять", "шесть", "семь", "восемь", "девять"}
	onesFeminine  = []string{"", "одна", "две", "три", "четыре", "пять", "шесть", "семь", "восемь", "девять"}
	teens         = []string{"десять", "одиннадцать", "двенадцать", "тринадцать", "четырнадцать",
		"пятнадцать", "шестнадцать", "семнадцать", "восемнадцать", "девятнадцать"}
	tens = []string{"", "", "двадцать", "тридцать", "сорок", "пятьдесят",
		"шестьдесят", "семьдесят", "восемьдесят", "девяносто"}
	hundreds = []string{"", "сто", "двести", "триста", "четыреста", "пятьсот",
		"шестьсот", "семьсот", "восемьсот", "девятьсот"}
)

type scale struct {
	forms    [3]string
	feminine bool
}

// index 0 is the units group, which has no scale word
var scales = []scale{
	{},
	{forms: [3]string{"тысяча", "тысячи", "тысяч"}, feminine: true},
	{forms: [3]string{"миллион", "миллиона", "миллионов"}},
	{forms: [3]string{"миллиард", "миллиарда", "миллиардов"}},
	{forms: [3]string{"триллион", "триллиона", "триллионов"}},
	{forms: [3]string{"квадриллион", "квадриллиона", "квадриллионов"}},
	{forms: [3]string{"квинтиллион", "квинтиллиона", "квинтиллионов"}},
}

// RussianCardinal spells n as a Russian cardinal numeral, e.g. 15000 -> "пятнадцать тысяч"
func RussianCardinal(n int64) string {
	if n == 0 {
		return "ноль"
	}

	var words []string
	u := uint64(n)
	if n < 0 {
		words = append(words, "минус")
		u = uint64(-(n + 1)) + 1
	}

	var groups []int
	for u > 0 {
		groups = append(groups, int(u%1000))
		u /= 1000
	}

	for i := len(groups) - 1; i >= 0; i-- {
		g := groups[i]
		if g == 0 {
			continue
		}
		words = append(words, triad(g, scales[i].feminine)...)
		if i > 0 {
			words = append(words, PluralForm(int64(g), scales[i].forms[0], scales[i].forms[1], scales[i].forms[2]))
		}
	}

	return strings.Join(words, " ")
}

func triad(n int, feminine bool) []string {
	var words []string
	if h := n / 100; h > 0 {
		words = append(words, hundreds[h])
	}
	rest := n % 100
	switch {
	case rest >= 10 && rest < 20:
		words = append(words, teens[rest-10])
	default:
		if t := rest / 10; t > 0 {
			words = append(words, tens[t])
		}
		if o := rest % 10; o > 0 {
			if feminine {
				words = append(words, onesFeminine[o])
			} else {
				words = append(words, onesMasculine[o])
			}
		}
	}
	return words
}

// PluralForm picks the Russian noun form agreeing with n:
// one (1, 21, 101), few (2-4, 22-24) or many (0, 5-20, 25-30)
func PluralForm(n int64, one, few, many string) string {
	if n < 0 {
		n = -n
	}
	lastTwo := n % 100
	last := n % 10
	switch {
	case lastTwo >= 11 && lastTwo <= 14:
		return many
	case last == 1:
		return one
	case last >= 2 && last <= 4:
		return few
	default:
		return many
	}
}

// WeekWord returns the accusative form of "неделя" agreeing with n
func WeekWord(n int) string {
	return PluralForm(int64(n), "неделю", "недели", "недель")
}
