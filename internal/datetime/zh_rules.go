package datetime

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/AlekSi/pointer"
	"github.com/olebedev/when/rules"
)

// Chinese grammar for the when parser. Every rule opens with a capture
// group that always participates so a match never starts at index -1.

const cnDigits = `[零〇一二两三四五六七八九十]`

var cnDigitValues = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '二': 2, '两': 2, '三': 3, '四': 4,
	'五': 5, '六': 6, '七': 7, '八': 8, '九': 9,
}

var relativeDays = map[string]int{
	"今天": 0, "今日": 0, "今儿": 0,
	"明天": 1, "明日": 1, "明儿": 1,
	"后天": 2, "大后天": 3,
}

var cnWeekdays = map[string]int{
	"一": 0, "1": 0,
	"二": 1, "2": 1,
	"三": 2, "3": 2,
	"四": 3, "4": 3,
	"五": 4, "5": 4,
	"六": 5, "6": 5,
	"日": 6, "天": 6, "7": 6,
}

func chineseRules() []rules.Rule {
	return []rules.Rule{
		zhRelativeDay(),
		zhWeekday(),
		zhMonthDay(),
		zhClock(),
	}
}

// parseNumber reads arabic digits or a Chinese numeral up to 99
func parseNumber(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}

	runes := []rune(s)
	if i := indexRune(runes, '十'); i >= 0 {
		tens, ones := 1, 0
		if i > 0 {
			v, ok := cnDigitValues[runes[0]]
			if !ok || i > 1 {
				return 0, false
			}
			tens = v
		}
		switch rest := runes[i+1:]; len(rest) {
		case 0:
		case 1:
			v, ok := cnDigitValues[rest[0]]
			if !ok {
				return 0, false
			}
			ones = v
		default:
			return 0, false
		}
		return tens*10 + ones, true
	}

	if len(runes) != 1 {
		return 0, false
	}
	v, ok := cnDigitValues[runes[0]]
	return v, ok
}

func indexRune(runes []rune, r rune) int {
	for i, c := range runes {
		if c == r {
			return i
		}
	}
	return -1
}

// shiftDays moves the reference date by whole days unless an earlier rule
// already did
func shiftDays(c *rules.Context, days int) {
	if c.Duration == 0 {
		c.Duration = time.Duration(days) * 24 * time.Hour
	}
}

// 今天 明天 后天 大后天
func zhRelativeDay() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`(大后天|后天|明天|明日|明儿|今天|今日|今儿)`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, _ time.Time) (bool, error) {
			days, ok := relativeDays[m.Captures[0]]
			if !ok {
				return false, nil
			}
			shiftDays(c, days)
			return true, nil
		},
	}
}

// 周二 下周二 下下星期五 礼拜天. Weeks start on Monday.
func zhWeekday() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`((?:下下个|下下|下个|下|这个|这|本)?(?:周|星期|礼拜))\s*([一二三四五六日天1-7])`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			target, ok := cnWeekdays[m.Captures[1]]
			if !ok {
				return false, nil
			}
			weeks := 0
			switch prefix := m.Captures[0]; {
			case strings.HasPrefix(prefix, "下下"):
				weeks = 2
			case strings.HasPrefix(prefix, "下"):
				weeks = 1
			}
			fromMonday := (int(ref.Weekday()) + 6) % 7
			shiftDays(c, target-fromMonday+7*weeks)
			return true, nil
		},
	}
}

// 10月20日 十月二十号
func zhMonthDay() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`([0-9]{1,2}|` + cnDigits + `{1,3})\s*月\s*([0-9]{1,2}|` + cnDigits + `{1,3})\s*[日号]`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, ref time.Time) (bool, error) {
			month, ok := parseNumber(m.Captures[0])
			if !ok || month < 1 || month > 12 {
				return false, nil
			}
			day, ok := parseNumber(m.Captures[1])
			if !ok || day < 1 || day > daysIn(time.Month(month), ref.Year()) {
				return false, nil
			}
			target := time.Date(ref.Year(), time.Month(month), day,
				ref.Hour(), ref.Minute(), ref.Second(), ref.Nanosecond(), ref.Location())
			c.Duration = target.Sub(ref)
			return true, nil
		},
	}
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// 下午三点 上午10点半 晚上7:30 中午12点十五分
func zhClock() rules.Rule {
	return &rules.F{
		RegExp: regexp.MustCompile(`((?:凌晨|早上|早晨|上午|中午|下午|傍晚|晚上|今晚)?)\s*` +
			`([0-9]{1,2}|` + cnDigits + `{1,3})\s*(?:点钟|点|點|时|:|：)\s*` +
			`(半|[0-9]{1,2}|` + cnDigits + `{1,3})?`),
		Applier: func(m *rules.Match, c *rules.Context, _ *rules.Options, _ time.Time) (bool, error) {
			hour, ok := parseNumber(m.Captures[1])
			if !ok || hour > 24 {
				return false, nil
			}
			minute := 0
			switch raw := m.Captures[2]; raw {
			case "":
			case "半":
				minute = 30
			default:
				if minute, ok = parseNumber(raw); !ok || minute > 59 {
					return false, nil
				}
			}

			switch m.Captures[0] {
			case "下午", "傍晚", "晚上", "今晚":
				if hour < 12 {
					hour += 12
				}
			case "中午":
				if hour < 6 {
					hour += 12
				}
			case "凌晨", "早上", "早晨", "上午":
				if hour == 12 {
					hour = 0
				}
			}
			if hour == 24 {
				hour = 0
				shiftDays(c, 1)
			}

			c.Hour = pointer.ToInt(hour)
			c.Minute = pointer.ToInt(minute)
			c.Second = pointer.ToInt(0)
			return true, nil
		},
	}
}
