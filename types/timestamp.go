package types

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

type tsUnit uint8

const (
	unitMilli tsUnit = iota // 默认
	unitSecond
	unitMicro
	unitNano
	unitFracSecond
	unitRFC3339
)

// 整数时间戳按位数判断精度
var unitByDigits = map[int]tsUnit{10: unitSecond, 13: unitMilli, 16: unitMicro, 19: unitNano}

// ExTimestamp 交易所时间字段：秒/毫秒/微秒/纳秒整数（数字或字符串），
// "1700000000.1234" 形式的小数秒（Kraken、Bitfinex），以及 RFC3339 字符串。
// 序列化时保持输入的精度
type ExTimestamp struct {
	time.Time
	unit tsUnit
}

// NewExTimestampMilli 用毫秒时间戳构造
func NewExTimestampMilli(ms int64) ExTimestamp {
	return ExTimestamp{Time: time.UnixMilli(ms)}
}

// UnmarshalJSON 空字符串和 null 解析为零值
func (t *ExTimestamp) UnmarshalJSON(b []byte) error {
	*t = ExTimestamp{}
	s := strings.TrimSpace(strings.Trim(string(b), `"`))
	if s == "" || s == "null" {
		return nil
	}

	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		unit, ok := unitByDigits[len(s)]
		if !ok {
			return fmt.Errorf("unsupported timestamp length %d: %s", len(s), s)
		}
		t.unit = unit
		switch unit {
		case unitSecond:
			t.Time = time.Unix(n, 0)
		case unitMicro:
			t.Time = time.UnixMicro(n)
		case unitNano:
			t.Time = time.Unix(0, n)
		default:
			t.Time = time.UnixMilli(n)
		}
		return nil
	}

	if sec, frac, ok := strings.Cut(s, "."); ok && frac != "" && len(frac) <= 9 {
		whole, err1 := strconv.ParseInt(sec, 10, 64)
		nsec, err2 := strconv.ParseInt(frac+strings.Repeat("0", 9-len(frac)), 10, 64)
		if err1 == nil && err2 == nil {
			t.Time, t.unit = time.Unix(whole, nsec), unitFracSecond
			return nil
		}
	}

	parsed, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", s, err)
	}
	t.Time, t.unit = parsed, unitRFC3339
	return nil
}

// MarshalJSON 按解析时的精度输出
func (t ExTimestamp) MarshalJSON() ([]byte, error) {
	var n int64
	switch t.unit {
	case unitRFC3339:
		return json.Marshal(t.Format(time.RFC3339Nano))
	case unitFracSecond:
		return []byte(strconv.FormatFloat(float64(t.UnixMicro())/1e6, 'f', 6, 64)), nil
	case unitSecond:
		n = t.Unix()
	case unitMicro:
		n = t.UnixMicro()
	case unitNano:
		n = t.UnixNano()
	default:
		n = t.UnixMilli()
	}
	return []byte(strconv.FormatInt(n, 10)), nil
}
