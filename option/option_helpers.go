package option

// GetInt 返回 int 值及是否存在（非 nil）
func GetInt(i *int) (int, bool) {
	if i == nil {
		return 0, false
	}
	return *i, true
}

// GetBool 返回 bool 值及是否存在（非 nil）
func GetBool(b *bool) (bool, bool) {
	if b == nil {
		return false, false
	}
	return *b, true
}

// LimitOr 返回 Limit，未设置或非正数时返回 def
func (o *ExchangeArgsOptions) LimitOr(def int) int {
	if v, ok := GetInt(o.Limit); ok && v > 0 {
		return v
	}
	return def
}

// TimeInForceOr 返回 TimeInForce，未设置时返回 def
func (o *ExchangeArgsOptions) TimeInForceOr(def TimeInForce) TimeInForce {
	if o.TimeInForce == nil || *o.TimeInForce == "" {
		return def
	}
	return *o.TimeInForce
}

// IsPostOnly 是否只做 maker
func (o *ExchangeArgsOptions) IsPostOnly() bool {
	v, _ := GetBool(o.PostOnly)
	return v
}
