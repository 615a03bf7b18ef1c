package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// UUID16 16 位十六进制随机串
func UUID16() string {
	id := uuid.New()
	return strings.ReplaceAll(id.String(), "-", "")[:16]
}

// GenerateClientOrderID 生成客户端订单ID，格式 exwire-{exchange}-{UUID16}
func GenerateClientOrderID(exchange string) string {
	return fmt.Sprintf("exwire-%s-%s", strings.ToLower(exchange), UUID16())
}
