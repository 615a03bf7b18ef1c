package common

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Signer 签名原语：对交易所策略拼好的规范化消息计算签名。无状态、无网络访问。
type Signer interface {
	Sign(secret, message []byte) (string, error)
}

// HashAlgo HMAC 使用的哈希算法
type HashAlgo int

const (
	SHA256 HashAlgo = iota
	SHA384
	SHA512
)

func (a HashAlgo) new() func() hash.Hash {
	switch a {
	case SHA384:
		return sha512.New384
	case SHA512:
		return sha512.New
	default:
		return sha256.New
	}
}

// Encoding 签名输出编码
type Encoding int

const (
	Hex Encoding = iota
	Base64
)

func (e Encoding) encode(b []byte) string {
	if e == Base64 {
		return base64.StdEncoding.EncodeToString(b)
	}
	return hex.EncodeToString(b)
}

// HMACSigner HMAC 签名
type HMACSigner struct {
	Algo     HashAlgo
	Encoding Encoding
}

// Sign 实现 Signer
func (s HMACSigner) Sign(secret, message []byte) (string, error) {
	return s.Encoding.encode(hmacSum(s.Algo, secret, message)), nil
}

func hmacSum(algo HashAlgo, secret, message []byte) []byte {
	mac := hmac.New(algo.new(), secret)
	mac.Write(message)
	return mac.Sum(nil)
}

// SignHMAC256 HMAC-SHA256签名（hex编码）
func SignHMAC256(message, secret string) string {
	return hex.EncodeToString(hmacSum(SHA256, []byte(secret), []byte(message)))
}

// SignHMAC256Base64 HMAC-SHA256签名（base64编码）
func SignHMAC256Base64(message, secret string) string {
	return base64.StdEncoding.EncodeToString(hmacSum(SHA256, []byte(secret), []byte(message)))
}

// SignHMAC512 HMAC-SHA512签名（hex编码）
func SignHMAC512(message, secret string) string {
	return hex.EncodeToString(hmacSum(SHA512, []byte(secret), []byte(message)))
}

// HashSHA256 SHA256 摘要（原始字节）
func HashSHA256(data []byte) []byte {
	sum := sha256.Sum256(data)
	return sum[:]
}

// HashSHA512 SHA512 摘要（hex编码）
func HashSHA512(data []byte) string {
	sum := sha512.Sum512(data)
	return hex.EncodeToString(sum[:])
}

// JWTSigner ES256 JWT 签名（Coinbase Advanced Trade 风格）。
// secret 为 PEM 格式 EC 私钥，message 为 "METHOD host/path" 形式的 uri 声明。
type JWTSigner struct {
	// KeyName API key 名称，写入 sub 与 kid
	KeyName string
	// Issuer 签发方
	Issuer string
	// TTL 令牌有效期，默认 2 分钟
	TTL time.Duration
	// Now 测试用时钟
	Now func() time.Time
}

// Sign 实现 Signer
func (s JWTSigner) Sign(secret, message []byte) (string, error) {
	if s.KeyName == "" {
		return "", errors.New("jwt signer: key name is required")
	}
	key, err := jwt.ParseECPrivateKeyFromPEM(secret)
	if err != nil {
		return "", fmt.Errorf("jwt signer: parse key: %w", err)
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	issuer := s.Issuer
	if issuer == "" {
		issuer = "cdp"
	}

	issued := now()
	claims := jwt.MapClaims{
		"sub": s.KeyName,
		"iss": issuer,
		"nbf": issued.Unix(),
		"exp": issued.Add(ttl).Unix(),
	}
	if len(message) > 0 {
		claims["uri"] = string(message)
	}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, claims)
	token.Header["kid"] = s.KeyName
	token.Header["nonce"] = uuid.NewString()
	return token.SignedString(key)
}
