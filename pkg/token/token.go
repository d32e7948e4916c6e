package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// secretKey 是服务器在启动时生成的32字节密钥。
var secretKey []byte

// ChallengePayload 定义了创建对战挑战时需要被签名的数据。
// 它随挑战通知一起下发给被挑战方，并在接受挑战时原样提交回来，
// 防止挑战参数（对战双方的宠物）在中转过程中被篡改。
type ChallengePayload struct {
	BattleID uint   `json:"b"`
	PetOneID uint   `json:"p1"`
	PetTwoID uint   `json:"p2"`
	Category string `json:"c"`
}

// GenerateSecretKey 生成一个密码学安全的32字节随机密钥。
func GenerateSecretKey() {
	key := make([]byte, 32)
	_, err := rand.Read(key)
	if err != nil {
		panic("无法生成安全的密钥: " + err.Error())
	}
	secretKey = key
	fmt.Println("HMAC密钥已成功生成。")
}

// GenerateChallengeSignature 为一个给定的ChallengePayload生成HMAC签名。
// 返回签名的Base64编码字符串。
func GenerateChallengeSignature(payload ChallengePayload) (string, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return "", errors.New("无法序列化挑战payload")
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	signature := mac.Sum(nil)

	encodedSignature := base64.RawURLEncoding.EncodeToString(signature)
	return encodedSignature, nil
}

// ValidateChallengeSignature 验证一个给定的payload和签名是否匹配。
func ValidateChallengeSignature(payload ChallengePayload, signatureB64 string) bool {
	// 重新序列化payload，确保与签名时的数据格式完全一致
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, secretKey)
	mac.Write(payloadBytes)
	expectedSignature := mac.Sum(nil)

	actualSignature, err := base64.RawURLEncoding.DecodeString(signatureB64)
	if err != nil {
		return false
	}

	// hmac.Equal是时间恒定的比较，防止时序攻击
	return hmac.Equal(expectedSignature, actualSignature)
}
