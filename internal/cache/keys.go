package cache

// KeyBuilder 生成带命名空间的缓存键，例如 shortlink:link:abc1234
type KeyBuilder struct {
	namespace string
}

func NewKeyBuilder(namespace string) *KeyBuilder {
	return &KeyBuilder{namespace: namespace}
}

// Link 短链接记录的键
func (k *KeyBuilder) Link(code string) string {
	if k.namespace == "" {
		return "link:" + code
	}
	return k.namespace + ":link:" + code
}

// Invalidations 失效通知的发布订阅频道
func (k *KeyBuilder) Invalidations() string {
	if k.namespace == "" {
		return "invalidate"
	}
	return k.namespace + ":invalidate"
}
