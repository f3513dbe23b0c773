package shortcode

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"

	apperrors "shortlink-core/internal/errors"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

const (
	// Charset 包含用于生成短码的所有字符，下标即 base62 数值，Charset[0] 为零符号
	Charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength 是随机短码的默认长度
	CodeLength = 7
	// SequentialWidth 是顺序编码的最小宽度
	SequentialWidth = 6
	// DefaultMaxAttempts 是分配短码的默认最大尝试次数
	DefaultMaxAttempts = 10

	MinAliasLength = 3
	MaxAliasLength = 20
)

// Strategy 未指定别名时的短码生成方式
type Strategy string

const (
	StrategyRandom     Strategy = "random"
	StrategySequential Strategy = "sequential"
)

// Checker 查询短码是否被占用，已软删除的短码同样算占用
type Checker interface {
	ExistsByCode(ctx context.Context, code string) (bool, error)
}

// Options 分配器配置
type Options struct {
	Strategy    Strategy
	Length      int
	MaxAttempts int
	NodeID      int64
}

// Allocator 负责分配唯一短码（随机、顺序或自定义别名）
type Allocator struct {
	checker Checker
	opts    Options
	node    *snowflake.Node
	logger  *zap.SugaredLogger
}

// NewAllocator 创建一个短码分配器
func NewAllocator(checker Checker, opts Options, logger *zap.SugaredLogger) (*Allocator, error) {
	if opts.Strategy == "" {
		opts.Strategy = StrategyRandom
	}
	if opts.Length <= 0 {
		opts.Length = CodeLength
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}

	a := &Allocator{
		checker: checker,
		opts:    opts,
		logger:  logger.Named("shortcode_allocator"),
	}

	switch opts.Strategy {
	case StrategyRandom:
	case StrategySequential:
		node, err := snowflake.NewNode(opts.NodeID)
		if err != nil {
			return nil, fmt.Errorf("创建 snowflake 节点失败: %w", err)
		}
		a.node = node
	default:
		return nil, fmt.Errorf("未知的短码策略: %q", opts.Strategy)
	}

	return a, nil
}

// MaxAttempts 返回单次分配允许的最大尝试次数
func (a *Allocator) MaxAttempts() int {
	return a.opts.MaxAttempts
}

// Allocate 分配一个短码。alias 非空时校验并原样使用，否则按策略生成
func (a *Allocator) Allocate(ctx context.Context, alias string) (string, error) {
	if alias != "" {
		if err := ValidateAlias(alias); err != nil {
			return "", err
		}
		exists, err := a.checker.ExistsByCode(ctx, alias)
		if err != nil {
			return "", fmt.Errorf("检查别名 %q 失败: %w", alias, err)
		}
		if exists {
			return "", apperrors.ErrAliasTaken
		}
		return alias, nil
	}

	for i := 0; i < a.opts.MaxAttempts; i++ {
		code, err := a.candidate()
		if err != nil {
			return "", err
		}
		exists, err := a.checker.ExistsByCode(ctx, code)
		if err != nil {
			return "", fmt.Errorf("检查短码 %q 失败: %w", code, err)
		}
		if !exists {
			return code, nil
		}
		a.logger.Debugf("短码 %s 已存在，重新生成 (第 %d 次)", code, i+1)
	}

	a.logger.Warnf("已尝试 %d 次生成短码，但均存在冲突", a.opts.MaxAttempts)
	return "", apperrors.ErrCodeSpaceExhausted
}

func (a *Allocator) candidate() (string, error) {
	if a.node != nil {
		return EncodeSequential(uint64(a.node.Generate().Int64())), nil
	}
	return GenerateRandomString(a.opts.Length)
}

// GenerateRandomString 使用加密安全的随机数生成器生成一个给定长度的字符串
func GenerateRandomString(length int) (string, error) {
	b := make([]byte, length)
	max := big.NewInt(int64(len(Charset)))
	for i := range b {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = Charset[num.Int64()]
	}
	return string(b), nil
}

// EncodeSequential 把整数编码为 base62，高位在前，不足 SequentialWidth 位时左侧补零符号
func EncodeSequential(n uint64) string {
	var buf [16]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = Charset[n%62]
		n /= 62
	}
	for len(buf)-i < SequentialWidth {
		i--
		buf[i] = Charset[0]
	}
	return string(buf[i:])
}

// ValidateAlias 校验自定义别名：3-20 位字母、数字、连字符或下划线
func ValidateAlias(alias string) error {
	if len(alias) < MinAliasLength || len(alias) > MaxAliasLength {
		return apperrors.NewBusinessError(apperrors.CodeInvalidAlias,
			fmt.Sprintf("alias length must be between %d and %d", MinAliasLength, MaxAliasLength), apperrors.ErrInvalidAlias)
	}
	for _, r := range alias {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return apperrors.NewBusinessError(apperrors.CodeInvalidAlias,
				fmt.Sprintf("alias contains invalid character %q", r), apperrors.ErrInvalidAlias)
		}
	}
	return nil
}
