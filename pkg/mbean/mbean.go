// Package mbean 定义受管对象服务端接口，并提供进程内实现 MemoryServer。
package mbean

import (
	"errors"
	"fmt"
	"time"

	"github.com/attr-sampler/pkg/objectname"
)

var (
	ErrInstanceNotFound      = errors.New("managed object not found")
	ErrInstanceAlreadyExists = errors.New("managed object already registered")
	ErrAttributeNotFound     = errors.New("attribute not found")
	ErrAttributeNotReadable  = errors.New("attribute not readable")
	ErrPatternName           = errors.New("object name is a pattern")
	ErrServerClosed          = errors.New("managed object server closed")
)

// AttributeInfo 属性元数据
type AttributeInfo struct {
	Name        string          `json:"name"`
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	Readable    bool            `json:"readable"`
	Owner       objectname.Name `json:"-"`
}

// NotificationType 生命周期通知类型
type NotificationType string

const (
	Registered   NotificationType = "mbean.registered"
	Unregistered NotificationType = "mbean.unregistered"
)

// Notification 对象注册/注销通知
type Notification struct {
	Type     NotificationType
	Name     objectname.Name
	Sequence uint64
	Time     time.Time
}

func (n Notification) String() string {
	return fmt.Sprintf("%s %s #%d", n.Type, n.Name, n.Sequence)
}

// NotificationHandler 通知回调，在服务端的投递 goroutine 中按序执行
type NotificationHandler func(Notification)

// Server 受管对象服务端
type Server interface {
	// QueryNames 返回匹配模式的对象名；零值模式返回全部
	QueryNames(pattern objectname.Name) ([]objectname.Name, error)
	// Attributes 返回对象的属性元数据
	Attributes(name objectname.Name) ([]AttributeInfo, error)
	// GetAttribute 读取单个属性值
	GetAttribute(name objectname.Name, attribute string) (any, error)
	// Subscribe 订阅生命周期通知，返回取消订阅函数
	Subscribe(handler NotificationHandler) (func(), error)
}

// Bean 受管对象实现
type Bean interface {
	Attributes() []AttributeInfo
	GetAttribute(name string) (any, error)
}
