package registry

import (
	"context"
	"io"
)

// ServiceInstance is one server of a service, as stored in the registry.
type ServiceInstance struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Weight  uint32 `json:"weight"`
	Group   string `json:"group,omitempty"`
}

type EventType int

const (
	EventTypeUnknown EventType = iota
	EventTypeAdd
	EventTypeDelete
)

func (t EventType) String() string {
	switch t {
	case EventTypeAdd:
		return "add"
	case EventTypeDelete:
		return "delete"
	default:
		return "unknown"
	}
}

type Event struct {
	Type     EventType
	Instance ServiceInstance
}

//go:generate mockgen -package=mocks -destination=mocks/registry.mock.go -source=types.go Registry
type Registry interface {
	io.Closer
	Register(ctx context.Context, inst ServiceInstance) error
	Unregister(ctx context.Context, inst ServiceInstance) error
	ListServices(ctx context.Context, serviceName string) ([]ServiceInstance, error)
	// Subscribe streams changes to serviceName until the registry is
	// closed, then closes the channel.
	Subscribe(serviceName string) (<-chan Event, error)
}
