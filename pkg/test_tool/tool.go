package testtool

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
)

// Container a started test container and where its first exposed port is reachable
type Container struct {
	testcontainers.Container
	HostIP   string
	HostPort string
}

// Addr host:port of the first exposed port
func (c *Container) Addr() string {
	return fmt.Sprintf("%s:%s", c.HostIP, c.HostPort)
}

// SetupContainer 通用函式來啟動測試容器, req must expose at least one port
func SetupContainer(ctx context.Context, req testcontainers.ContainerRequest) (*Container, error) {
	if len(req.ExposedPorts) == 0 {
		return nil, fmt.Errorf("container %s exposes no port", req.Image)
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	natPort, err := nat.NewPort("tcp", strings.TrimSuffix(req.ExposedPorts[0], "/tcp"))
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	port, err := container.MappedPort(ctx, natPort)
	if err != nil {
		_ = container.Terminate(ctx)
		return nil, err
	}

	return &Container{Container: container, HostIP: host, HostPort: port.Port()}, nil
}
