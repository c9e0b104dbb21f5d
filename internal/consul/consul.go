package consul

import (
	"errors"
	"fmt"
	"strconv"

	consulapi "github.com/hashicorp/consul/api"
)

type Registration struct {
	Name string
	Host string
	Port string
}

func (r Registration) id() string {
	return r.Name + "-" + r.Host + "-" + r.Port
}

// RegisterService registers the service with the local agent together with an HTTP check on
// /ping. It returns the service id to deregister with.
func RegisterService(client *consulapi.Client, r Registration) (string, error) {
	if client == nil {
		return "", errors.New("consul client is not initialized")
	}
	port, err := strconv.Atoi(r.Port)
	if err != nil {
		return "", fmt.Errorf("invalid service port %q: %w", r.Port, err)
	}
	id := r.id()
	reg := &consulapi.AgentServiceRegistration{
		ID:      id,
		Name:    r.Name,
		Address: r.Host,
		Port:    port,
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/ping", r.Host, port),
			Interval:                       "10s",
			Timeout:                        "3s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}
	if err := client.Agent().ServiceRegister(reg); err != nil {
		return "", fmt.Errorf("registering %s with consul: %w", r.Name, err)
	}
	return id, nil
}

func DeregisterService(client *consulapi.Client, id string) error {
	if err := client.Agent().ServiceDeregister(id); err != nil {
		return fmt.Errorf("deregistering %s from consul: %w", id, err)
	}
	return nil
}

func NewClient(address string) (*consulapi.Client, error) {
	cfg := consulapi.DefaultConfig()
	cfg.Address = address
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("creating consul client: %w", err)
	}
	return client, nil
}
