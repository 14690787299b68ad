package discovery

import (
	"fmt"
	"log"
	"strconv"

	"github.com/StefanRadev91/TSPlaywrightSite/internal/config"

	"github.com/hashicorp/consul/api"
)

type ServiceRegistry struct {
	client *api.Client
	config *config.Config
}

func NewServiceRegistry(config *config.Config) (*ServiceRegistry, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = config.Consul.Address

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %v", err)
	}

	return &ServiceRegistry{
		client: client,
		config: config,
	}, nil
}

func (sr *ServiceRegistry) httpID() string {
	return sr.config.Server.ServiceID + "-http"
}

func (sr *ServiceRegistry) streamID() string {
	return sr.config.Server.ServiceID + "-ws"
}

// Register announces the HTTP API and the session stream listener.
func (sr *ServiceRegistry) Register() error {
	httpPort, err := strconv.Atoi(sr.config.Server.Port)
	if err != nil {
		return fmt.Errorf("invalid HTTP port %q: %v", sr.config.Server.Port, err)
	}
	streamPort, err := strconv.Atoi(sr.config.Server.StreamPort)
	if err != nil {
		return fmt.Errorf("invalid stream port %q: %v", sr.config.Server.StreamPort, err)
	}

	httpRegistration := &api.AgentServiceRegistration{
		ID:      sr.httpID(),
		Name:    sr.config.Server.ServiceName,
		Port:    httpPort,
		Address: sr.config.Server.ServiceAddress,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", sr.config.Server.ServiceAddress, sr.config.Server.Port),
			Interval: "10s",
			Timeout:  "5s",
		},
		Tags: []string{"academy", "http"},
		Meta: map[string]string{
			"protocol": "http",
		},
	}

	streamRegistration := &api.AgentServiceRegistration{
		ID:      sr.streamID(),
		Name:    sr.config.Server.ServiceName,
		Port:    streamPort,
		Address: sr.config.Server.ServiceAddress,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s:%s/health", sr.config.Server.ServiceAddress, sr.config.Server.StreamPort),
			Interval: "10s",
			Timeout:  "5s",
		},
		Tags: []string{"academy", "ws"},
		Meta: map[string]string{
			"protocol": "ws",
		},
	}

	if err := sr.client.Agent().ServiceRegister(httpRegistration); err != nil {
		return fmt.Errorf("failed to register HTTP service with Consul: %v", err)
	}
	if err := sr.client.Agent().ServiceRegister(streamRegistration); err != nil {
		return fmt.Errorf("failed to register stream service with Consul: %v", err)
	}

	log.Println("Successfully registered HTTP and stream services with Consul")
	return nil
}

func (sr *ServiceRegistry) Deregister() error {
	if err := sr.client.Agent().ServiceDeregister(sr.httpID()); err != nil {
		log.Printf("Error deregistering HTTP service: %v", err)
	}

	if err := sr.client.Agent().ServiceDeregister(sr.streamID()); err != nil {
		log.Printf("Error deregistering stream service: %v", err)
	}

	return nil
}
