package discovery

import (
	"fmt"

	consulapi "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Agent is the part of the consul agent API used for registration.
type Agent interface {
	ServiceRegister(reg *consulapi.AgentServiceRegistration) error
	ServiceDeregister(serviceID string) error
}

type Registration struct {
	ID   string
	Name string
	Host string
	Port int
}

// Registrar announces this instance to consul with an HTTP health check on
// /healthz. A nil *Registrar does nothing.
type Registrar struct {
	agent  Agent
	reg    Registration
	logger *zap.Logger
}

func New(addr string, reg Registration, logger *zap.Logger) (*Registrar, error) {
	if addr == "" {
		return nil, nil
	}
	cfg := consulapi.DefaultConfig()
	cfg.Address = addr
	client, err := consulapi.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}
	return NewWithAgent(client.Agent(), reg, logger), nil
}

func NewWithAgent(agent Agent, reg Registration, logger *zap.Logger) *Registrar {
	if reg.ID == "" {
		reg.ID = fmt.Sprintf("%s-%s-%d", reg.Name, reg.Host, reg.Port)
	}
	return &Registrar{agent: agent, reg: reg, logger: logger}
}

func (r *Registrar) Register() error {
	if r == nil {
		return nil
	}
	err := r.agent.ServiceRegister(&consulapi.AgentServiceRegistration{
		ID:      r.reg.ID,
		Name:    r.reg.Name,
		Address: r.reg.Host,
		Port:    r.reg.Port,
		Tags:    []string{"http", "api"},
		Check: &consulapi.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/healthz", r.reg.Host, r.reg.Port),
			Interval:                       "10s",
			Timeout:                        "2s",
			DeregisterCriticalServiceAfter: "1m",
		},
	})
	if err != nil {
		return fmt.Errorf("consul register: %w", err)
	}
	r.logger.Info("registered with consul", zap.String("service_id", r.reg.ID))
	return nil
}

func (r *Registrar) Deregister() {
	if r == nil {
		return
	}
	if err := r.agent.ServiceDeregister(r.reg.ID); err != nil {
		r.logger.Warn("consul deregister failed", zap.String("service_id", r.reg.ID), zap.Error(err))
	}
}
