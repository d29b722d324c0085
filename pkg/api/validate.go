package api

import (
	"fmt"
	"strings"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if len(c.Namespaces) == 0 {
		return fmt.Errorf("namespaces list is empty")
	}
	seen := make(map[string]bool, len(c.Namespaces))
	for i, ns := range c.Namespaces {
		if strings.TrimSpace(ns) == "" {
			return fmt.Errorf("namespace %d: name is empty", i)
		}
		if seen[ns] {
			return fmt.Errorf("namespace %q: duplicate", ns)
		}
		seen[ns] = true
	}

	if len(c.Environments) == 0 {
		return fmt.Errorf("environments map is empty")
	}
	for name, env := range c.Environments {
		if err := validateEnvironment(env); err != nil {
			return fmt.Errorf("environment %q: %w", name, err)
		}
	}

	if err := c.validateMonitoring(); err != nil {
		return err
	}

	return c.validatePortForwards()
}

func validateEnvironment(env EnvironmentConfig) error {
	if env.Overlay == "" {
		return fmt.Errorf("overlay is required")
	}
	if env.Namespace == "" {
		return fmt.Errorf("namespace is required")
	}
	if env.Selector == "" {
		return fmt.Errorf("selector is required")
	}
	return nil
}

func (c *Config) validateMonitoring() error {
	names := make(map[string]bool)
	for i, svc := range c.Monitoring.Services {
		if svc.Name == "" {
			return fmt.Errorf("monitoring service %d: name is required", i)
		}
		if svc.Selector == "" {
			return fmt.Errorf("monitoring service %q: selector is required", svc.Name)
		}
		if names[svc.Name] {
			return fmt.Errorf("monitoring service %q: duplicate name", svc.Name)
		}
		names[svc.Name] = true
	}
	if len(c.Monitoring.Services) > 0 && c.Monitoring.Namespace == "" {
		return fmt.Errorf("monitoring.namespace is required when services are configured")
	}
	return nil
}

func (c *Config) validatePortForwards() error {
	names := make(map[string]bool)
	for i, pf := range c.PortForwards {
		if pf.Name == "" {
			return fmt.Errorf("portForward %d: name is required", i)
		}
		if names[pf.Name] {
			return fmt.Errorf("portForward %q: duplicate name", pf.Name)
		}
		names[pf.Name] = true
		if pf.Resource == "" {
			return fmt.Errorf("portForward %q: resource is required", pf.Name)
		}
		if pf.Ports == "" {
			return fmt.Errorf("portForward %q: ports is required", pf.Name)
		}
		if !strings.Contains(pf.Ports, ":") {
			return fmt.Errorf("portForward %q: ports must be local:remote, got %q", pf.Name, pf.Ports)
		}
		if pf.Namespace == "" {
			return fmt.Errorf("portForward %q: namespace is required", pf.Name)
		}
	}
	return nil
}
