// Package manager discovers the execution backends available to the process
// and holds them for its lifetime.
//
// Discovery runs exactly once, lazily, at first use: every driver registered
// in the platform's service directory is queried for its static properties,
// drivers failing a required query are logged and skipped, and the built-in
// reference device is always appended last. The resulting device list is
// immutable.
//
// The manager is an explicitly constructed object rather than ambient global
// state, so tests can substitute a directory of synthetic drivers.
package manager

import (
	"sync"

	"github.com/nnrt/nnrt/backends"
	"github.com/nnrt/nnrt/backends/cpu"
	"github.com/nnrt/nnrt/backends/driver"
	"github.com/nnrt/nnrt/hal"
	"k8s.io/klog/v2"
)

// ServiceDirectory enumerates the driver services registered on the
// platform.
type ServiceDirectory interface {
	// List returns the registered driver service names.
	List() []string

	// Get returns the driver interface registered under name.
	Get(name string) (hal.Driver, error)
}

// EmptyDirectory is a ServiceDirectory with no drivers: only the reference
// device will be available.
type EmptyDirectory struct{}

// List implements ServiceDirectory.
func (EmptyDirectory) List() []string { return nil }

// Get implements ServiceDirectory.
func (EmptyDirectory) Get(string) (hal.Driver, error) { return nil, nil }

// DeviceManager owns every usable device for the process lifetime.
type DeviceManager struct {
	config    Config
	directory ServiceDirectory

	discoverOnce sync.Once
	devices      []backends.Device
	cpuDevice    *cpu.Device
}

// NewDeviceManager builds a manager over the given service directory.
// Configuration is read from the environment once, then overridden by opts.
func NewDeviceManager(directory ServiceDirectory, opts ...Option) *DeviceManager {
	config := configFromEnv()
	for _, opt := range opts {
		opt(&config)
	}
	if directory == nil {
		directory = EmptyDirectory{}
	}
	return &DeviceManager{config: config, directory: directory}
}

// Config returns the process-wide configuration, fixed at construction.
func (m *DeviceManager) Config() Config { return m.config }

// Devices returns all usable devices, discovering them on first call.
// The reference device is always present and always last. With CPUOnly set,
// it is the only entry.
func (m *DeviceManager) Devices() []backends.Device {
	m.discoverOnce.Do(m.findAvailableDevices)
	return m.devices
}

// CPUDevice returns the built-in reference device.
func (m *DeviceManager) CPUDevice() backends.Device {
	m.discoverOnce.Do(m.findAvailableDevices)
	return m.cpuDevice
}

func (m *DeviceManager) findAvailableDevices() {
	klog.V(1).Info("manager: findAvailableDevices")
	m.cpuDevice = cpu.NewDevice(m.config.SyncExecCPU)

	if !m.config.CPUOnly {
		for _, name := range m.directory.List() {
			klog.V(1).Infof("manager: found driver service %q", name)
			d, err := m.directory.Get(name)
			if err != nil {
				klog.Errorf("manager: cannot reach driver service %q: %+v", name, err)
				continue
			}
			if d == nil {
				klog.Errorf("manager: got a nil driver for %q", name)
				continue
			}
			m.registerDevice(name, d)
		}
	}

	// Register the reference fallback device.
	m.devices = append(m.devices, m.cpuDevice)
}

// registerDevice queries the driver's static properties and adds it to the
// device list. Failures drop the driver and never abort discovery of the
// others.
func (m *DeviceManager) registerDevice(name string, d hal.Driver) {
	dev, err := driver.NewDevice(name, d, m.config.SyncExecDriver)
	if err != nil {
		klog.Errorf("manager: dropping driver %q: %+v", name, err)
		return
	}
	m.devices = append(m.devices, dev)
}
