package manager

import (
	"os"
	"strconv"

	"k8s.io/klog/v2"
)

// Environment variables consulted once, when the device manager is built.
// Options passed to NewDeviceManager take precedence.
const (
	// EnvCPUOnly restricts execution to the reference device.
	EnvCPUOnly = "NNRT_CPU_ONLY"

	// EnvSyncExecCPU selects synchronous over worker-goroutine execution on
	// the reference device. Defaults to on.
	EnvSyncExecCPU = "NNRT_SYNC_EXEC_CPU"

	// EnvSyncExecDriver selects the synchronous over the asynchronous remote
	// call for driver execution. Defaults to on.
	EnvSyncExecDriver = "NNRT_SYNC_EXEC_DRIVER"

	// EnvStrictSlicing makes model slicing failures fatal instead of falling
	// back to whole-model compilation.
	EnvStrictSlicing = "NNRT_STRICT_SLICING"

	// EnvPartitioning sets the partitioning aggressiveness.
	EnvPartitioning = "NNRT_PARTITIONING"
)

// Partitioning aggressiveness levels.
const (
	// PartitioningNo disables graph partitioning.
	PartitioningNo = 0

	// PartitioningWithoutFallback partitions but fails when a partition
	// cannot be compiled.
	PartitioningWithoutFallback = 1

	// PartitioningWithFallback partitions and falls back to the reference
	// device when a partition cannot be compiled.
	PartitioningWithFallback = 2

	partitioningDefault = PartitioningWithFallback
)

// Config is the process-wide runtime configuration: populated once when the
// device manager is constructed, read-only afterwards.
type Config struct {
	// CPUOnly restricts execution to the reference device.
	CPUOnly bool

	// SyncExecCPU runs reference-device executions on the calling goroutine.
	SyncExecCPU bool

	// SyncExecDriver uses the synchronous remote call for driver executions.
	SyncExecDriver bool

	// StrictSlicing makes slicing failures fatal.
	StrictSlicing bool

	// Partitioning is the partitioning aggressiveness, one of the
	// Partitioning* levels.
	Partitioning int
}

// configFromEnv builds the default configuration from the environment.
func configFromEnv() Config {
	return Config{
		CPUOnly:        envBool(EnvCPUOnly, false),
		SyncExecCPU:    envBool(EnvSyncExecCPU, true),
		SyncExecDriver: envBool(EnvSyncExecDriver, true),
		StrictSlicing:  envBool(EnvStrictSlicing, false),
		Partitioning:   envInt(EnvPartitioning, partitioningDefault),
	}
}

func envBool(name string, deflt bool) bool {
	value, found := os.LookupEnv(name)
	if !found {
		return deflt
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		klog.Warningf("manager: invalid value %q for %s, using default %v", value, name, deflt)
		return deflt
	}
	return parsed
}

func envInt(name string, deflt int) int {
	value, found := os.LookupEnv(name)
	if !found {
		return deflt
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		klog.Warningf("manager: invalid value %q for %s, using default %d", value, name, deflt)
		return deflt
	}
	return parsed
}

// Option overrides one configuration entry of a new device manager.
type Option func(*Config)

// WithCPUOnly restricts execution to the reference device.
func WithCPUOnly(cpuOnly bool) Option {
	return func(c *Config) { c.CPUOnly = cpuOnly }
}

// WithSyncExecCPU selects synchronous in-process execution on the reference
// device.
func WithSyncExecCPU(sync bool) Option {
	return func(c *Config) { c.SyncExecCPU = sync }
}

// WithSyncExecDriver selects the synchronous remote call for driver
// executions.
func WithSyncExecDriver(sync bool) Option {
	return func(c *Config) { c.SyncExecDriver = sync }
}

// WithStrictSlicing makes slicing failures fatal.
func WithStrictSlicing(strict bool) Option {
	return func(c *Config) { c.StrictSlicing = strict }
}

// WithPartitioning sets the partitioning aggressiveness.
func WithPartitioning(level int) Option {
	return func(c *Config) { c.Partitioning = level }
}
