// Package driver implements the backend for an out-of-process accelerator
// driver reached through the hal contract.
package driver

import (
	"os"

	"github.com/nnrt/nnrt"
	"github.com/nnrt/nnrt/backends"
	"github.com/nnrt/nnrt/hal"
	"github.com/nnrt/nnrt/model"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Device is a backend with an actual underlying driver.
type Device struct {
	name          string
	versionString string
	driver        hal.Driver

	capabilities        hal.Capabilities
	supportedExtensions []hal.Extension
	numModelCacheFiles  uint32
	numDataCacheFiles   uint32

	// syncExec selects synchronous over asynchronous remote execution,
	// decided once by the manager's configuration.
	syncExec bool
}

var _ backends.Device = (*Device)(nil)

// NewDevice queries the driver's static properties and wraps it as a Device.
//
// Any failure of a required query (capabilities, version, extensions) makes
// the device unusable and is returned as an error; the manager logs and skips
// such a driver. A failing or out-of-bounds cache-file-count query only
// disables caching for the device.
func NewDevice(name string, d hal.Driver, syncExec bool) (*Device, error) {
	if d == nil {
		return nil, errors.Errorf("driver %q: nil driver interface", name)
	}
	dev := &Device{name: name, driver: d, syncExec: syncExec}

	var err error
	dev.capabilities, err = d.GetCapabilities()
	if err != nil {
		return nil, errors.Wrapf(err, "driver %q: GetCapabilities", name)
	}
	klog.V(1).Infof("driver %q capabilities: %+v", name, dev.capabilities)

	dev.versionString, err = d.GetVersionString()
	if err != nil {
		return nil, errors.Wrapf(err, "driver %q: GetVersionString", name)
	}

	dev.supportedExtensions, err = d.GetSupportedExtensions()
	if err != nil {
		return nil, errors.Wrapf(err, "driver %q: GetSupportedExtensions", name)
	}

	numModel, numData, err := d.GetNumberOfCacheFilesNeeded()
	if err != nil {
		klog.Warningf("driver %q: GetNumberOfCacheFilesNeeded failed, disabling caching: %+v", name, err)
		numModel, numData = 0, 0
	}
	if numModel > nnrt.MaxCacheFiles || numData > nnrt.MaxCacheFiles {
		klog.Warningf("driver %q: invalid number of cache files (numModelCache=%d, numDataCache=%d), disabling caching",
			name, numModel, numData)
		numModel, numData = 0, 0
	}
	dev.numModelCacheFiles, dev.numDataCacheFiles = numModel, numData
	return dev, nil
}

// Name implements backends.Device.
func (d *Device) Name() string { return d.name }

// VersionString implements backends.Device.
func (d *Device) VersionString() string { return d.versionString }

// FeatureLevel implements backends.Device.
func (d *Device) FeatureLevel() int64 { return d.driver.GetFeatureLevel() }

// Type implements backends.Device.
func (d *Device) Type() nnrt.DeviceType { return d.driver.GetType() }

// SupportedExtensions implements backends.Device.
func (d *Device) SupportedExtensions() []hal.Extension { return d.supportedExtensions }

// SupportedOperations queries the driver for what it can do.
//
// A failed query, or a returned vector whose length does not match the
// model's operation count, yields an all-false vector: corrupt support data
// must never reach the partitioner.
func (d *Device) SupportedOperations(m *model.Model) []bool {
	supported, err := d.driver.GetSupportedOperations(m)
	if err != nil {
		klog.Errorf("driver %q: GetSupportedOperations failed, treating all operations as unsupported: %+v",
			d.name, err)
		return make([]bool, len(m.Operations))
	}
	if len(supported) != len(m.Operations) {
		klog.Errorf("driver %q: GetSupportedOperations returned a vector of length %d when expecting %d, "+
			"treating all operations as unsupported", d.name, len(supported), len(m.Operations))
		return make([]bool, len(m.Operations))
	}
	return supported
}

// Performance implements backends.Device.
func (d *Device) Performance(t model.OperandType) hal.PerformanceInfo {
	return d.capabilities.OperandPerformance[t]
}

// RelaxedFloat32ToFloat16PerformanceScalar implements backends.Device.
func (d *Device) RelaxedFloat32ToFloat16PerformanceScalar() hal.PerformanceInfo {
	return d.capabilities.RelaxedFloat32ToFloat16PerformanceScalar
}

// RelaxedFloat32ToFloat16PerformanceTensor implements backends.Device.
func (d *Device) RelaxedFloat32ToFloat16PerformanceTensor() hal.PerformanceInfo {
	return d.capabilities.RelaxedFloat32ToFloat16PerformanceTensor
}

// NumberOfCacheFilesNeeded implements backends.Device.
func (d *Device) NumberOfCacheFilesNeeded() (uint32, uint32) {
	return d.numModelCacheFiles, d.numDataCacheFiles
}

// PrepareModel forwards the compilation to the driver and wraps the result.
func (d *Device) PrepareModel(m *model.Model, preference nnrt.ExecutionPreference,
	modelCache, dataCache []*os.File, token nnrt.CacheToken) (backends.PreparedModel, nnrt.ResultCode) {
	prepared, err := d.driver.PrepareModel(m, preference, modelCache, dataCache, token)
	return d.checkPrepared(prepared, err, "PrepareModel")
}

// PrepareModelFromCache recreates a prepared model from the driver's
// compilation cache.
func (d *Device) PrepareModelFromCache(modelCache, dataCache []*os.File,
	token nnrt.CacheToken) (backends.PreparedModel, nnrt.ResultCode) {
	prepared, err := d.driver.PrepareModelFromCache(modelCache, dataCache, token)
	return d.checkPrepared(prepared, err, "PrepareModelFromCache")
}

func (d *Device) checkPrepared(prepared hal.PreparedModel, err error, call string) (backends.PreparedModel, nnrt.ResultCode) {
	if err != nil {
		klog.Errorf("%s on %q failed: %+v", call, d.name, err)
		return nil, nnrt.OpFailed
	}
	if prepared == nil {
		klog.Errorf("%s on %q failed: prepared model is nil", call, d.name)
		return nil, nnrt.OpFailed
	}
	return &PreparedModel{prepared: prepared, syncExec: d.syncExec}, nnrt.NoError
}
