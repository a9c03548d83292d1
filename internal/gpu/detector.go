package gpu

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Detector probes the host for NVIDIA GPU support so the worker can tell the
// model helpers which device to run on
type Detector struct {
	logger *zap.Logger
}

// Info describes the detected GPU devices
type Info struct {
	Available     bool
	DeviceCount   int
	DeviceName    string
	DriverVersion string
}

// NewDetector creates a new Detector instance
func NewDetector(logger *zap.Logger) *Detector {
	return &Detector{logger: logger}
}

// Detect probes for NVIDIA GPUs, first via nvidia-smi and then via the CUDA
// environment. A host without GPUs is not an error.
func (d *Detector) Detect() *Info {
	info := &Info{}

	if err := d.detectWithNvidiaSMI(info); err != nil {
		d.logger.Debug("nvidia-smi detection failed", zap.Error(err))
		if err := d.detectWithCUDAEnv(info); err != nil {
			d.logger.Debug("CUDA environment detection failed", zap.Error(err))
		}
	}

	d.logger.Info("GPU detection completed",
		zap.Bool("available", info.Available),
		zap.Int("device_count", info.DeviceCount),
		zap.String("device_name", info.DeviceName))
	return info
}

// PreferredDevice returns the device argument for the model helpers: "cuda"
// when an NVIDIA GPU is present, otherwise "auto" so the helper can still
// choose a non-CUDA accelerator on its own.
func (d *Detector) PreferredDevice() string {
	if d.Detect().Available {
		return "cuda"
	}
	return "auto"
}

// detectWithNvidiaSMI queries nvidia-smi for device count and details
func (d *Detector) detectWithNvidiaSMI(info *Info) error {
	countOutput, err := exec.Command("nvidia-smi", "--list-gpus").Output()
	if err != nil {
		return fmt.Errorf("nvidia-smi command failed: %w", err)
	}

	lines := strings.Split(strings.TrimSpace(string(countOutput)), "\n")
	if len(lines) == 0 || (len(lines) == 1 && lines[0] == "") {
		return fmt.Errorf("no GPUs listed by nvidia-smi")
	}
	info.DeviceCount = len(lines)
	info.Available = true

	infoOutput, err := exec.Command("nvidia-smi",
		"--query-gpu=name,driver_version", "--format=csv,noheader,nounits", "--id=0").Output()
	if err != nil {
		// The device list succeeded; details are best-effort.
		return nil
	}
	parts := strings.Split(strings.TrimSpace(string(infoOutput)), ",")
	if len(parts) >= 2 {
		info.DeviceName = strings.TrimSpace(parts[0])
		info.DriverVersion = strings.TrimSpace(parts[1])
	}
	return nil
}

// detectWithCUDAEnv falls back to the CUDA environment variables, which are
// present in CUDA container images even when nvidia-smi is not on PATH
func (d *Detector) detectWithCUDAEnv(info *Info) error {
	visibleDevices := os.Getenv("CUDA_VISIBLE_DEVICES")
	if visibleDevices == "" {
		return fmt.Errorf("no CUDA environment variables found")
	}
	if visibleDevices == "-1" {
		return nil
	}

	info.DeviceCount = len(strings.Split(visibleDevices, ","))
	info.Available = info.DeviceCount > 0
	return nil
}
