package platform

import (
	"os"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
)

// HostFacts identifies the machine a posture was collected on.
type HostFacts struct {
	Hostname        string `json:"hostname" yaml:"hostname"`
	OS              string `json:"os" yaml:"os"`
	Platform        string `json:"platform,omitempty" yaml:"platform,omitempty"`
	PlatformVersion string `json:"platform_version,omitempty" yaml:"platform_version,omitempty"`
	KernelVersion   string `json:"kernel_version,omitempty" yaml:"kernel_version,omitempty"`
	PID             int    `json:"pid" yaml:"pid"`
	ParentName      string `json:"parent_name,omitempty" yaml:"parent_name,omitempty"`
}

// CollectHostFacts gathers host facts. Missing details are left empty; it
// never fails.
func CollectHostFacts() HostFacts {
	facts := HostFacts{
		OS:  runtime.GOOS,
		PID: os.Getpid(),
	}
	if info, err := host.Info(); err == nil {
		facts.Hostname = info.Hostname
		facts.Platform = info.Platform
		facts.PlatformVersion = info.PlatformVersion
		facts.KernelVersion = info.KernelVersion
	}
	if facts.Hostname == "" {
		facts.Hostname, _ = os.Hostname()
	}
	if name, err := parentProcessName(); err == nil {
		facts.ParentName = name
	}
	return facts
}
