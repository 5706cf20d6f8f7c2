// Package system probes the host for the machine-fidelity fields recorded
// in every result document. Every probe is best effort: a field that cannot
// be determined on this host is simply left unset.
package system

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"

	"github.com/lakebench/lakebench/internal/results"
)

// Default locations consulted when no override is set.
const (
	defaultHardeningProfilePath = "/etc/lakebench/cis-tailoring.xml"
	defaultEgressPolicyPath     = "/etc/nftables.conf"
	defaultRunModePath          = "/etc/lakebench/security-mode"
	defaultImageVersionPath     = "/etc/lakebench/image-version"
	defaultHardeningIDPath      = "/etc/lakebench/hardening-profile-id"
)

// HostName returns the machine name for the run context.
func HostName() string {
	if name, err := os.Hostname(); err == nil && name != "" {
		return name
	}
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	return "unknown-host"
}

// EnvOverrides carries operator-supplied fidelity values and file locations.
// A set value wins over anything probed from the host.
type EnvOverrides struct {
	ImageVersion           string
	HardeningProfileID     string
	HardeningProfileSHA256 string
	HardeningProfilePath   string
	EgressPolicySHA256     string
	EgressPolicyPath       string
	RunMode                string
	RunModePath            string
	MaintenanceWindowID    string
}

// OverridesFromEnv reads the LAKEBENCH_* fidelity variables.
func OverridesFromEnv() EnvOverrides {
	return EnvOverrides{
		ImageVersion:           os.Getenv("LAKEBENCH_IMAGE_VERSION"),
		HardeningProfileID:     os.Getenv("LAKEBENCH_HARDENING_PROFILE_ID"),
		HardeningProfileSHA256: os.Getenv("LAKEBENCH_HARDENING_PROFILE_SHA256"),
		HardeningProfilePath:   os.Getenv("LAKEBENCH_HARDENING_PROFILE_PATH"),
		EgressPolicySHA256:     os.Getenv("LAKEBENCH_EGRESS_POLICY_SHA256"),
		EgressPolicyPath:       os.Getenv("LAKEBENCH_EGRESS_POLICY_PATH"),
		RunMode:                os.Getenv("LAKEBENCH_RUN_MODE"),
		RunModePath:            os.Getenv("LAKEBENCH_RUN_MODE_PATH"),
		MaintenanceWindowID:    os.Getenv("LAKEBENCH_MAINTENANCE_WINDOW_ID"),
	}
}

// FidelityInfo is the probed snapshot of the host environment.
type FidelityInfo struct {
	ImageVersion           *string
	HardeningProfileID     *string
	HardeningProfileSHA256 *string
	CPUModel               *string
	CPUMicrocode           *string
	Kernel                 *string
	BootParams             *string
	CPUStealPct            *float64
	NUMATopology           *string
	EgressPolicySHA256     *string
	RunMode                *string
	MaintenanceWindowID    *string
}

// Probe collects the fidelity snapshot, preferring overrides to host state.
func Probe(ov EnvOverrides) FidelityInfo {
	hardeningPath := pathOrDefault(ov.HardeningProfilePath, defaultHardeningProfilePath)
	egressPath := pathOrDefault(ov.EgressPolicyPath, defaultEgressPolicyPath)
	runModePath := pathOrDefault(ov.RunModePath, defaultRunModePath)

	return FidelityInfo{
		ImageVersion:           firstOf(ov.ImageVersion, func() *string { return readTrimmedFile(defaultImageVersionPath) }),
		HardeningProfileID:     firstOf(ov.HardeningProfileID, func() *string { return readTrimmedFile(defaultHardeningIDPath) }),
		HardeningProfileSHA256: firstOf(ov.HardeningProfileSHA256, func() *string { return sha256File(hardeningPath) }),
		CPUModel:               cpuModel(),
		CPUMicrocode:           cpuInfoField("microcode"),
		Kernel:                 kernelRelease(),
		BootParams:             readTrimmedFile("/proc/cmdline"),
		CPUStealPct:            cpuStealPercent(),
		NUMATopology:           numaTopologySummary("/sys/devices/system/node"),
		EgressPolicySHA256:     firstOf(ov.EgressPolicySHA256, func() *string { return sha256File(egressPath) }),
		RunMode:                firstOf(ov.RunMode, func() *string { return readTrimmedFile(runModePath) }),
		MaintenanceWindowID:    firstOf(ov.MaintenanceWindowID, func() *string { return nil }),
	}
}

// Apply copies the snapshot into a run context.
func (f FidelityInfo) Apply(ctx *results.BenchContext) {
	ctx.ImageVersion = f.ImageVersion
	ctx.HardeningProfileID = f.HardeningProfileID
	ctx.HardeningProfileSHA256 = f.HardeningProfileSHA256
	ctx.CPUModel = f.CPUModel
	ctx.CPUMicrocode = f.CPUMicrocode
	ctx.Kernel = f.Kernel
	ctx.BootParams = f.BootParams
	ctx.CPUStealPct = f.CPUStealPct
	ctx.NUMATopology = f.NUMATopology
	ctx.EgressPolicySHA256 = f.EgressPolicySHA256
	ctx.RunMode = f.RunMode
	ctx.MaintenanceWindowID = f.MaintenanceWindowID
}

func pathOrDefault(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

func firstOf(override string, probe func() *string) *string {
	if override != "" {
		return &override
	}
	return probe()
}

func readTrimmedFile(path string) *string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	value := strings.TrimSpace(string(raw))
	if value == "" {
		return nil
	}
	return &value
}

func sha256File(path string) *string {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	sum := sha256.Sum256(raw)
	digest := hex.EncodeToString(sum[:])
	return &digest
}

func cpuModel() *string {
	infos, err := cpu.Info()
	if err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		return &infos[0].ModelName
	}
	return cpuInfoField("model name")
}

func cpuInfoField(field string) *string {
	raw, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return nil
	}
	return parseCPUInfoField(string(raw), field)
}

func parseCPUInfoField(content, field string) *string {
	for _, line := range strings.Split(content, "\n") {
		lhs, rhs, found := strings.Cut(line, ":")
		if !found || strings.TrimSpace(lhs) != field {
			continue
		}
		if value := strings.TrimSpace(rhs); value != "" {
			return &value
		}
	}
	return nil
}

func kernelRelease() *string {
	version, err := host.KernelVersion()
	if err != nil || version == "" {
		return nil
	}
	return &version
}

// cpuStealPercent reports hypervisor steal as a share of all CPU time since
// boot.
func cpuStealPercent() *float64 {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return nil
	}
	t := times[0]
	total := t.User + t.System + t.Idle + t.Nice + t.Iowait + t.Irq + t.Softirq + t.Steal
	if total <= 0 {
		return nil
	}
	pct := (t.Steal / total) * 100.0
	return &pct
}

func numaTopologySummary(nodeDir string) *string {
	entries, err := os.ReadDir(nodeDir)
	if err != nil {
		return nil
	}
	count := 0
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, "node") && isDigits(strings.TrimPrefix(name, "node")) {
			count++
		}
	}
	if count == 0 {
		return nil
	}
	summary := "nodes=" + strconv.Itoa(count)
	return &summary
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
