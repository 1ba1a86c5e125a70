package rpc

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// ConsensusInfo responds with a snapshot of the replica's consensus state
func (s *Server) ConsensusInfo(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, s.controller.ConsensusInfo(), http.StatusOK)
}

// PeerInfo responds with the static replica set
func (s *Server) PeerInfo(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, PeerInfoResponse{
		ID:       s.config.NodeID,
		NumPeers: len(s.config.Peers),
		Peers:    s.config.Peers,
	}, http.StatusOK)
}

// Config retrieves the replica's running configuration
func (s *Server) Config(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	write(w, s.config, http.StatusOK)
}

// ResourceUsage responds with the process and host resource usage
func (s *Server) ResourceUsage(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	pm, err := mem.VirtualMemory() // os memory
	if err != nil {
		write(w, err, http.StatusInternalServerError)
		return
	}
	c, err := cpu.Times(false) // os cpu
	if err != nil || len(c) == 0 {
		write(w, err, http.StatusInternalServerError)
		return
	}
	cp, err := cpu.Percent(0, false) // os cpu percent
	if err != nil || len(cp) == 0 {
		write(w, err, http.StatusInternalServerError)
		return
	}
	d, err := disk.Usage(string(os.PathSeparator)) // os disk
	if err != nil {
		write(w, err, http.StatusInternalServerError)
		return
	}
	ioCounters, err := net.IOCounters(false)
	if err != nil || len(ioCounters) == 0 {
		write(w, err, http.StatusInternalServerError)
		return
	}
	proc, err := s.processUsage()
	if err != nil {
		write(w, err, http.StatusInternalServerError)
		return
	}
	write(w, ResourceUsageResponse{
		Process: proc,
		System: SystemResourceUsage{
			TotalRAM:        pm.Total,
			AvailableRAM:    pm.Available,
			UsedRAM:         pm.Used,
			UsedRAMPercent:  pm.UsedPercent,
			FreeRAM:         pm.Free,
			UsedCPUPercent:  cp[0],
			UserCPU:         c[0].User,
			SystemCPU:       c[0].System,
			IdleCPU:         c[0].Idle,
			TotalDisk:       d.Total,
			UsedDisk:        d.Used,
			UsedDiskPercent: d.UsedPercent,
			FreeDisk:        d.Free,
			ReceivedBytesIO: ioCounters[0].BytesRecv,
			WrittenBytesIO:  ioCounters[0].BytesSent,
		},
	}, http.StatusOK)
}

// processUsage collects the usage of this process
func (s *Server) processUsage() (ProcessResourceUsage, error) {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return ProcessResourceUsage{}, err
	}
	name, err := p.Name()
	if err != nil {
		return ProcessResourceUsage{}, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return ProcessResourceUsage{}, err
	}
	status, err := p.Status()
	if err != nil {
		return ProcessResourceUsage{}, err
	}
	numThreads, err := p.NumThreads()
	if err != nil {
		return ProcessResourceUsage{}, err
	}
	memPercent, err := p.MemoryPercent()
	if err != nil {
		return ProcessResourceUsage{}, err
	}
	createdMs, err := p.CreateTime()
	if err != nil {
		return ProcessResourceUsage{}, err
	}
	// file descriptors aren't available on every platform
	fds, e := p.NumFDs()
	if e != nil {
		s.logger.Debugf("Unable to count file descriptors: %s", e.Error())
	}
	return ProcessResourceUsage{
		Name:          name,
		Status:        strings.Join(status, ","),
		CreateTime:    time.UnixMilli(createdMs).Format(time.RFC822),
		FDCount:       uint64(fds),
		ThreadCount:   uint64(numThreads),
		MemoryPercent: float64(memPercent),
		CPUPercent:    cpuPercent,
	}, nil
}
