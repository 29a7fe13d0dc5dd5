package ports

import (
	"fmt"
	"net"

	gopsnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// Occupant describes the process listening on a port.
type Occupant struct {
	PID  int32
	Name string
}

func (o Occupant) String() string {
	if o.Name != "" {
		return fmt.Sprintf("%s (pid %d)", o.Name, o.PID)
	}
	return fmt.Sprintf("pid %d", o.PID)
}

// IsAvailable checks if a port can currently be bound.
func IsAvailable(port int) bool {
	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// FindAvailable finds the next bindable port at or above startPort. Returns
// 0 when nothing frees up within the scan window.
func FindAvailable(startPort int) int {
	maxAttempts := 100 // don't search forever
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		if port > 65535 {
			return 0
		}
		if IsAvailable(port) {
			return port
		}
	}
	return 0
}

// Lookup returns the process listening on the given TCP port, when the
// connection table exposes one. Lets the operator see who is squatting on
// an upstream port before a spawn fails confusingly.
func Lookup(port int) (Occupant, bool) {
	conns, err := gopsnet.Connections("tcp")
	if err != nil {
		return Occupant{}, false
	}

	for _, conn := range conns {
		if conn.Status != "LISTEN" || conn.Laddr.Port != uint32(port) {
			continue
		}
		if conn.Pid <= 0 {
			continue
		}
		occ := Occupant{PID: conn.Pid}
		if proc, err := process.NewProcess(conn.Pid); err == nil {
			if name, err := proc.Name(); err == nil {
				occ.Name = name
			}
		}
		return occ, true
	}
	return Occupant{}, false
}

// Describe returns a human-readable status line for a port.
func Describe(port int) string {
	if IsAvailable(port) {
		return fmt.Sprintf("port %d is available", port)
	}
	if occ, ok := Lookup(port); ok {
		return fmt.Sprintf("port %d is in use by %s", port, occ)
	}
	return fmt.Sprintf("port %d is in use", port)
}
