package ptpproto

// TransactionState names the coarse USB-lifecycle states of a PTP
// transaction. It is distinct from Session, which tracks the PTP logical
// session id. Neither Dispatcher nor the bulk worker stores or updates a
// TransactionState value; the type and its String method only name the
// states.
type TransactionState int

const (
	// WaitConfig is the state before SET_CONFIGURATION(1); no bulk
	// endpoints are open and no Commands are read.
	WaitConfig TransactionState = iota
	// Idle is the steady state: waiting for the next Command container.
	Idle
	// DataOut is entered after a Command that expects a host-to-device
	// Data phase, while that phase is being read.
	DataOut
	// DataReady means a full Command (and Data, if any) has been read and
	// the dispatcher is producing its Response.
	DataReady
	// DataIn is entered while a device-to-host Data phase is being
	// written, before the Response is sent.
	DataIn
)

func (s TransactionState) String() string {
	switch s {
	case WaitConfig:
		return "WAIT_CONFIG"
	case Idle:
		return "IDLE"
	case DataOut:
		return "DATA_OUT"
	case DataReady:
		return "DATA_READY"
	case DataIn:
		return "DATA_IN"
	default:
		return "UNKNOWN"
	}
}

// Session is the single PTP logical session slot. It is mutated only by
// OpenSession/CloseSession and cleared on a class-specific device reset;
// the control task never reads it directly.
type Session struct {
	id   uint32
	open bool
}

// IsOpen reports whether a session is currently open.
func (s *Session) IsOpen() bool { return s.open }

// ID returns the current session id; only meaningful when IsOpen is true.
func (s *Session) ID() uint32 { return s.id }

// Open marks the session open with id sid.
func (s *Session) Open(sid uint32) {
	s.id = sid
	s.open = true
}

// Close clears the session.
func (s *Session) Close() {
	s.id = 0
	s.open = false
}
