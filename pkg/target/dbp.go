package target

// DBPProcess is the tracee of the current debug session.
var DBPProcess *Process

// AttachProcess traces the running process pid and returns it stopped.
func AttachProcess(pid int, opts ...Option) (*Process, error) {
	p := newProcess(opts...)
	if err := p.Attach(pid); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}
