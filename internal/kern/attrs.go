package kern

// SetTimeout writes t's countdown-to-Timer-notification field. ms of 0
// disables the timer. Tick decrements this once per call and fires
// NotifyTimer at zero.
func (k *Kernel) SetTimeout(t *TCB, ms int) {
	k.mu.Lock()
	defer k.mu.Unlock()
	t.Timeout = ms
}
