package application

// Trigger runs the entry installed for key synchronously, through the same
// wrappers a timer fire goes through. It reports whether key was installed.
func (r *ScheduleRegistry) Trigger(key ScheduleKey) bool {
	r.mu.Lock()
	slot, ok := r.slots[key]
	if !ok || !slot.active {
		r.mu.Unlock()
		return false
	}
	id := slot.id
	r.mu.Unlock()
	r.cron.Entry(id).WrappedJob.Run()
	return true
}

// EntryCount returns the number of entries held by the cron runner.
func (r *ScheduleRegistry) EntryCount() int {
	return len(r.cron.Entries())
}
