package model

import "time"

// DefaultPollRole is used when a poll configuration is saved without a role.
const DefaultPollRole = "Owner"

// PollConfig is the persisted polling schedule of one (workspace, role) pair.
type PollConfig struct {
	WorkspaceID int64
	Role        string
	Days        int
	Hours       int
	Minutes     int
	Recipients  []string
	UpdatedAt   time.Time
}

// TotalMinutes returns the configured interval in minutes.
func (c PollConfig) TotalMinutes() int {
	return c.Days*24*60 + c.Hours*60 + c.Minutes
}
